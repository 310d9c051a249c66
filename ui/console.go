// Package ui holds the terminal side of spekta: reading user turns,
// selection prompts, and rendering session events.
package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/spektasoft/spekta-cli/agentloop"
)

// exitCommands end the session when typed as a whole line.
var exitCommands = map[string]bool{
	"/exit": true,
	"/quit": true,
	"exit":  true,
	"quit":  true,
}

// IsTTY reports whether both f and stdout are terminals.
func IsTTY(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// Console reads user turns and answers selection prompts. On a terminal it
// runs Bubble Tea widgets; otherwise it falls back to numbered line
// prompts so piped input works.
type Console struct {
	in          io.Reader
	lines       *bufio.Reader
	out         io.Writer
	interactive bool
}

// NewConsole creates a Console. Interactive widgets are used only when in
// is a terminal.
func NewConsole(in io.Reader, out io.Writer) *Console {
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = IsTTY(f)
	}
	return &Console{
		in:          in,
		lines:       bufio.NewReader(in),
		out:         out,
		interactive: interactive,
	}
}

var (
	_ agentloop.InputReader = (*Console)(nil)
	_ agentloop.Selector    = (*Console)(nil)
)

// ReadUserMessage reads one turn. A line ending in a backslash continues
// on the next line.
func (c *Console) ReadUserMessage(ctx context.Context) (agentloop.UserInput, error) {
	if c.interactive {
		return c.readInteractive()
	}

	fmt.Fprint(c.out, promptStyle.Render("› "))
	var parts []string
	for {
		line, err := c.lines.ReadString('\n')
		if err != nil && line == "" {
			if len(parts) > 0 {
				break
			}
			return agentloop.UserInput{}, err
		}
		line = strings.TrimRight(line, "\r\n")
		if strings.HasSuffix(line, `\`) {
			parts = append(parts, strings.TrimSuffix(line, `\`))
			if err != nil {
				break
			}
			continue
		}
		parts = append(parts, line)
		break
	}
	return classifyInput(strings.Join(parts, "\n")), nil
}

func classifyInput(text string) agentloop.UserInput {
	trimmed := strings.TrimSpace(text)
	switch {
	case trimmed == "":
		return agentloop.UserInput{Kind: agentloop.InputNone}
	case exitCommands[trimmed]:
		return agentloop.UserInput{Kind: agentloop.InputExit}
	default:
		return agentloop.UserInput{Kind: agentloop.InputText, Text: text}
	}
}

// inputModel is a one-line editor. Ctrl+C at the prompt ends the session.
type inputModel struct {
	input     textinput.Model
	keys      KeyMap
	submitted bool
	quit      bool
}

func newInputModel() inputModel {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render("› ")
	ti.Placeholder = "Ask anything, /exit to quit"
	ti.CharLimit = 0
	ti.Focus()
	return inputModel{input: ti, keys: DefaultKeyMap}
}

func (m inputModel) Init() tea.Cmd { return textinput.Blink }

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(keyMsg, m.keys.Quit):
			m.quit = true
			return m, tea.Quit
		case key.Matches(keyMsg, m.keys.Confirm):
			m.submitted = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	if m.submitted || m.quit {
		return promptStyle.Render("› ") + m.input.Value() + "\n"
	}
	return m.input.View() + "\n"
}

func (c *Console) readInteractive() (agentloop.UserInput, error) {
	final, err := tea.NewProgram(newInputModel(), tea.WithInput(c.in), tea.WithOutput(c.out)).Run()
	if err != nil {
		return agentloop.UserInput{}, fmt.Errorf("read input: %w", err)
	}
	m := final.(inputModel)
	if m.quit {
		return agentloop.UserInput{Kind: agentloop.InputExit}, nil
	}
	return classifyInput(m.input.Value()), nil
}

// SelectMany asks which options to act on. Nothing is selected by default.
func (c *Console) SelectMany(prompt string, options []string) ([]int, error) {
	if len(options) == 0 {
		return nil, nil
	}
	if c.interactive {
		final, err := tea.NewProgram(newMultiSelect(prompt, options), tea.WithInput(c.in), tea.WithOutput(c.out)).Run()
		if err != nil {
			return nil, fmt.Errorf("select: %w", err)
		}
		m := final.(multiSelectModel)
		if m.cancelled {
			return nil, ErrCancelled
		}
		return m.chosen(), nil
	}

	fmt.Fprintln(c.out, titleStyle.Render(prompt))
	for i, opt := range options {
		fmt.Fprintf(c.out, "  %d) %s\n", i+1, opt)
	}
	for {
		fmt.Fprint(c.out, promptStyle.Render("Run which? [a]ll, [n]one, or numbers like 1,3-4: "))
		line, err := c.lines.ReadString('\n')
		if err != nil && line == "" {
			return nil, err
		}
		picked, perr := parseSelection(line, len(options))
		if perr == nil {
			return picked, nil
		}
		fmt.Fprintln(c.out, warningStyle.Render(perr.Error()))
		if err != nil {
			return nil, err
		}
	}
}

// SelectOne asks for exactly one option; an empty answer takes the default.
func (c *Console) SelectOne(prompt string, options []string, defaultIndex int) (int, error) {
	if len(options) == 0 {
		return 0, fmt.Errorf("select: no options")
	}
	if defaultIndex < 0 || defaultIndex >= len(options) {
		defaultIndex = 0
	}
	if c.interactive {
		final, err := tea.NewProgram(newSingleSelect(prompt, options, defaultIndex), tea.WithInput(c.in), tea.WithOutput(c.out)).Run()
		if err != nil {
			return 0, fmt.Errorf("select: %w", err)
		}
		m := final.(singleSelectModel)
		if m.cancelled {
			return 0, ErrCancelled
		}
		return m.cursor, nil
	}

	fmt.Fprintln(c.out, titleStyle.Render(prompt))
	for i, opt := range options {
		marker := " "
		if i == defaultIndex {
			marker = "*"
		}
		fmt.Fprintf(c.out, " %s%d) %s\n", marker, i+1, opt)
	}
	for {
		fmt.Fprint(c.out, promptStyle.Render(fmt.Sprintf("Choice [%d]: ", defaultIndex+1)))
		line, err := c.lines.ReadString('\n')
		if err != nil && line == "" {
			return 0, err
		}
		answer := strings.TrimSpace(line)
		if answer == "" {
			return defaultIndex, nil
		}
		if n, convErr := strconv.Atoi(answer); convErr == nil && n >= 1 && n <= len(options) {
			return n - 1, nil
		}
		fmt.Fprintln(c.out, warningStyle.Render(fmt.Sprintf("enter a number between 1 and %d", len(options))))
		if err != nil {
			return 0, err
		}
	}
}

// parseSelection reads "a", "n", or a list of 1-based numbers and ranges.
func parseSelection(answer string, n int) ([]int, error) {
	answer = strings.ToLower(strings.TrimSpace(answer))
	switch answer {
	case "", "n", "none", "no":
		return nil, nil
	case "a", "all", "y", "yes":
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	seen := make(map[int]bool)
	var out []int
	for _, field := range strings.FieldsFunc(answer, func(r rune) bool { return r == ',' || r == ' ' }) {
		lo, hi := field, field
		if i := strings.Index(field, "-"); i > 0 {
			lo, hi = field[:i], field[i+1:]
		}
		start, err1 := strconv.Atoi(lo)
		end, err2 := strconv.Atoi(hi)
		if err1 != nil || err2 != nil || start < 1 || end > n || start > end {
			return nil, fmt.Errorf("invalid selection %q (options are 1-%d)", field, n)
		}
		for i := start; i <= end; i++ {
			if !seen[i-1] {
				seen[i-1] = true
				out = append(out, i-1)
			}
		}
	}
	return out, nil
}
