package ui

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrCancelled is returned when the user backs out of a prompt.
var ErrCancelled = errors.New("selection cancelled")

// multiSelectModel is a checklist; every option starts unchecked.
type multiSelectModel struct {
	prompt    string
	options   []string
	cursor    int
	selected  map[int]bool
	keys      KeyMap
	done      bool
	cancelled bool
}

func newMultiSelect(prompt string, options []string) multiSelectModel {
	return multiSelectModel{
		prompt:   prompt,
		options:  options,
		selected: make(map[int]bool),
		keys:     DefaultKeyMap,
	}
}

func (m multiSelectModel) Init() tea.Cmd { return nil }

func (m multiSelectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.keys.Cancel):
		m.cancelled = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Confirm):
		m.done = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, m.keys.Down):
		if m.cursor < len(m.options)-1 {
			m.cursor++
		}
	case key.Matches(keyMsg, m.keys.Toggle):
		m.selected[m.cursor] = !m.selected[m.cursor]
	case key.Matches(keyMsg, m.keys.All):
		all := len(m.chosen()) < len(m.options)
		for i := range m.options {
			m.selected[i] = all
		}
	}
	return m, nil
}

// chosen returns the checked indexes in ascending order.
func (m multiSelectModel) chosen() []int {
	var out []int
	for i, on := range m.selected {
		if on {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

func (m multiSelectModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.prompt))
	sb.WriteString("\n")

	if m.done || m.cancelled {
		fmt.Fprintf(&sb, "  %s\n", dimStyle.Render(fmt.Sprintf("%d of %d selected", len(m.chosen()), len(m.options))))
		return sb.String()
	}

	for i, opt := range m.options {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		box := "[ ]"
		if m.selected[i] {
			box = "[x]"
		}
		line := fmt.Sprintf("%s%s %s", cursor, box, opt)
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString(helpStyle.Render(helpLine(m.keys.Up, m.keys.Down, m.keys.Toggle, m.keys.All, m.keys.Confirm, m.keys.Cancel)))
	sb.WriteString("\n")
	return sb.String()
}

// singleSelectModel picks exactly one option.
type singleSelectModel struct {
	prompt    string
	options   []string
	cursor    int
	keys      KeyMap
	done      bool
	cancelled bool
}

func newSingleSelect(prompt string, options []string, defaultIndex int) singleSelectModel {
	if defaultIndex < 0 || defaultIndex >= len(options) {
		defaultIndex = 0
	}
	return singleSelectModel{
		prompt:  prompt,
		options: options,
		cursor:  defaultIndex,
		keys:    DefaultKeyMap,
	}
}

func (m singleSelectModel) Init() tea.Cmd { return nil }

func (m singleSelectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.keys.Cancel):
		m.cancelled = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Confirm):
		m.done = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, m.keys.Down):
		if m.cursor < len(m.options)-1 {
			m.cursor++
		}
	}
	return m, nil
}

func (m singleSelectModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.prompt))
	sb.WriteString("\n")

	if m.done {
		fmt.Fprintf(&sb, "  %s\n", dimStyle.Render(m.options[m.cursor]))
		return sb.String()
	}
	if m.cancelled {
		return sb.String()
	}

	for i, opt := range m.options {
		if i == m.cursor {
			sb.WriteString(selectedStyle.Render("> " + opt))
		} else {
			sb.WriteString("  " + opt)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(helpStyle.Render(helpLine(m.keys.Up, m.keys.Down, m.keys.Confirm, m.keys.Cancel)))
	sb.WriteString("\n")
	return sb.String()
}
