package toolcall

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultMaxGlobMatches caps the files one read glob may expand to.
const DefaultMaxGlobMatches = 20

// Executor runs validated tool calls against the working directory.
type Executor struct {
	workDir        string
	maxGlobMatches int
	logger         *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the executor's logger.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMaxGlobMatches overrides DefaultMaxGlobMatches.
func WithMaxGlobMatches(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.maxGlobMatches = n
		}
	}
}

// NewExecutor creates an Executor confined to workDir.
func NewExecutor(workDir string, opts ...ExecutorOption) *Executor {
	e := &Executor{
		workDir:        workDir,
		maxGlobMatches: DefaultMaxGlobMatches,
		logger:         slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WorkDir returns the directory calls are confined to.
func (e *Executor) WorkDir() string {
	return e.workDir
}

// Dispatch runs one call and returns the report text for the model. Paths
// are validated again here, before any filesystem access.
func (e *Executor) Dispatch(call Call) (string, error) {
	e.logger.Debug("dispatch tool call", "tool", string(call.Kind), "path", call.Path)
	switch call.Kind {
	case KindRead:
		return e.read(call)
	case KindWrite:
		return e.write(call)
	case KindReplace:
		return e.replace(call)
	default:
		return "", &UnknownToolError{Kind: call.Kind}
	}
}

func (e *Executor) write(call Call) (string, error) {
	abs, err := Validate(e.workDir, call.Path)
	if err != nil {
		return "", err
	}

	perm := os.FileMode(0o644)
	if info, err := os.Stat(abs); err == nil {
		if info.IsDir() {
			return "", fmt.Errorf("%s is a directory", call.Path)
		}
		perm = info.Mode().Perm()
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("create parent of %s: %w", call.Path, err)
	}
	if err := os.WriteFile(abs, []byte(call.Content), perm); err != nil {
		return "", fmt.Errorf("write %s: %w", call.Path, err)
	}
	return fmt.Sprintf("Wrote %d bytes to %s", len(call.Content), call.Path), nil
}

func (e *Executor) replace(call Call) (string, error) {
	if strings.TrimSpace(call.Content) == "" {
		return "", &PatchSyntaxError{Reason: "replace requires at least one search/replace block"}
	}
	abs, err := Validate(e.workDir, call.Path)
	if err != nil {
		return "", err
	}

	result, err := ApplyPatch(abs, call.Content)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			nf.Path = call.Path
		}
		return "", err
	}
	return result.Summary(call.Path), nil
}

// rangeSuffixRe matches an optional ":start" or ":start-end" line range.
var rangeSuffixRe = regexp.MustCompile(`^(.*?):(\d+)(?:-(\d+))?$`)

type readTarget struct {
	path  string
	start int // 1-based, 0 for whole file
	end   int // inclusive, 0 for end of file
}

func parseReadExpr(expr string) readTarget {
	t := readTarget{path: expr}
	m := rangeSuffixRe.FindStringSubmatch(expr)
	if m == nil {
		return t
	}
	t.path = m[1]
	t.start, _ = strconv.Atoi(m[2])
	t.end = t.start
	if m[3] != "" {
		t.end, _ = strconv.Atoi(m[3])
	}
	return t
}

// read handles one or more path expressions, each optionally a glob and
// optionally suffixed with a line range. Sections are concatenated with
// range markers.
func (e *Executor) read(call Call) (string, error) {
	exprs := splitExpressions(call.Path)
	if len(exprs) == 0 {
		return "", &PathSecurityError{Path: call.Path, Reason: "empty path"}
	}

	var sb strings.Builder
	for _, expr := range exprs {
		target := parseReadExpr(expr)
		paths, note, err := e.expand(target.path)
		if err != nil {
			return "", err
		}
		for _, rel := range paths {
			section, err := e.readSection(rel, target.start, target.end)
			if err != nil {
				return "", err
			}
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(section)
		}
		if note != "" {
			sb.WriteString("\n" + note + "\n")
		}
	}
	return sb.String(), nil
}

// expand turns a path expression into validated relative paths. Globs are
// matched against the working directory and capped.
func (e *Executor) expand(expr string) ([]string, string, error) {
	if _, err := Validate(e.workDir, strings.Map(stripGlobMeta, expr)); err != nil {
		return nil, "", err
	}
	if !hasGlobMeta(expr) {
		return []string{expr}, "", nil
	}

	if !doublestar.ValidatePattern(expr) {
		return nil, "", fmt.Errorf("invalid glob pattern %q", expr)
	}
	matches, err := doublestar.Glob(os.DirFS(e.workDir), expr, doublestar.WithFilesOnly())
	if err != nil {
		return nil, "", fmt.Errorf("glob %q: %w", expr, err)
	}
	if len(matches) == 0 {
		return nil, "", fmt.Errorf("pattern %q matched no files", expr)
	}

	var note string
	if len(matches) > e.maxGlobMatches {
		note = fmt.Sprintf("[%d more match(es) for %s omitted]", len(matches)-e.maxGlobMatches, expr)
		e.logger.Debug("glob truncated", "pattern", expr, "matches", len(matches), "limit", e.maxGlobMatches)
		matches = matches[:e.maxGlobMatches]
	}
	return matches, note, nil
}

func (e *Executor) readSection(rel string, start, end int) (string, error) {
	abs, err := Validate(e.workDir, rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rel, err)
	}

	lines := strings.SplitAfter(string(data), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	total := len(lines)

	if start == 0 {
		return fmt.Sprintf("--- %s (lines 1-%d of %d) ---\n%s\n--- end %s ---", rel, total, total, trimNewline(string(data)), rel), nil
	}
	if start < 1 || end < start {
		return "", fmt.Errorf("invalid line range %d-%d for %s", start, end, rel)
	}
	if start > total {
		return "", fmt.Errorf("line %d is past the end of %s (%d lines)", start, rel, total)
	}
	if end > total {
		end = total
	}
	body := strings.Join(lines[start-1:end], "")
	return fmt.Sprintf("--- %s (lines %d-%d of %d) ---\n%s\n--- end %s ---", rel, start, end, total, trimNewline(body), rel), nil
}

func trimNewline(s string) string {
	return strings.TrimSuffix(s, "\n")
}

func hasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

// stripGlobMeta lets the sandbox check the literal part of a pattern.
func stripGlobMeta(r rune) rune {
	switch r {
	case '*', '?', '[', ']', '{', '}':
		return '_'
	}
	return r
}
