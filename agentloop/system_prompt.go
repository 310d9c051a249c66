package agentloop

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spektasoft/spekta-cli/toolcall"
)

const maxProjectDocBytes = 32 * 1024 // 32KB

// DefaultPromptTemplate is used when no prompt file is configured.
const DefaultPromptTemplate = `You are a coding assistant working inside the user's project directory. You help with software engineering tasks by reading files and proposing precise edits, which the user reviews before they run.

# Core Principles

- Read files before editing them. Understand existing code before suggesting modifications.
- Prefer editing existing files over creating new ones.
- Keep changes minimal and focused. Only make changes that are directly requested or clearly necessary.
- After making changes, read the modified region back to verify it.
- Write clean, idiomatic code that follows the project's existing style.
- Do not introduce security vulnerabilities.`

// ToolInstructions describes the tool markup the assistant may emit.
var ToolInstructions = fmt.Sprintf(`# Tools

Request actions by writing tags in your reply. The user approves each action before it runs, and the results arrive in the next message. All paths are relative to the working directory; absolute paths, "..", "~" and backslashes are rejected.

## read
<read path="src/main.go" />
Reads one or more files. Separate several paths with commas. A path may carry a line range ("src/main.go:10-40") or be a glob ("internal/**/*.go", at most %d matches).

## write
<write path="docs/notes.md">
full file content
</write>
Creates or overwrites a whole file. Use it for new files only.

## replace
<replace path="src/main.go">
<<<<<<< SEARCH
exact lines from the file
=======
replacement lines
>>>>>>> REPLACE
</replace>
Edits an existing file. The SEARCH text must match the file exactly; its first occurrence is replaced. Several blocks may follow each other (at most %d), but no two may touch the same line. If a block is not found, read the file again before retrying.`, toolcall.DefaultMaxGlobMatches, toolcall.MaxBlocks)

// BuildSystemPrompt assembles the first message of a session: the prompt
// template, the tool instructions, the environment block, git state, and
// any project instruction files.
func BuildSystemPrompt(template string, profile Profile, workingDir string, now time.Time) string {
	var sb strings.Builder

	sb.WriteString(strings.TrimSpace(template))
	sb.WriteString("\n\n")
	sb.WriteString(ToolInstructions)
	sb.WriteString("\n\n")
	sb.WriteString(BuildEnvironmentContext(workingDir, profile.Model, now))

	if gitCtx := GetGitContext(workingDir); gitCtx != "" {
		sb.WriteString("\n\n")
		sb.WriteString(gitCtx)
	}

	if docs := DiscoverProjectDocs(workingDir, profile.Provider); docs != "" {
		sb.WriteString("\n\n# Project Instructions\n\n")
		sb.WriteString(docs)
	}

	return sb.String()
}

// BuildEnvironmentContext generates the structured environment context block.
func BuildEnvironmentContext(workingDir, model string, now time.Time) string {
	isGitRepo := isGitRepository(workingDir)
	gitBranch := ""
	if isGitRepo {
		gitBranch = getGitBranch(workingDir)
	}

	var sb strings.Builder
	sb.WriteString("<environment>\n")
	fmt.Fprintf(&sb, "Working directory: %s\n", workingDir)
	fmt.Fprintf(&sb, "Is git repository: %v\n", isGitRepo)
	if gitBranch != "" {
		fmt.Fprintf(&sb, "Git branch: %s\n", gitBranch)
	}
	fmt.Fprintf(&sb, "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&sb, "Today's date: %s\n", now.Format("2006-01-02"))
	if model != "" {
		fmt.Fprintf(&sb, "Model: %s\n", model)
	}
	sb.WriteString("</environment>")
	return sb.String()
}

// DiscoverProjectDocs finds and loads project instruction files, walking
// from the git root (or working directory) down to the working directory.
func DiscoverProjectDocs(workingDir string, provider string) string {
	root := gitRoot(workingDir)
	if root == "" {
		root = workingDir
	}

	recognizedFiles := []string{"AGENTS.md", "SPEKTA.md"}
	switch provider {
	case "anthropic":
		recognizedFiles = append(recognizedFiles, "CLAUDE.md")
	case "gemini":
		recognizedFiles = append(recognizedFiles, "GEMINI.md")
	}

	var docs []string
	totalBytes := 0

	for _, dir := range collectPathHierarchy(root, workingDir) {
		for _, fileName := range recognizedFiles {
			content, err := os.ReadFile(filepath.Join(dir, fileName))
			if err != nil {
				continue
			}

			remaining := maxProjectDocBytes - totalBytes
			if remaining <= 0 {
				docs = append(docs, "[Project instructions truncated at 32KB]")
				return strings.Join(docs, "\n\n---\n\n")
			}

			text := string(content)
			if len(text) > remaining {
				text = text[:remaining] + "\n[Project instructions truncated at 32KB]"
			}

			docs = append(docs, fmt.Sprintf("# %s (from %s)\n\n%s", fileName, dir, text))
			totalBytes += len(text)
		}
	}

	return strings.Join(docs, "\n\n---\n\n")
}

// GetGitContext returns a summary of the git state for the system prompt.
func GetGitContext(workingDir string) string {
	root := gitRoot(workingDir)
	if root == "" {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("<git_context>\n")

	if branch := getGitBranch(root); branch != "" {
		fmt.Fprintf(&sb, "Branch: %s\n", branch)
	}

	if status := runGitCommand(root, "status", "--short"); status != "" {
		lines := strings.Split(strings.TrimSpace(status), "\n")
		fmt.Fprintf(&sb, "Modified/untracked files: %d\n", len(lines))
	}

	if log := runGitCommand(root, "log", "--oneline", "-10"); log != "" {
		sb.WriteString("Recent commits:\n")
		sb.WriteString(log)
		if !strings.HasSuffix(log, "\n") {
			sb.WriteString("\n")
		}
	}

	sb.WriteString("</git_context>")
	return sb.String()
}

// collectPathHierarchy returns directories from root to target, inclusive.
func collectPathHierarchy(root, target string) []string {
	root = filepath.Clean(root)
	target = filepath.Clean(target)

	if root == target {
		return []string{root}
	}

	dirs := []string{root}
	rel, err := filepath.Rel(root, target)
	if err != nil || strings.HasPrefix(rel, "..") {
		return dirs
	}

	current := root
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == "." {
			continue
		}
		current = filepath.Join(current, part)
		dirs = append(dirs, current)
	}
	return dirs
}

func isGitRepository(dir string) bool {
	return strings.TrimSpace(runGitCommand(dir, "rev-parse", "--is-inside-work-tree")) == "true"
}

func gitRoot(dir string) string {
	return strings.TrimSpace(runGitCommand(dir, "rev-parse", "--show-toplevel"))
}

func getGitBranch(dir string) string {
	return strings.TrimSpace(runGitCommand(dir, "rev-parse", "--abbrev-ref", "HEAD"))
}

func runGitCommand(dir string, args ...string) string {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return string(out)
}
