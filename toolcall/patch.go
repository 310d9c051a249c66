package toolcall

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// MaxBlocks is the most search/replace blocks one replace call may carry.
const MaxBlocks = 50

const (
	searchMarker  = "<<<<<<< SEARCH"
	dividerMarker = "======="
	replaceMarker = ">>>>>>> REPLACE"
)

// LineRange is an inclusive, 1-based range of lines in the original file.
type LineRange struct {
	Start int
	End   int
}

func (r LineRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Block is one search/replace unit.
type Block struct {
	Search  string
	Replace string

	// Set by Locate.
	Lines  LineRange
	offset int
}

// PatchResult describes a successful patch.
type PatchResult struct {
	Applied int
	Ranges  []LineRange // sorted by start line
}

// Summary renders the status line reported back to the model.
func (r *PatchResult) Summary(path string) string {
	parts := make([]string, len(r.Ranges))
	for i, lr := range r.Ranges {
		parts[i] = lr.String()
	}
	return fmt.Sprintf("Replaced %d block(s) in %s. Line ranges: %s", r.Applied, path, strings.Join(parts, ", "))
}

// ParseBlocks reads the marker-delimited blocks of a replace payload.
// Blank lines between blocks are ignored; any other text outside a block,
// a marker out of sequence, or an unterminated block is a syntax error.
func ParseBlocks(payload string) ([]Block, error) {
	const (
		outside = iota
		inSearch
		inReplace
	)

	lines := strings.Split(payload, "\n")
	state := outside
	var blocks []Block
	var search, replace []string

	for i, raw := range lines {
		line := strings.TrimSuffix(raw, "\r")
		marker := strings.TrimRight(line, " \t")
		lineNo := i + 1

		switch state {
		case outside:
			switch {
			case marker == searchMarker:
				state = inSearch
				search, replace = nil, nil
			case strings.TrimSpace(line) == "":
			default:
				return nil, &PatchSyntaxError{Line: lineNo, Reason: fmt.Sprintf("expected %q, got %q", searchMarker, line)}
			}
		case inSearch:
			switch marker {
			case dividerMarker:
				state = inReplace
			case searchMarker, replaceMarker:
				return nil, &PatchSyntaxError{Line: lineNo, Reason: fmt.Sprintf("unexpected %q before %q", marker, dividerMarker)}
			default:
				search = append(search, line)
			}
		case inReplace:
			switch marker {
			case replaceMarker:
				b := Block{
					Search:  strings.Join(search, "\n"),
					Replace: strings.Join(replace, "\n"),
				}
				// Whitespace-only search text has no meaningful first occurrence.
				if strings.TrimSpace(b.Search) == "" {
					return nil, &PatchSyntaxError{Line: lineNo, Reason: fmt.Sprintf("block %d has empty search text", len(blocks)+1)}
				}
				blocks = append(blocks, b)
				state = outside
			case searchMarker, dividerMarker:
				return nil, &PatchSyntaxError{Line: lineNo, Reason: fmt.Sprintf("unexpected %q before %q", marker, replaceMarker)}
			default:
				replace = append(replace, line)
			}
		}
	}

	if state != outside {
		return nil, &PatchSyntaxError{Reason: fmt.Sprintf("block %d is not terminated by %q", len(blocks)+1, replaceMarker)}
	}
	if len(blocks) == 0 {
		return nil, &PatchSyntaxError{Reason: "no replacement blocks found"}
	}
	return blocks, nil
}

// Locate finds the first exact occurrence of every block's search text in
// original and derives its line range. It returns the blocks sorted by
// position after checking that no two line ranges intersect.
func Locate(original string, blocks []Block, path string) ([]Block, error) {
	located := make([]Block, len(blocks))
	order := make([]int, len(blocks))
	for i, b := range blocks {
		if strings.TrimSpace(b.Search) == "" {
			return nil, &PatchSyntaxError{Reason: fmt.Sprintf("block %d has empty search text", i+1)}
		}
		idx := strings.Index(original, b.Search)
		if idx < 0 {
			return nil, &NotFoundError{Block: i + 1, Path: path}
		}
		start := strings.Count(original[:idx], "\n") + 1
		// A trailing newline ends the last line; it does not start another.
		b.Lines = LineRange{Start: start, End: start + strings.Count(strings.TrimSuffix(b.Search, "\n"), "\n")}
		b.offset = idx
		located[i] = b
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		return located[order[a]].offset < located[order[b]].offset
	})

	for i := 1; i < len(order); i++ {
		prev, curr := located[order[i-1]], located[order[i]]
		if curr.Lines.Start <= prev.Lines.End {
			first, second := order[i-1], order[i]
			if first > second {
				first, second = second, first
			}
			return nil, &OverlapError{
				First:  first + 1,
				Second: second + 1,
				Range:  located[first].Lines,
				Other:  located[second].Lines,
			}
		}
	}

	sorted := make([]Block, len(order))
	for i, idx := range order {
		sorted[i] = located[idx]
	}
	return sorted, nil
}

// Splice applies located, sorted, non-overlapping blocks to original in a
// single pass. Every offset refers to original, so earlier replacements
// never shift later ones.
func Splice(original string, sorted []Block) string {
	var sb strings.Builder
	sb.Grow(len(original))
	cursor := 0
	for _, b := range sorted {
		sb.WriteString(original[cursor:b.offset])
		sb.WriteString(b.Replace)
		cursor = b.offset + len(b.Search)
	}
	sb.WriteString(original[cursor:])
	return sb.String()
}

// ApplyPatch runs the whole replace pipeline against the file at absPath:
// parse, cap, locate, overlap check, splice, and one write. The file is
// left untouched on any error.
func ApplyPatch(absPath, payload string) (*PatchResult, error) {
	blocks, err := ParseBlocks(payload)
	if err != nil {
		return nil, err
	}
	if len(blocks) > MaxBlocks {
		return nil, &TooManyBlocksError{Count: len(blocks)}
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", absPath, err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", absPath, err)
	}
	original := string(data)

	sorted, err := Locate(original, blocks, absPath)
	if err != nil {
		return nil, err
	}

	updated := Splice(original, sorted)
	if err := os.WriteFile(absPath, []byte(updated), info.Mode().Perm()); err != nil {
		return nil, fmt.Errorf("write %s: %w", absPath, err)
	}

	result := &PatchResult{Applied: len(sorted), Ranges: make([]LineRange, len(sorted))}
	for i, b := range sorted {
		result.Ranges[i] = b.Lines
	}
	return result, nil
}
