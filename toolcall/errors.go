package toolcall

import "fmt"

// PathSecurityError reports a path rejected by the sandbox.
type PathSecurityError struct {
	Path   string
	Reason string
}

func (e *PathSecurityError) Error() string {
	return fmt.Sprintf("path %q rejected: %s", e.Path, e.Reason)
}

// UnknownToolError reports a call whose kind has no handler.
type UnknownToolError struct {
	Kind Kind
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", string(e.Kind))
}

// PatchSyntaxError reports a malformed replace payload.
type PatchSyntaxError struct {
	Line   int // 1-based line within the payload, 0 when not tied to a line
	Reason string
}

func (e *PatchSyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("patch syntax error at line %d: %s", e.Line, e.Reason)
	}
	return "patch syntax error: " + e.Reason
}

// NotFoundError reports a search text that does not occur in the file.
type NotFoundError struct {
	Block int // 1-based
	Path  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("search text of block %d not found in %s", e.Block, e.Path)
}

// OverlapError reports two blocks whose line ranges intersect in the
// original file.
type OverlapError struct {
	First, Second int // 1-based block indices
	Range         LineRange
	Other         LineRange
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("Overlapping replacement blocks: block %d (lines %s) and block %d (lines %s)",
		e.First, e.Range, e.Second, e.Other)
}

// TooManyBlocksError reports a payload with more than MaxBlocks blocks.
type TooManyBlocksError struct {
	Count int
}

func (e *TooManyBlocksError) Error() string {
	return fmt.Sprintf("Too many replacement blocks: %d (max %d)", e.Count, MaxBlocks)
}
