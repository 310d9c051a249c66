package toolcall

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Kind is the tool a call asks for.
type Kind string

const (
	KindRead    Kind = "read"
	KindWrite   Kind = "write"
	KindReplace Kind = "replace"
)

// Call is one action extracted from model output.
type Call struct {
	Kind    Kind
	Path    string
	Content string // empty for reads
	Raw     string // the exact tag text as it appeared
}

// Summary is the one-line label shown when asking the user to approve.
func (c Call) Summary() string {
	switch c.Kind {
	case KindRead:
		return "read " + c.Path
	case KindWrite:
		return fmt.Sprintf("write %s (%d bytes)", c.Path, len(c.Content))
	case KindReplace:
		n := strings.Count(c.Content, searchMarker)
		return fmt.Sprintf("replace %s (%d block(s))", c.Path, n)
	default:
		return string(c.Kind) + " " + c.Path
	}
}

// Signature identifies a call for repetition checks. Content is hashed.
func (c Call) Signature() string {
	sum := sha256.Sum256([]byte(c.Content))
	return string(c.Kind) + ":" + c.Path + ":" + hex.EncodeToString(sum[:8])
}
