package agentloop

import (
	"strings"

	"github.com/spektasoft/spekta-cli/toolcall"
)

// batchSignature reduces one round of executed calls to a single
// comparable string.
func batchSignature(calls []toolcall.Call) string {
	sigs := make([]string, len(calls))
	for i, c := range calls {
		sigs[i] = c.Signature()
	}
	return strings.Join(sigs, "|")
}

// DetectLoop reports whether the last windowSize signatures follow a
// repeating pattern of length 1, 2, or 3. A pattern must repeat at least
// twice within the window.
func DetectLoop(sigs []string, windowSize int) bool {
	if windowSize < 2 || len(sigs) < windowSize {
		return false
	}
	recent := sigs[len(sigs)-windowSize:]

	for patternLen := 1; patternLen <= 3 && patternLen < windowSize; patternLen++ {
		if windowSize%patternLen != 0 {
			continue
		}
		pattern := recent[:patternLen]
		allMatch := true
		for i := patternLen; i < windowSize; i += patternLen {
			for j := 0; j < patternLen; j++ {
				if recent[i+j] != pattern[j] {
					allMatch = false
					break
				}
			}
			if !allMatch {
				break
			}
		}
		if allMatch {
			return true
		}
	}

	return false
}
