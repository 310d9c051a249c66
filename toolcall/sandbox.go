package toolcall

import (
	"os"
	"path/filepath"
	"strings"
)

// Validate confines candidate to workDir. Relative candidates are taken
// relative to workDir. Both sides are made absolute, cleaned and resolved
// through any existing symlinks; the candidate is accepted when it equals
// workDir or lies strictly beneath it. The returned path is absolute.
//
// A backslash is an ordinary filename character where it is not the
// native separator.
func Validate(workDir, candidate string) (string, error) {
	if candidate == "" {
		return "", &PathSecurityError{Path: candidate, Reason: "empty path"}
	}
	if strings.ContainsRune(candidate, '\x00') {
		return "", &PathSecurityError{Path: candidate, Reason: "null byte in path"}
	}

	base, err := canonicalize(workDir)
	if err != nil {
		return "", &PathSecurityError{Path: candidate, Reason: "cannot resolve working directory: " + err.Error()}
	}

	target := candidate
	if !filepath.IsAbs(target) {
		target = filepath.Join(workDir, target)
	}
	resolved, err := canonicalize(target)
	if err != nil {
		return "", &PathSecurityError{Path: candidate, Reason: "cannot resolve path: " + err.Error()}
	}

	if !IsWithin(base, resolved) {
		return "", &PathSecurityError{Path: candidate, Reason: "outside the working directory"}
	}
	return resolved, nil
}

// IsWithin reports whether target equals dir or lies beneath it. Both must
// already be absolute and clean.
func IsWithin(dir, target string) bool {
	if target == dir {
		return true
	}
	prefix := dir
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(target, prefix)
}

// canonicalize returns the absolute, clean form of path with symlinks of
// its longest existing ancestor resolved. Missing trailing components are
// re-attached unchanged.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	current := abs
	var missing []string
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return filepath.Clean(resolved), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return abs, nil
		}
		missing = append(missing, filepath.Base(current))
		current = parent
	}
}
