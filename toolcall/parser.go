package toolcall

import (
	"log/slog"
	"regexp"
	"strings"
)

// openTagRe matches the opening of any known tool tag. Group 1 is the tag
// name, group 2 the path attribute, group 3 a "/" when self-closing.
var openTagRe = regexp.MustCompile(`<(read|write|replace)\s+path\s*=\s*"([^"]*)"\s*(/?)>`)

// Parse extracts tool calls from model text in document order. Tags whose
// path fails the unsafe-path screen are dropped and logged. Malformed or
// unterminated tags are skipped; nothing is repaired.
func Parse(text string, logger *slog.Logger) []Call {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var calls []Call
	pos := 0
	for pos < len(text) {
		loc := openTagRe.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		start, openEnd := pos+loc[0], pos+loc[1]
		name := text[pos+loc[2] : pos+loc[3]]
		path := text[pos+loc[4] : pos+loc[5]]
		selfClosing := loc[7] > loc[6]

		var call Call
		next := openEnd
		switch {
		case name == "read" && selfClosing:
			call = Call{Kind: KindRead, Path: path, Raw: text[start:openEnd]}
		case name == "read":
			logger.Warn("skipping read tag that is not self-closing", "path", path)
			pos = openEnd
			continue
		case selfClosing:
			logger.Warn("skipping self-closing tag that needs content", "tag", name, "path", path)
			pos = openEnd
			continue
		default:
			closing := "</" + name + ">"
			idx := strings.Index(text[openEnd:], closing)
			if idx < 0 {
				logger.Warn("skipping unterminated tag", "tag", name, "path", path)
				pos = openEnd
				continue
			}
			closeStart := openEnd + idx
			next = closeStart + len(closing)
			call = Call{
				Kind:    Kind(name),
				Path:    path,
				Content: trimLeadingNewline(text[openEnd:closeStart]),
				Raw:     text[start:next],
			}
		}
		pos = next

		if reason := unsafePathReason(call.Path); reason != "" {
			logger.Warn("dropping tool call with unsafe path", "tool", string(call.Kind), "path", call.Path, "reason", reason)
			continue
		}
		calls = append(calls, call)
	}
	return calls
}

// unsafePathReason screens a path attribute before any filesystem work.
// A read attribute may hold several expressions; each one is screened.
func unsafePathReason(attr string) string {
	exprs := splitExpressions(attr)
	if len(exprs) == 0 {
		return "empty path"
	}
	for _, p := range exprs {
		if strings.ContainsRune(p, '\\') {
			return "backslash in path"
		}
		if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "~") {
			return "absolute path"
		}
		if isDriveLetter(p) {
			return "absolute path"
		}
		for _, seg := range strings.Split(p, "/") {
			if seg == ".." {
				return "parent directory segment"
			}
		}
	}
	return ""
}

// splitExpressions splits a path attribute on commas and whitespace.
func splitExpressions(attr string) []string {
	return strings.FieldsFunc(attr, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}

// isDriveLetter matches "C:" and "C:/..." style roots.
func isDriveLetter(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z') {
		return false
	}
	return len(p) == 2 || p[2] == '/'
}

func trimLeadingNewline(s string) string {
	if strings.HasPrefix(s, "\r\n") {
		return s[2:]
	}
	return strings.TrimPrefix(s, "\n")
}
