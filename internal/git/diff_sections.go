package git

import "strings"

const diffHeaderPrefix = "diff --git "

// parseGitDiffSections finds the "diff --git" header of every file. Line
// numbers are 1-based and shifted by lineOffset.
func parseGitDiffSections(diffText string, lineOffset int) []FileSection {
	var sections []FileSection
	i := 0
	for line := range strings.SplitSeq(diffText, "\n") {
		i++
		if path := parseGitDiffPath(line); path != "" {
			sections = append(sections, FileSection{Path: path, Line: lineOffset + i})
		}
	}
	return sections
}

// parseGitDiffPath returns the post-image path of a diff header.
func parseGitDiffPath(line string) string {
	rest, ok := strings.CutPrefix(line, diffHeaderPrefix)
	if !ok {
		return ""
	}
	tokens := diffLineTokens(strings.TrimSpace(rest))
	if len(tokens) < 2 {
		return ""
	}
	return strings.TrimPrefix(strings.TrimPrefix(tokens[1], "a/"), "b/")
}

// diffLineTokens splits on blanks; double-quoted tokens may contain blanks
// and backslash escapes.
func diffLineTokens(s string) []string {
	var tokens []string
	for {
		s = strings.TrimLeft(s, " \t")
		if s == "" {
			return tokens
		}
		if s[0] != '"' {
			end := strings.IndexAny(s, " \t")
			if end < 0 {
				end = len(s)
			}
			tokens = append(tokens, s[:end])
			s = s[end:]
			continue
		}
		tok, n := unquoteDiffToken(s)
		tokens = append(tokens, tok)
		s = s[n:]
	}
}

func unquoteDiffToken(s string) (string, int) {
	var buf strings.Builder
	escaped := false
	for i := 1; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			buf.WriteByte(ch)
			escaped = false
		case ch == '\\':
			escaped = true
		case ch == '"':
			return buf.String(), i + 1
		default:
			buf.WriteByte(ch)
		}
	}
	return buf.String(), len(s)
}
