// Package highlight colours source snippets and diffs for terminal output.
package highlight

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// Highlighter is safe for concurrent use. A nil Highlighter returns its
// input unchanged.
type Highlighter struct {
	style     *chroma.Style
	formatter chroma.Formatter
}

func New(theme Theme) *Highlighter {
	return &Highlighter{
		style:     styleFor(theme.IsDark()),
		formatter: formatters.TTY256,
	}
}

func styleFor(dark bool) *chroma.Style {
	name := "github"
	if dark {
		name = "github-dark"
	}
	if st := styles.Get(name); st != nil {
		return st
	}
	return styles.Fallback
}

func lexerForPath(path string) chroma.Lexer {
	if path == "" {
		return nil
	}
	lexer := lexers.Match(path)
	if lexer == nil {
		return nil
	}
	return chroma.Coalesce(lexer)
}

// Code highlights code as the language of path. Unknown languages and
// tokenizer failures return code as is.
func (h *Highlighter) Code(path, code string) string {
	if h == nil || code == "" {
		return code
	}
	return h.format(lexerForPath(path), code)
}

func (h *Highlighter) format(lexer chroma.Lexer, code string) string {
	if lexer == nil {
		return code
	}
	it, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	tokens := it.Tokens()
	// lexers may append a newline the input did not have
	if n := len(tokens); n > 0 && !strings.HasSuffix(code, "\n") {
		tokens[n-1].Value = strings.TrimSuffix(tokens[n-1].Value, "\n")
	}
	var b strings.Builder
	if err := h.formatter.Format(&b, h.style, chroma.Literator(tokens...)); err != nil {
		return code
	}
	return b.String()
}

// Diff highlights the code of every added, removed and context line. The
// language follows the most recent "+++ b/<path>" header.
func (h *Highlighter) Diff(text string) string {
	if h == nil || text == "" {
		return text
	}
	var (
		b     strings.Builder
		lexer chroma.Lexer
	)
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch {
		case strings.HasPrefix(line, "diff --git "):
			lexer = nil
			b.WriteString(line)
			continue
		case strings.HasPrefix(line, "+++ "):
			lexer = lexerForPath(diffTargetPath(line))
			b.WriteString(line)
			continue
		}
		code, ok := diffLineCode(line)
		if !ok || lexer == nil {
			b.WriteString(line)
			continue
		}
		b.WriteByte(line[0])
		b.WriteString(h.format(lexer, code))
	}
	return b.String()
}

func diffTargetPath(line string) string {
	p := strings.TrimSpace(strings.TrimPrefix(line, "+++ "))
	if before, _, ok := strings.Cut(p, "\t"); ok {
		p = before
	}
	if p == "/dev/null" {
		return ""
	}
	return strings.TrimPrefix(p, "b/")
}

// diffLineCode strips the one-column marker of a hunk line.
func diffLineCode(line string) (string, bool) {
	if line == "" || strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
		return "", false
	}
	switch line[0] {
	case '+', '-', ' ':
		return line[1:], true
	}
	return "", false
}
