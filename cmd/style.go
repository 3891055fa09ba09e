package cmd

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"github.com/gitgraph-dev/gitgraph/internal/graph"
	"github.com/gitgraph-dev/gitgraph/internal/highlight"
)

// colorEnabled resolves the color setting for w. "auto" colours terminals
// unless NO_COLOR is set.
func colorEnabled(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// laneColors cycle by lane index.
var laneColors = []lipgloss.Color{"1", "2", "3", "4", "5", "6", "9", "10", "11", "12", "13", "14"}

type palette struct {
	color bool
	hl    *highlight.Highlighter

	lanes  []lipgloss.Style
	stash  lipgloss.Style
	hash   lipgloss.Style
	head   lipgloss.Style
	branch lipgloss.Style
	remote lipgloss.Style
	tag    lipgloss.Style
	dim    lipgloss.Style
}

func newPalette(w io.Writer, color bool, theme highlight.Theme) *palette {
	r := lipgloss.NewRenderer(w)
	if color {
		r.SetColorProfile(termenv.ANSI256)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	p := &palette{color: color}
	plain := r.NewStyle()
	p.stash, p.hash, p.head, p.branch, p.remote, p.tag, p.dim = plain, plain, plain, plain, plain, plain, plain
	p.lanes = []lipgloss.Style{plain}
	if !color {
		return p
	}
	p.stash = r.NewStyle().Foreground(lipgloss.Color("8"))
	p.hash = r.NewStyle().Foreground(lipgloss.Color("3"))
	p.head = r.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	p.branch = r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	p.remote = r.NewStyle().Foreground(lipgloss.Color("1"))
	p.tag = r.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	p.dim = r.NewStyle().Faint(true)
	p.lanes = make([]lipgloss.Style, 0, len(laneColors))
	for _, c := range laneColors {
		p.lanes = append(p.lanes, r.NewStyle().Foreground(c))
	}
	p.hl = highlight.New(theme)
	return p
}

// graphColumn colours the glyphs of a rendered graph line. Column i of the
// line sits at byte 2*i.
func (p *palette) graphColumn(g *graph.Graph, line string) string {
	if !p.color {
		return line
	}
	var sb strings.Builder
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if ch == ' ' || i%2 == 1 {
			sb.WriteByte(ch)
			continue
		}
		col := i / 2
		if col >= g.MaxLanes {
			sb.WriteString(p.stash.Render(string(ch)))
			continue
		}
		sb.WriteString(p.lanes[col%len(p.lanes)].Render(string(ch)))
	}
	return sb.String()
}

func (p *palette) label(l string) string {
	switch {
	case strings.HasPrefix(l, "HEAD"):
		return p.head.Render(l)
	case strings.HasPrefix(l, "tag: "):
		return p.tag.Render(l)
	case strings.Contains(l, "/"):
		return p.remote.Render(l)
	default:
		return p.branch.Render(l)
	}
}

func (p *palette) code(path, text string) string {
	if p.hl == nil {
		return text
	}
	return p.hl.Code(path, text)
}

func (p *palette) diff(text string) string {
	if p.hl == nil {
		return text
	}
	return p.hl.Diff(text)
}
