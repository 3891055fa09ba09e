package graph

import "strings"

const (
	glyphCommit = '*'
	glyphLane   = '|'
	glyphStash  = ':'
	glyphEmpty  = ' '
)

// Lines renders one text column string per row. Branch lanes come first;
// stash lanes are drawn to their right. Columns are separated by a space.
func Lines(g *Graph) []string {
	if g.Len() == 0 {
		return nil
	}
	width := g.MaxLanes + g.MaxStashLanes
	grid := make([][]byte, g.Len())
	for i := range grid {
		grid[i] = make([]byte, width)
		for j := range grid[i] {
			grid[i][j] = glyphEmpty
		}
	}
	for _, s := range g.Segments {
		col, glyph := column(g, s.Namespace, s.Lane), byte(glyphLane)
		if s.Namespace == NamespaceStash {
			glyph = glyphStash
		}
		for row := s.StartRow; row <= s.EndRow && row < len(grid); row++ {
			grid[row][col] = glyph
		}
	}

	lines := make([]string, len(grid))
	var sb strings.Builder
	for row, c := range g.Commits {
		grid[row][column(g, c.Namespace, c.Lane)] = glyphCommit
		sb.Reset()
		for i, cell := range grid[row] {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteByte(cell)
		}
		lines[row] = strings.TrimRight(sb.String(), " ")
	}
	return lines
}

func column(g *Graph, ns Namespace, lane int) int {
	if ns == NamespaceStash {
		return g.MaxLanes + lane
	}
	return lane
}
