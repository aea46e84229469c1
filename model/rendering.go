package model

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

const (
	gridPosBlock = "██"
	gridPosEmpty = "  "
	gridPosDot   = " ·"
)

// TextRenderer writes a grid as rows of block characters
type TextRenderer struct {
	// ShowGrid marks dead cells with a dot so the lattice is visible
	ShowGrid bool
}

// Render writes g to w, one line per row
func (r TextRenderer) Render(w io.Writer, g *Grid) error {
	empty := gridPosEmpty
	if r.ShowGrid {
		empty = gridPosDot
	}

	bw := bufio.NewWriter(w)
	for row := range g.rows {
		for col := range g.cols {
			if g.cells[row][col] {
				bw.WriteString(gridPosBlock)
			} else {
				bw.WriteString(empty)
			}
		}
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, "[Render] failed to flush grid")
	}
	return nil
}
