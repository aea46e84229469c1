package model

import (
	"crypto/md5"
	"fmt"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/sheikhrachel/lifeboard/rules"
)

// Grid is a rows x cols board of cell states. Operations that produce a new
// board never share rows with the receiver.
type Grid struct {
	rows  int
	cols  int
	cells [][]bool

	// Bounding box of living cells, used by the bounded advance
	activeBounds struct {
		minRow, maxRow, minCol, maxCol int
		valid                          bool
	}
}

// NewGrid creates an all-dead grid with the specified dimensions
func NewGrid(rows, cols int) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, errors.Wrapf(ErrInvalidDimensions, "[NewGrid] %dx%d", rows, cols)
	}
	return newGrid(rows, cols), nil
}

func newGrid(rows, cols int) *Grid {
	cells := make([][]bool, rows)
	for i := range cells {
		cells[i] = make([]bool, cols)
	}
	return &Grid{
		rows:  rows,
		cols:  cols,
		cells: cells,
	}
}

// FromCells builds a grid from a rectangular matrix, copying it
func FromCells(cells [][]bool) (*Grid, error) {
	if len(cells) == 0 || len(cells[0]) == 0 {
		return nil, errors.Wrap(ErrInvalidDimensions, "[FromCells] empty matrix")
	}
	g := newGrid(len(cells), len(cells[0]))
	for r, row := range cells {
		if len(row) != g.cols {
			return nil, errors.Wrapf(ErrInvalidDimensions, "[FromCells] row %d has %d cols, want %d", r, len(row), g.cols)
		}
		copy(g.cells[r], row)
	}
	return g, nil
}

// Rows returns the number of rows
func (g *Grid) Rows() int {
	return g.rows
}

// Cols returns the number of columns
func (g *Grid) Cols() int {
	return g.cols
}

// Reset resets the grid to new dimensions
func (g *Grid) Reset(rows, cols int) {
	g.rows = rows
	g.cols = cols
	g.activeBounds.valid = false

	// Resize cells if needed
	if len(g.cells) != rows {
		g.cells = make([][]bool, rows)
	}
	for i := range g.cells {
		if len(g.cells[i]) != cols {
			g.cells[i] = make([]bool, cols)
		} else {
			clear(g.cells[i])
		}
	}
}

// Clear kills all cells
func (g *Grid) Clear() {
	for r := range g.rows {
		clear(g.cells[r])
	}
	g.activeBounds.valid = false
}

// InBounds reports whether (row, col) addresses a cell of the grid
func (g *Grid) InBounds(row, col int) bool {
	return row >= 0 && row < g.rows && col >= 0 && col < g.cols
}

// Set sets a cell to alive (true) or dead (false). Out of range writes are dropped.
func (g *Grid) Set(row, col int, alive bool) {
	if g.InBounds(row, col) {
		g.cells[row][col] = alive
		g.activeBounds.valid = false
	}
}

// Alive returns the state of a cell, false outside the grid
func (g *Grid) Alive(row, col int) bool {
	if !g.InBounds(row, col) {
		return false
	}
	return g.cells[row][col]
}

// Toggle returns a copy of the grid with (row, col) negated. On
// ErrOutOfRange the receiver is returned untouched.
func (g *Grid) Toggle(row, col int) (*Grid, error) {
	if !g.InBounds(row, col) {
		return g, errors.Wrapf(ErrOutOfRange, "[Toggle] (%d,%d) on %dx%d grid", row, col, g.rows, g.cols)
	}
	next := g.Clone()
	next.cells[row][col] = !next.cells[row][col]
	return next, nil
}

// Clone returns an independent deep copy
func (g *Grid) Clone() *Grid {
	next := newGrid(g.rows, g.cols)
	for r := range g.rows {
		copy(next.cells[r], g.cells[r])
	}
	return next
}

// Cells returns a copy of the cell matrix
func (g *Grid) Cells() [][]bool {
	return g.Clone().cells
}

// Equal reports whether both grids have the same shape and cell states
func (g *Grid) Equal(o *Grid) bool {
	if g == nil || o == nil {
		return g == o
	}
	if g.rows != o.rows || g.cols != o.cols {
		return false
	}
	for r := range g.rows {
		for c := range g.cols {
			if g.cells[r][c] != o.cells[r][c] {
				return false
			}
		}
	}
	return true
}

// CountLivingCells returns the total number of living cells
func (g *Grid) CountLivingCells() (count int) {
	for r := range g.rows {
		for c := range g.cols {
			if g.cells[r][c] {
				count++
			}
		}
	}
	return
}

// calculateActiveBounds calculates the bounding box of living cells
func (g *Grid) calculateActiveBounds() {
	g.activeBounds.valid = false

	for r := range g.rows {
		for c := range g.cols {
			if !g.cells[r][c] {
				continue
			}
			if !g.activeBounds.valid {
				g.activeBounds.minRow, g.activeBounds.maxRow = r, r
				g.activeBounds.minCol, g.activeBounds.maxCol = c, c
				g.activeBounds.valid = true
				continue
			}
			g.activeBounds.minRow = min(g.activeBounds.minRow, r)
			g.activeBounds.maxRow = max(g.activeBounds.maxRow, r)
			g.activeBounds.minCol = min(g.activeBounds.minCol, c)
			g.activeBounds.maxCol = max(g.activeBounds.maxCol, c)
		}
	}
}

// BoundingBoxSize returns the area of the box enclosing all living cells
func (g *Grid) BoundingBoxSize() int {
	if !g.activeBounds.valid {
		g.calculateActiveBounds()
	}
	if !g.activeBounds.valid {
		return 0
	}
	return (g.activeBounds.maxRow - g.activeBounds.minRow + 1) *
		(g.activeBounds.maxCol - g.activeBounds.minCol + 1)
}

func (g *Grid) nextGrid(pool *GridPool) *Grid {
	if pool != nil {
		return pool.Get(g.rows, g.cols)
	}
	return newGrid(g.rows, g.cols)
}

// NextGenerationParallel computes the next generation in row bands, one per CPU.
// Every band reads only the receiver, so the update is synchronous.
func (g *Grid) NextGenerationParallel(policy rules.EdgePolicy, pool *GridPool) *Grid {
	next := g.nextGrid(pool)

	var (
		eg            errgroup.Group
		numWorkers    = runtime.NumCPU()
		rowsPerWorker = (g.rows + numWorkers - 1) / numWorkers // Ceiling division
	)

	for i := range numWorkers {
		var (
			startRow = i * rowsPerWorker
			endRow   = min(startRow+rowsPerWorker, g.rows)
		)
		if startRow >= g.rows {
			break
		}

		eg.Go(func() error {
			for r := startRow; r < endRow; r++ {
				for c := range g.cols {
					next.cells[r][c] = rules.ApplyConwayRules(rules.CountNeighbors(g, r, c, policy), g.cells[r][c])
				}
			}
			return nil
		})
	}

	// bands never return an error
	_ = eg.Wait()

	return next
}

// NextGenerationBounded computes the next generation only around the active
// region. Valid for the bounded policy alone: with wrapping, life on one edge
// can be born on the opposite edge outside the box.
func (g *Grid) NextGenerationBounded(pool *GridPool) *Grid {
	if !g.activeBounds.valid {
		g.calculateActiveBounds()
	}

	next := g.nextGrid(pool)

	// If no active cells, return empty grid
	if !g.activeBounds.valid {
		return next
	}

	// Process only the active region + 1 margin
	minRow := max(0, g.activeBounds.minRow-1)
	maxRow := min(g.rows-1, g.activeBounds.maxRow+1)
	minCol := max(0, g.activeBounds.minCol-1)
	maxCol := min(g.cols-1, g.activeBounds.maxCol+1)

	for r := minRow; r <= maxRow; r++ {
		for c := minCol; c <= maxCol; c++ {
			neighbors := rules.CountNeighbors(g, r, c, rules.Bounded)
			next.cells[r][c] = rules.ApplyConwayRules(neighbors, g.cells[r][c])
		}
	}

	next.calculateActiveBounds()
	return next
}

// NextGeneration advances the whole board one generation under the given edge
// policy. It is pure with respect to the receiver's cell states.
func (g *Grid) NextGeneration(policy rules.EdgePolicy, pool *GridPool) *Grid {
	if policy == rules.Bounded {
		return g.NextGenerationBounded(pool)
	}
	return g.NextGenerationParallel(policy, pool)
}

// Hash returns an MD5 digest of the grid shape and cell states
func (g *Grid) Hash() string {
	h := md5.New()
	fmt.Fprintf(h, "%dx%d:", g.rows, g.cols)
	for r := range g.rows {
		for c := range g.cols {
			if g.cells[r][c] {
				h.Write([]byte{1})
			} else {
				h.Write([]byte{0})
			}
		}
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
