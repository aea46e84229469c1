package model

import (
	"math/rand/v2"
	"strings"

	"github.com/pkg/errors"
)

// RandomDensity is the probability that a randomly seeded cell starts alive
const RandomDensity = 0.3

// Pattern enumerates the seed patterns that can be loaded onto a board
type Pattern int

const (
	Glider Pattern = iota
	Blinker
	Pulsar
	Random
)

// Patterns lists every pattern in display order
var Patterns = []Pattern{Glider, Blinker, Pulsar, Random}

func (p Pattern) String() string {
	switch p {
	case Glider:
		return "glider"
	case Blinker:
		return "blinker"
	case Pulsar:
		return "pulsar"
	case Random:
		return "random"
	}
	return "unknown"
}

// ParsePattern maps a pattern name onto its Pattern
func ParsePattern(name string) (Pattern, error) {
	for _, p := range Patterns {
		if strings.EqualFold(name, p.String()) {
			return p, nil
		}
	}
	return 0, errors.Errorf("[ParsePattern] unknown pattern: %q", name)
}

var (
	gliderCells = [][]bool{
		{false, true, false},
		{false, false, true},
		{true, true, true},
	}

	blinkerCells = [][]bool{
		{true, true, true},
	}

	pulsarCells = parseRows(
		"..###...###..",
		".............",
		"#....#.#....#",
		"#....#.#....#",
		"#....#.#....#",
		"..###...###..",
		".............",
		"..###...###..",
		"#....#.#....#",
		"#....#.#....#",
		"#....#.#....#",
		".............",
		"..###...###..",
	)
)

func parseRows(rows ...string) [][]bool {
	cells := make([][]bool, len(rows))
	for r, row := range rows {
		cells[r] = make([]bool, len(row))
		for c, ch := range row {
			cells[r][c] = ch == '#'
		}
	}
	return cells
}

// Cells returns a copy of the fixed cell matrix of p. Random has none.
func (p Pattern) Cells() [][]bool {
	var src [][]bool
	switch p {
	case Glider:
		src = gliderCells
	case Blinker:
		src = blinkerCells
	case Pulsar:
		src = pulsarCells
	case Random:
		return nil
	}
	out := make([][]bool, len(src))
	for r := range src {
		out[r] = append([]bool(nil), src[r]...)
	}
	return out
}

// Place overlays pattern onto a copy of the grid with its top-left corner at
// (startRow, startCol). Pattern cells landing outside the grid are dropped.
func (g *Grid) Place(pattern [][]bool, startRow, startCol int) *Grid {
	next := g.Clone()
	for dr, row := range pattern {
		for dc, cell := range row {
			next.Set(startRow+dr, startCol+dc, cell)
		}
	}
	return next
}

// CenteredPlacement returns the offset that centers a pattern on a grid. The
// offset is negative when the pattern is larger than the grid.
func CenteredPlacement(gridRows, gridCols, patternRows, patternCols int) (startRow, startCol int) {
	return floorDiv(gridRows-patternRows, 2), floorDiv(gridCols-patternCols, 2)
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return q
}

// Randomize sets every cell alive with probability density, using rng
func (g *Grid) Randomize(rng *rand.Rand, density float64) {
	for r := range g.rows {
		for c := range g.cols {
			g.cells[r][c] = rng.Float64() < density
		}
	}
	g.activeBounds.valid = false
}

// Seed builds a fresh rows x cols grid holding p: centered for the fixed
// patterns, RandomDensity fill for Random.
func Seed(p Pattern, rows, cols int, rng *rand.Rand) (*Grid, error) {
	g, err := NewGrid(rows, cols)
	if err != nil {
		return nil, errors.Wrapf(err, "[Seed] failed to create grid for %s", p)
	}

	switch p {
	case Random:
		if rng == nil {
			return nil, errors.New("[Seed] random pattern requires a random source")
		}
		g.Randomize(rng, RandomDensity)
		return g, nil
	case Glider, Blinker, Pulsar:
		cells := p.Cells()
		startRow, startCol := CenteredPlacement(rows, cols, len(cells), len(cells[0]))
		return g.Place(cells, startRow, startCol), nil
	}
	return nil, errors.Errorf("[Seed] unknown pattern %d", int(p))
}
