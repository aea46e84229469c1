package rules

// EdgePolicy selects how neighbor lookups treat the edges of the board
type EdgePolicy int

const (
	// Bounded skips neighbors that fall outside the board
	Bounded EdgePolicy = iota
	// Toroidal wraps neighbors onto the opposite edge
	Toroidal
)

// PolicyFor maps the wrap_edges setting onto an EdgePolicy
func PolicyFor(wrapEdges bool) EdgePolicy {
	if wrapEdges {
		return Toroidal
	}
	return Bounded
}

func (p EdgePolicy) String() string {
	if p == Toroidal {
		return "toroidal"
	}
	return "bounded"
}

// CellReader is the read side of a board
type CellReader interface {
	Rows() int
	Cols() int
	Alive(row, col int) bool
}

// mooreOffsets is the Moore neighborhood, (0,0) excluded
var mooreOffsets = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// Neighbor resolves the cell at (row+dr, col+dc) under the policy. ok is false
// when the bounded policy places it off the board.
func (p EdgePolicy) Neighbor(row, col, dr, dc, rows, cols int) (nr, nc int, ok bool) {
	nr, nc = row+dr, col+dc
	if p == Toroidal {
		return (nr%rows + rows) % rows, (nc%cols + cols) % cols, true
	}
	if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
		return 0, 0, false
	}
	return nr, nc, true
}

// CountNeighbors returns the number of live cells around (row, col), in [0,8].
// On a toroidal board smaller than 3 in either dimension the same cell may be
// counted more than once, so every cell still has exactly 8 neighbors.
func CountNeighbors(b CellReader, row, col int, policy EdgePolicy) int {
	rows, cols := b.Rows(), b.Cols()
	count := 0
	for _, off := range mooreOffsets {
		nr, nc, ok := policy.Neighbor(row, col, off[0], off[1], rows, cols)
		if ok && b.Alive(nr, nc) {
			count++
		}
	}
	return count
}
