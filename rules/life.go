// Package rules holds the Game of Life transition rule and the neighbor
// topology it is evaluated over.
package rules

// ApplyConwayRules returns the next state of a cell with the given number of
// live neighbors: survival on 2 or 3, birth on exactly 3, death otherwise.
func ApplyConwayRules(neighbors int, alive bool) bool {
	return neighbors == 3 || (alive && neighbors == 2)
}
