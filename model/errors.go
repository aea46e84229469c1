package model

import "github.com/pkg/errors"

var (
	// ErrOutOfRange is returned when a cell address falls outside the grid
	ErrOutOfRange = errors.New("cell out of range")
	// ErrInvalidDimensions is returned for grids with non-positive rows or cols
	ErrInvalidDimensions = errors.New("invalid grid dimensions")
)
