package cloudsync

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/sheikhrachel/lifeboard/model"
	"github.com/sheikhrachel/lifeboard/utils"
)

// Payload is the externally stored form of a board and its counters
type Payload struct {
	ID          uuid.UUID      `json:"id"`
	Grid        [][]bool       `json:"grid"`
	Generation  uint64         `json:"generation"`
	LivingCells uint32         `json:"living_cells"`
	Settings    utils.Settings `json:"settings"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewPayload copies a board and its counters into a Payload
func NewPayload(grid *model.Grid, generation uint64, livingCells uint32, settings utils.Settings, createdAt time.Time) Payload {
	return Payload{
		ID:          uuid.New(),
		Grid:        grid.Cells(),
		Generation:  generation,
		LivingCells: livingCells,
		Settings:    settings,
		CreatedAt:   createdAt,
	}
}

// Decode rebuilds the board and settings carried by p, rejecting payloads
// whose grid, settings and counters disagree
func Decode(p Payload) (*model.Grid, utils.Settings, error) {
	grid, err := model.FromCells(p.Grid)
	if err != nil {
		return nil, utils.Settings{}, errors.Wrapf(err, "[Decode] bad grid in payload %s", p.ID)
	}
	if err = p.Settings.Validate(); err != nil {
		return nil, utils.Settings{}, errors.Wrapf(err, "[Decode] bad settings in payload %s", p.ID)
	}
	if grid.Rows() != p.Settings.Rows || grid.Cols() != p.Settings.Cols {
		return nil, utils.Settings{}, errors.Wrapf(model.ErrInvalidDimensions,
			"[Decode] payload %s grid is %dx%d, settings say %dx%d",
			p.ID, grid.Rows(), grid.Cols(), p.Settings.Rows, p.Settings.Cols)
	}
	if living := grid.CountLivingCells(); uint32(living) != p.LivingCells {
		return nil, utils.Settings{}, errors.Errorf("[Decode] payload %s counts %d living cells, grid has %d",
			p.ID, p.LivingCells, living)
	}
	return grid, p.Settings, nil
}
