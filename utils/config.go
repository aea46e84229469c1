package utils

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/sheikhrachel/lifeboard/model"
)

// Speed presets offered by the front end
const (
	SpeedSlow    = 500 * time.Millisecond
	SpeedNormal  = 200 * time.Millisecond
	SpeedFast    = 80 * time.Millisecond
	SpeedBlazing = 30 * time.Millisecond
)

// SpeedPresets lists the tick intervals from slowest to fastest
var SpeedPresets = []time.Duration{SpeedSlow, SpeedNormal, SpeedFast, SpeedBlazing}

// SizePresets lists the square board sizes offered by the front end
var SizePresets = []int{20, 30, 40}

// DefaultHistoryCapacity is the number of snapshots kept in history
const DefaultHistoryCapacity = 20

// Settings holds the user-adjustable simulation settings. In JSON the speed
// is written as whole milliseconds under "speed_ms".
type Settings struct {
	Rows      int
	Cols      int
	Speed     time.Duration
	ShowGrid  bool
	WrapEdges bool
}

type settingsJSON struct {
	Rows      int   `json:"rows"`
	Cols      int   `json:"cols"`
	SpeedMS   int64 `json:"speed_ms"`
	ShowGrid  bool  `json:"show_grid"`
	WrapEdges bool  `json:"wrap_edges"`
}

// MarshalJSON writes the settings with the speed in milliseconds
func (s Settings) MarshalJSON() ([]byte, error) {
	return json.Marshal(settingsJSON{
		Rows:      s.Rows,
		Cols:      s.Cols,
		SpeedMS:   s.Speed.Milliseconds(),
		ShowGrid:  s.ShowGrid,
		WrapEdges: s.WrapEdges,
	})
}

// UnmarshalJSON reads settings written by MarshalJSON. Fields missing from
// data keep their current values.
func (s *Settings) UnmarshalJSON(data []byte) error {
	aux := settingsJSON{
		Rows:      s.Rows,
		Cols:      s.Cols,
		SpeedMS:   s.Speed.Milliseconds(),
		ShowGrid:  s.ShowGrid,
		WrapEdges: s.WrapEdges,
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return errors.Wrap(err, "[UnmarshalJSON] failed to decode settings")
	}
	*s = Settings{
		Rows:      aux.Rows,
		Cols:      aux.Cols,
		Speed:     time.Duration(aux.SpeedMS) * time.Millisecond,
		ShowGrid:  aux.ShowGrid,
		WrapEdges: aux.WrapEdges,
	}
	return nil
}

// DefaultSettings returns a 30x30 wrapping board at 200ms per generation
func DefaultSettings() Settings {
	return Settings{
		Rows:      30,
		Cols:      30,
		Speed:     SpeedNormal,
		ShowGrid:  true,
		WrapEdges: true,
	}
}

// Validate rejects settings that cannot back a grid or a timer
func (s Settings) Validate() error {
	if s.Rows <= 0 || s.Cols <= 0 {
		return errors.Wrapf(model.ErrInvalidDimensions, "[Validate] %dx%d", s.Rows, s.Cols)
	}
	if s.Speed < time.Millisecond {
		return errors.Errorf("[Validate] speed must be at least 1ms, got %v", s.Speed)
	}
	return nil
}

// SettingsUpdate is a partial Settings; nil fields are left unchanged
type SettingsUpdate struct {
	Rows      *int
	Cols      *int
	Speed     *time.Duration
	ShowGrid  *bool
	WrapEdges *bool
}

// Merge returns s with every non-nil field of u applied
func (s Settings) Merge(u SettingsUpdate) Settings {
	if u.Rows != nil {
		s.Rows = *u.Rows
	}
	if u.Cols != nil {
		s.Cols = *u.Cols
	}
	if u.Speed != nil {
		s.Speed = *u.Speed
	}
	if u.ShowGrid != nil {
		s.ShowGrid = *u.ShowGrid
	}
	if u.WrapEdges != nil {
		s.WrapEdges = *u.WrapEdges
	}
	return s
}

// Config holds the configuration for the application
type Config struct {
	Settings        Settings `json:"settings"`
	Seed            int64    `json:"seed"`
	DatabasePath    string   `json:"database_path"`
	HistoryCapacity int      `json:"history_capacity"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Settings:        DefaultSettings(),
		HistoryCapacity: DefaultHistoryCapacity,
	}
}

// LoadConfig loads configuration from JSON file
func LoadConfig(filename string) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, errors.Wrapf(err, "[LoadConfig] failed to read file: %+v", filename)
	}

	if err = json.Unmarshal(data, &config); err != nil {
		return config, errors.Wrapf(err, "[LoadConfig] failed to unmarshal data from file: %+v", filename)
	}

	if err = config.Settings.Validate(); err != nil {
		return DefaultConfig(), errors.Wrapf(err, "[LoadConfig] invalid settings in file: %+v", filename)
	}
	if config.HistoryCapacity <= 0 {
		config.HistoryCapacity = DefaultHistoryCapacity
	}

	return config, nil
}
