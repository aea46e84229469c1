// Package session holds the state of one running board and the bounded
// snapshot history that checkpoints it.
//
// A Session is owned by a single control goroutine; none of its methods lock.
// Grids never cross the package boundary by reference: readers get clones and
// snapshots hold their own copies.
package session

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"

	"github.com/sheikhrachel/lifeboard/model"
	"github.com/sheikhrachel/lifeboard/rules"
	"github.com/sheikhrachel/lifeboard/utils"
)

// Session is the current board plus its counters, run flag and settings
type Session struct {
	grid        *model.Grid
	generation  uint64
	livingCells uint32
	isRunning   bool
	settings    utils.Settings

	rng    *rand.Rand
	pool   *model.GridPool
	logger *slog.Logger
}

// Option configures a Session
type Option func(*Session)

// WithRand sets the random source used by the Random pattern
func WithRand(rng *rand.Rand) Option {
	return func(s *Session) { s.rng = rng }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithGridPool recycles discarded generations through pool
func WithGridPool(pool *model.GridPool) Option {
	return func(s *Session) { s.pool = pool }
}

// New creates a session with an all-dead board sized by settings
func New(settings utils.Settings, opts ...Option) (*Session, error) {
	if err := settings.Validate(); err != nil {
		return nil, errors.Wrap(err, "[New] invalid settings")
	}

	s := &Session{settings: settings}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		seed := uint64(time.Now().UnixNano())
		s.rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With(slog.String("component", "session"))

	s.grid, _ = model.NewGrid(settings.Rows, settings.Cols)
	return s, nil
}

// Grid returns a copy of the current board
func (s *Session) Grid() *model.Grid { return s.grid.Clone() }

// Alive reports the state of one cell without copying the board
func (s *Session) Alive(row, col int) bool { return s.grid.Alive(row, col) }

// Hash returns the digest of the current board
func (s *Session) Hash() string { return s.grid.Hash() }

// Generation returns the number of generations advanced since the last reseed
func (s *Session) Generation() uint64 { return s.generation }

// LivingCells returns the number of live cells on the board
func (s *Session) LivingCells() uint32 { return s.livingCells }

// IsRunning reports whether scheduled ticks should advance the board
func (s *Session) IsRunning() bool { return s.isRunning }

// Settings returns the current settings
func (s *Session) Settings() utils.Settings { return s.settings }

// replaceGrid installs next as the board and recounts living cells. The old
// board is recycled: nothing outside the session references it.
func (s *Session) replaceGrid(next *model.Grid) {
	if next == s.grid {
		return
	}
	s.pool.Put(s.grid)
	s.grid = next
	s.livingCells = uint32(next.CountLivingCells())
}

// ToggleCell flips one cell. Generation and the run flag are untouched.
func (s *Session) ToggleCell(row, col int) error {
	next, err := s.grid.Toggle(row, col)
	if err != nil {
		return errors.Wrap(err, "[ToggleCell] failed to toggle cell")
	}
	s.replaceGrid(next)
	return nil
}

// ToggleRunning flips the run flag and returns its new value
func (s *Session) ToggleRunning() bool {
	s.isRunning = !s.isRunning
	s.logger.Debug("run state changed", slog.Bool("running", s.isRunning))
	return s.isRunning
}

// StepForward advances the board one generation whether or not it is running
func (s *Session) StepForward() {
	policy := rules.PolicyFor(s.settings.WrapEdges)
	s.replaceGrid(s.grid.NextGeneration(policy, s.pool))
	s.generation++
}

// Tick advances the board one generation only while running. It reports
// whether the board advanced.
func (s *Session) Tick() bool {
	if !s.isRunning {
		return false
	}
	s.StepForward()
	return true
}

// Reset replaces the board with an empty one sized by the settings and stops
// the simulation
func (s *Session) Reset() {
	g, _ := model.NewGrid(s.settings.Rows, s.settings.Cols)
	s.replaceGrid(g)
	s.generation = 0
	s.isRunning = false
	s.logger.Debug("board reset", slog.Int("rows", s.settings.Rows), slog.Int("cols", s.settings.Cols))
}

// UpdateSettings merges u into the settings. Invalid results are rejected
// before anything changes. A change of rows or cols resets the board so the
// grid always matches the settings.
func (s *Session) UpdateSettings(u utils.SettingsUpdate) error {
	merged := s.settings.Merge(u)
	if err := merged.Validate(); err != nil {
		return errors.Wrap(err, "[UpdateSettings] rejected settings")
	}

	resized := merged.Rows != s.settings.Rows || merged.Cols != s.settings.Cols
	s.settings = merged
	if resized {
		s.Reset()
	}
	return nil
}

// LoadPreset replaces the board with pattern p, zeroes the generation and
// stops the simulation
func (s *Session) LoadPreset(p model.Pattern) error {
	g, err := model.Seed(p, s.settings.Rows, s.settings.Cols, s.rng)
	if err != nil {
		return errors.Wrapf(err, "[LoadPreset] failed to seed %s", p)
	}
	s.replaceGrid(g)
	s.generation = 0
	s.isRunning = false
	s.logger.Debug("preset loaded", slog.String("pattern", p.String()), slog.Int("living", int(s.livingCells)))
	return nil
}

// Restore overwrites the board and counters with a snapshot and stops the
// simulation. A snapshot taken at another board size also restores that size.
// A snapshot without a board is rejected and leaves the session unchanged.
func (s *Session) Restore(snap Snapshot) error {
	g := snap.Grid()
	if g == nil {
		return errors.Wrap(ErrNotFound, "[Restore] snapshot has no board")
	}
	s.settings.Rows, s.settings.Cols = g.Rows(), g.Cols()
	s.replaceGrid(g)
	s.generation = snap.Generation
	s.isRunning = false
	s.logger.Debug("snapshot restored", slog.Uint64("generation", s.generation))
	return nil
}
