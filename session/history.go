package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/sheikhrachel/lifeboard/model"
	"github.com/sheikhrachel/lifeboard/utils"
)

// ErrNotFound is returned when a history index does not exist
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is an immutable copy of a session's board and counters
type Snapshot struct {
	Generation  uint64
	LivingCells uint32
	SavedAt     time.Time

	grid *model.Grid
}

// Grid returns a copy of the saved board, or nil for the zero Snapshot
func (s Snapshot) Grid() *model.Grid {
	if s.grid == nil {
		return nil
	}
	return s.grid.Clone()
}

// Label describes the snapshot for listings
func (s Snapshot) Label() string {
	return fmt.Sprintf("Generation %d · %d living cells", s.Generation, s.LivingCells)
}

// History is a bounded list of snapshots, most recent first
type History struct {
	capacity int
	entries  []Snapshot
	now      func() time.Time
	logger   *slog.Logger
}

// HistoryOption configures a History
type HistoryOption func(*History)

// WithClock sets the time source used to stamp snapshots
func WithClock(now func() time.Time) HistoryOption {
	return func(h *History) { h.now = now }
}

// WithHistoryLogger sets the logger
func WithHistoryLogger(logger *slog.Logger) HistoryOption {
	return func(h *History) { h.logger = logger }
}

// NewHistory creates an empty history keeping at most capacity snapshots.
// Non-positive capacities fall back to utils.DefaultHistoryCapacity.
func NewHistory(capacity int, opts ...HistoryOption) *History {
	if capacity <= 0 {
		capacity = utils.DefaultHistoryCapacity
	}
	h := &History{capacity: capacity, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	h.logger = h.logger.With(slog.String("component", "history"))
	return h
}

// Save captures the session and prepends it, evicting the oldest entries
// beyond capacity
func (h *History) Save(s *Session) Snapshot {
	snap := Snapshot{
		Generation:  s.generation,
		LivingCells: s.livingCells,
		SavedAt:     h.now(),
		grid:        s.grid.Clone(),
	}

	entries := make([]Snapshot, 0, min(len(h.entries)+1, h.capacity))
	entries = append(entries, snap)
	entries = append(entries, h.entries[:min(len(h.entries), h.capacity-1)]...)
	if evicted := len(h.entries) + 1 - len(entries); evicted > 0 {
		h.logger.Debug("evicted snapshots", slog.Int("count", evicted))
	}
	h.entries = entries
	return snap
}

// Load returns the snapshot at index, 0 being the most recent
func (h *History) Load(index int) (Snapshot, error) {
	if index < 0 || index >= len(h.entries) {
		return Snapshot{}, errors.Wrapf(ErrNotFound, "[Load] index %d of %d", index, len(h.entries))
	}
	return h.entries[index], nil
}

// Restore loads the snapshot at index into s. On ErrNotFound neither the
// history nor the session change.
func (h *History) Restore(index int, s *Session) error {
	snap, err := h.Load(index)
	if err != nil {
		return errors.Wrap(err, "[Restore] failed to load snapshot")
	}
	return s.Restore(snap)
}

// Clear removes every snapshot
func (h *History) Clear() {
	h.entries = nil
}

// Len returns the number of stored snapshots
func (h *History) Len() int { return len(h.entries) }

// Capacity returns the maximum number of stored snapshots
func (h *History) Capacity() int { return h.capacity }

// Entries returns the snapshots, most recent first
func (h *History) Entries() []Snapshot {
	return append([]Snapshot(nil), h.entries...)
}
