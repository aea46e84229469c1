package session

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/sheikhrachel/lifeboard/model"
	"github.com/sheikhrachel/lifeboard/utils"
)

func newTestSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	s, err := New(utils.DefaultSettings(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

// checkInvariants verifies the counters agree with the board and settings
func checkInvariants(t *testing.T, s *Session) {
	t.Helper()
	g := s.Grid()
	if int(s.LivingCells()) != g.CountLivingCells() {
		t.Fatalf("living cells %d, board has %d", s.LivingCells(), g.CountLivingCells())
	}
	if g.Rows() != s.Settings().Rows || g.Cols() != s.Settings().Cols {
		t.Fatalf("board is %dx%d, settings say %dx%d", g.Rows(), g.Cols(), s.Settings().Rows, s.Settings().Cols)
	}
}

func TestNewSession(t *testing.T) {
	s := newTestSession(t)
	if s.Generation() != 0 || s.LivingCells() != 0 || s.IsRunning() {
		t.Fatalf("new session not idle: gen %d living %d running %v", s.Generation(), s.LivingCells(), s.IsRunning())
	}
	if s.Settings() != utils.DefaultSettings() {
		t.Fatalf("settings %+v", s.Settings())
	}
	checkInvariants(t, s)

	bad := utils.DefaultSettings()
	bad.Cols = 0
	if _, err := New(bad); !errors.Is(err, model.ErrInvalidDimensions) {
		t.Fatalf("New with zero cols error = %v", err)
	}
}

func TestToggleCell(t *testing.T) {
	s := newTestSession(t)
	if err := s.ToggleCell(3, 4); err != nil {
		t.Fatalf("ToggleCell: %v", err)
	}
	if !s.Alive(3, 4) || s.LivingCells() != 1 {
		t.Fatalf("toggle did not bring the cell to life")
	}
	if s.Generation() != 0 || s.IsRunning() {
		t.Fatalf("toggle touched generation or run flag")
	}

	before := s.Hash()
	if err := s.ToggleCell(30, 0); !errors.Is(err, model.ErrOutOfRange) {
		t.Fatalf("out of range toggle error = %v", err)
	}
	if s.Hash() != before || s.LivingCells() != 1 {
		t.Fatalf("failed toggle changed the session")
	}

	s.ToggleCell(3, 4)
	if s.LivingCells() != 0 {
		t.Fatalf("second toggle left %d living cells", s.LivingCells())
	}
	checkInvariants(t, s)
}

func TestToggleRunning(t *testing.T) {
	s := newTestSession(t)
	s.LoadPreset(model.Glider)
	before := s.Hash()
	if !s.ToggleRunning() || !s.IsRunning() {
		t.Fatalf("ToggleRunning did not start the session")
	}
	if s.ToggleRunning() || s.IsRunning() {
		t.Fatalf("ToggleRunning did not stop the session")
	}
	if s.Hash() != before || s.Generation() != 0 {
		t.Fatalf("ToggleRunning changed the board")
	}
}

func TestBlinkerScenario(t *testing.T) {
	s := newTestSession(t)
	if err := s.LoadPreset(model.Blinker); err != nil {
		t.Fatalf("LoadPreset: %v", err)
	}
	start := s.Grid()
	if s.LivingCells() != 3 {
		t.Fatalf("blinker has %d living cells", s.LivingCells())
	}

	for step := 1; step <= 4; step++ {
		s.StepForward()
		checkInvariants(t, s)
		if s.Generation() != uint64(step) {
			t.Fatalf("generation %d after %d steps", s.Generation(), step)
		}
		if s.LivingCells() != 3 {
			t.Fatalf("step %d: %d living cells", step, s.LivingCells())
		}
		same := s.Grid().Equal(start)
		if step%2 == 0 && !same {
			t.Fatalf("step %d: blinker did not return to its start", step)
		}
		if step%2 == 1 && same {
			t.Fatalf("step %d: blinker did not oscillate", step)
		}
	}
}

func TestStepForwardWhileRunning(t *testing.T) {
	s := newTestSession(t)
	s.LoadPreset(model.Blinker)
	s.ToggleRunning()
	s.StepForward()
	if s.Generation() != 1 || !s.IsRunning() {
		t.Fatalf("manual step while running: gen %d running %v", s.Generation(), s.IsRunning())
	}
}

func TestTick(t *testing.T) {
	s := newTestSession(t)
	s.LoadPreset(model.Glider)
	before := s.Hash()

	if s.Tick() {
		t.Fatalf("Tick advanced a paused session")
	}
	if s.Generation() != 0 || s.Hash() != before {
		t.Fatalf("paused Tick changed the session")
	}

	s.ToggleRunning()
	if !s.Tick() {
		t.Fatalf("Tick did not advance a running session")
	}
	if s.Generation() != 1 || s.Hash() == before {
		t.Fatalf("running Tick did not advance the board")
	}
	checkInvariants(t, s)
}

func TestReset(t *testing.T) {
	s := newTestSession(t)
	s.LoadPreset(model.Random)
	s.ToggleRunning()
	s.StepForward()
	s.StepForward()

	s.Reset()
	if s.Generation() != 0 || s.LivingCells() != 0 || s.IsRunning() {
		t.Fatalf("reset left gen %d living %d running %v", s.Generation(), s.LivingCells(), s.IsRunning())
	}
	checkInvariants(t, s)
}

func TestUpdateSettings(t *testing.T) {
	s := newTestSession(t)
	s.LoadPreset(model.Pulsar)
	s.StepForward()
	before := s.Hash()

	speed, wrap := utils.SpeedBlazing, false
	if err := s.UpdateSettings(utils.SettingsUpdate{Speed: &speed, WrapEdges: &wrap}); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if s.Settings().Speed != speed || s.Settings().WrapEdges {
		t.Fatalf("settings not merged: %+v", s.Settings())
	}
	if s.Hash() != before || s.Generation() != 1 {
		t.Fatalf("non-size update touched the board")
	}

	rows := 20
	if err := s.UpdateSettings(utils.SettingsUpdate{Rows: &rows}); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	g := s.Grid()
	if g.Rows() != 20 || g.Cols() != 30 || s.Generation() != 0 || s.LivingCells() != 0 {
		t.Fatalf("resize did not reset: %dx%d gen %d living %d", g.Rows(), g.Cols(), s.Generation(), s.LivingCells())
	}
	checkInvariants(t, s)
}

func TestUpdateSettingsRejectsInvalid(t *testing.T) {
	s := newTestSession(t)
	s.LoadPreset(model.Glider)
	before, settings := s.Hash(), s.Settings()

	zero := 0
	if err := s.UpdateSettings(utils.SettingsUpdate{Cols: &zero}); !errors.Is(err, model.ErrInvalidDimensions) {
		t.Fatalf("zero cols error = %v", err)
	}
	var speed time.Duration
	if err := s.UpdateSettings(utils.SettingsUpdate{Speed: &speed}); err == nil {
		t.Fatalf("zero speed accepted")
	}
	if s.Hash() != before || s.Settings() != settings || s.LivingCells() != 5 {
		t.Fatalf("rejected update changed the session")
	}
}

func TestLoadPreset(t *testing.T) {
	s := newTestSession(t)
	s.LoadPreset(model.Glider)
	s.StepForward()
	s.ToggleRunning()

	if err := s.LoadPreset(model.Pulsar); err != nil {
		t.Fatalf("LoadPreset: %v", err)
	}
	if s.Generation() != 0 || s.IsRunning() || s.LivingCells() != 48 {
		t.Fatalf("preset load left gen %d running %v living %d", s.Generation(), s.IsRunning(), s.LivingCells())
	}
	checkInvariants(t, s)
}

func TestRandomPresetUsesInjectedSource(t *testing.T) {
	a := newTestSession(t, WithRand(rand.New(rand.NewPCG(5, 5))))
	b := newTestSession(t, WithRand(rand.New(rand.NewPCG(5, 5))))
	a.LoadPreset(model.Random)
	b.LoadPreset(model.Random)
	if a.Hash() != b.Hash() {
		t.Fatalf("sessions with equal sources seeded different boards")
	}
	if a.LivingCells() == 0 {
		t.Fatalf("random preset seeded an empty board")
	}
	checkInvariants(t, a)
}

func TestGridReturnsCopy(t *testing.T) {
	s := newTestSession(t)
	g := s.Grid()
	g.Set(0, 0, true)
	if s.Alive(0, 0) || s.LivingCells() != 0 {
		t.Fatalf("mutating the returned grid changed the session")
	}
}

func TestPooledSessionKeepsInvariants(t *testing.T) {
	s := newTestSession(t, WithGridPool(model.NewGridPool()))
	s.LoadPreset(model.Random)
	for range 50 {
		s.StepForward()
		checkInvariants(t, s)
	}
	if s.Generation() != 50 {
		t.Fatalf("generation %d after 50 steps", s.Generation())
	}
}
