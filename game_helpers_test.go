package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/sheikhrachel/lifeboard/driver"
	"github.com/sheikhrachel/lifeboard/model"
	"github.com/sheikhrachel/lifeboard/utils"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestApp(t *testing.T, config utils.Config) *app {
	t.Helper()
	config.Seed = 1
	a, err := newApp(config, quietLogger)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestRunHeadless(t *testing.T) {
	a := newTestApp(t, utils.DefaultConfig())

	var sb strings.Builder
	if err := runHeadless(context.Background(), a, "blinker", 2, &sb); err != nil {
		t.Fatalf("runHeadless: %v", err)
	}
	out := sb.String()
	if !strings.Contains(out, "Gen: 2 | Living: 3 | Avg Pop: 3.0 ± 0.0") {
		t.Fatalf("unexpected status in output:\n%s", out)
	}
	if lines := strings.Count(out, "\n"); lines != 31 {
		t.Fatalf("expected 30 board lines and a status line, got %d lines", lines)
	}

	if err := runHeadless(context.Background(), a, "gosper", 1, &sb); err == nil {
		t.Fatalf("unknown preset accepted")
	}
}

func TestRunHeadlessSyncsToDatabase(t *testing.T) {
	config := utils.DefaultConfig()
	config.DatabasePath = filepath.Join(t.TempDir(), "gol.db")
	a := newTestApp(t, config)
	if !a.syncer.Connected() {
		t.Fatalf("syncer not connected to the database")
	}

	if err := runHeadless(context.Background(), a, "pulsar", 3, io.Discard); err != nil {
		t.Fatalf("runHeadless: %v", err)
	}
	latest, err := a.sink.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.Generation != 3 || latest.LivingCells != a.session.LivingCells() {
		t.Fatalf("synced payload gen %d living %d", latest.Generation, latest.LivingCells)
	}
}

func TestNewAppSurvivesBadDatabase(t *testing.T) {
	config := utils.DefaultConfig()
	config.DatabasePath = filepath.Join(t.TempDir(), "missing", "dir", "gol.db")
	a := newTestApp(t, config)
	if a.syncer.Connected() {
		t.Fatalf("syncer connected to an unusable database")
	}
}

func TestNextSpeed(t *testing.T) {
	cases := []struct {
		current time.Duration
		faster  bool
		want    time.Duration
	}{
		{utils.SpeedNormal, true, utils.SpeedFast},
		{utils.SpeedNormal, false, utils.SpeedSlow},
		{utils.SpeedBlazing, true, utils.SpeedBlazing},
		{utils.SpeedSlow, false, utils.SpeedSlow},
		{123 * time.Millisecond, true, utils.SpeedNormal},
	}
	for _, tc := range cases {
		if got := nextSpeed(tc.current, tc.faster); got != tc.want {
			t.Fatalf("nextSpeed(%v, %v) = %v, expected %v", tc.current, tc.faster, got, tc.want)
		}
	}
}

func TestNextSize(t *testing.T) {
	for current, want := range map[int]int{20: 30, 30: 40, 40: 20, 17: 20} {
		if got := nextSize(current); got != want {
			t.Fatalf("nextSize(%d) = %d, expected %d", current, got, want)
		}
	}
}

func TestStatusLine(t *testing.T) {
	f := driver.Frame{Generation: 4, LivingCells: 3, Settings: utils.DefaultSettings()}
	cases := []struct {
		running, still bool
		living         uint32
		want           string
	}{
		{false, false, 3, "Status: Paused"},
		{true, false, 3, "Status: Running"},
		{true, true, 3, "Status: Still"},
		{true, false, 0, "Status: Extinct"},
	}
	for _, tc := range cases {
		f.Running, f.LivingCells = tc.running, tc.living
		if got := statusLine(f, tc.still); !strings.HasSuffix(got, tc.want) {
			t.Fatalf("statusLine = %q, expected suffix %q", got, tc.want)
		}
	}
	if got := statusLine(f, false); !strings.Contains(got, "Grid: 30x30 wrapped | Speed: 200ms") {
		t.Fatalf("statusLine = %q", got)
	}
}

func newSimulationScreen(t *testing.T) tcell.SimulationScreen {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	screen.SetSize(100, 50)
	t.Cleanup(screen.Fini)
	return screen
}

func cellAt(t *testing.T, screen tcell.SimulationScreen, x, y int) tcell.SimCell {
	t.Helper()
	cells, width, _ := screen.GetContents()
	return cells[y*width+x]
}

func TestDrawGrid(t *testing.T) {
	screen := newSimulationScreen(t)
	g, _ := model.NewGrid(2, 3)
	g.Set(0, 1, true)

	drawGrid(screen, g, true, 1, 2)
	screen.Show()

	if _, bg, _ := cellAt(t, screen, 2, 0).Style.Decompose(); bg != tcell.ColorGreen {
		t.Fatalf("live cell background %v", bg)
	}
	if _, bg, _ := cellAt(t, screen, 4, 1).Style.Decompose(); bg != tcell.ColorYellow {
		t.Fatalf("cursor background %v", bg)
	}
	if runes := cellAt(t, screen, 1, 1).Runes; len(runes) == 0 || runes[0] != '·' {
		t.Fatalf("dead cell shows %q, expected a grid dot", runes)
	}
}

// keyHarness runs a terminal UI against a simulation screen and a fake ticker
type keyHarness struct {
	ui     *terminalUI
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func startUI(t *testing.T) *keyHarness {
	t.Helper()
	a := newTestApp(t, utils.DefaultConfig())
	never := func(time.Duration) driver.Ticker { return stoppedTicker{} }

	h := &keyHarness{ui: newTerminalUI(newSimulationScreen(t), a, driver.WithTicker(never))}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.ui.driver.Run(ctx)
	}()
	t.Cleanup(h.stop)
	return h
}

func (h *keyHarness) stop() {
	h.cancel()
	h.wg.Wait()
}

func (h *keyHarness) press(r rune) bool {
	return h.ui.handleKey(context.Background(), tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone))
}

type stoppedTicker struct{}

func (stoppedTicker) C() <-chan time.Time { return nil }
func (stoppedTicker) Stop()               {}

func TestKeysDriveSession(t *testing.T) {
	h := startUI(t)
	a := h.ui.app

	h.press('2')
	h.press('s')
	h.press('n')
	h.press('n')
	h.press('n')
	h.press('s')
	h.press(']')
	h.press('l')
	if h.ui.message != "Loaded snapshot #2" {
		t.Fatalf("message %q", h.ui.message)
	}
	h.press(' ')
	h.press('n')
	if !strings.HasPrefix(h.ui.message, "Stepped failed") {
		t.Fatalf("step while running was not refused: %q", h.ui.message)
	}
	if !h.press('q') {
		t.Fatalf("q did not quit")
	}

	h.stop()
	if a.history.Len() != 2 {
		t.Fatalf("history has %d snapshots", a.history.Len())
	}
	if a.session.Generation() != 0 || !a.session.IsRunning() || a.session.LivingCells() != 3 {
		t.Fatalf("session gen %d running %v living %d", a.session.Generation(), a.session.IsRunning(), a.session.LivingCells())
	}
}

func TestCursorToggle(t *testing.T) {
	h := startUI(t)
	ctx := context.Background()
	if _, err := h.ui.driver.Snapshot(ctx); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if h.ui.latest.Load() == nil {
		t.Fatalf("no frame published")
	}
	h.ui.draw()

	h.ui.handleKey(ctx, tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone))
	h.ui.handleKey(ctx, tcell.NewEventKey(tcell.KeyRight, 0, tcell.ModNone))
	h.ui.handleKey(ctx, tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone))
	h.ui.handleMouse(ctx, tcell.NewEventMouse(6, 3, tcell.Button1, tcell.ModNone))
	h.ui.handleMouse(ctx, tcell.NewEventMouse(6, 3, tcell.Button1, tcell.ModNone))

	h.stop()
	s := h.ui.app.session
	if !s.Alive(1, 1) || !s.Alive(3, 3) || s.LivingCells() != 2 {
		t.Fatalf("expected cells (1,1) and (3,3) alive, living %d", s.LivingCells())
	}
}

func TestResizeKey(t *testing.T) {
	h := startUI(t)
	h.press('z')
	h.press('w')
	h.press('-')
	h.stop()

	settings := h.ui.app.session.Settings()
	if settings.Rows != 40 || settings.Cols != 40 || settings.WrapEdges || settings.Speed != utils.SpeedSlow {
		t.Fatalf("settings after keys: %+v", settings)
	}
	if g := h.ui.app.session.Grid(); g.Rows() != 40 {
		t.Fatalf("board not resized with settings")
	}
}
