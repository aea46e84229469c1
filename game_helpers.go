package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/sheikhrachel/lifeboard/cloudsync"
	"github.com/sheikhrachel/lifeboard/driver"
	"github.com/sheikhrachel/lifeboard/model"
	"github.com/sheikhrachel/lifeboard/session"
	"github.com/sheikhrachel/lifeboard/utils"
)

var errSyncUnavailable = errors.New("sync unavailable")

// app wires the session, its history and the optional cloud sync
type app struct {
	config  utils.Config
	logger  *slog.Logger
	session *session.Session
	history *session.History
	sink    *cloudsync.SQLiteSink
	syncer  *cloudsync.Syncer
}

// newApp sets up the game state. A database that fails to open only disables sync.
func newApp(config utils.Config, logger *slog.Logger) (*app, error) {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s, err := session.New(config.Settings,
		session.WithRand(rand.New(rand.NewPCG(uint64(seed), 0))),
		session.WithLogger(logger),
		session.WithGridPool(model.NewGridPool()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[newApp] failed to create session")
	}

	a := &app{
		config:  config,
		logger:  logger,
		session: s,
		history: session.NewHistory(config.HistoryCapacity, session.WithHistoryLogger(logger)),
	}

	var sink cloudsync.Sink
	if config.DatabasePath != "" {
		if a.sink, err = cloudsync.OpenSQLite(config.DatabasePath); err != nil {
			logger.Warn("cloud sync disabled", slog.Any("error", err))
		} else {
			sink = a.sink
		}
	}
	a.syncer = cloudsync.NewSyncer(sink, cloudsync.WithLogger(logger))
	return a, nil
}

// Close waits for pending syncs and closes the database
func (a *app) Close() {
	a.syncer.Wait()
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.logger.Warn("failed to close database", slog.Any("error", err))
		}
	}
}

// syncSession starts pushing the session state. It must run on the goroutine
// that owns the session.
func (a *app) syncSession(ctx context.Context, s *session.Session) error {
	p := cloudsync.NewPayload(s.Grid(), s.Generation(), s.LivingCells(), s.Settings(), time.Now())
	if !a.syncer.Sync(ctx, p) {
		return errSyncUnavailable
	}
	return nil
}

// runHeadless seeds a pattern, advances it and prints the final board
func runHeadless(ctx context.Context, a *app, preset string, steps int, w io.Writer) error {
	p, err := model.ParsePattern(preset)
	if err != nil {
		return err
	}
	if err = a.session.LoadPreset(p); err != nil {
		return err
	}

	stats := utils.NewStats()
	for range steps {
		if ctx.Err() != nil {
			break
		}
		start := time.Now()
		a.session.StepForward()
		stats.Update(a.session.Generation(), int(a.session.LivingCells()), time.Since(start))
	}

	renderer := model.TextRenderer{ShowGrid: a.session.Settings().ShowGrid}
	if err = renderer.Render(w, a.session.Grid()); err != nil {
		return err
	}

	mean, stdDev := stats.Population()
	fmt.Fprintf(w, "Gen: %d | Living: %d | Avg Pop: %.1f ± %.1f\n",
		a.session.Generation(), a.session.LivingCells(), mean, stdDev)

	if err = a.syncSession(ctx, a.session); err == nil {
		a.syncer.Wait()
	}
	return nil
}

// frameEvent wakes the UI loop after the driver published a new frame
type frameEvent struct {
	tcell.EventTime
}

// terminalUI draws frames and turns input into driver commands
type terminalUI struct {
	screen tcell.Screen
	app    *app
	driver *driver.Driver
	latest atomic.Pointer[driver.Frame]

	cursorRow, cursorCol int
	selected             int
	mouseDown            bool
	message              string

	stats          *utils.Stats
	lastGeneration uint64
	lastHash       string
	lastFrameTime  time.Time
	still          bool
}

func newTerminalUI(screen tcell.Screen, a *app, opts ...driver.Option) *terminalUI {
	ui := &terminalUI{
		screen:        screen,
		app:           a,
		stats:         utils.NewStats(),
		lastFrameTime: time.Now(),
	}
	opts = append([]driver.Option{driver.WithFrameHandler(ui.onFrame), driver.WithLogger(a.logger)}, opts...)
	ui.driver = driver.New(a.session, a.history, opts...)
	return ui
}

// onFrame runs on the driver goroutine; a full event queue only delays the redraw
func (ui *terminalUI) onFrame(f driver.Frame) {
	ui.latest.Store(&f)
	ev := &frameEvent{}
	ev.SetEventNow()
	_ = ui.screen.PostEvent(ev)
}

// runTerminal runs the interactive UI until the user quits or ctx ends
func runTerminal(ctx context.Context, a *app) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return errors.Wrap(err, "[runTerminal] failed to create screen")
	}
	if err = screen.Init(); err != nil {
		return errors.Wrap(err, "[runTerminal] failed to initialize screen")
	}
	defer screen.Fini()
	screen.EnableMouse()
	screen.Clear()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ui := newTerminalUI(screen, a)
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := ui.driver.Run(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		_ = screen.PostEvent(tcell.NewEventInterrupt(nil))
		return nil
	})
	eg.Go(func() error {
		defer cancel()
		return ui.loop(ctx)
	})
	return eg.Wait()
}

func (ui *terminalUI) loop(ctx context.Context) error {
	for {
		switch ev := ui.screen.PollEvent().(type) {
		case nil:
			return nil
		case *tcell.EventInterrupt:
			if ctx.Err() != nil {
				return nil
			}
		case *tcell.EventResize:
			ui.screen.Sync()
		case *tcell.EventKey:
			if ui.handleKey(ctx, ev) {
				return nil
			}
		case *tcell.EventMouse:
			ui.handleMouse(ctx, ev)
		}
		if ctx.Err() != nil {
			return nil
		}
		ui.draw()
	}
}

// do runs cmd on the driver and records the outcome for the status line
func (ui *terminalUI) do(ctx context.Context, label string, cmd driver.Command) {
	if err := ui.driver.Do(ctx, cmd); err != nil {
		ui.message = fmt.Sprintf("%s failed: %v", label, errors.Cause(err))
		return
	}
	ui.message = label
}

// handleKey applies one key press and reports whether the UI should quit
func (ui *terminalUI) handleKey(ctx context.Context, ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyUp:
		ui.moveCursor(-1, 0)
		return false
	case tcell.KeyDown:
		ui.moveCursor(1, 0)
		return false
	case tcell.KeyLeft:
		ui.moveCursor(0, -1)
		return false
	case tcell.KeyRight:
		ui.moveCursor(0, 1)
		return false
	case tcell.KeyEnter:
		row, col := ui.cursorRow, ui.cursorCol
		ui.do(ctx, "Toggled cell", func(s *session.Session, _ *session.History) error {
			return s.ToggleCell(row, col)
		})
		return false
	case tcell.KeyRune:
	default:
		return false
	}

	r := ev.Rune()
	if r == 'q' {
		return true
	}
	if label, cmd := ui.runeCommand(ctx, r); cmd != nil {
		ui.do(ctx, label, cmd)
	}
	return false
}

// runeCommand maps a key to its driver command; nil means the key is unbound
func (ui *terminalUI) runeCommand(ctx context.Context, r rune) (string, driver.Command) {
	switch r {
	case ' ':
		return "Toggled run", func(s *session.Session, _ *session.History) error {
			s.ToggleRunning()
			return nil
		}
	case 'n':
		return "Stepped", func(s *session.Session, _ *session.History) error {
			// manual steps are disabled while running to avoid double advancing
			if s.IsRunning() {
				return errors.New("pause before stepping")
			}
			s.StepForward()
			return nil
		}
	case 'r':
		return "Reset", func(s *session.Session, _ *session.History) error {
			s.Reset()
			return nil
		}
	case '1', '2', '3', '4':
		p := model.Patterns[r-'1']
		return "Loaded " + p.String(), func(s *session.Session, _ *session.History) error {
			return s.LoadPreset(p)
		}
	case 's':
		return "Saved snapshot", func(s *session.Session, h *session.History) error {
			h.Save(s)
			ui.selected = 0
			return nil
		}
	case '[', ']':
		return "", func(_ *session.Session, h *session.History) error {
			if r == ']' {
				ui.selected++
			} else {
				ui.selected--
			}
			ui.selected = max(0, min(ui.selected, h.Len()-1))
			return nil
		}
	case 'l':
		index := ui.selected
		return fmt.Sprintf("Loaded snapshot #%d", index+1), func(s *session.Session, h *session.History) error {
			return h.Restore(index, s)
		}
	case 'x':
		return "Cleared history", func(_ *session.Session, h *session.History) error {
			h.Clear()
			ui.selected = 0
			return nil
		}
	case 'w':
		return "Toggled edge wrapping", func(s *session.Session, _ *session.History) error {
			wrap := !s.Settings().WrapEdges
			return s.UpdateSettings(utils.SettingsUpdate{WrapEdges: &wrap})
		}
	case 'g':
		return "Toggled grid lines", func(s *session.Session, _ *session.History) error {
			show := !s.Settings().ShowGrid
			return s.UpdateSettings(utils.SettingsUpdate{ShowGrid: &show})
		}
	case '+', '-':
		return "Changed speed", func(s *session.Session, _ *session.History) error {
			speed := nextSpeed(s.Settings().Speed, r == '+')
			return s.UpdateSettings(utils.SettingsUpdate{Speed: &speed})
		}
	case 'z':
		return "Resized board", func(s *session.Session, _ *session.History) error {
			size := nextSize(s.Settings().Rows)
			ui.cursorRow, ui.cursorCol = 0, 0
			return s.UpdateSettings(utils.SettingsUpdate{Rows: &size, Cols: &size})
		}
	case 'y':
		return "Syncing", func(s *session.Session, _ *session.History) error {
			return ui.app.syncSession(ctx, s)
		}
	}
	return "", nil
}

// nextSpeed steps through the speed presets, faster or slower
func nextSpeed(current time.Duration, faster bool) time.Duration {
	i := slices.Index(utils.SpeedPresets, current)
	if i < 0 {
		return utils.SpeedNormal
	}
	if faster {
		i = min(i+1, len(utils.SpeedPresets)-1)
	} else {
		i = max(i-1, 0)
	}
	return utils.SpeedPresets[i]
}

// nextSize cycles through the board size presets
func nextSize(current int) int {
	i := slices.Index(utils.SizePresets, current)
	return utils.SizePresets[(i+1)%len(utils.SizePresets)]
}

func (ui *terminalUI) moveCursor(dr, dc int) {
	f := ui.latest.Load()
	if f == nil {
		return
	}
	ui.cursorRow = max(0, min(ui.cursorRow+dr, f.Grid.Rows()-1))
	ui.cursorCol = max(0, min(ui.cursorCol+dc, f.Grid.Cols()-1))
}

// handleMouse toggles the clicked cell once per press
func (ui *terminalUI) handleMouse(ctx context.Context, ev *tcell.EventMouse) {
	pressed := ev.Buttons()&tcell.Button1 != 0
	defer func() { ui.mouseDown = pressed }()
	if !pressed || ui.mouseDown {
		return
	}

	x, y := ev.Position()
	row, col := y, x/2
	f := ui.latest.Load()
	if f == nil || !f.Grid.InBounds(row, col) {
		return
	}
	ui.cursorRow, ui.cursorCol = row, col
	ui.do(ctx, "Toggled cell", func(s *session.Session, _ *session.History) error {
		return s.ToggleCell(row, col)
	})
}

// observe feeds a frame into the run statistics
func (ui *terminalUI) observe(f driver.Frame) {
	now := time.Now()
	switch {
	case f.Generation < ui.lastGeneration || f.Generation == 0:
		ui.stats.Reset()
		ui.still = false
	case f.Generation > ui.lastGeneration:
		delta := f.Generation - ui.lastGeneration
		ui.stats.Update(f.Generation, int(f.LivingCells), now.Sub(ui.lastFrameTime)/time.Duration(delta))
		ui.still = f.Hash == ui.lastHash
		ui.lastFrameTime = now
	}
	ui.lastGeneration = f.Generation
	ui.lastHash = f.Hash
}

func (ui *terminalUI) draw() {
	f := ui.latest.Load()
	if f == nil {
		return
	}
	ui.observe(*f)

	ui.screen.Clear()
	drawGrid(ui.screen, f.Grid, f.Settings.ShowGrid, ui.cursorRow, ui.cursorCol)

	y := f.Grid.Rows() + 1
	mean, stdDev := ui.stats.Population()
	lines := []string{
		statusLine(*f, ui.still),
		fmt.Sprintf("Performance: %.1f gen/sec | Avg Pop: %.1f ± %.1f", ui.stats.GenerationsPerSecond, mean, stdDev),
		historyLine(f.History, ui.selected, ui.app.history.Capacity()),
		syncLine(ui.app.syncer),
		ui.message,
		"space run · n step · r reset · 1-4 presets · s save · [ ] select · l load · x clear",
		"w wrap · g grid · +/- speed · z size · y sync · arrows+enter/click toggle · q quit",
	}
	for i, line := range lines {
		drawText(ui.screen, 0, y+i, tcell.StyleDefault, line)
	}
	ui.screen.Show()
}

// drawGrid paints each cell two columns wide
func drawGrid(screen tcell.Screen, g *model.Grid, showGrid bool, cursorRow, cursorCol int) {
	var (
		alive  = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorGreen)
		dead   = tcell.StyleDefault.Foreground(tcell.ColorGray).Background(tcell.ColorBlack)
		cursor = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorYellow)
	)

	for row := range g.Rows() {
		for col := range g.Cols() {
			style, ch := dead, ' '
			if g.Alive(row, col) {
				style = alive
			} else if showGrid {
				ch = '·'
			}
			if row == cursorRow && col == cursorCol {
				style = cursor
			}
			screen.SetContent(col*2, row, ' ', nil, style)
			screen.SetContent(col*2+1, row, ch, nil, style)
		}
	}
}

func drawText(screen tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, r := range text {
		screen.SetContent(x, y, r, nil, style)
		x++
	}
}

func statusLine(f driver.Frame, still bool) string {
	status := "Paused"
	switch {
	case f.LivingCells == 0 && f.Generation > 0:
		status = "Extinct"
	case still:
		status = "Still"
	case f.Running:
		status = "Running"
	}

	edges := "bounded"
	if f.Settings.WrapEdges {
		edges = "wrapped"
	}
	return fmt.Sprintf("Gen: %d | Living: %d | Grid: %dx%d %s | Speed: %v | Status: %s",
		f.Generation, f.LivingCells, f.Settings.Rows, f.Settings.Cols, edges, f.Settings.Speed, status)
}

func historyLine(history []session.Snapshot, selected, capacity int) string {
	if len(history) == 0 {
		return fmt.Sprintf("History: 0/%d | No saved snapshots yet", capacity)
	}
	selected = max(0, min(selected, len(history)-1))
	snap := history[selected]
	return fmt.Sprintf("History: %d/%d | #%d %s · %s",
		len(history), capacity, selected+1, snap.Label(), snap.SavedAt.Format(time.DateTime))
}

func syncLine(s *cloudsync.Syncer) string {
	switch {
	case !s.Connected():
		return "Cloud: not configured"
	case s.Syncing():
		return "Cloud: syncing..."
	}
	return "Cloud: connected"
}
