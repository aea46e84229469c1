// Package driver runs a session on a single control goroutine and schedules
// its ticks.
//
// While the session is running, the driver keeps one repeating task keyed by
// (running, speed). Whenever either changes the task is cancelled and, if still
// running, restarted at the new interval. The session itself holds no timer.
package driver

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/sheikhrachel/lifeboard/model"
	"github.com/sheikhrachel/lifeboard/session"
	"github.com/sheikhrachel/lifeboard/utils"
)

// ErrStopped is returned by Do once the driver loop has exited
var ErrStopped = errors.New("driver stopped")

// Frame is a consistent copy of the observable state, taken on the loop
type Frame struct {
	Grid        *model.Grid
	Hash        string
	Generation  uint64
	LivingCells uint32
	Running     bool
	Settings    utils.Settings
	History     []session.Snapshot
}

// Command mutates or reads the session and history on the loop goroutine
type Command func(s *session.Session, h *session.History) error

type request struct {
	cmd   Command
	reply chan error
}

type scheduleKey struct {
	running bool
	speed   time.Duration
}

// Driver owns a session and its history
type Driver struct {
	session *session.Session
	history *session.History

	requests  chan request
	done      chan struct{}
	newTicker TickerFunc
	onFrame   func(Frame)
	logger    *slog.Logger
}

// Option configures a Driver
type Option func(*Driver)

// WithTicker replaces the time.Ticker based scheduler
func WithTicker(f TickerFunc) Option {
	return func(d *Driver) { d.newTicker = f }
}

// WithFrameHandler registers fn to receive a Frame after every change. fn runs
// on the loop goroutine and must not call Do.
func WithFrameHandler(fn func(Frame)) Option {
	return func(d *Driver) { d.onFrame = fn }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) { d.logger = logger }
}

// New creates a driver for s and h. Run must be called to start it.
func New(s *session.Session, h *session.History, opts ...Option) *Driver {
	d := &Driver{
		session:   s,
		history:   h,
		requests:  make(chan request),
		done:      make(chan struct{}),
		newTicker: NewTimeTicker,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	d.logger = d.logger.With(slog.String("component", "driver"))
	return d
}

// Run processes commands and scheduled ticks until ctx is cancelled
func (d *Driver) Run(ctx context.Context) error {
	defer close(d.done)

	var (
		ticker Ticker
		tickC  <-chan time.Time
		key    scheduleKey
	)
	stop := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tickC = nil, nil
		}
	}
	defer stop()

	reschedule := func() {
		want := scheduleKey{running: d.session.IsRunning(), speed: d.session.Settings().Speed}
		if want == key {
			return
		}
		stop()
		if want.running {
			ticker = d.newTicker(want.speed)
			tickC = ticker.C()
		}
		key = want
		d.logger.Debug("schedule changed", slog.Bool("running", want.running), slog.Duration("speed", want.speed))
	}

	d.emit()
	for {
		reschedule()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-d.requests:
			err := req.cmd(d.session, d.history)
			req.reply <- err
			d.emit()
		case <-tickC:
			if d.session.Tick() {
				d.emit()
			}
		}
	}
}

// Do runs cmd on the loop goroutine and returns its error
func (d *Driver) Do(ctx context.Context, cmd Command) error {
	req := request{cmd: cmd, reply: make(chan error, 1)}
	select {
	case d.requests <- req:
	case <-d.done:
		return ErrStopped
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "[Do] command not delivered")
	}
	return <-req.reply
}

// Snapshot returns the current Frame
func (d *Driver) Snapshot(ctx context.Context) (Frame, error) {
	var f Frame
	err := d.Do(ctx, func(*session.Session, *session.History) error {
		f = d.frame()
		return nil
	})
	return f, err
}

func (d *Driver) frame() Frame {
	return Frame{
		Grid:        d.session.Grid(),
		Hash:        d.session.Hash(),
		Generation:  d.session.Generation(),
		LivingCells: d.session.LivingCells(),
		Running:     d.session.IsRunning(),
		Settings:    d.session.Settings(),
		History:     d.history.Entries(),
	}
}

func (d *Driver) emit() {
	if d.onFrame != nil {
		d.onFrame(d.frame())
	}
}
