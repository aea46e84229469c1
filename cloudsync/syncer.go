// Package cloudsync pushes board payloads to an external store.
//
// Pushing is fire-and-forget: failures are logged and dropped and nothing is
// reported back to the session that produced the payload.
package cloudsync

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const defaultPushTimeout = 10 * time.Second

// Sink stores payloads
type Sink interface {
	Push(ctx context.Context, p Payload) error
}

// Syncer pushes at most one payload at a time to a Sink
type Syncer struct {
	sink    Sink
	timeout time.Duration
	logger  *slog.Logger

	eg      errgroup.Group
	syncing atomic.Bool
}

// SyncerOption configures a Syncer
type SyncerOption func(*Syncer)

// WithTimeout bounds each push
func WithTimeout(d time.Duration) SyncerOption {
	return func(s *Syncer) { s.timeout = d }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) SyncerOption {
	return func(s *Syncer) { s.logger = logger }
}

// NewSyncer creates a Syncer for sink. A nil sink gives a disconnected Syncer
// that ignores every request.
func NewSyncer(sink Sink, opts ...SyncerOption) *Syncer {
	s := &Syncer{sink: sink, timeout: defaultPushTimeout}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With(slog.String("component", "cloudsync"))
	s.eg.SetLimit(1)
	return s
}

// Connected reports whether a sink is configured
func (s *Syncer) Connected() bool { return s.sink != nil }

// Syncing reports whether a push is in flight
func (s *Syncer) Syncing() bool { return s.syncing.Load() }

// Sync starts pushing p in the background. It returns false when the request
// was dropped: no sink is configured or another push is in flight.
func (s *Syncer) Sync(ctx context.Context, p Payload) bool {
	if !s.Connected() {
		return false
	}
	if !s.syncing.CompareAndSwap(false, true) {
		return false
	}
	ctx = context.WithoutCancel(ctx)
	started := s.eg.TryGo(func() error {
		defer s.syncing.Store(false)
		s.push(ctx, p)
		return nil
	})
	if !started {
		s.syncing.Store(false)
	}
	return started
}

// Wait blocks until the in-flight push, if any, has finished
func (s *Syncer) Wait() {
	_ = s.eg.Wait()
}

func (s *Syncer) push(ctx context.Context, p Payload) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ctx, span := otel.Tracer("cloudsync").Start(ctx, "cloudsync.Push",
		trace.WithAttributes(
			attribute.String("snapshot.id", p.ID.String()),
			attribute.Int64("generation", int64(p.Generation)),
			attribute.Int("living_cells", int(p.LivingCells)),
		),
	)
	defer span.End()

	start := time.Now()
	if err := s.sink.Push(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "push failed")
		s.logger.Warn("sync failed", slog.String("id", p.ID.String()), slog.Any("error", err))
		return
	}
	span.SetAttributes(attribute.Bool("success", true))
	s.logger.Debug("synced",
		slog.String("id", p.ID.String()),
		slog.Uint64("generation", p.Generation),
		slog.Duration("duration", time.Since(start)),
	)
}
