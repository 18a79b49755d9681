// Package sweeper deletes expired session rows on a cron schedule.
//
// Revoked rows are kept until their own expiry so that a replayed refresh
// token still finds its revoked row and triggers reuse detection.
package sweeper

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/tokenguard/session"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSchedule runs the sweep every ten minutes.
const DefaultSchedule = "@every 10m"

// Sweeper owns one cron scheduler bound to a [session.Store].
type Sweeper struct {
	store  session.Store
	logger *zap.Logger
	now    func() time.Time
	grace  time.Duration

	mu      sync.Mutex
	cron    *cron.Cron
	deleted atomic.Int64
	runs    atomic.Int64
}

// Option configures a [Sweeper].
type Option func(*Sweeper)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithGrace keeps rows for d past their expiry before deleting them.
func WithGrace(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.grace = d
		}
	}
}

// New returns a stopped Sweeper.
func New(store session.Store, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:  store,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOnce deletes every row whose expiry is before now minus the grace.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	before := s.now().Add(-s.grace)
	n, err := s.store.DeleteExpired(ctx, before)
	s.runs.Add(1)
	if err != nil {
		s.logger.Error("session sweep failed", zap.Error(err))
		return 0, err
	}
	s.deleted.Add(n)
	if n > 0 {
		s.logger.Info("expired sessions deleted", zap.Int64("count", n), zap.Time("before", before))
	}
	return n, nil
}

// Start schedules RunOnce with a standard cron spec or a descriptor such as
// "@every 10m". Overlapping runs are skipped. ctx bounds each run.
func (s *Sweeper) Start(ctx context.Context, spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.New("sweeper already started")
	}
	if spec == "" {
		spec = DefaultSchedule
	}

	logger := cronLogger{s.logger.Sugar()}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(spec, func() {
		_, _ = s.RunOnce(ctx)
	}); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	s.logger.Info("session sweeper started", zap.String("schedule", spec))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}

// Stats returns the number of sweeps run and rows deleted so far.
func (s *Sweeper) Stats() (runs, deleted int64) {
	return s.runs.Load(), s.deleted.Load()
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
