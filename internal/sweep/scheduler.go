// Package sweep runs periodic purge passes over a store.
package sweep

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/pbaille/tagvault/internal/clock"
)

// DefaultInterval is the period between sweep passes.
const DefaultInterval = time.Second

// ErrInvalidInterval is returned for a non-positive interval.
var ErrInvalidInterval = errors.New("sweep interval must be positive")

// Sweeper purges expired entries as of now and returns their ids.
type Sweeper interface {
	Sweep(now time.Time) []string
}

// Scheduler invokes a Sweeper on a fixed period.
type Scheduler struct {
	target   Sweeper
	interval time.Duration
	clock    clock.Clock
	logger   *zap.Logger
	onPass   func(purged []string)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the tick and timestamp source.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// OnPass registers a callback run after every completed pass.
func OnPass(f func(purged []string)) Option {
	return func(s *Scheduler) { s.onPass = f }
}

// New creates a Scheduler sweeping target every interval.
func New(target Sweeper, interval time.Duration, opts ...Option) (*Scheduler, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	s := &Scheduler{
		target:   target,
		interval: interval,
		clock:    clock.Real(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s, nil
}

// Interval returns the sweep period.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Run sweeps on every tick until ctx is cancelled. A pass that has started
// always runs to completion; a tick observed after cancellation starts nothing.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweep scheduler started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweep scheduler stopped")
			return nil
		case <-ticker.C:
			if ctx.Err() != nil {
				s.logger.Info("sweep scheduler stopped")
				return nil
			}
			s.pass()
		}
	}
}

func (s *Scheduler) pass() {
	purged := s.target.Sweep(s.clock.Now())
	if len(purged) > 0 {
		s.logger.Info("sweep pass purged entries", zap.Int("count", len(purged)))
	}
	if s.onPass != nil {
		s.onPass(purged)
	}
}
