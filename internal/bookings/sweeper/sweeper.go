package sweeper

import (
	"context"
	"sync"
	"time"

	"slotguard/pkg/logger"
)

type Completer interface {
	CompleteDue(ctx context.Context) (int, error)
}

// Sweeper periodically marks finished bookings as completed.
type Sweeper struct {
	completer Completer
	interval  time.Duration
	log       *logger.Logger

	stopCh chan struct{}
	done   chan struct{}
	once   sync.Once
}

func New(completer Completer, interval time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{
		completer: completer,
		interval:  interval,
		log:       log,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start blocks until ctx is cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("Completion sweeper started", "interval", s.interval)
	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.stopCh:
			s.log.Info("Completion sweeper stopped")
			return nil
		case <-ctx.Done():
			s.log.Info("Completion sweeper stopped", "reason", ctx.Err())
			return nil
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	count, err := s.completer.CompleteDue(ctx)
	if err != nil {
		s.log.Error("Completion sweep failed", "completed", count, "error", err)
		return
	}
	if count > 0 {
		s.log.Debug("Completion sweep finished", "completed", count)
	}
}

// Stop ends a running Start and waits for the current sweep to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.once.Do(func() { close(s.stopCh) })
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
