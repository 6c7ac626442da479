// pkg/scheduler/scheduler.go

package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// DefaultTick is how often Loop checks whether a run is due.
const DefaultTick = time.Second

// Schedule tracks when the last run finished and whether the next is due.
// The zero Interval disables the schedule.
type Schedule struct {
	Interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func New(interval time.Duration) *Schedule {
	return &Schedule{Interval: interval}
}

// Arm starts the clock if it has never run. The first run is due one
// Interval after arming.
func (s *Schedule) Arm(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last.IsZero() {
		s.last = now
	}
}

// Due reports whether a run should start at now.
func (s *Schedule) Due(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Interval <= 0 || s.last.IsZero() {
		return false
	}
	return now.Sub(s.last) >= s.Interval
}

// MarkRun records a finished run.
func (s *Schedule) MarkRun(at time.Time) {
	s.mu.Lock()
	s.last = at
	s.mu.Unlock()
}

func (s *Schedule) Last() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Schedule) interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Interval
}

// SetInterval changes the interval, e.g. after a settings reload.
func (s *Schedule) SetInterval(d time.Duration) {
	s.mu.Lock()
	s.Interval = d
	s.mu.Unlock()
}

// Loop checks the schedule every tick and runs fn in the background when it
// is due. A tick that lands while fn is still running is skipped. Loop
// blocks until ctx is done and then waits for an in-flight fn.
func (s *Schedule) Loop(ctx context.Context, tick time.Duration, fn func(context.Context) error) {
	if tick <= 0 {
		tick = DefaultTick
	}
	log := otelzap.Ctx(ctx)
	s.Arm(time.Now())

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var (
		busy atomic.Bool
		wg   sync.WaitGroup
	)
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !s.Due(now) {
				continue
			}
			if !busy.CompareAndSwap(false, true) {
				log.Debug("Scheduled run skipped, previous run still active")
				continue
			}
			if ctx.Err() != nil {
				busy.Store(false)
				return
			}
			interval := s.interval()
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer busy.Store(false)
				log.Info("Scheduled run starting", zap.Duration("interval", interval))
				if err := fn(ctx); err != nil {
					log.Warn("Scheduled run failed", zap.Error(err))
				}
				s.MarkRun(time.Now())
			}()
		}
	}
}
