// pkg/progress/display.go
//
// Heartbeat logging for long blocking steps such as builds and tool runs,
// so a quiet process does not look hung.

package progress

import (
	"context"
	"sync"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// DefaultEvery is how often a running Operation logs that it is still working.
const DefaultEvery = 30 * time.Second

// Operation is a long-running step with periodic "still working" logs.
type Operation struct {
	Name  string
	Every time.Duration

	logger  otelzap.LoggerWithCtx
	started time.Time
	done    chan struct{}
	once    sync.Once
}

// Start logs the beginning of name and begins the heartbeat. Call Done when
// the step finishes.
func Start(ctx context.Context, name string, every time.Duration) *Operation {
	if every <= 0 {
		every = DefaultEvery
	}
	op := &Operation{
		Name:    name,
		Every:   every,
		logger:  otelzap.Ctx(ctx),
		started: time.Now(),
		done:    make(chan struct{}),
	}
	op.logger.Info(name + " started")
	go op.ticker()
	return op
}

func (op *Operation) ticker() {
	ticker := time.NewTicker(op.Every)
	defer ticker.Stop()

	for {
		select {
		case <-op.done:
			return
		case <-ticker.C:
			op.logger.Info("Still working",
				zap.String("operation", op.Name),
				zap.Duration("elapsed", time.Since(op.started).Round(time.Second)))
		}
	}
}

// Done stops the heartbeat and returns the elapsed time. Safe to call twice.
func (op *Operation) Done() time.Duration {
	elapsed := time.Since(op.started)
	op.once.Do(func() {
		close(op.done)
		op.logger.Info(op.Name+" finished", zap.Duration("elapsed", elapsed.Round(time.Millisecond)))
	})
	return elapsed
}
