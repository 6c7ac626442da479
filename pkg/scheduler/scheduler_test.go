package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDue(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		interval time.Duration
		arm      bool
		at       time.Duration
		want     bool
	}{
		{name: "not armed", interval: time.Hour, at: 2 * time.Hour},
		{name: "disabled", interval: 0, arm: true, at: 2 * time.Hour},
		{name: "too early", interval: time.Hour, arm: true, at: 59 * time.Minute},
		{name: "exactly due", interval: time.Hour, arm: true, at: time.Hour, want: true},
		{name: "overdue", interval: time.Hour, arm: true, at: 5 * time.Hour, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.interval)
			if tt.arm {
				s.Arm(base)
			}
			assert.Equal(t, tt.want, s.Due(base.Add(tt.at)))
		})
	}
}

func TestArmKeepsExistingRun(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New(time.Hour)
	s.MarkRun(base)
	s.Arm(base.Add(30 * time.Minute))
	assert.Equal(t, base, s.Last())
	assert.True(t, s.Due(base.Add(time.Hour)))
}

func TestLoopRunsWhenDue(t *testing.T) {
	s := New(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Loop(ctx, 5*time.Millisecond, func(context.Context) error {
			if runs.Add(1) == 2 {
				cancel()
			}
			return errors.New("ignored")
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
	assert.GreaterOrEqual(t, runs.Load(), int32(2))
	assert.False(t, s.Last().IsZero())
}

func TestLoopSkipsOverlappingRuns(t *testing.T) {
	s := New(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	var active, maxActive, runs atomic.Int32
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Loop(ctx, time.Millisecond, func(context.Context) error {
			n := active.Add(1)
			if n > maxActive.Load() {
				maxActive.Store(n)
			}
			runs.Add(1)
			<-release
			active.Add(-1)
			return nil
		})
	}()

	// let many ticks pass while the first run is blocked
	time.Sleep(50 * time.Millisecond)
	cancel()
	close(release)
	<-done

	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestLoopLogsCurrentInterval(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	prev := otelzap.L()
	otelzap.ReplaceGlobals(otelzap.New(zap.New(core)))
	t.Cleanup(func() { otelzap.ReplaceGlobals(prev) })

	s := New(time.Hour)
	s.SetInterval(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Loop(ctx, 5*time.Millisecond, func(context.Context) error {
			cancel()
			return nil
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
	entries := logs.FilterMessage("Scheduled run starting").All()
	if assert.NotEmpty(t, entries) {
		assert.Equal(t, time.Millisecond, entries[0].ContextMap()["interval"])
	}
}
