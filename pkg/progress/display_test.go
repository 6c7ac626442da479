package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestOperationHeartbeat(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	prev := otelzap.L()
	otelzap.ReplaceGlobals(otelzap.New(zap.New(core)))
	t.Cleanup(func() { otelzap.ReplaceGlobals(prev) })

	op := Start(context.Background(), "Building project", 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return logs.FilterMessage("Still working").Len() > 0
	}, 2*time.Second, 5*time.Millisecond)

	elapsed := op.Done()
	assert.Greater(t, elapsed, time.Duration(0))
	assert.NotPanics(t, func() { op.Done() })
	assert.Equal(t, 1, logs.FilterMessage("Building project finished").Len())
	assert.Equal(t, 1, logs.FilterMessage("Building project started").Len())
}

func TestStartDefaultsInterval(t *testing.T) {
	op := Start(context.Background(), "x", 0)
	defer op.Done()
	assert.Equal(t, DefaultEvery, op.Every)
}
