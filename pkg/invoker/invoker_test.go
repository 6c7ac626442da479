package invoker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_err"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestRunUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("success runs in exe dir with args", func(t *testing.T) {
		exe := testutil.Script(t, t.TempDir(), "pget", "[ \"$1\" = \"--update\" ] || exit 9\necho done > marker.txt\n")
		code, err := New(zaptest.NewLogger(t), nil, time.Minute).RunUpdate(ctx, exe)
		require.NoError(t, err)
		assert.Equal(t, 0, code)
		assert.FileExists(t, filepath.Join(filepath.Dir(exe), "marker.txt"))
	})

	t.Run("non-zero exit is not an error", func(t *testing.T) {
		exe := testutil.Script(t, t.TempDir(), "pget", "echo partial\nexit 1\n")
		code, err := New(zaptest.NewLogger(t), nil, time.Minute).RunUpdate(ctx, exe)
		require.NoError(t, err)
		assert.Equal(t, 1, code)
	})

	t.Run("timeout", func(t *testing.T) {
		exe := testutil.Script(t, t.TempDir(), "pget", "sleep 10\n")
		code, err := New(zaptest.NewLogger(t), nil, 200*time.Millisecond).RunUpdate(ctx, exe)
		require.Error(t, err)
		assert.Equal(t, -1, code)
		assert.ErrorIs(t, err, execute.ErrTimeout)
		cat, ok := regen_err.CategoryOf(err)
		require.True(t, ok)
		assert.Equal(t, regen_err.CategoryTool, cat)
	})

	t.Run("cancelled ctx is an error, not an exit code", func(t *testing.T) {
		exe := testutil.Script(t, t.TempDir(), "pget", "sleep 10\n")
		cctx, cancel := context.WithCancel(ctx)
		time.AfterFunc(200*time.Millisecond, cancel)
		defer cancel()

		start := time.Now()
		code, err := New(zaptest.NewLogger(t), nil, time.Minute).RunUpdate(cctx, exe)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, -1, code)
		assert.Less(t, time.Since(start), 9*time.Second)
	})

	t.Run("output is relayed by stream", func(t *testing.T) {
		core, logs := observer.New(zap.DebugLevel)
		exe := testutil.Script(t, t.TempDir(), "pget", "echo out-line\necho err-line >&2\n")
		_, err := New(zap.New(core), []string{"--custom"}, time.Minute).RunUpdate(ctx, exe)
		require.NoError(t, err)

		out := logs.FilterMessage("out-line").All()
		require.Len(t, out, 1)
		assert.Equal(t, zap.DebugLevel, out[0].Level)

		errs := logs.FilterMessage("err-line").All()
		require.Len(t, errs, 1)
		assert.Equal(t, zap.WarnLevel, errs[0].Level)
	})

	t.Run("missing executable", func(t *testing.T) {
		code, err := New(nil, nil, time.Minute).RunUpdate(ctx, filepath.Join(t.TempDir(), "absent"))
		require.Error(t, err)
		assert.Equal(t, -1, code)
	})
}
