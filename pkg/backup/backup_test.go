package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_err"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestManager(t *testing.T, max int) (*Manager, *time.Time) {
	t.Helper()
	m := NewManager(zaptest.NewLogger(t), filepath.Join(t.TempDir(), "backups"), max, []string{"mgdb", "wild"})
	clock := time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local)
	m.now = func() time.Time { return clock }
	return m, &clock
}

func TestCreateAndList(t *testing.T) {
	ctx := context.Background()
	out := t.TempDir()
	testutil.WriteFile(t, "mg", out, "mgdb", "wc8.pkl")
	testutil.WriteFile(t, "wild", out, "wild", "encounter_go_home.pkl")
	testutil.WriteFile(t, "skip", out, "wild", "readme.txt")

	m, clock := newTestManager(t, 10)
	snap, err := m.Create(ctx, out)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "backup_20250314_092653", snap.Name)
	assert.Equal(t, 2, snap.Files)
	assert.FileExists(t, filepath.Join(snap.Path, "mgdb", "wc8.pkl"))
	assert.NoFileExists(t, filepath.Join(snap.Path, "wild", "readme.txt"))

	// same second: suffixed
	second, err := m.Create(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, "backup_20250314_092653_2", second.Name)

	*clock = clock.Add(time.Hour)
	third, err := m.Create(ctx, out)
	require.NoError(t, err)

	list, err := m.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, third.Name, list[0].Name)
	assert.Equal(t, second.Name, list[1].Name)
	assert.Equal(t, snap.Name, list[2].Name)
	assert.Equal(t, 2, list[0].Files)
}

func TestCreateNothingToBackUp(t *testing.T) {
	m, _ := newTestManager(t, 10)
	snap, err := m.Create(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, snap)

	list, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	out := t.TempDir()
	testutil.WriteFile(t, "x", out, "mgdb", "a.pkl")

	m, clock := newTestManager(t, 2)
	var names []string
	for i := 0; i < 4; i++ {
		s, err := m.Create(ctx, out)
		require.NoError(t, err)
		names = append(names, s.Name)
		*clock = clock.Add(time.Minute)
	}

	list, err := m.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, names[3], list[0].Name)
	assert.Equal(t, names[2], list[1].Name)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	out := t.TempDir()
	testutil.WriteFile(t, "good", out, "mgdb", "wc8.pkl")
	testutil.WriteFile(t, "good-wild", out, "wild", "x.pkl")

	m, _ := newTestManager(t, 10)
	snap, err := m.Create(ctx, out)
	require.NoError(t, err)

	testutil.WriteFile(t, "corrupted", out, "mgdb", "wc8.pkl")
	require.NoError(t, os.RemoveAll(filepath.Join(out, "wild")))

	n, err := m.Restore(ctx, snap.Name, out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(filepath.Join(out, "mgdb", "wc8.pkl"))
	require.NoError(t, err)
	assert.Equal(t, "good", string(data))
	assert.FileExists(t, filepath.Join(out, "wild", "x.pkl"))
}

func TestRestoreUnknown(t *testing.T) {
	m, _ := newTestManager(t, 10)
	_, err := m.Restore(context.Background(), "backup_19990101_000000", t.TempDir())
	assert.True(t, regen_err.IsExpectedUserError(err))

	_, err = m.Restore(context.Background(), "../etc", t.TempDir())
	assert.True(t, regen_err.IsExpectedUserError(err))
}
