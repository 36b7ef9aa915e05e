package templates

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatcher_ReloadsOnChange(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	path := filepath.Join(dir, "keywords.yaml")
	require.NoError(t, os.WriteFile(path, []byte("non_food: [tip]\n"), 0o644))

	first, err := LoadDir(dir)
	require.NoError(t, err)
	h := NewHolder(first)

	w, err := NewWatcher(dir, h)
	require.NoError(t, err)
	w.SetDebounce(10 * time.Millisecond)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(path, []byte("non_food: [tip, soap]\n"), 0o644))
	require.Eventually(t, func() bool {
		return h.Current().Version != first.Version
	}, 5*time.Second, 20*time.Millisecond)
	assert.Len(t, h.Current().Keywords(KeywordsNonFood), 2)

	reloaded := h.Current()
	require.NoError(t, os.WriteFile(path, []byte("non_food: [unterminated\n"), 0o644))
	require.Eventually(t, func() bool {
		_, failed := w.Stats()
		return failed > 0
	}, 5*time.Second, 20*time.Millisecond)
	assert.Same(t, reloaded, h.Current())

	w.Stop()
	reloads, _ := w.Stats()
	assert.GreaterOrEqual(t, reloads, 1)
}

func TestWatcher_IgnoresNonYAML(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	snap, err := LoadDir(dir)
	require.NoError(t, err)
	h := NewHolder(snap)

	w, err := NewWatcher(dir, h)
	require.NoError(t, err)
	w.SetDebounce(5 * time.Millisecond)
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	time.Sleep(150 * time.Millisecond)
	w.Stop()

	reloads, failed := w.Stats()
	assert.Zero(t, reloads)
	assert.Zero(t, failed)
	assert.Same(t, snap, h.Current())
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	w, err := NewWatcher(t.TempDir(), NewHolder(&Snapshot{}))
	require.NoError(t, err)
	w.Stop()
}

func TestWatcher_ContextCancelStopsLoop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	snap, err := Default()
	require.NoError(t, err)
	w, err := NewWatcher(t.TempDir(), NewHolder(snap))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()
	w.Stop()
}
