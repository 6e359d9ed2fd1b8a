package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeAt(t *testing.T, path, content string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModePoll, "poll": ModePoll, "Notify": ModeNotify, "fsnotify": ModeNotify} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseMode("inotify")
	require.Error(t, err)
}

func TestPollerDetectsModification(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shader.glsl")
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	writeAt(t, path, "a", base)

	p := NewPoller(path, 0)
	require.False(t, p.Changed())

	writeAt(t, path, "b", base.Add(time.Second))
	require.True(t, p.Changed())
	require.False(t, p.Changed(), "a reported change is consumed")
}

func TestPollerSyncHidesOwnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shader.glsl")
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	writeAt(t, path, "a", base)
	p := NewPoller(path, 0)

	writeAt(t, path, "ours", base.Add(time.Second))
	p.Sync()
	require.False(t, p.Changed())
}

func TestPollerMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "later.glsl")
	p := NewPoller(path, 0)
	require.False(t, p.Changed())

	writeAt(t, path, "x", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.True(t, p.Changed())

	require.NoError(t, os.Remove(path))
	require.False(t, p.Changed())
}

func TestPollerInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shader.glsl")
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	writeAt(t, path, "a", base)

	clock := base
	p := NewPoller(path, time.Second)
	p.now = func() time.Time { return clock }
	require.False(t, p.Changed())

	writeAt(t, path, "b", base.Add(time.Minute))
	clock = clock.Add(500 * time.Millisecond)
	require.False(t, p.Changed(), "checked again before the interval elapsed")

	clock = clock.Add(time.Second)
	require.True(t, p.Changed())
}

func TestNotifierDetectsModification(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shader.glsl")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	n, err := NewNotifier(path)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, n.Close()) })
	require.False(t, n.Changed())

	// unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	require.Never(t, n.Changed, 200*time.Millisecond, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("changed content"), 0o644))
	require.Eventually(t, n.Changed, 5*time.Second, 20*time.Millisecond)
}

func TestNotifierSyncHidesOwnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shader.glsl")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	n, err := NewNotifier(path)
	require.NoError(t, err)
	defer n.Close()

	require.NoError(t, os.WriteFile(path, []byte("written by us"), 0o644))
	n.Sync()
	require.Never(t, n.Changed, 300*time.Millisecond, 20*time.Millisecond)
}

func TestNotifierCloseTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shader.glsl")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))
	n, err := NewNotifier(path)
	require.NoError(t, err)
	require.NoError(t, n.Close())
	require.NoError(t, n.Close())
}

func TestNewByMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shader.glsl")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	d, err := New(ModePoll, path, 0)
	require.NoError(t, err)
	require.IsType(t, &Poller{}, d)
	require.NoError(t, d.Close())

	d, err = New(ModeNotify, path, 0)
	require.NoError(t, err)
	require.IsType(t, &Notifier{}, d)
	require.NoError(t, d.Close())
}
