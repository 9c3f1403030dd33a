package watch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherSettlesEvents(t *testing.T) {
	tempDir := t.TempDir()

	w, err := New(
		WithSettle(100*time.Millisecond),
		WithFilter(func(path string) bool { return strings.HasSuffix(path, ".png") }),
	)
	require.NoError(t, err, "New watcher creation failed")
	require.NoError(t, w.AddDirectory(tempDir))
	require.NoError(t, w.Start())
	defer w.Stop()

	evChan := w.FileChannel()
	time.Sleep(50 * time.Millisecond)

	// Filtered out.
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "notes.txt"), []byte("x"), 0644))

	// Several writes collapse into one settled event.
	img := filepath.Join(tempDir, "shot.png")
	f, err := os.Create(img)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = f.Write([]byte("chunk"))
		require.NoError(t, err)
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, f.Close())

	select {
	case ev, ok := <-evChan:
		require.True(t, ok, "Event channel closed unexpectedly")
		assert.Equal(t, img, ev.Path)
		assert.True(t, ev.Op.Has(fsnotify.Create), "Expected Create operation")
		require.NotNil(t, ev.Info)
		assert.Equal(t, int64(15), ev.Info.Size(), "event is delivered after the last write")
	case <-time.After(3 * time.Second):
		t.Fatal("Timeout waiting for settled event")
	}

	select {
	case ev := <-evChan:
		t.Fatalf("unexpected second event: %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherStopClosesChannel(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	require.NoError(t, w.AddDirectory(t.TempDir()))
	require.NoError(t, w.Start())
	assert.True(t, w.IsRunning())
	assert.Error(t, w.Start(), "second start fails")

	w.Stop()
	assert.False(t, w.IsRunning())

	select {
	case _, ok := <-w.FileChannel():
		assert.False(t, ok, "Event channel should be closed after stop")
	case <-time.After(1 * time.Second):
		t.Error("Timeout waiting for event channel to close after stop")
	}

	w.Stop() // idempotent
}

func TestAddDirectoryErrors(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	defer w.Stop()

	dir := t.TempDir()
	assert.Error(t, w.AddDirectory(filepath.Join(dir, "missing")))

	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	assert.Error(t, w.AddDirectory(file))

	require.NoError(t, w.AddDirectory(dir))
	require.NoError(t, w.AddDirectory(dir))
	assert.Equal(t, []string{dir}, w.GetDirectories())
}

func TestPIDFile(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, IsWatcherRunning(dir))

	p, err := AcquirePIDFile(dir)
	require.NoError(t, err)
	assert.True(t, IsWatcherRunning(dir), "our own process is alive")

	// Re-acquiring from the same process is allowed.
	again, err := AcquirePIDFile(dir)
	require.NoError(t, err)
	again.Release()
	p.Release()
	assert.False(t, IsWatcherRunning(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, pidFile), []byte("not-a-pid"), 0644))
	_, err = AcquirePIDFile(dir)
	assert.NoError(t, err, "garbage PID files are replaced")
}

func TestParsePid(t *testing.T) {
	pid, err := parsePid(" 1234\n")
	require.NoError(t, err)
	assert.Equal(t, 1234, pid)

	_, err = parsePid("abc")
	assert.Error(t, err)
	_, err = parsePid("0")
	assert.Error(t, err)
}
