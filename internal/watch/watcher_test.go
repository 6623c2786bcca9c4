package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidsconv/internal/errors"
	"bidsconv/internal/patterns"
)

const (
	goodConfig = `{"searchMethod": "re", "descriptions": [{"dataType": "anat", "modalityLabel": "T1w", "criteria": {"SeriesDescription": "T1_SAG"}}]}`
	badConfig  = `{"searchMethod": "re", "descriptions": [{"dataType": "anat", "modalityLabel": "T1w", "criteria": {"SeriesDescription": "((invalid regex"}}]}`
)

func nextEvent(t *testing.T, ch <-chan ValidationEvent) ValidationEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "event channel closed unexpectedly")
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("Timeout waiting for validation event")
	}
	return ValidationEvent{}
}

func TestWatcherRevalidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(goodConfig), 0644))

	w, err := New(path, patterns.New())
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()
	assert.True(t, w.IsRunning())

	// Initial validation on start
	ev := nextEvent(t, w.Events())
	assert.True(t, ev.Valid())
	assert.Equal(t, w.Path(), ev.Path)

	// Allow a brief moment for fsnotify to initialize watches
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(badConfig), 0644))
	deadline := time.After(3 * time.Second)
	for {
		ev = nextEvent(t, w.Events())
		if !ev.Valid() {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Timeout waiting for invalid config event")
		default:
		}
	}
	require.NotEmpty(t, ev.Issues)
	assert.Contains(t, ev.Issues[0], "Invalid regex")

	// Unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0644))
	select {
	case ev := <-w.Events():
		assert.Equal(t, w.Path(), ev.Path)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherReportsLoadErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	w, err := New(path, patterns.New())
	require.NoError(t, err)

	ev := w.Check()
	require.Error(t, ev.Err)
	assert.True(t, errors.IsConfigNotFound(ev.Err))
	assert.False(t, ev.Valid())

	require.NoError(t, os.WriteFile(path, []byte(`{"searchMethod": `), 0644))
	ev = w.Check()
	assert.True(t, errors.IsConfigMalformed(ev.Err))
}

func TestWatcherLifecycle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(goodConfig), 0644))

	w, err := New(path, patterns.New(), WithBuffer(1))
	require.NoError(t, err)

	require.NoError(t, w.Start())
	assert.Error(t, w.Start(), "second start should fail")

	w.Stop()
	assert.False(t, w.IsRunning())
	w.Stop() // idempotent

	// Channel is closed once the loop exits
	for range w.Events() {
	}
	assert.Error(t, w.Start(), "stopped watcher cannot restart")
}

func TestNewMissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing", "config.json"), patterns.New())
	assert.Error(t, err)
}
