package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refakt/refakt/internal/model"
)

func TestGetMissOnUnknownPath(t *testing.T) {
	c := New()
	_, ok := c.Get("/nonexistent")
	assert.False(t, ok, "expected a miss for a path never Put")
}

func TestPutThenGetHits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	c := New()
	imports := []model.ImportInfo{{ModulePath: "fmt"}}
	c.Put(path, imports)

	got, ok := c.Get(path)
	require.True(t, ok, "expected a hit after Put")
	require.Len(t, got, 1)
	assert.Equal(t, "fmt", got[0].ModulePath)
}

func TestGetMissAfterFileRewritten(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	c := New()
	c.Put(path, []model.ImportInfo{{ModulePath: "fmt"}})

	// Force a distinct mtime; some filesystems have coarse mtime
	// resolution, so bump it forward explicitly rather than sleeping.
	future := time.Now().Add(time.Second)
	require.NoError(t, os.WriteFile(path, []byte("package main\n\nimport \"os\"\n"), 0o644))
	require.NoError(t, os.Chtimes(path, future, future))

	_, ok := c.Get(path)
	assert.False(t, ok, "expected a miss after the file's mtime changed")
}

func TestEvictRemovesEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	c := New()
	c.Put(path, []model.ImportInfo{{ModulePath: "fmt"}})
	c.Evict(path)

	_, ok := c.Get(path)
	assert.False(t, ok, "expected a miss after Evict")
}

func TestStartStopWatcherEvictsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))
	defer c.Stop()

	c.Put(path, []model.ImportInfo{{ModulePath: "fmt"}})
	_, ok := c.Get(path)
	require.True(t, ok, "expected a hit immediately after Put")

	require.NoError(t, os.WriteFile(path, []byte("package main\n\nimport \"os\"\n"), 0o644))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := c.Get(path); !ok {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("expected the watcher to evict the entry after a write")
}

func TestStopOnNeverStartedCacheIsSafe(t *testing.T) {
	c := New()
	c.Stop()
}
