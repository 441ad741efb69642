package opqueue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refakt/refakt/internal/apierr"
	"github.com/refakt/refakt/internal/model"
)

func TestEnqueueWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	q := New(dir)
	defer q.Close()

	target := filepath.Join(dir, "a.txt")
	err := q.Enqueue(model.FileOperation{
		OperationType: model.OpWrite,
		FilePath:      target,
		Params:        map[string]any{"content": "hello"},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	stats := q.Stats()
	assert.EqualValues(t, 1, stats.Completed)
}

func TestEnqueueRenameAndDelete(t *testing.T) {
	dir := t.TempDir()
	q := New(dir)
	defer q.Close()

	src := filepath.Join(dir, "old.txt")
	dst := filepath.Join(dir, "new.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	require.NoError(t, q.Enqueue(model.FileOperation{
		OperationType: model.OpRename,
		FilePath:      src,
		Params:        map[string]any{"new_path": dst},
	}))
	_, err := os.Stat(dst)
	require.NoError(t, err, "expected renamed file to exist")

	require.NoError(t, q.Enqueue(model.FileOperation{OperationType: model.OpDelete, FilePath: dst}))
	_, err = os.Stat(dst)
	assert.True(t, os.IsNotExist(err), "expected file to be gone, stat err: %v", err)
}

func TestPathGuardRejectsEscape(t *testing.T) {
	dir := t.TempDir()
	q := New(dir)
	defer q.Close()

	outside := filepath.Join(filepath.Dir(dir), "outside.txt")
	err := q.Enqueue(model.FileOperation{
		OperationType: model.OpWrite,
		FilePath:      outside,
		Params:        map[string]any{"content": "nope"},
	})
	require.Error(t, err)
	assert.True(t, apierr.HasCode(err, apierr.CodePermissionDenied), "expected permission_denied code, got %v", err)
}

func TestCreateDir(t *testing.T) {
	dir := t.TempDir()
	q := New(dir)
	defer q.Close()

	target := filepath.Join(dir, "nested", "sub")
	require.NoError(t, q.Enqueue(model.FileOperation{OperationType: model.OpCreateDir, FilePath: target}))
	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
