package pathresolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refakt/refakt/internal/plugin"
	"github.com/refakt/refakt/internal/plugin/goplugin"
)

func setupProject(t *testing.T) (string, []string) {
	t.Helper()
	dir := t.TempDir()

	main := filepath.Join(dir, "main.go")
	utils := filepath.Join(dir, "utils.go")

	require.NoError(t, os.WriteFile(main, []byte("package main\n\nimport \"./utils\"\n\nfunc main() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(utils, []byte("package main\n"), 0o644))

	return dir, []string{main, utils}
}

func TestResolveRelative(t *testing.T) {
	dir, files := setupProject(t)
	reg := plugin.NewRegistry()
	reg.Register(goplugin.New(dir))

	r := New(dir, reg)
	resolved := r.Resolve("./utils", files[0], files)
	assert.Equal(t, files[1], resolved)
}

func TestResolveUnknownSpecifierReturnsEmpty(t *testing.T) {
	dir, files := setupProject(t)
	reg := plugin.NewRegistry()
	reg.Register(goplugin.New(dir))

	r := New(dir, reg)
	resolved := r.Resolve("./does-not-exist", files[0], files)
	assert.Empty(t, resolved)
}

func TestResolveCacheInvalidation(t *testing.T) {
	dir, files := setupProject(t)
	reg := plugin.NewRegistry()
	reg.Register(goplugin.New(dir))

	r := New(dir, reg)
	first := r.Resolve("./utils", files[0], files)
	require.NotEmpty(t, first)

	r.Invalidate(files[0])

	second := r.Resolve("./utils", files[0], files)
	assert.Equal(t, first, second, "expected stable resolution after invalidate+reresolve")
}

func TestFindAffectedFiles(t *testing.T) {
	dir, files := setupProject(t)
	reg := plugin.NewRegistry()
	reg.Register(goplugin.New(dir))

	r := New(dir, reg)
	affected := r.FindAffectedFiles(files[1], files)
	require.Len(t, affected, 1)
	assert.Equal(t, files[0], affected[0])
}

func TestFindAffectedFilesForRename(t *testing.T) {
	dir, files := setupProject(t)
	reg := plugin.NewRegistry()
	reg.Register(goplugin.New(dir))

	r := New(dir, reg)
	affected := r.FindAffectedFilesForRename(files[1], filepath.Join(dir, "renamed_utils.go"), files)
	require.Len(t, affected, 1)
	assert.Equal(t, files[0], affected[0])
}
