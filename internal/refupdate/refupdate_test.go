package refupdate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refakt/refakt/internal/pathresolver"
	"github.com/refakt/refakt/internal/plugin"
	"github.com/refakt/refakt/internal/plugin/tsplugin"
)

func setupProject(t *testing.T) (string, string, string) {
	t.Helper()
	dir := t.TempDir()

	main := filepath.Join(dir, "main.ts")
	utilsFile := filepath.Join(dir, "utils.ts")

	require.NoError(t, os.WriteFile(main, []byte("import { helper } from './utils';\nhelper();\n"), 0o644))
	require.NoError(t, os.WriteFile(utilsFile, []byte("export function helper() {}\n"), 0o644))

	return dir, main, utilsFile
}

func TestUpdateFileRename(t *testing.T) {
	dir, main, utilsFile := setupProject(t)

	reg := plugin.NewRegistry()
	reg.Register(tsplugin.New(dir))
	resolver := pathresolver.New(dir, reg)

	u := New(dir, reg, resolver, nil)

	newUtilsFile := filepath.Join(filepath.Dir(utilsFile), "renamed_utils.ts")
	plan, err := u.Update(context.Background(), Request{
		OldPath: utilsFile,
		NewPath: newUtilsFile,
	})
	require.NoError(t, err)

	found := false
	for _, e := range plan.Edits {
		if e.File(plan.SourceFile) == main {
			found = true
		}
	}
	assert.True(t, found, "expected an edit against main.ts, got %+v", plan.Edits)
}

func TestUpdateNoAffectedFilesProducesEmptyPlan(t *testing.T) {
	dir, _, _ := setupProject(t)

	reg := plugin.NewRegistry()
	reg.Register(tsplugin.New(dir))
	resolver := pathresolver.New(dir, reg)

	u := New(dir, reg, resolver, nil)

	plan, err := u.Update(context.Background(), Request{
		OldPath: filepath.Join(dir, "nonexistent.ts"),
		NewPath: filepath.Join(dir, "also_nonexistent.ts"),
	})
	require.NoError(t, err)
	assert.Empty(t, plan.Edits)
}
