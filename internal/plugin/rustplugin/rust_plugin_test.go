package rustplugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refakt/refakt/internal/model"
	"github.com/refakt/refakt/internal/plugin"
)

func TestParseImportsUse(t *testing.T) {
	src := "use crate::utils::helper;\nfn main() { helper(); }\n"
	p := New("/proj")
	infos, err := p.ParseImports([]byte(src))
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "crate::utils::helper", infos[0].ModulePath)
}

func TestRewriteFileReferencesBatchRust(t *testing.T) {
	src := "use myproj::utils::helper;\nfn main() { helper(); }\n"
	p := New("/proj")
	result, err := p.RewriteFileReferencesBatch([]byte(src), []plugin.BatchRename{
		{OldPath: "/proj/src/utils.rs", NewPath: "/proj/src/renamed_utils.rs"},
	}, "/proj/src/main.rs", "/proj", nil)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "use myproj::renamed_utils::helper;\nfn main() { helper(); }\n", result.Content)
}

func TestRewriteFileReferencesBatchRustCrateRename(t *testing.T) {
	src := "use old_crate::foo;\n"
	p := New("/proj")
	result, err := p.RewriteFileReferencesBatch([]byte(src), nil, "/proj/src/main.rs", "/proj", &plugin.RenameInfo{
		OldCrateName: "old_crate",
		NewCrateName: "new_crate",
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "use new_crate::foo;\n", result.Content)
}

func TestScanModuleReferencesRust(t *testing.T) {
	src := "// utils crate\nuse utils::helper;\nutils::helper();\n"
	p := New("/proj")
	refs, err := p.ScanModuleReferences([]byte(src), "utils", model.ScanEverything)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(refs), 2, "expected at least 2 references, got %+v", refs)
}

func writeManifest(t *testing.T, content string) []byte {
	t.Helper()
	return []byte(content)
}

func TestAddAndRemoveWorkspaceMember(t *testing.T) {
	p := New("/proj")
	manifest := writeManifest(t, "[workspace]\nmembers = [\"crates/a\"]\n")

	added, err := p.AddWorkspaceMember(manifest, "crates/b")
	require.NoError(t, err)
	members, err := p.ListWorkspaceMembers(added)
	require.NoError(t, err)
	require.Len(t, members, 2)

	removed, err := p.RemoveWorkspaceMember(added, "crates/a")
	require.NoError(t, err)
	members, err = p.ListWorkspaceMembers(removed)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "crates/b", members[0])
}

func TestUpdatePackageName(t *testing.T) {
	p := New("/proj")
	manifest := writeManifest(t, "[package]\nname = \"old-name\"\nversion = \"0.1.0\"\n")
	updated, err := p.UpdatePackageName(manifest, "new-name")
	require.NoError(t, err)
	m, err := decodeManifest(updated)
	require.NoError(t, err)
	assert.Equal(t, "new-name", m.Package.Name)
}

func TestMergeDependencies(t *testing.T) {
	p := New("/proj")
	into := writeManifest(t, "[package]\nname = \"a\"\nversion = \"0.1.0\"\n\n[dependencies]\nserde = \"1.0\"\n")
	from := writeManifest(t, "[package]\nname = \"b\"\nversion = \"0.1.0\"\n\n[dependencies]\nserde = \"2.0\"\ntokio = \"1.0\"\n")

	merged, err := p.MergeDependencies(into, from)
	require.NoError(t, err)
	m, err := decodeManifest(merged)
	require.NoError(t, err)
	assert.Equal(t, "1.0", m.Dependencies["serde"], "expected into's serde version to win")
	assert.Equal(t, "1.0", m.Dependencies["tokio"], "expected tokio merged in")
}

func TestUpdateDependency(t *testing.T) {
	p := New("/proj")
	manifest := writeManifest(t, "[dependencies]\nold-dep = \"1.0\"\n")
	updated, err := p.UpdateDependency(manifest, "old-dep", "new-dep", "2.0")
	require.NoError(t, err)
	m, err := decodeManifest(updated)
	require.NoError(t, err)
	_, exists := m.Dependencies["old-dep"]
	assert.False(t, exists, "old-dep should be gone")
	assert.Equal(t, "2.0", m.Dependencies["new-dep"])
}

func TestGenerateManifest(t *testing.T) {
	p := New("/proj")
	data, err := p.GenerateManifest("new-crate", map[string]string{"serde": "1.0"})
	require.NoError(t, err)
	m, err := decodeManifest(data)
	require.NoError(t, err)
	assert.Equal(t, "new-crate", m.Package.Name)
	assert.Equal(t, "1.0", m.Dependencies["serde"])
}

func TestIsPackageAndPlanDirectoryMove(t *testing.T) {
	dir := t.TempDir()
	oldPkg := filepath.Join(dir, "old_name")
	require.NoError(t, os.MkdirAll(oldPkg, 0o755))
	manifestContent := "[package]\nname = \"old-name\"\nversion = \"0.1.0\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(oldPkg, "Cargo.toml"), []byte(manifestContent), 0o644))

	p := New(dir)
	assert.True(t, p.IsPackage(oldPkg))

	newPkg := filepath.Join(dir, "new_name")
	result, err := p.PlanDirectoryMove(oldPkg, newPkg, dir)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotNil(t, result.RenameInfo)
	assert.Equal(t, "old-name", result.RenameInfo.OldCrateName)
	assert.Equal(t, "new-name", result.RenameInfo.NewCrateName)
	require.Len(t, result.ManifestEdits, 1)
}

func TestPlanDirectoryMoveNoManifest(t *testing.T) {
	dir := t.TempDir()
	p := New(dir)
	result, err := p.PlanDirectoryMove(filepath.Join(dir, "nope"), filepath.Join(dir, "also-nope"), dir)
	require.NoError(t, err)
	assert.Nil(t, result, "expected nil result when no manifest present")
}
