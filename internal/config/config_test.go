package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refakt/refakt/internal/model"
)

func TestLoadMissingConfigReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.False(t, cfg.Logging.DebugMode, "expected debug_mode false by default")
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadParsesConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, DirName), 0o755))
	content := `{"logging": {"debug_mode": true, "level": "debug", "categories": {"executor": true}}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DirName, "config.json"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, cfg.Logging.DebugMode)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Categories["executor"])
}

func TestLoadInvalidConfigIsAnError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, DirName), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DirName, "config.json"), []byte("not json"), 0o644))
	_, err := Load(dir)
	require.Error(t, err)
}

func TestLoadRecipesMissingDirectoryIsEmpty(t *testing.T) {
	dir := t.TempDir()
	registry, err := LoadRecipes(dir)
	require.NoError(t, err)
	_, err = registry.Expand(model.Intent{Name: "anything"})
	require.Error(t, err, "expected an unknown-recipe error from an empty registry")
}

func TestLoadRecipesParsesYAMLFiles(t *testing.T) {
	dir := t.TempDir()
	recipesDir := filepath.Join(dir, DirName, "recipes")
	require.NoError(t, os.MkdirAll(recipesDir, 0o755))
	yamlContent := `
name_template: "extract {symbol}"
required_params: ["symbol"]
steps:
  - tool: extract_function
    params_template:
      symbol: "{symbol}"
    description_template: "Extract {symbol}"
`
	require.NoError(t, os.WriteFile(filepath.Join(recipesDir, "extract.yaml"), []byte(yamlContent), 0o644))

	registry, err := LoadRecipes(dir)
	require.NoError(t, err)
	wf, err := registry.Expand(model.Intent{Name: "extract", Params: map[string]any{"symbol": "helper"}})
	require.NoError(t, err)
	assert.Equal(t, "extract helper", wf.Name)
}
