// Package config loads refakt's on-disk configuration: the logging/debug
// settings at .refakt/config.json and the Workflow Planner's recipe
// catalogue at .refakt/recipes/*.yaml, following codeNERD's loadConfig()
// shape (find project-local dotfile, unmarshal, apply defaults) and
// jamesonstone-kit's gopkg.in/yaml.v3-backed Config loader
// (internal/config/config.go) for the recipe side.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/refakt/refakt/internal/apierr"
	"github.com/refakt/refakt/internal/workflowplanner"
)

// DirName is the dotfile directory every refakt workspace keeps its
// configuration, logs and recipes under.
const DirName = ".refakt"

// LoggingConfig mirrors the shape internal/logging reads directly from
// .refakt/config.json; it is re-exposed here so callers (e.g. the CLI)
// can inspect or print it without importing the logging package's
// unexported config type.
type LoggingConfig struct {
	DebugMode  bool            `json:"debug_mode"`
	Categories map[string]bool `json:"categories,omitempty"`
	Level      string          `json:"level"`
	JSONFormat bool            `json:"json_format"`
}

// Config is the top-level shape of .refakt/config.json.
type Config struct {
	Logging LoggingConfig `json:"logging"`
}

// Default returns the conservative default configuration: logging off,
// info level, text format.
func Default() *Config {
	return &Config{Logging: LoggingConfig{DebugMode: false, Level: "info"}}
}

// Load reads <projectRoot>/.refakt/config.json. A missing file is not an
// error: it yields Default().
func Load(projectRoot string) (*Config, error) {
	path := filepath.Join(projectRoot, DirName, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, apierr.Wrap(apierr.CodeInternal, err, "read %s", path)
	}
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, apierr.Wrap(apierr.CodeInvalidRequest, err, "parse %s", path)
	}
	return cfg, nil
}

// LoadRecipes reads every .yaml/.yml file under
// <projectRoot>/.refakt/recipes/ and returns a workflowplanner.Registry
// keyed by recipe name (the file's base name, extension stripped). A
// missing recipes directory yields an empty registry rather than an
// error — workflows are an optional capability.
func LoadRecipes(projectRoot string) (*workflowplanner.Registry, error) {
	dir := filepath.Join(projectRoot, DirName, "recipes")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return workflowplanner.NewRegistry(nil), nil
		}
		return nil, apierr.Wrap(apierr.CodeInternal, err, "read %s", dir)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	recipes := make(map[string]workflowplanner.Recipe, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, apierr.Wrap(apierr.CodeInternal, err, "read recipe %s", name)
		}
		var recipe workflowplanner.Recipe
		if err := yaml.Unmarshal(data, &recipe); err != nil {
			return nil, apierr.Wrap(apierr.CodeInvalidRequest, err, "parse recipe %s", name)
		}
		base := strings.TrimSuffix(name, filepath.Ext(name))
		recipes[base] = recipe
	}

	return workflowplanner.NewRegistry(recipes), nil
}
