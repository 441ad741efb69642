package model

// IgnoredDirs is the canonical default-walk ignore set (spec §6): every
// project walk (Planner, Reference Updater) skips these directories rather
// than descending into them, whether or not they carry a leading dot.
var IgnoredDirs = map[string]bool{
	".git":          true,
	".next":         true,
	".pytest_cache": true,
	".tox":          true,
	".venv":         true,
	".build":        true,
	"__pycache__":   true,
	"build":         true,
	"dist":          true,
	"node_modules":  true,
	"target":        true,
	"venv":          true,
}
