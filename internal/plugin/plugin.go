// Package plugin defines the Language Plugin Contract (spec §4.4): the
// abstract capability set every language plugin implements, plus a
// Registry that discovers the right plugin by file extension. This mirrors
// codeNERD's CodeParser/ParserFactory pair (internal/world/parser_interface.go,
// internal/world/parser_factory.go) but generalizes "parse into
// CodeElements" into "plan and rewrite refactors" — parsing is only one of
// several capability probes a refactoring plugin exposes.
package plugin

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/refakt/refakt/internal/model"
)

// Metadata describes a plugin's identity.
type Metadata struct {
	Name       string
	Extensions []string
}

// RenameInfo carries renaming context a plugin needs to rewrite qualified
// paths or crate/package names consistently (e.g. Rust's
// old_crate::module::fn -> new_crate::module::fn).
type RenameInfo struct {
	OldCrateName string
	NewCrateName string
}

// Reference is one located hit from a ModuleReferenceScanner.
type Reference struct {
	Location  model.EditLocation
	Text      string
	InString  bool
	InComment bool
}

// ExtractResult is the outcome of plan_extract_* — a self-contained edit
// plan (new declaration + call-site rewrite) a plugin produces for its
// language.
type ExtractResult struct {
	Plan model.EditPlan
}

// RefactoringProvider is the capability probe for AST-level refactor
// planning. A plugin that cannot support one of these methods simply does
// not implement RefactoringProvider (absence means "not supported" per
// spec §4.4), or returns an apierr error with CodeUnsupported.
type RefactoringProvider interface {
	PlanInlineVariable(path string, content []byte, loc model.EditLocation) (*ExtractResult, error)
	PlanExtractFunction(path string, content []byte, sel model.EditLocation, newName string) (*ExtractResult, error)
	PlanExtractVariable(path string, content []byte, sel model.EditLocation, newName string) (*ExtractResult, error)
	PlanExtractConstant(path string, content []byte, sel model.EditLocation, newName string) (*ExtractResult, error)

	// PlanRenameSymbol is the AST-level fallback the Planner uses when no
	// LSP oracle is available for the file's extension (spec §4.6).
	PlanRenameSymbol(path string, content []byte, loc model.EditLocation, newName string) (*ExtractResult, error)
}

// ModuleExtractor is the optional, per-plugin extract_module capability.
type ModuleExtractor interface {
	PlanExtractModule(path string, content []byte, sel model.EditLocation, newModuleName string) (*ExtractResult, error)
}

// RewriteResult is the outcome of a reference-rewrite call: the plugin's
// new content for the file plus how many references changed.
type RewriteResult struct {
	Content string
	Changes int
}

// ImportSupport is the capability probe for import parsing and rewriting.
type ImportSupport interface {
	// ParseImports extracts the raw specifiers a file imports.
	ParseImports(content []byte) ([]model.ImportInfo, error)

	// UpdateImportReference rewrites content to reflect a manifest-level
	// dependency rename (e.g. a package.json/Cargo.toml name change).
	UpdateImportReference(path string, content []byte, dep model.DependencyUpdate) ([]byte, error)

	// RewriteFileReferences rewrites every import/reference to oldPath as
	// newPath inside content. Returns nil if nothing changed.
	RewriteFileReferences(content []byte, oldPath, newPath, file, projectRoot string, rename *RenameInfo) (*RewriteResult, error)
}

// BatchRename is one (old, new) path pair for a batch rewrite call.
type BatchRename struct {
	OldPath string
	NewPath string
}

// BatchImportSupport is the single-pass API used for large moves (spec
// §4.4); plugins that do not implement it are driven in a loop by the
// Reference Updater instead.
type BatchImportSupport interface {
	RewriteFileReferencesBatch(content []byte, renames []BatchRename, file, projectRoot string, rename *RenameInfo) (*RewriteResult, error)
}

// ModuleReferenceScanner locates bare occurrences of a module/crate name
// in code, doc-comments, comments or string literals, depending on scope.
type ModuleReferenceScanner interface {
	ScanModuleReferences(content []byte, moduleName string, scope model.ScanScope) ([]Reference, error)
}

// DirectoryMoveResult is what a workspace plugin reports for a directory
// move of a package it understands.
type DirectoryMoveResult struct {
	ManifestEdits   []model.TextEdit
	RenameInfo      *RenameInfo
	IsConsolidation bool
}

// WorkspaceSupport is the capability probe for package/workspace-level
// operations (Cargo workspaces, npm workspaces, Go modules, ...).
type WorkspaceSupport interface {
	IsPackage(path string) bool
	PlanDirectoryMove(oldPath, newPath, root string) (*DirectoryMoveResult, error)
	AddWorkspaceMember(manifestContent []byte, member string) ([]byte, error)
	RemoveWorkspaceMember(manifestContent []byte, member string) ([]byte, error)
	ListWorkspaceMembers(manifestContent []byte) ([]string, error)
	UpdatePackageName(manifestContent []byte, newName string) ([]byte, error)
	MergeDependencies(intoManifest, fromManifest []byte) ([]byte, error)
}

// ManifestUpdater is the capability probe for rewriting a dependency's
// name/version inside a manifest, or generating one from scratch.
type ManifestUpdater interface {
	UpdateDependency(manifestContent []byte, oldName, newName, newVersion string) ([]byte, error)
	GenerateManifest(packageName string, deps map[string]string) ([]byte, error)
}

// Plugin is the full capability set a language plugin may implement.
// Capability probes are all optional; a plugin type-asserts on the
// interfaces it supports (the same "attribute sniffing replaced by
// interface objects" idiom codeNERD's CodeParser registry uses).
type Plugin interface {
	Metadata() Metadata
	HandlesExtension(ext string) bool
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Registry discovers the plugin responsible for a file by its extension.
// Constructed at startup and immutable thereafter, matching spec §5's
// "language-plugin registries are constructed at startup and are
// immutable thereafter" shared-resource rule.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
	all     []Plugin
}

// NewRegistry returns an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register associates plugin with every extension in its Metadata, in
// registration order (later registrations for the same extension win,
// matching codeNERD's ParserFactory.Register semantics).
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.all = append(r.all, p)
	for _, ext := range p.Metadata().Extensions {
		r.plugins[normalizeExtension(ext)] = p
	}
}

// For returns the plugin registered for path's extension, or nil.
func (r *Registry) For(path string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.plugins[normalizeExtension(filepath.Ext(path))]
}

// All returns every registered plugin in registration order.
func (r *Registry) All() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, len(r.all))
	copy(out, r.all)
	return out
}

// Extensions returns every extension with a registered plugin.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.plugins))
	for ext := range r.plugins {
		out = append(out, ext)
	}
	return out
}
