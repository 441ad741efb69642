// Package rustplugin implements the Language Plugin Contract for Rust
// source and Cargo manifests. Code-element structure is grounded on
// codeNERD's RustCodeParser (internal/world/rust_parser.go); manifest
// handling (workspace_support, manifest_updater) is new — Cargo.toml is
// TOML, and github.com/BurntSushi/toml is the TOML codec the example pack
// already depends on directly (emergent-company-specmcp's
// internal/config/config.go), so it is wired in here rather than
// hand-rolling a TOML parser.
package rustplugin

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/refakt/refakt/internal/apierr"
	"github.com/refakt/refakt/internal/importutil"
	"github.com/refakt/refakt/internal/model"
	"github.com/refakt/refakt/internal/plugin"
)

// RustPlugin implements plugin.Plugin, plugin.ImportSupport,
// plugin.ModuleReferenceScanner, plugin.WorkspaceSupport and
// plugin.ManifestUpdater.
type RustPlugin struct {
	ProjectRoot string
}

// New returns a Rust plugin rooted at projectRoot.
func New(projectRoot string) *RustPlugin {
	return &RustPlugin{ProjectRoot: projectRoot}
}

func (p *RustPlugin) Metadata() plugin.Metadata {
	return plugin.Metadata{Name: "rust", Extensions: []string{".rs"}}
}

func (p *RustPlugin) HandlesExtension(ext string) bool {
	return strings.EqualFold(ext, ".rs")
}

var useLineRe = regexp.MustCompile(`^\s*use\s+([a-zA-Z0-9_:]+)`)

// ParseImports extracts `use` statement paths. Rust `use` declarations are
// line-oriented enough that a targeted regex (rather than a full syn-style
// parse) is the same tradeoff codeNERD's line-based codedom tools make.
func (p *RustPlugin) ParseImports(content []byte) ([]model.ImportInfo, error) {
	var out []model.ImportInfo
	lines := importutil.SplitLines(string(content))
	for i, line := range lines {
		m := useLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		out = append(out, model.ImportInfo{
			ModulePath: m[1],
			ImportType: model.ImportNamed,
			Location:   model.EditLocation{StartLine: i, StartCol: 0, EndLine: i, EndCol: len(line)},
		})
	}
	return out, nil
}

// UpdateImportReference rewrites a crate-name rename inside `use` paths.
func (p *RustPlugin) UpdateImportReference(path string, content []byte, dep model.DependencyUpdate) ([]byte, error) {
	if dep.OldName == "" || dep.NewName == "" {
		return content, nil
	}
	text, _ := importutil.ReplaceInLines(string(content), "use "+dep.OldName, "use "+dep.NewName)
	return []byte(text), nil
}

// RewriteFileReferences is a single-rename convenience wrapper over the
// batch API.
func (p *RustPlugin) RewriteFileReferences(content []byte, oldPath, newPath, file, projectRoot string, rename *plugin.RenameInfo) (*plugin.RewriteResult, error) {
	return p.RewriteFileReferencesBatch(content, []plugin.BatchRename{{OldPath: oldPath, NewPath: newPath}}, file, projectRoot, rename)
}

// RewriteFileReferencesBatch updates `mod` paths derived from renamed
// files, plus (per spec §4.5 step 6) fully-qualified `old_crate::...`
// paths when rename carries a crate rename.
func (p *RustPlugin) RewriteFileReferencesBatch(content []byte, renames []plugin.BatchRename, file, projectRoot string, rename *plugin.RenameInfo) (*plugin.RewriteResult, error) {
	text := string(content)
	total := 0
	for _, rn := range renames {
		oldMod := modPathFor(rn.OldPath, projectRoot)
		newMod := modPathFor(rn.NewPath, projectRoot)
		if oldMod == "" || oldMod == newMod {
			continue
		}
		if strings.Contains(text, oldMod) {
			total += strings.Count(text, oldMod)
			text = strings.ReplaceAll(text, oldMod, newMod)
		}
	}
	if rename != nil && rename.OldCrateName != "" && rename.NewCrateName != "" && rename.OldCrateName != rename.NewCrateName {
		oldQualified := rename.OldCrateName + "::"
		newQualified := rename.NewCrateName + "::"
		if strings.Contains(text, oldQualified) {
			total += strings.Count(text, oldQualified)
			text = strings.ReplaceAll(text, oldQualified, newQualified)
		}
	}
	if total == 0 {
		return nil, nil
	}
	return &plugin.RewriteResult{Content: text, Changes: total}, nil
}

func modPathFor(path, projectRoot string) string {
	rel := strings.TrimPrefix(path, projectRoot)
	rel = strings.TrimPrefix(rel, "/")
	rel = strings.TrimPrefix(rel, "src/")
	rel = strings.TrimSuffix(rel, ".rs")
	rel = strings.TrimSuffix(rel, "/mod")
	return strings.ReplaceAll(rel, "/", "::")
}

// ScanModuleReferences finds bare crate-name mentions across code,
// comments and strings depending on scope.
func (p *RustPlugin) ScanModuleReferences(content []byte, moduleName string, scope model.ScanScope) ([]plugin.Reference, error) {
	var refs []plugin.Reference
	lines := importutil.SplitLines(string(content))
	qualified := moduleName + "::"

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		isComment := strings.HasPrefix(trimmed, "//")

		if isComment {
			if scope == model.ScanComments || scope == model.ScanStandard || scope == model.ScanEverything {
				if idx := strings.Index(line, moduleName); idx >= 0 {
					refs = append(refs, plugin.Reference{
						Location:  model.EditLocation{StartLine: i, StartCol: idx, EndLine: i, EndCol: idx + len(moduleName)},
						Text:      moduleName,
						InComment: true,
					})
				}
			}
			continue
		}
		if scope == model.ScanCode || scope == model.ScanStandard || scope == model.ScanEverything {
			if idx := strings.Index(line, qualified); idx >= 0 {
				refs = append(refs, plugin.Reference{
					Location: model.EditLocation{StartLine: i, StartCol: idx, EndLine: i, EndCol: idx + len(qualified)},
					Text:     qualified,
				})
			}
		}
	}
	return refs, nil
}

// cargoManifest is a deliberately partial view of Cargo.toml: enough to
// drive workspace member lists, package identity and plain
// (string-version) dependencies. Dependencies decode only as
// name = "version" strings: a manifest whose dependency entries are
// tables (features, path, ...) fails to decode and the calling method
// returns that error. Sections not listed here are dropped on re-encode.
type cargoManifest struct {
	Package *struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
	} `toml:"package"`
	Dependencies map[string]string `toml:"dependencies,omitempty"`
	Workspace    *struct {
		Members []string `toml:"members"`
	} `toml:"workspace,omitempty"`
}

func decodeManifest(content []byte) (*cargoManifest, error) {
	var m cargoManifest
	if _, err := toml.Decode(string(content), &m); err != nil {
		return nil, apierr.Wrap(apierr.CodeInvalidRequest, err, "decode Cargo.toml")
	}
	return &m, nil
}

func encodeManifest(m *cargoManifest) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return nil, apierr.Wrap(apierr.CodeInternal, err, "encode Cargo.toml")
	}
	return buf.Bytes(), nil
}

// IsPackage reports whether path is a directory containing a Cargo.toml.
// This is a read-only filesystem probe, not a mutation.
func (p *RustPlugin) IsPackage(path string) bool {
	_, err := os.Stat(filepath.Join(path, "Cargo.toml"))
	return err == nil
}

// PlanDirectoryMove inspects oldPath's Cargo.toml (if any) and reports the
// rename info a directory move should carry: the crate name derived from
// the manifest, used by RewriteFileReferencesBatch's qualified-path sweep.
func (p *RustPlugin) PlanDirectoryMove(oldPath, newPath, root string) (*plugin.DirectoryMoveResult, error) {
	manifestPath := filepath.Join(oldPath, "Cargo.toml")
	content, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apierr.Wrap(apierr.CodeInternal, err, "read Cargo.toml at %s", oldPath)
	}

	m, err := decodeManifest(content)
	if err != nil {
		return nil, err
	}
	if m.Package == nil {
		return nil, nil
	}

	oldName := m.Package.Name
	newName := oldName
	if filepath.Base(oldPath) != filepath.Base(newPath) {
		newName = sanitizeCrateName(filepath.Base(newPath))
	}

	result := &plugin.DirectoryMoveResult{
		RenameInfo: &plugin.RenameInfo{OldCrateName: oldName, NewCrateName: newName},
	}

	if newName != oldName {
		m.Package.Name = newName
		updated, err := encodeManifest(m)
		if err != nil {
			return nil, err
		}
		result.ManifestEdits = append(result.ManifestEdits, model.TextEdit{
			FilePath:    manifestPath,
			EditType:    model.EditReplace,
			NewText:     string(updated),
			Description: fmt.Sprintf("rename package %s -> %s", oldName, newName),
		})
	}

	// A directory move that lands inside another package's source tree is
	// a consolidation: the workspace root's manifest gains/loses a member
	// rather than the moved directory keeping its own package identity.
	rootManifestPath := filepath.Join(root, "Cargo.toml")
	if rootContent, err := os.ReadFile(rootManifestPath); err == nil {
		if rootManifest, err := decodeManifest(rootContent); err == nil && rootManifest.Workspace != nil {
			if isMemberPath(newPath, root, rootManifest.Workspace.Members) {
				result.IsConsolidation = true
			}
		}
	}

	return result, nil
}

func isMemberPath(path, root string, members []string) bool {
	rel := strings.TrimPrefix(strings.TrimPrefix(path, root), "/")
	for _, m := range members {
		if strings.HasPrefix(rel, strings.TrimSuffix(m, "/*")) {
			return true
		}
	}
	return false
}

func sanitizeCrateName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", "-"))
}

// AddWorkspaceMember appends member to [workspace].members if absent.
func (p *RustPlugin) AddWorkspaceMember(manifestContent []byte, member string) ([]byte, error) {
	m, err := decodeManifest(manifestContent)
	if err != nil {
		return nil, err
	}
	if m.Workspace == nil {
		m.Workspace = &struct {
			Members []string `toml:"members"`
		}{}
	}
	for _, existing := range m.Workspace.Members {
		if existing == member {
			return manifestContent, nil
		}
	}
	m.Workspace.Members = append(m.Workspace.Members, member)
	sort.Strings(m.Workspace.Members)
	return encodeManifest(m)
}

// RemoveWorkspaceMember removes member from [workspace].members.
func (p *RustPlugin) RemoveWorkspaceMember(manifestContent []byte, member string) ([]byte, error) {
	m, err := decodeManifest(manifestContent)
	if err != nil {
		return nil, err
	}
	if m.Workspace == nil {
		return manifestContent, nil
	}
	out := m.Workspace.Members[:0]
	for _, existing := range m.Workspace.Members {
		if existing != member {
			out = append(out, existing)
		}
	}
	m.Workspace.Members = out
	return encodeManifest(m)
}

// ListWorkspaceMembers returns [workspace].members.
func (p *RustPlugin) ListWorkspaceMembers(manifestContent []byte) ([]string, error) {
	m, err := decodeManifest(manifestContent)
	if err != nil {
		return nil, err
	}
	if m.Workspace == nil {
		return nil, nil
	}
	return m.Workspace.Members, nil
}

// UpdatePackageName sets [package].name.
func (p *RustPlugin) UpdatePackageName(manifestContent []byte, newName string) ([]byte, error) {
	m, err := decodeManifest(manifestContent)
	if err != nil {
		return nil, err
	}
	if m.Package == nil {
		return nil, apierr.New(apierr.CodeInvalidRequest, "manifest has no [package] table")
	}
	m.Package.Name = newName
	return encodeManifest(m)
}

// MergeDependencies merges fromManifest's [dependencies] into
// intoManifest's, keeping intoManifest's version on conflict (the target
// package's pinned versions win, matching a consolidation's intent of not
// silently upgrading the absorbing package).
func (p *RustPlugin) MergeDependencies(intoManifest, fromManifest []byte) ([]byte, error) {
	into, err := decodeManifest(intoManifest)
	if err != nil {
		return nil, err
	}
	from, err := decodeManifest(fromManifest)
	if err != nil {
		return nil, err
	}
	if into.Dependencies == nil {
		into.Dependencies = make(map[string]string)
	}
	for name, version := range from.Dependencies {
		if _, exists := into.Dependencies[name]; !exists {
			into.Dependencies[name] = version
		}
	}
	return encodeManifest(into)
}

// UpdateDependency renames/retargets a single dependency entry.
func (p *RustPlugin) UpdateDependency(manifestContent []byte, oldName, newName, newVersion string) ([]byte, error) {
	m, err := decodeManifest(manifestContent)
	if err != nil {
		return nil, err
	}
	if m.Dependencies == nil {
		return manifestContent, nil
	}
	version, ok := m.Dependencies[oldName]
	if !ok {
		return manifestContent, nil
	}
	delete(m.Dependencies, oldName)
	if newVersion != "" {
		version = newVersion
	}
	m.Dependencies[newName] = version
	return encodeManifest(m)
}

// GenerateManifest produces a minimal Cargo.toml for a new package.
func (p *RustPlugin) GenerateManifest(packageName string, deps map[string]string) ([]byte, error) {
	m := &cargoManifest{
		Package: &struct {
			Name    string `toml:"name"`
			Version string `toml:"version"`
		}{Name: packageName, Version: "0.1.0"},
		Dependencies: deps,
	}
	return encodeManifest(m)
}

var (
	_ plugin.Plugin                 = (*RustPlugin)(nil)
	_ plugin.ImportSupport          = (*RustPlugin)(nil)
	_ plugin.BatchImportSupport     = (*RustPlugin)(nil)
	_ plugin.ModuleReferenceScanner = (*RustPlugin)(nil)
	_ plugin.WorkspaceSupport       = (*RustPlugin)(nil)
	_ plugin.ManifestUpdater        = (*RustPlugin)(nil)
)
