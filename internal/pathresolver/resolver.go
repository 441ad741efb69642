// Package pathresolver turns an import specifier plus an importing file
// into a concrete project file path (spec §4.1). The per-file mtime cache
// is grounded on codeNERD's FileScope (internal/world/scope.go), which
// keyed cached dependency facts by file and invalidated them on write;
// here the cache key is (specifier, importing file), checked for freshness
// against the importing file's mtime rather than a content hash, since
// resolution doesn't need the file's bytes, only its existence.
package pathresolver

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/refakt/refakt/internal/cache"
	"github.com/refakt/refakt/internal/model"
	"github.com/refakt/refakt/internal/plugin"
)

// Resolver resolves import specifiers against a fixed project file list.
type Resolver struct {
	ProjectRoot string
	Registry    *plugin.Registry

	// ImportCache, when set, spares findAffected a re-parse of files whose
	// content hasn't changed since the last scan (spec §4.1 "optional
	// per-file cache keyed by path+mtime; invalidated on any file write").
	// Nil is a valid, fully-functional Resolver (every lookup just parses).
	ImportCache *cache.ImportCache

	mu    sync.RWMutex
	cache map[resolveKey]resolveEntry
}

type resolveKey struct {
	specifier     string
	importingFile string
}

type resolveEntry struct {
	mtime  int64
	result string
	found  bool
}

// New returns a Resolver rooted at projectRoot, consulting registry for
// plugin extension-completion order.
func New(projectRoot string, registry *plugin.Registry) *Resolver {
	return &Resolver{
		ProjectRoot: projectRoot,
		Registry:    registry,
		cache:       make(map[resolveKey]resolveEntry),
	}
}

// Invalidate drops every cached resolution for importingFile, called after
// any write to that file.
func (r *Resolver) Invalidate(importingFile string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.cache {
		if k.importingFile == importingFile {
			delete(r.cache, k)
		}
	}
}

func fileModTime(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.ModTime().UnixNano()
}

// Resolve turns specifier (as written in importingFile's source) into a
// concrete path from projectFiles, or "" if it doesn't resolve to a known
// project file.
func (r *Resolver) Resolve(specifier, importingFile string, projectFiles []string) string {
	key := resolveKey{specifier: specifier, importingFile: importingFile}
	mtime := fileModTime(importingFile)

	r.mu.RLock()
	if entry, ok := r.cache[key]; ok && entry.mtime == mtime {
		r.mu.RUnlock()
		if entry.found {
			return entry.result
		}
		return ""
	}
	r.mu.RUnlock()

	result, found := r.resolveUncached(specifier, importingFile, projectFiles)

	r.mu.Lock()
	r.cache[key] = resolveEntry{mtime: mtime, result: result, found: found}
	r.mu.Unlock()

	if found {
		return result
	}
	return ""
}

func (r *Resolver) resolveUncached(specifier, importingFile string, projectFiles []string) (string, bool) {
	known := make(map[string]struct{}, len(projectFiles))
	for _, f := range projectFiles {
		known[filepath.Clean(f)] = struct{}{}
	}

	var base string
	if strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") {
		base = filepath.Clean(filepath.Join(filepath.Dir(importingFile), specifier))
	} else {
		base = filepath.Clean(filepath.Join(r.ProjectRoot, specifier))
	}

	if _, ok := known[base]; ok {
		return base, true
	}

	for _, ext := range r.extensionCandidates() {
		candidate := base + ext
		if _, ok := known[candidate]; ok {
			return candidate, true
		}
	}

	// Bare package-directory imports resolve to the directory's index/mod
	// file; try each registered extension's conventional entry name.
	for _, ext := range r.extensionCandidates() {
		candidate := filepath.Join(base, "index"+ext)
		if _, ok := known[candidate]; ok {
			return candidate, true
		}
		candidate = filepath.Join(base, "mod"+ext)
		if _, ok := known[candidate]; ok {
			return candidate, true
		}
	}

	return "", false
}

// parseImportsCached returns f's parsed imports, consulting r.ImportCache
// first when one is configured and populating it on a cache miss.
func (r *Resolver) parseImportsCached(f string, importSupport plugin.ImportSupport) ([]model.ImportInfo, bool) {
	if r.ImportCache != nil {
		if imports, hit := r.ImportCache.Get(f); hit {
			return imports, true
		}
	}
	content, err := os.ReadFile(f)
	if err != nil {
		return nil, false
	}
	imports, err := importSupport.ParseImports(content)
	if err != nil {
		return nil, false
	}
	if r.ImportCache != nil {
		r.ImportCache.Put(f, imports)
	}
	return imports, true
}

// extensionCandidates returns every registered plugin extension, in
// registration order, for try-each-extension completion.
func (r *Resolver) extensionCandidates() []string {
	if r.Registry == nil {
		return nil
	}
	var out []string
	for _, p := range r.Registry.All() {
		out = append(out, p.Metadata().Extensions...)
	}
	return out
}

// FindAffectedFiles returns every project file whose imports resolve to
// renamedFile.
func (r *Resolver) FindAffectedFiles(renamedFile string, projectFiles []string) []string {
	return r.findAffected(projectFiles, func(resolved string) bool {
		return resolved == renamedFile
	})
}

// FindAffectedFilesForRename returns every project file whose imports
// resolve to either oldPath or newPath, covering planners that run before
// or after the move has taken effect on disk.
func (r *Resolver) FindAffectedFilesForRename(oldPath, newPath string, projectFiles []string) []string {
	return r.findAffected(projectFiles, func(resolved string) bool {
		return resolved == oldPath || resolved == newPath
	})
}

func (r *Resolver) findAffected(projectFiles []string, matches func(string) bool) []string {
	var out []string
	for _, f := range projectFiles {
		p := r.Registry.For(f)
		importSupport, ok := p.(plugin.ImportSupport)
		if !ok {
			continue
		}
		imports, ok := r.parseImportsCached(f, importSupport)
		if !ok {
			continue
		}
		for _, imp := range imports {
			resolved := r.Resolve(imp.ModulePath, f, projectFiles)
			if resolved == "" {
				continue
			}
			if matches(resolved) {
				out = append(out, f)
				break
			}
		}
	}
	return out
}
