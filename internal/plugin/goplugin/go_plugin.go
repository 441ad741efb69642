// Package goplugin implements the Language Plugin Contract for Go source,
// grounded on codeNERD's GoCodeParser (internal/world/go_parser.go): it
// uses the standard go/ast, go/parser and go/token packages — there is no
// idiomatic third-party substitute for parsing Go's own grammar, so this
// is one of the documented stdlib exceptions in DESIGN.md.
package goplugin

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"github.com/refakt/refakt/internal/apierr"
	"github.com/refakt/refakt/internal/importutil"
	"github.com/refakt/refakt/internal/model"
	"github.com/refakt/refakt/internal/plugin"
)

// GoPlugin implements plugin.Plugin, plugin.ImportSupport,
// plugin.ModuleReferenceScanner and plugin.RefactoringProvider for Go.
type GoPlugin struct {
	ProjectRoot string
}

// New returns a Go language plugin rooted at projectRoot.
func New(projectRoot string) *GoPlugin {
	return &GoPlugin{ProjectRoot: projectRoot}
}

func (p *GoPlugin) Metadata() plugin.Metadata {
	return plugin.Metadata{Name: "go", Extensions: []string{".go"}}
}

func (p *GoPlugin) HandlesExtension(ext string) bool {
	return strings.EqualFold(ext, ".go")
}

// ParseImports extracts every import spec from content using go/parser
// in parser.ImportsOnly mode.
func (p *GoPlugin) ParseImports(content []byte) ([]model.ImportInfo, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", content, parser.ImportsOnly)
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeInvalidRequest, err, "parse go imports")
	}

	var out []model.ImportInfo
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		pos := fset.Position(imp.Pos())
		end := fset.Position(imp.End())

		info := model.ImportInfo{
			ModulePath: path,
			ImportType: model.ImportNamed,
			Location: model.EditLocation{
				StartLine: pos.Line - 1,
				StartCol:  pos.Column - 1,
				EndLine:   end.Line - 1,
				EndCol:    end.Column - 1,
			},
		}
		if imp.Name != nil {
			switch imp.Name.Name {
			case "_":
				info.ImportType = model.ImportSideEffect
			case ".":
				info.ImportType = model.ImportNamespace
				info.NamespaceImport = "."
			default:
				info.DefaultImport = imp.Name.Name
			}
		}
		out = append(out, info)
	}
	return out, nil
}

// UpdateImportReference rewrites a single import path's quoted literal in
// place when a module dependency is renamed (go.mod replace/require style
// renames are handled at the manifest level; this updates the call sites).
func (p *GoPlugin) UpdateImportReference(path string, content []byte, dep model.DependencyUpdate) ([]byte, error) {
	if dep.OldName == "" || dep.NewName == "" {
		return content, nil
	}
	oldLit := strconv.Quote(dep.OldName)
	newLit := strconv.Quote(dep.NewName)
	rewritten := strings.ReplaceAll(string(content), oldLit, newLit)
	return []byte(rewritten), nil
}

// RewriteFileReferences rewrites every import whose path equals oldPath
// (or resolves to it) to newPath, following codeNERD's pattern of doing
// textual substitution on the quoted import literal rather than a full
// AST rewrite + re-print (which would reformat the whole file).
func (p *GoPlugin) RewriteFileReferences(content []byte, oldPath, newPath, file, projectRoot string, rename *plugin.RenameInfo) (*plugin.RewriteResult, error) {
	return p.RewriteFileReferencesBatch(content, []plugin.BatchRename{{OldPath: oldPath, NewPath: newPath}}, file, projectRoot, rename)
}

// RewriteFileReferencesBatch applies every (old, new) import-path rename in
// a single pass over content, used by the Reference Updater for directory
// moves touching many files at once (spec §4.5 step 5/8).
func (p *GoPlugin) RewriteFileReferencesBatch(content []byte, renames []plugin.BatchRename, file, projectRoot string, rename *plugin.RenameInfo) (*plugin.RewriteResult, error) {
	text := string(content)
	total := 0
	for _, rn := range renames {
		oldSpec, err := toImportSpecifier(rn.OldPath, projectRoot)
		if err != nil {
			continue
		}
		newSpec, err := toImportSpecifier(rn.NewPath, projectRoot)
		if err != nil {
			continue
		}
		oldLit := strconv.Quote(oldSpec)
		newLit := strconv.Quote(newSpec)
		if strings.Contains(text, oldLit) {
			count := strings.Count(text, oldLit)
			text = strings.ReplaceAll(text, oldLit, newLit)
			total += count
		}
	}
	if total == 0 {
		return nil, nil
	}
	return &plugin.RewriteResult{Content: text, Changes: total}, nil
}

// toImportSpecifier derives the import specifier this plugin tracks for a
// project file: its directory path relative to projectRoot. It
// deliberately stops at the package directory (Go imports name packages,
// not files) so two files in the same package resolve to the same
// specifier and a no-op rename produces zero edits. Real Go import paths
// also carry a module prefix (from go.mod); this plugin treats every
// project as its own module root and tracks only the root-relative
// directory, so callers must write imports the same way in fixtures and
// recipes.
func toImportSpecifier(filePath, projectRoot string) (string, error) {
	rel := strings.TrimPrefix(filePath, projectRoot)
	rel = strings.TrimPrefix(rel, "/")
	dir := rel
	if idx := strings.LastIndex(rel, "/"); idx >= 0 {
		dir = rel[:idx]
	} else {
		dir = "."
	}
	if dir == "" {
		dir = "."
	}
	return dir, nil
}

// ScanModuleReferences finds bare identifier occurrences of moduleName
// across code, comments and strings depending on scope (spec §3
// ScanScope). Go has no bare "crate name" concept the way Rust does, so
// this treats moduleName as a package identifier and looks for
// `moduleName.` selector usage plus, when scope includes comments/strings,
// any bare textual mention.
func (p *GoPlugin) ScanModuleReferences(content []byte, moduleName string, scope model.ScanScope) ([]plugin.Reference, error) {
	var refs []plugin.Reference
	lines := importutil.SplitLines(string(content))
	selector := moduleName + "."

	for i, line := range lines {
		if scope == model.ScanCode || scope == model.ScanStandard || scope == model.ScanEverything {
			if idx := strings.Index(line, selector); idx >= 0 {
				refs = append(refs, plugin.Reference{
					Location: model.EditLocation{StartLine: i, StartCol: idx, EndLine: i, EndCol: idx + len(selector)},
					Text:     selector,
				})
			}
		}
		if scope == model.ScanComments || scope == model.ScanStandard || scope == model.ScanEverything {
			if trimmed := strings.TrimSpace(line); strings.HasPrefix(trimmed, "//") && strings.Contains(trimmed, moduleName) {
				idx := strings.Index(line, moduleName)
				refs = append(refs, plugin.Reference{
					Location:  model.EditLocation{StartLine: i, StartCol: idx, EndLine: i, EndCol: idx + len(moduleName)},
					Text:      moduleName,
					InComment: true,
				})
			}
		}
		if scope == model.ScanEverything {
			if strings.Contains(line, "\""+moduleName) && !strings.Contains(line, selector) {
				idx := strings.Index(line, moduleName)
				refs = append(refs, plugin.Reference{
					Location: model.EditLocation{StartLine: i, StartCol: idx, EndLine: i, EndCol: idx + len(moduleName)},
					Text:     moduleName,
					InString: true,
				})
			}
		}
	}
	return refs, nil
}

// PlanInlineVariable inlines the `:=`/`var` declared value at loc into
// every use within its enclosing function, then deletes the declaration.
// It operates on go/ast so it understands block scope, but emits plain
// textual edits rather than re-printing the AST (keeping the user's
// formatting for untouched lines).
func (p *GoPlugin) PlanInlineVariable(path string, content []byte, loc model.EditLocation) (*plugin.ExtractResult, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, content, 0)
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeInvalidRequest, err, "parse go source for inline")
	}

	targetLine := loc.StartLine + 1 // go/token is 1-indexed
	var declName, declValueText string
	var declStmt ast.Stmt
	var enclosing *ast.FuncDecl

	ast.Inspect(file, func(n ast.Node) bool {
		fd, ok := n.(*ast.FuncDecl)
		if ok {
			if fset.Position(fd.Pos()).Line <= targetLine && targetLine <= fset.Position(fd.End()).Line {
				enclosing = fd
			}
		}
		assign, ok := n.(*ast.AssignStmt)
		if ok && fset.Position(assign.Pos()).Line == targetLine && len(assign.Lhs) == 1 && len(assign.Rhs) == 1 {
			if ident, ok := assign.Lhs[0].(*ast.Ident); ok {
				declName = ident.Name
				declStmt = assign
				declValueText = sourceSlice(content, fset, assign.Rhs[0].Pos(), assign.Rhs[0].End())
			}
		}
		return true
	})

	if declStmt == nil || enclosing == nil {
		return nil, apierr.New(apierr.CodeUnsupported, "no inlinable variable declaration at the given location").WithContext("file", path)
	}

	builder := model.NewPlanBuilder(path, "inline.variable")

	declLine := fset.Position(declStmt.Pos()).Line - 1
	declEndLine := fset.Position(declStmt.End()).Line - 1
	builder.WithEdit(model.TextEdit{
		EditType:    model.EditDelete,
		Location:    model.EditLocation{StartLine: declLine, StartCol: 0, EndLine: declEndLine + 1, EndCol: 0},
		Description: fmt.Sprintf("remove declaration of %s", declName),
	})

	ast.Inspect(enclosing.Body, func(n ast.Node) bool {
		ident, ok := n.(*ast.Ident)
		if !ok || ident.Name != declName {
			return true
		}
		if ident.Pos() == declStmt.(*ast.AssignStmt).Lhs[0].Pos() {
			return true
		}
		pos := fset.Position(ident.Pos())
		end := fset.Position(ident.End())
		builder.WithEdit(model.TextEdit{
			EditType: model.EditReplace,
			Location: model.EditLocation{StartLine: pos.Line - 1, StartCol: pos.Column - 1, EndLine: end.Line - 1, EndCol: end.Column - 1},
			OriginalText: declName,
			NewText:      declValueText,
			Priority:     10,
		})
		return true
	})

	plan := builder.Build()
	return &plugin.ExtractResult{Plan: plan}, nil
}

// PlanExtractVariable replaces the expression at sel with a new local
// variable declared immediately before its enclosing statement.
func (p *GoPlugin) PlanExtractVariable(path string, content []byte, sel model.EditLocation, newName string) (*plugin.ExtractResult, error) {
	return p.planExtractDecl(path, content, sel, newName, "var")
}

// PlanExtractConstant replaces the expression at sel with a new untyped
// constant declared immediately before its enclosing statement.
func (p *GoPlugin) PlanExtractConstant(path string, content []byte, sel model.EditLocation, newName string) (*plugin.ExtractResult, error) {
	return p.planExtractDecl(path, content, sel, newName, "const")
}

func (p *GoPlugin) planExtractDecl(path string, content []byte, sel model.EditLocation, newName, keyword string) (*plugin.ExtractResult, error) {
	lines := importutil.SplitLines(string(content))
	if sel.StartLine < 0 || sel.StartLine >= len(lines) {
		return nil, apierr.New(apierr.CodeInvalidRequest, "extract selection out of range")
	}
	line := lines[sel.StartLine]
	if sel.StartCol < 0 || sel.EndCol > len(line) || sel.StartCol > sel.EndCol {
		return nil, apierr.New(apierr.CodeInvalidRequest, "extract selection column out of range")
	}
	exprText := line[sel.StartCol:sel.EndCol]
	indent := leadingWhitespace(line)

	builder := model.NewPlanBuilder(path, "extract."+keyword)
	builder.WithEdit(model.TextEdit{
		EditType:    model.EditInsert,
		Location:    model.EditLocation{StartLine: sel.StartLine, StartCol: 0, EndLine: sel.StartLine, EndCol: 0},
		NewText:     fmt.Sprintf("%s%s %s = %s\n", indent, keyword, newName, exprText),
		Priority:    20,
		Description: fmt.Sprintf("declare extracted %s %s", keyword, newName),
	})
	builder.WithEdit(model.TextEdit{
		EditType:     model.EditReplace,
		Location:     sel,
		OriginalText: exprText,
		NewText:      newName,
		Priority:     10,
		Description:  "replace expression with extracted identifier",
	})
	return &plugin.ExtractResult{Plan: builder.Build()}, nil
}

// PlanExtractFunction extracts the statements spanning sel into a new
// top-level function newName, replacing them with a call. It works at
// statement-line granularity: sel must span whole lines, matching how
// editors typically report a statement-block selection.
func (p *GoPlugin) PlanExtractFunction(path string, content []byte, sel model.EditLocation, newName string) (*plugin.ExtractResult, error) {
	lines := importutil.SplitLines(string(content))
	if sel.StartLine < 0 || sel.EndLine >= len(lines) || sel.StartLine > sel.EndLine {
		return nil, apierr.New(apierr.CodeInvalidRequest, "extract-function selection out of range")
	}

	body := strings.Join(lines[sel.StartLine:sel.EndLine+1], "\n")
	indent := leadingWhitespace(lines[sel.StartLine])

	builder := model.NewPlanBuilder(path, "extract.function")
	builder.WithEdit(model.TextEdit{
		EditType:     model.EditReplace,
		Location:     model.EditLocation{StartLine: sel.StartLine, StartCol: 0, EndLine: sel.EndLine + 1, EndCol: 0},
		OriginalText: body + "\n",
		NewText:      fmt.Sprintf("%s%s()\n", indent, newName),
		Priority:     10,
		Description:  fmt.Sprintf("replace extracted block with call to %s", newName),
	})
	builder.WithEdit(model.TextEdit{
		EditType:    model.EditInsert,
		Location:    model.EditLocation{StartLine: len(lines), StartCol: 0, EndLine: len(lines), EndCol: 0},
		NewText:     fmt.Sprintf("\nfunc %s() {\n%s\n}\n", newName, body),
		Priority:    5,
		Description: fmt.Sprintf("declare extracted function %s", newName),
	})
	return &plugin.ExtractResult{Plan: builder.Build()}, nil
}

// PlanRenameSymbol renames every identifier lexically matching the one at
// loc within this file. It is deliberately file-scoped rather than
// whole-program: real cross-package rename is the LSP oracle's job
// (textDocument/rename), and the Planner only reaches this fallback when no
// oracle is configured for the file.
func (p *GoPlugin) PlanRenameSymbol(path string, content []byte, loc model.EditLocation, newName string) (*plugin.ExtractResult, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, content, 0)
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeInvalidRequest, err, "parse go source for rename")
	}

	var oldName string
	ast.Inspect(file, func(n ast.Node) bool {
		ident, ok := n.(*ast.Ident)
		if !ok {
			return true
		}
		pos := fset.Position(ident.Pos())
		if pos.Line-1 == loc.StartLine && pos.Column-1 == loc.StartCol {
			oldName = ident.Name
		}
		return true
	})
	if oldName == "" {
		return nil, apierr.New(apierr.CodeUnsupported, "no identifier at the given location").WithContext("file", path)
	}

	builder := model.NewPlanBuilder(path, "rename.symbol")
	ast.Inspect(file, func(n ast.Node) bool {
		ident, ok := n.(*ast.Ident)
		if !ok || ident.Name != oldName {
			return true
		}
		pos := fset.Position(ident.Pos())
		end := fset.Position(ident.End())
		builder.WithEdit(model.TextEdit{
			EditType:     model.EditReplace,
			Location:     model.EditLocation{StartLine: pos.Line - 1, StartCol: pos.Column - 1, EndLine: end.Line - 1, EndCol: end.Column - 1},
			OriginalText: oldName,
			NewText:      newName,
			Priority:     10,
			Description:  fmt.Sprintf("rename %s to %s", oldName, newName),
		})
		return true
	})
	plan := builder.Build()
	return &plugin.ExtractResult{Plan: plan}, nil
}

func leadingWhitespace(line string) string {
	i := 0
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	return line[:i]
}

func sourceSlice(content []byte, fset *token.FileSet, start, end token.Pos) string {
	s := fset.Position(start)
	e := fset.Position(end)
	if s.Offset < 0 || e.Offset > len(content) || s.Offset > e.Offset {
		return ""
	}
	return string(content[s.Offset:e.Offset])
}

var (
	_ plugin.Plugin                 = (*GoPlugin)(nil)
	_ plugin.ImportSupport          = (*GoPlugin)(nil)
	_ plugin.BatchImportSupport     = (*GoPlugin)(nil)
	_ plugin.ModuleReferenceScanner = (*GoPlugin)(nil)
	_ plugin.RefactoringProvider    = (*GoPlugin)(nil)
)
