// Package planner implements the Planner (spec §4.6): given a tagged
// Intent, it dispatches to the right plugin/oracle/Move Service path and
// finalizes the result into a RefactorPlan with checksums, complexity and a
// creation timestamp. The intent-kind switch mirrors codeNERD's
// cmd_direct_actions.go dispatch-by-tool-name shape, generalized from
// fixed CLI subcommands to a single tagged Intent.
package planner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/refakt/refakt/internal/apierr"
	"github.com/refakt/refakt/internal/logging"
	"github.com/refakt/refakt/internal/lspclient"
	"github.com/refakt/refakt/internal/model"
	"github.com/refakt/refakt/internal/moveservice"
	"github.com/refakt/refakt/internal/pathresolver"
	"github.com/refakt/refakt/internal/plugin"
	"github.com/refakt/refakt/internal/refupdate"
)

// Planner dispatches refactor intents to the plugin/oracle/Move Service
// path spec §4.6 describes for each kind, and stamps every resulting plan
// with checksums, complexity and a timestamp.
type Planner struct {
	ProjectRoot string
	Registry    *plugin.Registry
	Resolver    *pathresolver.Resolver
	RefUpdater  *refupdate.Updater
	MoveService *moveservice.Service
	Oracle      lspclient.Oracle

	log *logging.Logger
}

// New returns a Planner wired to the given collaborators. oracle may be
// nil, in which case lspclient.NoOp is used (every LSP-first path falls
// back immediately).
func New(projectRoot string, registry *plugin.Registry, resolver *pathresolver.Resolver, refUpdater *refupdate.Updater, mover *moveservice.Service, oracle lspclient.Oracle) *Planner {
	if oracle == nil {
		oracle = lspclient.NoOp{}
	}
	return &Planner{
		ProjectRoot: projectRoot,
		Registry:    registry,
		Resolver:    resolver,
		RefUpdater:  refUpdater,
		MoveService: mover,
		Oracle:      oracle,
		log:         logging.Get(logging.CategoryPlanner),
	}
}

func (p *Planner) projectFiles() ([]string, error) {
	var out []string
	err := filepath.WalkDir(p.ProjectRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if model.IgnoredDirs[d.Name()] && path != p.ProjectRoot {
				return filepath.SkipDir
			}
			return nil
		}
		out = append(out, path)
		return nil
	})
	return out, err
}

// Plan dispatches intent to its handler and finalizes the resulting plan.
func (p *Planner) Plan(ctx context.Context, intent model.Intent) (*model.RefactorPlan, error) {
	timer := logging.StartTimer(logging.CategoryPlanner, "Plan:"+intent.Name)
	defer timer.Stop()

	switch intent.Name {
	case "rename_symbol":
		return p.planRenameSymbol(ctx, intent)
	case "rename_file", "rename_directory", "move_file":
		return p.planFileMove(intent)
	case "move_module":
		return p.planDirectoryMove(intent)
	case "move_symbol":
		return p.planMoveSymbol(ctx, intent)
	case "extract_function":
		return p.planExtract(intent, extractFunction)
	case "extract_variable":
		return p.planExtract(intent, extractVariable)
	case "extract_constant":
		return p.planExtract(intent, extractConstant)
	case "extract_module":
		return p.planExtractModule(intent)
	case "inline_variable":
		return p.planInlineVariable(ctx, intent)
	case "delete_symbol", "delete_file", "delete_directory", "prune":
		return p.planDelete(intent)
	case "batch":
		return p.planBatch(ctx, intent)
	default:
		return nil, apierr.New(apierr.CodeInvalidRequest, "unknown intent %q", intent.Name)
	}
}

// --- parameter helpers -----------------------------------------------------

func stringParam(params map[string]any, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func boolParam(params map[string]any, key string, def bool) bool {
	v, ok := params[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

func locationParam(params map[string]any, key string) (model.EditLocation, bool) {
	raw, ok := params[key]
	if !ok {
		return model.EditLocation{}, false
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return model.EditLocation{}, false
	}
	get := func(k string) int {
		if f, ok := m[k].(float64); ok {
			return int(f)
		}
		if i, ok := m[k].(int); ok {
			return i
		}
		return 0
	}
	return model.EditLocation{
		StartLine: get("start_line"),
		StartCol:  get("start_col"),
		EndLine:   get("end_line"),
		EndCol:    get("end_col"),
	}, true
}

func positionParam(params map[string]any, key string) (lspclient.Position, bool) {
	raw, ok := params[key]
	if !ok {
		return lspclient.Position{}, false
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return lspclient.Position{}, false
	}
	line, _ := m["line"].(float64)
	ch, _ := m["character"].(float64)
	return lspclient.Position{Line: int(line), Character: int(ch)}, true
}

// --- finalization -----------------------------------------------------------

// finalize computes file checksums over every path the plan touches,
// assigns complexity/impact from the affected-file count and stamps
// created_at (spec §4.6's three finalization steps).
func (p *Planner) finalize(builder *model.PlanBuilder, kind model.PlanKind, warnings []model.Warning) *model.RefactorPlan {
	editPlan := builder.Build()
	workspace := editsToWorkspace(editPlan)

	affected := affectedPaths(editPlan)
	plan := &model.RefactorPlan{
		Edits: workspace,
		Summary: model.PlanSummary{
			AffectedFiles: affected,
			CreatedFiles:  createdFiles(editPlan.ResourceOps),
			DeletedFiles:  deletedFiles(editPlan.ResourceOps),
		},
		Warnings: warnings,
		Metadata: model.RefactorMetadata{
			ID:              uuid.New().String(),
			PlanVersion:     model.PlanVersion,
			Kind:            kind,
			EstimatedImpact: model.ImpactFor(len(affected)),
			CreatedAt:       time.Now(),
		},
		FileChecksums: p.checksums(affected),
	}
	return plan
}

func editsToWorkspace(editPlan model.EditPlan) model.WorkspaceEdit {
	changes := make(map[string][]model.TextEdit)
	for _, e := range editPlan.Edits {
		f := e.File(editPlan.SourceFile)
		changes[f] = append(changes[f], e)
	}
	var docChanges []model.DocumentChange
	for _, op := range editPlan.ResourceOps {
		op := op
		docChanges = append(docChanges, model.DocumentChange{ResourceOp: &op})
	}
	return model.WorkspaceEdit{Changes: changes, DocumentChanges: docChanges}
}

func affectedPaths(editPlan model.EditPlan) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		if p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, e := range editPlan.Edits {
		add(e.File(editPlan.SourceFile))
	}
	for _, op := range editPlan.ResourceOps {
		switch op.Kind {
		case model.ResourceCreate:
			add(op.URI)
		case model.ResourceDelete:
			add(op.URI)
		case model.ResourceRename:
			add(op.OldURI)
		}
	}
	return out
}

func createdFiles(ops []model.ResourceOp) []string {
	var out []string
	for _, op := range ops {
		if op.Kind == model.ResourceCreate {
			out = append(out, op.URI)
		}
		if op.Kind == model.ResourceRename {
			out = append(out, op.NewURI)
		}
	}
	return out
}

func deletedFiles(ops []model.ResourceOp) []string {
	var out []string
	for _, op := range ops {
		if op.Kind == model.ResourceDelete {
			out = append(out, op.URI)
		}
	}
	return out
}

// checksums computes SHA-256 over the current on-disk bytes of every path;
// paths that do not yet exist (files a plan creates) are skipped.
func (p *Planner) checksums(paths []string) map[string]string {
	out := make(map[string]string)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		sum := sha256.Sum256(data)
		out[path] = hex.EncodeToString(sum[:])
	}
	return out
}

// --- rename symbol ----------------------------------------------------------

func (p *Planner) planRenameSymbol(ctx context.Context, intent model.Intent) (*model.RefactorPlan, error) {
	file, ok := stringParam(intent.Params, "file")
	if !ok {
		return nil, apierr.New(apierr.CodeInvalidRequest, "rename_symbol requires a file")
	}
	newName, ok := stringParam(intent.Params, "new_name")
	if !ok {
		return nil, apierr.New(apierr.CodeInvalidRequest, "rename_symbol requires new_name")
	}

	if pos, ok := positionParam(intent.Params, "position"); ok {
		if edit, err := p.Oracle.Rename(ctx, file, pos, newName); err == nil {
			builder := model.NewPlanBuilder(file, intent.Name)
			for _, e := range edit.AllTextEdits() {
				builder.WithEdit(e)
			}
			builder.WithIntentArgs(intent.Params)
			return p.finalize(builder, model.KindRename, nil), nil
		}
	}

	pl := p.Registry.For(file)
	rp, ok := pl.(plugin.RefactoringProvider)
	if !ok {
		return nil, apierr.New(apierr.CodeUnsupported, "no rename support for %s", file).WithContext("file", file)
	}
	loc, _ := locationParam(intent.Params, "selector")
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeInternal, err, "read %s", file)
	}
	result, err := rp.PlanRenameSymbol(file, content, loc, newName)
	if err != nil {
		return nil, err
	}
	builder := planBuilderFromEditPlan(result.Plan)
	builder.WithIntentArgs(intent.Params)
	return p.finalize(builder, model.KindRename, nil), nil
}

func planBuilderFromEditPlan(ep model.EditPlan) *model.PlanBuilder {
	builder := model.NewPlanBuilder(ep.SourceFile, ep.Metadata.IntentName)
	builder.WithEdits(ep.Edits...)
	for _, op := range ep.ResourceOps {
		builder.WithResourceOp(op)
	}
	for _, d := range ep.DependencyUpdates {
		builder.WithDependencyUpdate(d)
	}
	return builder
}

// --- move ---------------------------------------------------------------

func (p *Planner) planFileMove(intent model.Intent) (*model.RefactorPlan, error) {
	oldPath, ok := stringParam(intent.Params, "old_path")
	if !ok {
		return nil, apierr.New(apierr.CodeInvalidRequest, "move requires old_path")
	}
	newPath, ok := stringParam(intent.Params, "new_path")
	if !ok {
		return nil, apierr.New(apierr.CodeInvalidRequest, "move requires new_path")
	}

	ep, err := p.MoveService.MoveFile(context.Background(), oldPath, newPath)
	if err != nil {
		return nil, err
	}
	builder := planBuilderFromEditPlan(*ep)
	builder.WithIntentArgs(intent.Params)
	return p.finalize(builder, model.KindMove, nil), nil
}

func (p *Planner) planDirectoryMove(intent model.Intent) (*model.RefactorPlan, error) {
	oldPath, ok := stringParam(intent.Params, "old_path")
	if !ok {
		return nil, apierr.New(apierr.CodeInvalidRequest, "move_module requires old_path")
	}
	newPath, ok := stringParam(intent.Params, "new_path")
	if !ok {
		return nil, apierr.New(apierr.CodeInvalidRequest, "move_module requires new_path")
	}

	ep, consolidation, err := p.MoveService.MoveDirectory(context.Background(), oldPath, newPath)
	if err != nil {
		return nil, err
	}
	builder := planBuilderFromEditPlan(*ep)
	builder.WithIntentArgs(intent.Params)
	var warnings []model.Warning
	if consolidation {
		warnings = append(warnings, model.Warning{
			Message: "destination already exists as a workspace member; this move consolidates into it",
			Context: map[string]any{"old_path": oldPath, "new_path": newPath},
		})
	}
	plan := p.finalize(builder, model.KindMove, warnings)
	plan.Metadata.Language = ""
	return plan, nil
}

// planMoveSymbol tries the LSP oracle's refactor.move code action; symbol
// moves have no AST fallback (spec §4.6 explicitly forbids one).
func (p *Planner) planMoveSymbol(ctx context.Context, intent model.Intent) (*model.RefactorPlan, error) {
	file, ok := stringParam(intent.Params, "file")
	if !ok {
		return nil, apierr.New(apierr.CodeInvalidRequest, "move_symbol requires a file")
	}
	loc, _ := locationParam(intent.Params, "selector")

	actions, err := p.Oracle.CodeAction(ctx, file, loc, "refactor.move")
	if err != nil || len(actions) == 0 {
		return nil, apierr.New(apierr.CodeUnsupported, "move_symbol requires an LSP oracle supporting refactor.move").WithContext("file", file)
	}

	builder := model.NewPlanBuilder(file, intent.Name)
	for _, action := range actions {
		if action.Edit == nil {
			continue
		}
		for _, e := range action.Edit.AllTextEdits() {
			builder.WithEdit(e)
		}
		for _, op := range action.Edit.AllResourceOps() {
			builder.WithResourceOp(op)
		}
	}
	builder.WithIntentArgs(intent.Params)
	return p.finalize(builder, model.KindMove, nil), nil
}

// --- extract / inline -------------------------------------------------------

type extractKind int

const (
	extractFunction extractKind = iota
	extractVariable
	extractConstant
)

func (p *Planner) planExtract(intent model.Intent, kind extractKind) (*model.RefactorPlan, error) {
	file, ok := stringParam(intent.Params, "file")
	if !ok {
		return nil, apierr.New(apierr.CodeInvalidRequest, "extract requires a file")
	}
	newName, ok := stringParam(intent.Params, "new_name")
	if !ok {
		return nil, apierr.New(apierr.CodeInvalidRequest, "extract requires new_name")
	}
	sel, ok := locationParam(intent.Params, "selector")
	if !ok {
		return nil, apierr.New(apierr.CodeInvalidRequest, "extract requires a selector")
	}

	pl := p.Registry.For(file)
	rp, ok := pl.(plugin.RefactoringProvider)
	if !ok {
		return nil, apierr.New(apierr.CodeUnsupported, "no extract support for %s", file).WithContext("file", file)
	}
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeInternal, err, "read %s", file)
	}

	var result *plugin.ExtractResult
	switch kind {
	case extractFunction:
		result, err = rp.PlanExtractFunction(file, content, sel, newName)
	case extractVariable:
		result, err = rp.PlanExtractVariable(file, content, sel, newName)
	case extractConstant:
		result, err = rp.PlanExtractConstant(file, content, sel, newName)
	default:
		return nil, apierr.New(apierr.CodeInvalidRequest, "unknown extract kind")
	}
	if err != nil {
		return nil, err
	}

	builder := planBuilderFromEditPlan(result.Plan)
	builder.WithIntentArgs(intent.Params)
	return p.finalize(builder, model.KindExtract, nil), nil
}

func (p *Planner) planExtractModule(intent model.Intent) (*model.RefactorPlan, error) {
	file, ok := stringParam(intent.Params, "file")
	if !ok {
		return nil, apierr.New(apierr.CodeInvalidRequest, "extract_module requires a file")
	}
	newModuleName, ok := stringParam(intent.Params, "new_name")
	if !ok {
		return nil, apierr.New(apierr.CodeInvalidRequest, "extract_module requires new_name")
	}
	sel, ok := locationParam(intent.Params, "selector")
	if !ok {
		return nil, apierr.New(apierr.CodeInvalidRequest, "extract_module requires a selector")
	}

	pl := p.Registry.For(file)
	me, ok := pl.(plugin.ModuleExtractor)
	if !ok {
		return nil, apierr.New(apierr.CodeUnsupported, "extract_module unsupported for %s", file).WithContext("file", file).WithContext("kind", "extract_module")
	}
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeInternal, err, "read %s", file)
	}
	result, err := me.PlanExtractModule(file, content, sel, newModuleName)
	if err != nil {
		return nil, err
	}
	builder := planBuilderFromEditPlan(result.Plan)
	builder.WithIntentArgs(intent.Params)
	return p.finalize(builder, model.KindExtract, nil), nil
}

func (p *Planner) planInlineVariable(ctx context.Context, intent model.Intent) (*model.RefactorPlan, error) {
	file, ok := stringParam(intent.Params, "file")
	if !ok {
		return nil, apierr.New(apierr.CodeInvalidRequest, "inline_variable requires a file")
	}
	loc, ok := locationParam(intent.Params, "selector")
	if !ok {
		return nil, apierr.New(apierr.CodeInvalidRequest, "inline_variable requires a selector")
	}

	if actions, err := p.Oracle.CodeAction(ctx, file, loc, "refactor.inline"); err == nil {
		for _, action := range actions {
			if action.Edit == nil {
				continue
			}
			builder := model.NewPlanBuilder(file, intent.Name)
			for _, e := range action.Edit.AllTextEdits() {
				builder.WithEdit(e)
			}
			builder.WithIntentArgs(intent.Params)
			return p.finalize(builder, model.KindInline, nil), nil
		}
	}

	pl := p.Registry.For(file)
	rp, ok := pl.(plugin.RefactoringProvider)
	if !ok {
		return nil, apierr.New(apierr.CodeUnsupported, "no inline support for %s", file).WithContext("file", file)
	}
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeInternal, err, "read %s", file)
	}
	result, err := rp.PlanInlineVariable(file, content, loc)
	if err != nil {
		return nil, err
	}
	builder := planBuilderFromEditPlan(result.Plan)
	builder.WithIntentArgs(intent.Params)
	return p.finalize(builder, model.KindInline, nil), nil
}

// --- delete / prune ----------------------------------------------------------

func (p *Planner) planDelete(intent model.Intent) (*model.RefactorPlan, error) {
	path, ok := stringParam(intent.Params, "path")
	if !ok {
		return nil, apierr.New(apierr.CodeInvalidRequest, "delete requires a path")
	}
	force := boolParam(intent.Params, "force", false)
	cleanupImports := boolParam(intent.Params, "cleanup_imports", false)

	kind := "file"
	info, statErr := os.Stat(path)
	switch {
	case statErr == nil && info.IsDir():
		kind = "directory"
	case statErr != nil:
		kind = "symbol"
	}

	var affected []string
	if kind != "symbol" {
		files, err := p.projectFiles()
		if err != nil {
			return nil, apierr.Wrap(apierr.CodeInternal, err, "walk project")
		}
		affected = p.Resolver.FindAffectedFiles(path, files)
	}

	builder := model.NewPlanBuilder(path, intent.Name)
	builder.WithIntentArgs(intent.Params)

	if len(affected) > 0 && !force {
		plan := p.finalize(builder, model.KindDelete, []model.Warning{{
			Message: fmt.Sprintf("%d file(s) still reference %s", len(affected), path),
			Context: map[string]any{"affected_files": affected},
		}})
		return plan, apierr.New(apierr.CodeRequiresForce, "refusing to delete %s: %d referencing file(s) found (set force=true to override)", path, len(affected)).
			WithContext("path", path).WithContext("affected_files", affected)
	}

	if kind != "symbol" {
		builder.WithResourceOp(model.ResourceOp{Kind: model.ResourceDelete, URI: path})
	}

	if cleanupImports && p.RefUpdater != nil {
		editPlan, err := p.RefUpdater.Update(context.Background(), refupdate.Request{OldPath: path, NewPath: ""})
		if err == nil {
			builder.WithEdits(editPlan.Edits...)
		} else {
			p.log.Warn("orphan-import cleanup failed for %s: %v", path, err)
		}
	}

	plan := p.finalize(builder, model.KindDelete, nil)
	plan.Deletions = []model.DeletionTarget{{Path: path, Kind: kind}}
	return plan, nil
}

// --- batch -------------------------------------------------------------------

func (p *Planner) planBatch(ctx context.Context, intent model.Intent) (*model.RefactorPlan, error) {
	raw, ok := intent.Params["intents"]
	if !ok {
		return nil, apierr.New(apierr.CodeInvalidRequest, "batch requires an intents array")
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, apierr.New(apierr.CodeInvalidRequest, "batch intents must be an array")
	}

	builder := model.NewPlanBuilder("", intent.Name)
	var warnings []model.Warning
	affectedTotal := 0

	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		params, _ := m["params"].(map[string]any)
		sub, err := p.Plan(ctx, model.Intent{Name: name, Params: params})
		if err != nil {
			warnings = append(warnings, model.Warning{
				Message: fmt.Sprintf("sub-intent %q failed: %v", name, err),
				Context: map[string]any{"intent": name},
			})
			continue
		}
		for _, e := range sub.Edits.AllTextEdits() {
			builder.WithEdit(e)
		}
		for _, op := range sub.Edits.AllResourceOps() {
			builder.WithResourceOp(op)
		}
		warnings = append(warnings, sub.Warnings...)
		affectedTotal += len(sub.Summary.AffectedFiles)
	}

	builder.WithIntentArgs(intent.Params)
	plan := p.finalize(builder, model.KindTransform, warnings)
	return plan, nil
}
