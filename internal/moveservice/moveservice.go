// Package moveservice implements the Move Service (spec §4.7): the
// specialization of the Planner for file and directory moves. File moves
// are a thin wrapper over the Reference Updater; directory moves add
// workspace-package detection (manifest edits, consolidation) on top,
// grounded on original_source's move_service/planner.rs
// plan_file_move/plan_directory_move pair, expressed through the
// plugin.WorkspaceSupport capability probe rather than a Rust-specific
// workspace type.
package moveservice

import (
	"context"

	"github.com/refakt/refakt/internal/apierr"
	"github.com/refakt/refakt/internal/logging"
	"github.com/refakt/refakt/internal/model"
	"github.com/refakt/refakt/internal/plugin"
	"github.com/refakt/refakt/internal/refupdate"
)

// Service plans file and directory moves.
type Service struct {
	ProjectRoot string
	Registry    *plugin.Registry
	RefUpdater  *refupdate.Updater

	log *logging.Logger
}

// New returns a Service wired to registry and refUpdater.
func New(projectRoot string, registry *plugin.Registry, refUpdater *refupdate.Updater) *Service {
	return &Service{
		ProjectRoot: projectRoot,
		Registry:    registry,
		RefUpdater:  refUpdater,
		log:         logging.Get(logging.CategoryMove),
	}
}

// MoveFile produces a Rename resource op plus every reference-update edit
// the Reference Updater finds (spec §4.7, file move).
func (s *Service) MoveFile(ctx context.Context, oldPath, newPath string) (*model.EditPlan, error) {
	timer := logging.StartTimer(logging.CategoryMove, "MoveFile")
	defer timer.Stop()

	if oldPath == newPath {
		empty := model.EditPlan{SourceFile: oldPath, Metadata: model.PlanMetadata{IntentName: "rename_file", Complexity: 1}}
		return &empty, nil
	}

	edits, err := s.RefUpdater.Update(ctx, refupdate.Request{OldPath: oldPath, NewPath: newPath})
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeInternal, err, "plan file move %s -> %s", oldPath, newPath)
	}

	edits.ResourceOps = append([]model.ResourceOp{{Kind: model.ResourceRename, OldURI: oldPath, NewURI: newPath}}, edits.ResourceOps...)
	edits.SourceFile = oldPath
	edits.Metadata.IntentName = "rename_file"
	return edits, nil
}

// MoveDirectory produces a Rename resource op, every reference-update edit,
// and (when old_path is a package a workspace plugin recognizes) manifest
// edits plus a consolidation flag (spec §4.7, directory move).
func (s *Service) MoveDirectory(ctx context.Context, oldPath, newPath string) (*model.EditPlan, bool, error) {
	timer := logging.StartTimer(logging.CategoryMove, "MoveDirectory")
	defer timer.Stop()

	if oldPath == newPath {
		empty := model.EditPlan{SourceFile: oldPath, Metadata: model.PlanMetadata{IntentName: "move_module", Complexity: 1}}
		return &empty, false, nil
	}

	renameInfo, manifestEdits, consolidation, sweepPlugin := s.planWorkspace(oldPath, newPath)

	edits, err := s.RefUpdater.Update(ctx, refupdate.Request{OldPath: oldPath, NewPath: newPath, Rename: renameInfo, SweepPlugin: sweepPlugin})
	if err != nil {
		return nil, false, apierr.Wrap(apierr.CodeInternal, err, "plan directory move %s -> %s", oldPath, newPath)
	}

	edits.Edits = append(edits.Edits, manifestEdits...)
	edits.ResourceOps = append([]model.ResourceOp{{Kind: model.ResourceRename, OldURI: oldPath, NewURI: newPath}}, edits.ResourceOps...)
	edits.SourceFile = oldPath
	edits.Metadata.IntentName = "move_module"
	edits.Metadata.Consolidation = consolidation
	return edits, consolidation, nil
}

// planWorkspace asks every registered plugin whether old_path is a package
// it understands, in registration order; the first positive plugin
// contributes rename info, manifest edits and the consolidation flag
// (spec §4.7: "The first positive plugin contributes..."). The same
// plugin is also handed back as a plugin.BatchImportSupport (when it is
// one) so the Reference Updater's documentation/config sweep (spec §4.5
// step 8) can route doc/config files through it instead of an
// extension-keyed plugin lookup, which never matches .md/.toml/.yaml/.yml.
func (s *Service) planWorkspace(oldPath, newPath string) (*plugin.RenameInfo, []model.TextEdit, bool, plugin.BatchImportSupport) {
	for _, p := range s.Registry.All() {
		ws, ok := p.(plugin.WorkspaceSupport)
		if !ok {
			continue
		}
		if !ws.IsPackage(oldPath) {
			continue
		}
		result, err := ws.PlanDirectoryMove(oldPath, newPath, s.ProjectRoot)
		if err != nil {
			s.log.Warn("workspace plan failed for %s via %s: %v", oldPath, p.Metadata().Name, err)
			continue
		}
		if result == nil {
			continue
		}
		batch, _ := p.(plugin.BatchImportSupport)
		return result.RenameInfo, result.ManifestEdits, result.IsConsolidation, batch
	}
	return nil, nil, false, nil
}
