package planner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refakt/refakt/internal/apierr"
	"github.com/refakt/refakt/internal/model"
	"github.com/refakt/refakt/internal/moveservice"
	"github.com/refakt/refakt/internal/pathresolver"
	"github.com/refakt/refakt/internal/plugin"
	"github.com/refakt/refakt/internal/plugin/tsplugin"
	"github.com/refakt/refakt/internal/refupdate"
)

func setupTSProject(t *testing.T) (dir, main, utils string) {
	t.Helper()
	dir = t.TempDir()
	main = filepath.Join(dir, "main.ts")
	utils = filepath.Join(dir, "utils.ts")
	require.NoError(t, os.WriteFile(main, []byte("import { helper } from './utils';\nhelper();\n"), 0o644))
	require.NoError(t, os.WriteFile(utils, []byte("export function helper() {}\n"), 0o644))
	return dir, main, utils
}

func newPlanner(dir string) *Planner {
	reg := plugin.NewRegistry()
	reg.Register(tsplugin.New(dir))
	resolver := pathresolver.New(dir, reg)
	updater := refupdate.New(dir, reg, resolver, nil)
	mover := moveservice.New(dir, reg, updater)
	return New(dir, reg, resolver, updater, mover, nil)
}

func TestPlanFileMoveStampsChecksumsAndMetadata(t *testing.T) {
	dir, main, utils := setupTSProject(t)
	p := newPlanner(dir)

	newUtils := filepath.Join(dir, "renamed_utils.ts")
	plan, err := p.Plan(context.Background(), model.Intent{
		Name:   "rename_file",
		Params: map[string]any{"old_path": utils, "new_path": newUtils},
	})
	require.NoError(t, err)

	require.NotEmpty(t, plan.Metadata.ID)
	assert.Equal(t, model.PlanVersion, plan.Metadata.PlanVersion)
	assert.Equal(t, model.KindMove, plan.Metadata.Kind)
	assert.WithinDuration(t, time.Now(), plan.Metadata.CreatedAt, time.Minute)

	require.Contains(t, plan.FileChecksums, main)
	data, err := os.ReadFile(main)
	require.NoError(t, err)
	sum := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), plan.FileChecksums[main])
}

func TestPlanFileMoveIsDeterministicAcrossCalls(t *testing.T) {
	dir, _, utils := setupTSProject(t)
	p := newPlanner(dir)
	newUtils := filepath.Join(dir, "renamed_utils.ts")
	intent := model.Intent{Name: "rename_file", Params: map[string]any{"old_path": utils, "new_path": newUtils}}

	first, err := p.Plan(context.Background(), intent)
	require.NoError(t, err)
	second, err := p.Plan(context.Background(), intent)
	require.NoError(t, err)

	assert.Equal(t, first.Edits, second.Edits, "expected identical edits for identical input")
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, first.FileChecksums, second.FileChecksums)
	assert.NotEqual(t, first.Metadata.ID, second.Metadata.ID, "expected each plan to get its own identity")
}

func TestPlanFileMoveSamePathIsNoop(t *testing.T) {
	dir, _, utils := setupTSProject(t)
	p := newPlanner(dir)

	plan, err := p.Plan(context.Background(), model.Intent{
		Name:   "rename_file",
		Params: map[string]any{"old_path": utils, "new_path": utils},
	})
	require.NoError(t, err)
	assert.Empty(t, plan.Edits.Changes)
	assert.Empty(t, plan.Edits.DocumentChanges)
	assert.Empty(t, plan.Summary.AffectedFiles)
}

func TestPlanDeleteWithoutForceReturnsPlanAndRequiresForceError(t *testing.T) {
	dir, _, utils := setupTSProject(t)
	p := newPlanner(dir)

	plan, err := p.Plan(context.Background(), model.Intent{
		Name:   "delete_file",
		Params: map[string]any{"path": utils},
	})
	require.Error(t, err)
	assert.True(t, apierr.HasCode(err, apierr.CodeRequiresForce), "expected requires_force code, got %v", err)

	require.NotNil(t, plan, "spec requires a plan payload to accompany RequiresForce")
	require.Len(t, plan.Warnings, 1)
	assert.Empty(t, plan.Edits.AllResourceOps(), "a refused delete must not carry a delete resource op")
	assert.Nil(t, plan.Deletions, "a refused delete has not yet committed to a DeletionTarget")
}

func TestPlanDeleteWithForceProceeds(t *testing.T) {
	dir, _, utils := setupTSProject(t)
	p := newPlanner(dir)

	plan, err := p.Plan(context.Background(), model.Intent{
		Name:   "delete_file",
		Params: map[string]any{"path": utils, "force": true},
	})
	require.NoError(t, err)
	require.Len(t, plan.Deletions, 1)
	assert.Equal(t, "file", plan.Deletions[0].Kind)
	assert.Equal(t, utils, plan.Deletions[0].Path)

	ops := plan.Edits.AllResourceOps()
	require.Len(t, ops, 1)
	assert.Equal(t, model.ResourceDelete, ops[0].Kind)
	assert.Equal(t, utils, ops[0].URI)
}

func TestPlanDeleteSymbolNeverForceGated(t *testing.T) {
	dir, _, utils := setupTSProject(t)
	p := newPlanner(dir)

	// A path that does not exist on disk is treated as a symbol delete,
	// which has no affected-file set and so never trips the force guard.
	plan, err := p.Plan(context.Background(), model.Intent{
		Name:   "delete_symbol",
		Params: map[string]any{"path": filepath.Join(dir, "doesnotexist")},
	})
	require.NoError(t, err)
	require.Len(t, plan.Deletions, 1)
	assert.Equal(t, "symbol", plan.Deletions[0].Kind)
	_ = utils
}

func TestPlanComplexityTracksAffectedFileCount(t *testing.T) {
	dir, _, utils := setupTSProject(t)
	p := newPlanner(dir)

	plan, err := p.Plan(context.Background(), model.Intent{
		Name:   "rename_file",
		Params: map[string]any{"old_path": utils, "new_path": filepath.Join(dir, "renamed_utils.ts")},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ImpactFor(len(plan.Summary.AffectedFiles)), plan.Metadata.EstimatedImpact)
}

func TestPlanUnknownIntentIsInvalidRequest(t *testing.T) {
	dir := t.TempDir()
	p := newPlanner(dir)

	_, err := p.Plan(context.Background(), model.Intent{Name: "not_a_real_intent"})
	require.Error(t, err)
	assert.True(t, apierr.HasCode(err, apierr.CodeInvalidRequest))
}
