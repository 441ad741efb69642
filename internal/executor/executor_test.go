package executor

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refakt/refakt/internal/apierr"
	"github.com/refakt/refakt/internal/model"
	"github.com/refakt/refakt/internal/opqueue"
)

func checksum(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestExecuteSimpleTextEdit(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(target, []byte("package main\n\nfunc main() {}\n"), 0o644))

	q := opqueue.New(dir)
	defer q.Close()
	ex := New(dir, q)

	plan := &model.RefactorPlan{
		Edits: model.WorkspaceEdit{
			Changes: map[string][]model.TextEdit{
				target: {
					{
						FilePath:     target,
						EditType:     model.EditReplace,
						Location:     model.EditLocation{StartLine: 0, StartCol: 8, EndLine: 0, EndCol: 12},
						OriginalText: "main",
						NewText:      "pkg",
						Priority:     1,
					},
				},
			},
		},
		FileChecksums: map[string]string{target: checksum(t, target)},
	}

	report, err := ex.Execute(plan)
	require.NoError(t, err)
	assert.True(t, report.Success)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "package pkg\n\nfunc main() {}\n", string(data))
}

func TestExecuteStaleChecksumAborts(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(target, []byte("package main\n"), 0o644))

	q := opqueue.New(dir)
	defer q.Close()
	ex := New(dir, q)

	plan := &model.RefactorPlan{
		FileChecksums: map[string]string{target: "0000000000000000000000000000000000000000000000000000000000000000"},
	}

	_, err := ex.Execute(plan)
	require.Error(t, err)
	assert.True(t, apierr.HasCode(err, apierr.CodeStalePlan), "expected stale_plan code, got %v", err)
}

func TestExecuteOriginalTextMismatchRollsBack(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.go")
	original := "package main\n\nfunc main() {}\n"
	require.NoError(t, os.WriteFile(target, []byte(original), 0o644))

	q := opqueue.New(dir)
	defer q.Close()
	ex := New(dir, q)

	plan := &model.RefactorPlan{
		Edits: model.WorkspaceEdit{
			Changes: map[string][]model.TextEdit{
				target: {
					{
						FilePath:     target,
						EditType:     model.EditReplace,
						Location:     model.EditLocation{StartLine: 0, StartCol: 8, EndLine: 0, EndCol: 12},
						OriginalText: "nope",
						NewText:      "pkg",
						Priority:     1,
					},
				},
			},
		},
		FileChecksums: map[string]string{target: checksum(t, target)},
	}

	_, err := ex.Execute(plan)
	require.Error(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, original, string(data), "expected file untouched after rollback")
}

func TestDedupeEditsKeepsLonger(t *testing.T) {
	a := model.TextEdit{FilePath: "f.go", Location: model.EditLocation{StartLine: 0, StartCol: 0, EndLine: 0, EndCol: 5}, OriginalText: "short", NewText: "x"}
	b := model.TextEdit{FilePath: "f.go", Location: model.EditLocation{StartLine: 0, StartCol: 0, EndLine: 0, EndCol: 20}, OriginalText: "a much longer original", NewText: "y"}

	out := dedupeEdits([]model.TextEdit{a, b})
	require.Len(t, out, 1)
	assert.Equal(t, "y", out[0].NewText, "expected the longer edit to survive")
}

func TestSortEditsPriorityThenLocationDescending(t *testing.T) {
	edits := []model.TextEdit{
		{Priority: 1, Location: model.EditLocation{StartLine: 1, StartCol: 0}},
		{Priority: 5, Location: model.EditLocation{StartLine: 0, StartCol: 0}},
		{Priority: 5, Location: model.EditLocation{StartLine: 2, StartCol: 0}},
	}
	sortEdits(edits)
	assert.Equal(t, 5, edits[0].Priority)
	assert.Equal(t, 2, edits[0].Location.StartLine, "expected highest priority+location first")
	assert.Equal(t, 0, edits[1].Location.StartLine, "expected second priority-5 edit by descending location")
	assert.Equal(t, 1, edits[2].Priority, "expected lowest priority last")
}
