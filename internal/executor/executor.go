// Package executor applies a model.RefactorPlan atomically (spec §4.8):
// checksum validation, snapshotting for rollback, edit deduplication,
// deterministic ordering, resource-op and text-edit application, flush,
// and optional post-validation. Mutations are driven through an
// opqueue.Queue so every write still passes the path guard and "sync all"
// durability rule codeNERD's single-writer transports (internal/mcp) use.
package executor

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sort"
	"strings"

	"github.com/refakt/refakt/internal/apierr"
	"github.com/refakt/refakt/internal/importutil"
	"github.com/refakt/refakt/internal/logging"
	"github.com/refakt/refakt/internal/model"
	"github.com/refakt/refakt/internal/opqueue"
)

// Executor applies plans against the filesystem via an operation queue.
type Executor struct {
	ProjectRoot string
	Queue       *opqueue.Queue
	Validate    bool

	log *logging.Logger
}

// New returns an Executor rooted at projectRoot, driving mutations through
// queue.
func New(projectRoot string, queue *opqueue.Queue) *Executor {
	return &Executor{ProjectRoot: projectRoot, Queue: queue, log: logging.Get(logging.CategoryExecutor)}
}

// ValidationReport is the advisory post-execution check result.
type ValidationReport struct {
	Passed bool     `json:"passed"`
	Issues []string `json:"issues,omitempty"`
}

// Report is the outcome of Execute.
type Report struct {
	Success      bool              `json:"success"`
	AppliedFiles []string          `json:"applied_files"`
	Warnings     []string          `json:"warnings,omitempty"`
	Validation   *ValidationReport `json:"validation,omitempty"`
}

// snapshot captures one file's pre-execution bytes (or its absence) for
// rollback.
type snapshot struct {
	path    string
	content string
	existed bool
}

// Execute applies plan atomically, rolling back on any failure from
// resource-op application onward.
func (e *Executor) Execute(plan *model.RefactorPlan) (*Report, error) {
	timer := logging.StartTimer(logging.CategoryExecutor, "Execute")
	defer timer.Stop()

	if err := e.validateChecksums(plan); err != nil {
		return nil, err
	}

	snapshots, err := e.takeSnapshots(plan)
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeInternal, err, "snapshot plan inputs")
	}

	edits := dedupeEdits(plan.Edits.AllTextEdits())
	sortEdits(edits)

	resourceOps := plan.Edits.AllResourceOps()
	applied, executedOps, err := e.applyResourceOps(resourceOps)
	if err != nil {
		if rbErr := e.rollback(snapshots, executedOps); rbErr != nil {
			return nil, rbErr
		}
		return nil, apierr.Wrap(apierr.CodeRolledBack, err, "resource op application failed, rolled back")
	}

	warnings, err := e.applyTextEdits(edits)
	if err != nil {
		if rbErr := e.rollback(snapshots, executedOps); rbErr != nil {
			return nil, rbErr
		}
		return nil, apierr.Wrap(apierr.CodeRolledBack, err, "text edit application failed, rolled back")
	}
	applied = append(applied, textEditFiles(edits)...)

	report := &Report{
		Success:      true,
		AppliedFiles: dedupeStrings(applied),
		Warnings:     warnings,
	}

	if e.Validate {
		report.Validation = e.runValidation(plan, edits)
	}

	return report, nil
}

func (e *Executor) validateChecksums(plan *model.RefactorPlan) error {
	for path, expected := range plan.FileChecksums {
		data, err := os.ReadFile(path)
		if err != nil {
			return apierr.Wrap(apierr.CodeStalePlan, err, "checksum validation: cannot read %s", path).WithContext("path", path)
		}
		sum := sha256.Sum256(data)
		actual := hex.EncodeToString(sum[:])
		if actual != expected {
			return apierr.New(apierr.CodeStalePlan, "checksum mismatch for %s", path).
				WithContext("path", path).WithContext("expected", expected).WithContext("actual", actual)
		}
	}
	return nil
}

func (e *Executor) takeSnapshots(plan *model.RefactorPlan) ([]snapshot, error) {
	seen := make(map[string]struct{})
	var paths []string

	addPath := func(p string) {
		if p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
	}

	for _, edit := range plan.Edits.AllTextEdits() {
		addPath(edit.File(""))
	}
	for _, op := range plan.Edits.AllResourceOps() {
		switch op.Kind {
		case model.ResourceDelete:
			addPath(op.URI)
		case model.ResourceRename:
			addPath(op.OldURI)
		}
	}

	var out []snapshot
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				out = append(out, snapshot{path: p, existed: false})
				continue
			}
			return nil, err
		}
		out = append(out, snapshot{path: p, content: string(data), existed: true})
	}
	return out, nil
}

// executedOp records a resource op that has already been applied, in
// application order, so rollback can reverse them.
type executedOp struct {
	op model.ResourceOp
}

func (e *Executor) applyResourceOps(ops []model.ResourceOp) ([]string, []executedOp, error) {
	ordered := orderResourceOps(ops)
	var applied []string
	var executed []executedOp

	for _, op := range ordered {
		if err := e.applyOneResourceOp(op); err != nil {
			return applied, executed, err
		}
		executed = append(executed, executedOp{op: op})
		switch op.Kind {
		case model.ResourceCreate:
			applied = append(applied, op.URI)
		case model.ResourceRename:
			applied = append(applied, op.NewURI)
		case model.ResourceDelete:
			applied = append(applied, op.URI)
		}
	}
	return applied, executed, nil
}

// orderResourceOps sorts by kind in create -> rename -> delete order,
// preserving relative order within each kind (spec §4.8 step 5).
func orderResourceOps(ops []model.ResourceOp) []model.ResourceOp {
	rank := map[model.ResourceOpKind]int{
		model.ResourceCreate: 0,
		model.ResourceRename: 1,
		model.ResourceDelete: 2,
	}
	out := make([]model.ResourceOp, len(ops))
	copy(out, ops)
	sort.SliceStable(out, func(i, j int) bool {
		return rank[out[i].Kind] < rank[out[j].Kind]
	})
	return out
}

func (e *Executor) applyOneResourceOp(op model.ResourceOp) error {
	switch op.Kind {
	case model.ResourceCreate:
		return e.Queue.Enqueue(model.FileOperation{OperationType: model.OpCreateFile, FilePath: op.URI, Params: map[string]any{"content": ""}})
	case model.ResourceRename:
		return e.Queue.Enqueue(model.FileOperation{OperationType: model.OpRename, FilePath: op.OldURI, Params: map[string]any{"new_path": op.NewURI}})
	case model.ResourceDelete:
		return e.Queue.Enqueue(model.FileOperation{OperationType: model.OpDelete, FilePath: op.URI})
	default:
		return apierr.New(apierr.CodeInvalidRequest, "unknown resource op kind %q", op.Kind)
	}
}

// applyTextEdits groups edits by file, applies each file's edits in the
// already-sorted (priority desc, location desc) order, then flushes each
// file's final content through the queue.
func (e *Executor) applyTextEdits(edits []model.TextEdit) ([]string, error) {
	byFile := make(map[string][]model.TextEdit)
	var fileOrder []string
	for _, edit := range edits {
		f := edit.File("")
		if _, ok := byFile[f]; !ok {
			fileOrder = append(fileOrder, f)
		}
		byFile[f] = append(byFile[f], edit)
	}

	var warnings []string
	for _, path := range fileOrder {
		content, err := os.ReadFile(path)
		if err != nil {
			return warnings, apierr.Wrap(apierr.CodeInternal, err, "read %s for edit application", path)
		}
		newContent, err := applyEditsToFile(string(content), byFile[path])
		if err != nil {
			return warnings, apierr.Wrap(apierr.CodeConflict, err, "apply edits to %s", path)
		}
		if err := e.Queue.Enqueue(model.FileOperation{
			OperationType: model.OpWrite,
			FilePath:      path,
			Params:        map[string]any{"content": newContent},
		}); err != nil {
			return warnings, err
		}
	}
	return warnings, nil
}

// applyEditsToFile splices every edit into content in the given order.
// Edits must already be sorted location-descending so earlier edits'
// coordinates remain valid as later (in file order, applied first) edits
// are spliced in.
func applyEditsToFile(content string, edits []model.TextEdit) (string, error) {
	ending := importutil.DetectLineEnding(content)
	lines := importutil.SplitLines(content)

	for _, edit := range edits {
		loc := edit.Location
		if loc.StartLine < 0 || loc.EndLine >= len(lines) || loc.StartLine > loc.EndLine {
			return "", apierr.New(apierr.CodeConflict, "edit location out of range").WithContext("location", loc)
		}
		startLine := lines[loc.StartLine]
		endLine := lines[loc.EndLine]
		if loc.StartCol < 0 || loc.StartCol > len(startLine) || loc.EndCol < 0 || loc.EndCol > len(endLine) {
			return "", apierr.New(apierr.CodeConflict, "edit column out of range").WithContext("location", loc)
		}

		if edit.OriginalText != "" {
			actual := sliceRange(lines, loc)
			if actual != edit.OriginalText {
				return "", apierr.New(apierr.CodeConflict, "original_text mismatch at location").
					WithContext("expected", edit.OriginalText).WithContext("actual", actual)
			}
		}

		if loc.StartLine == loc.EndLine {
			line := lines[loc.StartLine]
			lines[loc.StartLine] = line[:loc.StartCol] + edit.NewText + line[loc.EndCol:]
		} else {
			prefix := lines[loc.StartLine][:loc.StartCol]
			suffix := lines[loc.EndLine][loc.EndCol:]
			spliced := prefix + edit.NewText + suffix
			newLines := strings.Split(spliced, "\n")

			merged := make([]string, 0, len(lines)-(loc.EndLine-loc.StartLine)+len(newLines)-1)
			merged = append(merged, lines[:loc.StartLine]...)
			merged = append(merged, newLines...)
			merged = append(merged, lines[loc.EndLine+1:]...)
			lines = merged
		}
	}

	return importutil.JoinLines(lines, ending), nil
}

func sliceRange(lines []string, loc model.EditLocation) string {
	if loc.StartLine == loc.EndLine {
		return lines[loc.StartLine][loc.StartCol:loc.EndCol]
	}
	var sb strings.Builder
	sb.WriteString(lines[loc.StartLine][loc.StartCol:])
	for i := loc.StartLine + 1; i < loc.EndLine; i++ {
		sb.WriteString("\n")
		sb.WriteString(lines[i])
	}
	sb.WriteString("\n")
	sb.WriteString(lines[loc.EndLine][:loc.EndCol])
	return sb.String()
}

// sortEdits orders by priority descending, tiebreak by location
// descending (spec §4.8 step 4).
func sortEdits(edits []model.TextEdit) {
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].Priority != edits[j].Priority {
			return edits[i].Priority > edits[j].Priority
		}
		return edits[j].Location.Before(edits[i].Location)
	})
}

// dedupeEdits implements the core overlap rule of spec §4.8: identical
// edits collapse, overlapping edits keep the longer original_text (or
// new_text when original is empty), and the rest are retained.
func dedupeEdits(edits []model.TextEdit) []model.TextEdit {
	var retained []model.TextEdit

	for _, incoming := range edits {
		dropped := false

		for i, existing := range retained {
			if identicalEdits(incoming, existing) {
				dropped = true
				break
			}
			if editsOverlap(incoming, existing) {
				if editLength(incoming) > editLength(existing) {
					retained[i] = incoming
				}
				dropped = true
				break
			}
		}
		if !dropped {
			retained = append(retained, incoming)
		}
	}
	return retained
}

func identicalEdits(a, b model.TextEdit) bool {
	return a.File("") == b.File("") && a.EditType == b.EditType && a.Location == b.Location && a.NewText == b.NewText
}

func editsOverlap(a, b model.TextEdit) bool {
	if a.File("") != b.File("") {
		return false
	}
	la, lb := a.Location, b.Location
	if la.EndLine < lb.StartLine || lb.EndLine < la.StartLine {
		return false
	}
	if a.OriginalText != "" && b.OriginalText != "" {
		if strings.Contains(a.OriginalText, b.OriginalText) || strings.Contains(b.OriginalText, a.OriginalText) {
			return true
		}
	}
	return la.Intersects(lb)
}

func editLength(e model.TextEdit) int {
	if e.OriginalText != "" {
		return len(e.OriginalText)
	}
	return len(e.NewText)
}

func textEditFiles(edits []model.TextEdit) []string {
	var out []string
	for _, e := range edits {
		out = append(out, e.File(""))
	}
	return out
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// rollback restores every snapshot and reverses executed resource ops in
// inverse order. A failure partway through rollback is reported as
// critical_inconsistent_state naming the paths that could not be
// restored.
func (e *Executor) rollback(snapshots []snapshot, executed []executedOp) error {
	var failedPaths []string

	for i := len(executed) - 1; i >= 0; i-- {
		if err := e.reverseResourceOp(executed[i].op); err != nil {
			failedPaths = append(failedPaths, describeOp(executed[i].op))
		}
	}

	for _, snap := range snapshots {
		if snap.existed {
			if err := e.Queue.Enqueue(model.FileOperation{
				OperationType: model.OpWrite,
				FilePath:      snap.path,
				Params:        map[string]any{"content": snap.content},
			}); err != nil {
				failedPaths = append(failedPaths, snap.path)
			}
		} else {
			if err := e.Queue.Enqueue(model.FileOperation{OperationType: model.OpDelete, FilePath: snap.path}); err != nil {
				failedPaths = append(failedPaths, snap.path)
			}
		}
	}

	if len(failedPaths) > 0 {
		e.log.Error("rollback left inconsistent state for: %v", failedPaths)
		return apierr.New(apierr.CodeCriticalInconsistentState, "rollback left inconsistent state").
			WithContext("paths", failedPaths)
	}
	return nil
}

func (e *Executor) reverseResourceOp(op model.ResourceOp) error {
	switch op.Kind {
	case model.ResourceCreate:
		return e.Queue.Enqueue(model.FileOperation{OperationType: model.OpDelete, FilePath: op.URI})
	case model.ResourceRename:
		return e.Queue.Enqueue(model.FileOperation{OperationType: model.OpRename, FilePath: op.NewURI, Params: map[string]any{"new_path": op.OldURI}})
	case model.ResourceDelete:
		// The file's bytes are restored via the snapshot pass; nothing to
		// reverse here directly (recreation happens as a write, not a
		// resource op).
		return nil
	default:
		return nil
	}
}

func describeOp(op model.ResourceOp) string {
	switch op.Kind {
	case model.ResourceRename:
		return op.OldURI + " -> " + op.NewURI
	default:
		return op.URI
	}
}

// runValidation runs an advisory syntax-only check against every touched
// Go file (braces balance), a cheap proxy for "didn't obviously corrupt
// the file". It never blocks success: a failing check is reported but
// does not fail the plan, matching spec §4.8 step 8's "optional
// post-validation" framing.
func (e *Executor) runValidation(plan *model.RefactorPlan, edits []model.TextEdit) *ValidationReport {
	report := &ValidationReport{Passed: true}
	for _, path := range dedupeStrings(textEditFiles(edits)) {
		if !strings.HasSuffix(path, ".go") {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if !bracesBalanced(string(data)) {
			report.Passed = false
			report.Issues = append(report.Issues, "unbalanced braces in "+path)
		}
	}
	return report
}

func bracesBalanced(content string) bool {
	depth := 0
	for _, r := range content {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
		}
		if depth < 0 {
			return false
		}
	}
	return depth == 0
}
