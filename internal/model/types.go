// Package model defines the core data types shared by the planner,
// reference updater and executor: ranges, edits, resource operations,
// plans and intents (spec §3). Types here are pure data — no I/O, no
// subsystem dependencies — so they are cheap to construct, clone and
// serialize for preview-vs-execute flows.
package model

import "time"

// CodeRange is a half-open, zero-based range over a file's lines.
// Columns are byte offsets within the line, as the plugins produce them
// (go/token and Tree-sitter positions) and as the executor slices lines;
// on non-ASCII lines they are not code-point indices. Invariant:
// (StartLine, StartCol) <= (EndLine, EndCol).
type CodeRange struct {
	StartLine int `json:"start_line"`
	StartCol  int `json:"start_col"`
	EndLine   int `json:"end_line"`
	EndCol    int `json:"end_col"`
}

// Before reports whether r starts strictly before other in ascending
// (line, column) order. Descending sorts get their order by calling it
// with the operands swapped.
func (r CodeRange) Before(other CodeRange) bool {
	if r.StartLine != other.StartLine {
		return r.StartLine < other.StartLine
	}
	return r.StartCol < other.StartCol
}

func lexLess(line1, col1, line2, col2 int) bool {
	if line1 != line2 {
		return line1 < line2
	}
	return col1 < col2
}

// Intersects reports whether r and other overlap as half-open
// (line, col) ranges: r.start < other.end && other.start < r.end.
func (r CodeRange) Intersects(other CodeRange) bool {
	rStartBeforeOtherEnd := lexLess(r.StartLine, r.StartCol, other.EndLine, other.EndCol)
	otherStartBeforeREnd := lexLess(other.StartLine, other.StartCol, r.EndLine, r.EndCol)
	return rStartBeforeOtherEnd && otherStartBeforeREnd
}

// EditLocation is identical in shape to CodeRange; TextEdit uses this name
// to match the wire vocabulary of spec §3 ("EditLocation").
type EditLocation = CodeRange

// EditType enumerates the kinds of textual change a TextEdit can represent.
type EditType string

const (
	EditInsert       EditType = "Insert"
	EditReplace      EditType = "Replace"
	EditDelete       EditType = "Delete"
	EditRename       EditType = "Rename"
	EditUpdateImport EditType = "UpdateImport"
)

// TextEdit is one textual change, optionally scoped to a specific file.
// When FilePath is empty the containing EditPlan.SourceFile is implied.
type TextEdit struct {
	FilePath     string       `json:"file_path,omitempty"`
	EditType     EditType     `json:"edit_type"`
	Location     EditLocation `json:"location"`
	OriginalText string       `json:"original_text,omitempty"`
	NewText      string       `json:"new_text"`
	Priority     uint16       `json:"priority"`
	Description  string       `json:"description,omitempty"`
}

// File resolves the edit's effective target file given the plan's primary
// source file (used when FilePath is absent).
func (e TextEdit) File(sourceFile string) string {
	if e.FilePath != "" {
		return e.FilePath
	}
	return sourceFile
}

// ResourceOpKind enumerates the non-textual filesystem changes a plan can
// carry.
type ResourceOpKind string

const (
	ResourceCreate ResourceOpKind = "Create"
	ResourceRename ResourceOpKind = "Rename"
	ResourceDelete ResourceOpKind = "Delete"
)

// ResourceOp is a non-textual filesystem change.
type ResourceOp struct {
	Kind   ResourceOpKind `json:"kind"`
	URI    string         `json:"uri,omitempty"`     // Create, Delete
	OldURI string         `json:"old_uri,omitempty"` // Rename
	NewURI string         `json:"new_uri,omitempty"` // Rename
}

// TextDocumentEdit is a batch of TextEdits against one (optionally
// versioned) document, for use inside WorkspaceEdit.DocumentChanges.
type TextDocumentEdit struct {
	FilePath string     `json:"file_path"`
	Version  int        `json:"version,omitempty"`
	Edits    []TextEdit `json:"edits"`
}

// DocumentChange is the tagged union element of
// WorkspaceEdit.DocumentChanges: either a TextDocumentEdit or a ResourceOp.
type DocumentChange struct {
	TextDocumentEdit *TextDocumentEdit `json:"textDocumentEdit,omitempty"`
	ResourceOp       *ResourceOp       `json:"resourceOp,omitempty"`
}

// WorkspaceEdit is an LSP-compatible batch of edits. Exactly one of Changes
// or DocumentChanges is normally populated; the executor must support both
// shapes.
type WorkspaceEdit struct {
	Changes         map[string][]TextEdit `json:"changes,omitempty"`
	DocumentChanges []DocumentChange      `json:"documentChanges,omitempty"`
}

// AllTextEdits flattens both WorkspaceEdit shapes into a single list of
// edits: the Changes entries first (grouped per file, with the file order
// following map iteration and so not defined), then the DocumentChanges
// edits in their listed order.
func (w WorkspaceEdit) AllTextEdits() []TextEdit {
	var out []TextEdit
	for path, edits := range w.Changes {
		for _, e := range edits {
			if e.FilePath == "" {
				e.FilePath = path
			}
			out = append(out, e)
		}
	}
	for _, dc := range w.DocumentChanges {
		if dc.TextDocumentEdit == nil {
			continue
		}
		for _, e := range dc.TextDocumentEdit.Edits {
			if e.FilePath == "" {
				e.FilePath = dc.TextDocumentEdit.FilePath
			}
			out = append(out, e)
		}
	}
	return out
}

// AllResourceOps flattens the ResourceOp elements out of DocumentChanges.
func (w WorkspaceEdit) AllResourceOps() []ResourceOp {
	var out []ResourceOp
	for _, dc := range w.DocumentChanges {
		if dc.ResourceOp != nil {
			out = append(out, *dc.ResourceOp)
		}
	}
	return out
}

// DependencyUpdate is a manifest delta (package.json, Cargo.toml, go.mod,
// ...) produced alongside textual edits when a rename/move touches a
// package manifest.
type DependencyUpdate struct {
	ManifestPath string `json:"manifest_path"`
	OldName      string `json:"old_name,omitempty"`
	NewName      string `json:"new_name,omitempty"`
	NewVersion   string `json:"new_version,omitempty"`
}

// ValidationRule is an advisory post-execution check; the executor may run
// none of them.
type ValidationRule string

const (
	ValidationSyntaxCheck ValidationRule = "SyntaxCheck"
	ValidationTypeCheck   ValidationRule = "TypeCheck"
)

// PlanMetadata describes an EditPlan's provenance and shape.
type PlanMetadata struct {
	IntentName    string         `json:"intent_name"`
	IntentArgs    map[string]any `json:"intent_arguments,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	Complexity    int            `json:"complexity"`
	ImpactAreas   []string       `json:"impact_areas,omitempty"`
	Consolidation bool           `json:"consolidation,omitempty"`
}

// EditPlan is the primitive plan unit produced by the Reference Updater
// and consumed by the Planner.
type EditPlan struct {
	SourceFile        string             `json:"source_file"`
	Edits             []TextEdit         `json:"edits"`
	ResourceOps       []ResourceOp       `json:"resource_ops,omitempty"`
	DependencyUpdates []DependencyUpdate `json:"dependency_updates,omitempty"`
	Validations       []ValidationRule   `json:"validations,omitempty"`
	Metadata          PlanMetadata       `json:"metadata"`
}

// Clamp bounds the plan's complexity to [1, 10] per spec §4.3.
func (p *EditPlan) Clamp() {
	if p.Metadata.Complexity < 1 {
		p.Metadata.Complexity = 1
	}
	if p.Metadata.Complexity > 10 {
		p.Metadata.Complexity = 10
	}
}

// ImpactLevel buckets the number of affected files into spec §4.6's
// complexity/impact tiers.
type ImpactLevel string

const (
	ImpactLow    ImpactLevel = "low"
	ImpactMedium ImpactLevel = "medium"
	ImpactHigh   ImpactLevel = "high"
)

// ImpactFor returns the spec-defined impact tier for n affected files:
// <=3 -> low, <=10 -> medium, else high.
func ImpactFor(n int) ImpactLevel {
	switch {
	case n <= 3:
		return ImpactLow
	case n <= 10:
		return ImpactMedium
	default:
		return ImpactHigh
	}
}

// PlanKind tags the RefactorPlan union.
type PlanKind string

const (
	KindRename    PlanKind = "RenamePlan"
	KindExtract   PlanKind = "ExtractPlan"
	KindInline    PlanKind = "InlinePlan"
	KindMove      PlanKind = "MovePlan"
	KindReorder   PlanKind = "ReorderPlan"
	KindTransform PlanKind = "TransformPlan"
	KindDelete    PlanKind = "DeletePlan"
)

// PlanSummary lists the files a RefactorPlan touches.
type PlanSummary struct {
	AffectedFiles []string `json:"affected_files,omitempty"`
	CreatedFiles  []string `json:"created_files,omitempty"`
	DeletedFiles  []string `json:"deleted_files,omitempty"`
}

// Warning is a non-fatal annotation surfaced on a plan (e.g. a reference
// found during a force-less delete).
type Warning struct {
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

// RefactorMetadata is the top-level metadata block of a RefactorPlan.
type RefactorMetadata struct {
	ID              string      `json:"id"`
	PlanVersion     string      `json:"plan_version"`
	Kind            PlanKind    `json:"kind"`
	Language        string      `json:"language,omitempty"`
	EstimatedImpact ImpactLevel `json:"estimated_impact"`
	CreatedAt       time.Time   `json:"created_at"`
}

// DeletionTarget is one entry of DeletePlan.Deletions.
type DeletionTarget struct {
	Path string `json:"path"`
	Kind string `json:"kind"` // symbol | file | directory
}

// RefactorPlan is the tagged-union plan type returned to callers: a
// reviewable, serializable description of one refactor intent's effect.
type RefactorPlan struct {
	Edits    WorkspaceEdit    `json:"edits"`
	Summary  PlanSummary      `json:"summary"`
	Warnings []Warning        `json:"warnings,omitempty"`
	Metadata RefactorMetadata `json:"metadata"`

	// FileChecksums is SHA-256 hex of every affected file's exact bytes at
	// plan-creation time; files the plan creates have no entry here.
	FileChecksums map[string]string `json:"file_checksums"`

	// Deletions is populated only for Kind == KindDelete.
	Deletions []DeletionTarget `json:"deletions,omitempty"`
}

// PlanVersion is the stable wire-format version stamped on every plan.
const PlanVersion = "1.0"

// Intent is a named refactoring request with JSON parameters.
type Intent struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
}

// Step is one primitive tool call inside a Workflow.
type Step struct {
	Tool                 string         `json:"tool"`
	Params               map[string]any `json:"params"`
	Description          string         `json:"description"`
	RequiresConfirmation bool           `json:"requires_confirmation,omitempty"`
}

// WorkflowMetadata carries workflow-level attributes.
type WorkflowMetadata struct {
	Complexity int `json:"complexity"`
}

// Workflow is a user-facing composition of one or more primitive
// refactorings, loaded from configuration.
type Workflow struct {
	Name     string           `json:"name"`
	Metadata WorkflowMetadata `json:"metadata"`
	Steps    []Step           `json:"steps"`
}

// FileOperationType enumerates the concrete filesystem mutations the
// Operation Queue can carry out.
type FileOperationType string

const (
	OpCreateDir  FileOperationType = "CreateDir"
	OpCreateFile FileOperationType = "CreateFile"
	OpWrite      FileOperationType = "Write"
	OpDelete     FileOperationType = "Delete"
	OpRename     FileOperationType = "Rename"
)

// FileOperation is one Operation Queue entry.
type FileOperation struct {
	ID            string            `json:"id"`
	OperationType FileOperationType `json:"operation_type"`
	FilePath      string            `json:"file_path"`
	Params        map[string]any    `json:"params,omitempty"`
	EnqueuedAt    time.Time         `json:"enqueued_at"`
}

// ImportType distinguishes named/default/namespace import shapes across
// languages.
type ImportType string

const (
	ImportNamed      ImportType = "named"
	ImportDefault    ImportType = "default"
	ImportNamespace  ImportType = "namespace"
	ImportSideEffect ImportType = "side_effect"
)

// NamedImport is one named binding inside an import statement.
type NamedImport struct {
	Name     string `json:"name"`
	Alias    string `json:"alias,omitempty"`
	TypeOnly bool   `json:"type_only,omitempty"`
}

// ImportInfo is a decoded import statement, produced by plugins and
// consumed by the Reference Updater.
type ImportInfo struct {
	ModulePath      string        `json:"module_path"`
	ImportType      ImportType    `json:"import_type"`
	NamedImports    []NamedImport `json:"named_imports,omitempty"`
	DefaultImport   string        `json:"default_import,omitempty"`
	NamespaceImport string        `json:"namespace_import,omitempty"`
	TypeOnly        bool          `json:"type_only,omitempty"`
	Location        EditLocation  `json:"location"`
}

// ScanScope controls how aggressively the Reference Updater searches for
// references to a renamed symbol or module.
type ScanScope string

const (
	ScanCode       ScanScope = "Code"
	ScanStandard   ScanScope = "Standard"
	ScanComments   ScanScope = "Comments"
	ScanEverything ScanScope = "Everything"
)

// DefaultScanScope is the spec-mandated default.
const DefaultScanScope = ScanStandard

// RenameScope is an alias of ScanScope used by rename-specific call sites
// for readability; the enumeration is identical (spec §3).
type RenameScope = ScanScope
