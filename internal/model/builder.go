package model

import "time"

// PlanBuilder is a fluent, data-only constructor for EditPlan. It injects
// the defaults spec §4.3 calls for (empty validations, complexity 1, no
// impact areas) and performs no I/O.
type PlanBuilder struct {
	plan EditPlan
}

// NewPlanBuilder starts a builder for a plan rooted at sourceFile.
func NewPlanBuilder(sourceFile, intentName string) *PlanBuilder {
	return &PlanBuilder{
		plan: EditPlan{
			SourceFile: sourceFile,
			Metadata: PlanMetadata{
				IntentName: intentName,
				CreatedAt:  time.Now(),
				Complexity: 1,
			},
		},
	}
}

// WithEdit appends a single text edit.
func (b *PlanBuilder) WithEdit(e TextEdit) *PlanBuilder {
	b.plan.Edits = append(b.plan.Edits, e)
	return b
}

// WithEdits appends a batch of text edits.
func (b *PlanBuilder) WithEdits(edits ...TextEdit) *PlanBuilder {
	b.plan.Edits = append(b.plan.Edits, edits...)
	return b
}

// WithResourceOp appends a resource operation.
func (b *PlanBuilder) WithResourceOp(op ResourceOp) *PlanBuilder {
	b.plan.ResourceOps = append(b.plan.ResourceOps, op)
	return b
}

// WithDependencyUpdate appends a manifest delta.
func (b *PlanBuilder) WithDependencyUpdate(d DependencyUpdate) *PlanBuilder {
	b.plan.DependencyUpdates = append(b.plan.DependencyUpdates, d)
	return b
}

// WithValidation adds an advisory validation rule.
func (b *PlanBuilder) WithValidation(v ValidationRule) *PlanBuilder {
	b.plan.Validations = append(b.plan.Validations, v)
	return b
}

// WithImpactArea tags an area of the codebase this plan affects.
func (b *PlanBuilder) WithImpactArea(area string) *PlanBuilder {
	b.plan.Metadata.ImpactAreas = append(b.plan.Metadata.ImpactAreas, area)
	return b
}

// WithIntentArgs attaches the intent's original parameters for traceability.
func (b *PlanBuilder) WithIntentArgs(args map[string]any) *PlanBuilder {
	b.plan.Metadata.IntentArgs = args
	return b
}

// WithComplexity sets complexity directly, clamped to [1, 10].
func (b *PlanBuilder) WithComplexity(n int) *PlanBuilder {
	b.plan.Metadata.Complexity = n
	b.plan.Clamp()
	return b
}

// WithComplexityFromCount sets complexity to min(max(n, 1), 10), the
// convenience mapping spec §4.3 calls out from an affected-file count.
func (b *PlanBuilder) WithComplexityFromCount(n int) *PlanBuilder {
	return b.WithComplexity(n)
}

// MapEditPaths rewrites every accumulated edit's FilePath (or, when a
// per-edit path is absent, SourceFile) through f. Used to remap edits
// targeting a pre-move path to their post-move location once the
// containing file/directory is known to have moved.
func (b *PlanBuilder) MapEditPaths(f func(path string) string) *PlanBuilder {
	for i, e := range b.plan.Edits {
		if e.FilePath != "" {
			b.plan.Edits[i].FilePath = f(e.FilePath)
		}
	}
	b.plan.SourceFile = f(b.plan.SourceFile)
	return b
}

// Build finalizes and returns the constructed EditPlan.
func (b *PlanBuilder) Build() EditPlan {
	b.plan.Clamp()
	return b.plan
}
