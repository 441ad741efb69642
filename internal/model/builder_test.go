package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanBuilderDefaults(t *testing.T) {
	plan := NewPlanBuilder("src/main.go", "rename.symbol").Build()

	assert.Equal(t, 1, plan.Metadata.Complexity, "expected default complexity 1")
	assert.Empty(t, plan.Validations, "expected no default validations")
	assert.Empty(t, plan.Metadata.ImpactAreas, "expected no default impact areas")
}

func TestPlanBuilderComplexityClamped(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{in: -5, want: 1},
		{in: 0, want: 1},
		{in: 5, want: 5},
		{in: 10, want: 10},
		{in: 99, want: 10},
	}
	for _, c := range cases {
		plan := NewPlanBuilder("x.go", "extract.function").WithComplexityFromCount(c.in).Build()
		assert.Equal(t, c.want, plan.Metadata.Complexity, "WithComplexityFromCount(%d)", c.in)
	}
}

func TestPlanBuilderAccumulatesEdits(t *testing.T) {
	e1 := TextEdit{EditType: EditReplace, NewText: "a"}
	e2 := TextEdit{EditType: EditInsert, NewText: "b"}

	plan := NewPlanBuilder("x.go", "inline.variable").WithEdit(e1).WithEdit(e2).Build()
	require.Len(t, plan.Edits, 2)
}

func TestImpactFor(t *testing.T) {
	cases := []struct {
		n    int
		want ImpactLevel
	}{
		{0, ImpactLow}, {3, ImpactLow}, {4, ImpactMedium}, {10, ImpactMedium}, {11, ImpactHigh},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ImpactFor(c.n), "ImpactFor(%d)", c.n)
	}
}

func TestCodeRangeIntersects(t *testing.T) {
	a := CodeRange{StartLine: 1, StartCol: 0, EndLine: 1, EndCol: 5}
	b := CodeRange{StartLine: 1, StartCol: 3, EndLine: 1, EndCol: 8}
	c := CodeRange{StartLine: 1, StartCol: 5, EndLine: 1, EndCol: 8}

	assert.True(t, a.Intersects(b), "expected a and b to intersect")
	assert.False(t, a.Intersects(c), "expected a and c (touching at boundary) not to intersect")
}
