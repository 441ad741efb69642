package workflowplanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refakt/refakt/internal/model"
)

func sampleRecipe() Recipe {
	return Recipe{
		NameTemplate: "extract {symbol} from {file}",
		Metadata:     model.WorkflowMetadata{Complexity: 2},
		RequiredParams: []string{
			"symbol", "file",
		},
		Steps: []StepTemplate{
			{
				Tool: "extract_function",
				ParamsTemplate: map[string]any{
					"symbol": "{symbol}",
					"file":   "{file}",
					"label":  "extracting {symbol}",
				},
				DescriptionTemplate: "Extract {symbol} out of {file}",
			},
			{
				Tool: "rename_symbol",
				ParamsTemplate: map[string]any{
					"path": "$steps.0.path",
				},
				DescriptionTemplate:  "Rename the extracted symbol",
				RequiresConfirmation: true,
			},
		},
	}
}

func TestExpandSubstitutesNameAndDescriptions(t *testing.T) {
	r := NewRegistry(map[string]Recipe{"extract_and_rename": sampleRecipe()})

	wf, err := r.Expand(model.Intent{
		Name:   "extract_and_rename",
		Params: map[string]any{"symbol": "helper", "file": "main.go"},
	})
	require.NoError(t, err)

	assert.Equal(t, "extract helper from main.go", wf.Name)
	assert.Equal(t, 2, wf.Metadata.Complexity)
	require.Len(t, wf.Steps, 2)
	assert.Equal(t, "Extract helper out of main.go", wf.Steps[0].Description)
	assert.Equal(t, "helper", wf.Steps[0].Params["symbol"], "expected typed substitution for pure placeholder")
	assert.Equal(t, "extracting helper", wf.Steps[0].Params["label"], "expected stringified substitution inside larger string")
	assert.True(t, wf.Steps[1].RequiresConfirmation)
	assert.Equal(t, "$steps.0.path", wf.Steps[1].Params["path"], "expected $steps reference left unresolved")
}

func TestExpandMissingRequiredParam(t *testing.T) {
	r := NewRegistry(map[string]Recipe{"extract_and_rename": sampleRecipe()})

	_, err := r.Expand(model.Intent{Name: "extract_and_rename", Params: map[string]any{"symbol": "helper"}})
	require.Error(t, err)
}

func TestExpandUnknownRecipe(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Expand(model.Intent{Name: "does_not_exist", Params: map[string]any{}})
	require.Error(t, err)
}

func TestExpandTypedNonStringSubstitution(t *testing.T) {
	recipe := Recipe{
		NameTemplate: "batch {count}",
		Steps: []StepTemplate{
			{
				Tool: "batch",
				ParamsTemplate: map[string]any{
					"count": "{count}",
					"items": []any{"{first}", "{second}"},
				},
			},
		},
	}
	r := NewRegistry(map[string]Recipe{"batch": recipe})

	wf, err := r.Expand(model.Intent{
		Name:   "batch",
		Params: map[string]any{"count": 3, "first": "a.go", "second": "b.go"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, wf.Steps[0].Params["count"], "expected typed int substitution")

	items, ok := wf.Steps[0].Params["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 2)
	assert.Equal(t, "a.go", items[0])
	assert.Equal(t, "b.go", items[1])
}
