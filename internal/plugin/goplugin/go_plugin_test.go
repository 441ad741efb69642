package goplugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refakt/refakt/internal/model"
	"github.com/refakt/refakt/internal/plugin"
)

func TestParseImports(t *testing.T) {
	src := `package main

import (
	"fmt"
	other "github.com/refakt/refakt/internal/other"
)

func main() { fmt.Println(other.X) }
`
	p := New("/proj")
	infos, err := p.ParseImports([]byte(src))
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "fmt", infos[0].ModulePath)
	assert.Equal(t, "other", infos[1].DefaultImport, "expected alias 'other'")
}

func TestRewriteFileReferencesBatch(t *testing.T) {
	src := `package main

import "internal/utils"

func main() { utils.Do() }
`
	p := New("/proj")
	result, err := p.RewriteFileReferencesBatch([]byte(src), []plugin.BatchRename{
		{OldPath: "/proj/internal/utils/utils.go", NewPath: "/proj/internal/renamed_utils/utils.go"},
	}, "/proj/main.go", "/proj", nil)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Changes)
}

func TestRewriteFileReferencesBatchNoMatch(t *testing.T) {
	src := `package main

import "fmt"

func main() { fmt.Println("hi") }
`
	p := New("/proj")
	result, err := p.RewriteFileReferencesBatch([]byte(src), []plugin.BatchRename{
		{OldPath: "/proj/internal/utils/utils.go", NewPath: "/proj/internal/renamed_utils/utils.go"},
	}, "/proj/main.go", "/proj", nil)
	require.NoError(t, err)
	assert.Nil(t, result, "expected nil result when nothing changed")
}

func TestScanModuleReferencesCode(t *testing.T) {
	src := `package main

// utils is great
func main() { utils.Do() }
`
	p := New("/proj")
	refs, err := p.ScanModuleReferences([]byte(src), "utils", model.ScanStandard)
	require.NoError(t, err)
	assert.Len(t, refs, 2, "expected 2 references (code + comment)")
}

func TestPlanExtractVariable(t *testing.T) {
	src := "func f() {\n\tfmt.Println(1 + 2)\n}\n"
	p := New("/proj")
	res, err := p.PlanExtractVariable("f.go", []byte(src), model.EditLocation{StartLine: 1, StartCol: 14, EndLine: 1, EndCol: 19}, "sum")
	require.NoError(t, err)
	assert.Len(t, res.Plan.Edits, 2)
}
