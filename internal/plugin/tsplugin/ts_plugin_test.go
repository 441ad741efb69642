package tsplugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refakt/refakt/internal/model"
	"github.com/refakt/refakt/internal/plugin"
)

func TestParseImportsNamedAndAliased(t *testing.T) {
	src := `import { myUtil as aliasedUtil } from './utils';
console.log(aliasedUtil());
`
	p := New("/proj")
	infos, err := p.ParseImports([]byte(src))
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "./utils", infos[0].ModulePath)
	require.Len(t, infos[0].NamedImports, 1)
	assert.Equal(t, "aliasedUtil", infos[0].NamedImports[0].Alias, "expected aliased import preserved")
}

func TestRewriteFileReferencesBatchTS(t *testing.T) {
	src := "import { myUtil } from './utils';\nconsole.log(myUtil());\n"
	p := New("/proj")
	result, err := p.RewriteFileReferencesBatch([]byte(src), []plugin.BatchRename{
		{OldPath: "/proj/src/utils.ts", NewPath: "/proj/src/renamed_utils.ts"},
	}, "/proj/src/main.ts", "/proj", nil)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "import { myUtil } from './renamed_utils';\nconsole.log(myUtil());\n", result.Content)
}

func TestScanModuleReferencesEverything(t *testing.T) {
	src := "// utils helper\nimport { x } from 'utils';\nutils.foo();\n"
	p := New("/proj")
	refs, err := p.ScanModuleReferences([]byte(src), "utils", model.ScanEverything)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(refs), 2, "expected at least 2 references, got %+v", refs)
}
