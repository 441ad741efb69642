package importutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectLineEnding(t *testing.T) {
	assert.Equal(t, LF, DetectLineEnding("a\nb\n"))
	assert.Equal(t, CRLF, DetectLineEnding("a\r\nb\r\n"))
	assert.Equal(t, CRLF, DetectLineEnding("a\nb\r\nc"), "expected CRLF when any CRLF present")
}

func TestInsertLineAtAppendsPastEnd(t *testing.T) {
	got := InsertLineAt("a\nb\nc", 99, "z")
	assert.Equal(t, "a\nb\nc\nz", got)
}

func TestInsertLineAtMiddle(t *testing.T) {
	got := InsertLineAt("import a\nimport b\n\nfunc main() {}", 2, "import c")
	assert.Equal(t, "import a\nimport b\nimport c\n\nfunc main() {}", got)
}

func TestInsertLinePreservesCRLF(t *testing.T) {
	got := InsertLineAt("a\r\nb\r\nc", 1, "x")
	assert.Equal(t, "a\r\nx\r\nb\r\nc", got)
}

func TestRemoveLinesMatching(t *testing.T) {
	out, removed := RemoveLinesMatching("import a\nimport b\ncode()", func(l string) bool {
		return l == "import b"
	})
	require.Equal(t, 1, removed)
	assert.Equal(t, "import a\ncode()", out)
}

func TestReplaceInLines(t *testing.T) {
	out, changed := ReplaceInLines("import './utils'\nconsole.log(1)\nimport './utils2'", "./utils", "./renamed_utils")
	require.Equal(t, 2, changed)
	assert.Equal(t, "import './renamed_utils'\nconsole.log(1)\nimport './renamed_utils2'", out)
}

func TestFindLastMatchingLine(t *testing.T) {
	idx := FindLastMatchingLine("import a\nimport b\ncode()\nimport c", func(l string) bool {
		return len(l) >= 6 && l[:6] == "import"
	})
	assert.Equal(t, 3, idx)
}
