// Package importutil is a minimal, allocation-light text toolbox used by
// language plugins to rewrite import blocks without reaching for a full
// parser. It mirrors the line-splice helpers codeNERD's codedom tools
// (internal/tools/codedom/lines.go) use for edit_lines/insert_lines, but
// scoped to the line-accurate, line-ending-preserving primitives spec §4.2
// names: find_last_matching_line, insert_line_at, remove_lines_matching
// and replace_in_lines.
package importutil

import "strings"

// LineEnding is the dominant terminator detected in a file's content.
type LineEnding string

const (
	LF   LineEnding = "\n"
	CRLF LineEnding = "\r\n"
)

// DetectLineEnding returns CRLF iff content contains at least one CRLF
// sequence, else LF. This is the "dominant line terminator" spec §3's
// line-ending-preservation invariant refers to.
func DetectLineEnding(content string) LineEnding {
	if strings.Contains(content, "\r\n") {
		return CRLF
	}
	return LF
}

// SplitLines splits content into lines without their terminators, using a
// code-point-aware (not byte-count-aware, though Go ranges over runes the
// same either way for line splitting) scan. The trailing empty element
// produced by a final newline is preserved so callers can distinguish
// "ends with newline" from "does not".
func SplitLines(content string) []string {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	return strings.Split(normalized, "\n")
}

// JoinLines re-joins lines using the given line ending, restoring CRLF if
// that was the file's dominant terminator.
func JoinLines(lines []string, ending LineEnding) string {
	return strings.Join(lines, string(ending))
}

// FindLastMatchingLine returns the index of the last line in content for
// which predicate returns true, or -1 if no line matches.
func FindLastMatchingLine(content string, predicate func(line string) bool) int {
	lines := SplitLines(content)
	for i := len(lines) - 1; i >= 0; i-- {
		if predicate(lines[i]) {
			return i
		}
	}
	return -1
}

// InsertLineAt inserts newLine at lineIndex (0-based). An index at or past
// the current line count appends, per spec §4.2.
func InsertLineAt(content string, lineIndex int, newLine string) string {
	ending := DetectLineEnding(content)
	lines := SplitLines(content)

	if lineIndex < 0 {
		lineIndex = 0
	}
	if lineIndex >= len(lines) {
		lines = append(lines, newLine)
		return JoinLines(lines, ending)
	}

	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:lineIndex]...)
	out = append(out, newLine)
	out = append(out, lines[lineIndex:]...)
	return JoinLines(out, ending)
}

// RemoveLinesMatching drops every line for which predicate returns true,
// returning the new content and the count of removed lines.
func RemoveLinesMatching(content string, predicate func(line string) bool) (string, int) {
	ending := DetectLineEnding(content)
	lines := SplitLines(content)

	out := make([]string, 0, len(lines))
	removed := 0
	for _, line := range lines {
		if predicate(line) {
			removed++
			continue
		}
		out = append(out, line)
	}
	return JoinLines(out, ending), removed
}

// ReplaceInLines replaces every occurrence of old with new across all
// lines of content, returning the new content and the number of lines that
// were changed (not the number of substring occurrences).
func ReplaceInLines(content, old, new string) (string, int) {
	if old == "" {
		return content, 0
	}
	ending := DetectLineEnding(content)
	lines := SplitLines(content)

	changed := 0
	out := make([]string, len(lines))
	for i, line := range lines {
		if strings.Contains(line, old) {
			out[i] = strings.ReplaceAll(line, old, new)
			changed++
		} else {
			out[i] = line
		}
	}
	return JoinLines(out, ending), changed
}
