package changeset

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultContextLines is how many unchanged lines surround each edit.
const DefaultContextLines = 3

// Line operations.
const (
	OpAdd     = "+"
	OpDelete  = "-"
	OpContext = " "
)

// Line is one entry of a file's per-line diff. Added and context lines are
// numbered in the new file, deleted lines in the old file.
type Line struct {
	Number int
	Op     string
	Text   string
}

// lineDiff computes the per-line view between two file versions.
func lineDiff(oldText, newText string, contextLines int) []Line {
	dmp := diffmatchpatch.New()
	src, dst, lineArray := dmp.DiffLinesToRunes(oldText, newText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMainRunes(src, dst, false), lineArray)

	var all []Line

	oldLine, newLine := 0, 0

	for _, edit := range diffs {
		for _, text := range splitLines(edit.Text) {
			switch edit.Type {
			case diffmatchpatch.DiffEqual:
				oldLine++
				newLine++
				all = append(all, Line{Number: newLine, Op: OpContext, Text: text})
			case diffmatchpatch.DiffInsert:
				newLine++
				all = append(all, Line{Number: newLine, Op: OpAdd, Text: text})
			case diffmatchpatch.DiffDelete:
				oldLine++
				all = append(all, Line{Number: oldLine, Op: OpDelete, Text: text})
			}
		}
	}

	return trimContext(all, contextLines)
}

// trimContext drops context lines further than n lines from any edit.
func trimContext(all []Line, n int) []Line {
	keep := make([]bool, len(all))

	for i, line := range all {
		if line.Op == OpContext {
			continue
		}

		lo, hi := max(0, i-n), min(len(all)-1, i+n)
		for j := lo; j <= hi; j++ {
			keep[j] = true
		}
	}

	out := make([]Line, 0, len(all))

	for i, line := range all {
		if keep[i] {
			out = append(out, line)
		}
	}

	return out
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}

	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\n")
	}

	return lines
}
