package changeset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineDiff_Numbering(t *testing.T) {
	t.Parallel()

	got := lineDiff("a\nb\nc\n", "a\nB\nc\nd\n", DefaultContextLines)

	assert.Equal(t, []Line{
		{Number: 1, Op: OpContext, Text: "a"},
		{Number: 2, Op: OpDelete, Text: "b"},
		{Number: 2, Op: OpAdd, Text: "B"},
		{Number: 3, Op: OpContext, Text: "c"},
		{Number: 4, Op: OpAdd, Text: "d"},
	}, got)
}

func TestLineDiff_TrimsDistantContext(t *testing.T) {
	t.Parallel()

	got := lineDiff("1\n2\n3\n4\n5\n", "1\n2\n3\n4\n5\n6\n", 1)

	assert.Equal(t, []Line{
		{Number: 5, Op: OpContext, Text: "5"},
		{Number: 6, Op: OpAdd, Text: "6"},
	}, got)
}

func TestLineDiff_NewFile(t *testing.T) {
	t.Parallel()

	got := lineDiff("", "x\ny", DefaultContextLines)

	assert.Equal(t, []Line{
		{Number: 1, Op: OpAdd, Text: "x"},
		{Number: 2, Op: OpAdd, Text: "y"},
	}, got)
}
