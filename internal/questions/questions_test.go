package questions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitPageNumberedQuestions(t *testing.T) {
	text := `SECTION A - Answer all questions.

1. State Ohm's law and define resistivity.

2. Refer to Figure 2.1 and calculate the equivalent resistance.
   (a) 4 ohm
   (b) 6 ohm
   (c) 8 ohm
   (d) 12 ohm

3) Using Table 3, compare the boiling points of the listed compounds.`

	qs := SplitPage(2, text)
	require.Len(t, qs, 3)

	assert.Equal(t, 2, qs[0].PageNumber)
	assert.Contains(t, qs[0].Text, "Ohm's law")
	assert.False(t, qs[0].HasDiagram)
	assert.Equal(t, "descriptive", qs[0].Type)

	assert.True(t, qs[1].HasDiagram, "figure mention flags the question")
	assert.Equal(t, "mcq", qs[1].Type)

	assert.True(t, qs[2].HasDiagram, "table mention flags the question")
	assert.NotEmpty(t, qs[2].ID)
}

func TestSplitPageQPrefix(t *testing.T) {
	text := `Q1. Sketch the circuit shown in Diagram 4.
Q. 2) Explain the trend in the graph.`

	qs := SplitPage(1, text)
	require.Len(t, qs, 2)
	assert.True(t, qs[0].HasDiagram)
	assert.False(t, qs[1].HasDiagram, "the word graph alone is not a labeled mention")
}

func TestSplitPageNoMarkers(t *testing.T) {
	assert.Empty(t, SplitPage(1, "General instructions: use blue or black ink only."))
}

func TestMentions(t *testing.T) {
	text := "Refer to Figure 5.1 and fig. 5.1 again, then Table 2 and Figure 6."
	got := Mentions(text)
	require.Len(t, got, 3, "duplicate mentions collapse case-insensitively")
	assert.Contains(t, got, "Figure 5.1")
	assert.Contains(t, got, "Table 2")
	assert.Contains(t, got, "Figure 6")
}

func TestMentionsNone(t *testing.T) {
	assert.Empty(t, Mentions("Define entropy in your own words."))
}
