package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namandhakad712/Rankify-sub003/internal/model"
)

func storedRegion(id, doc string, page int, y float64) model.DiagramRegion {
	return model.DiagramRegion{
		ID:         id,
		DocumentID: doc,
		PageNumber: page,
		Box:        model.NormalizedBox{X: 0.1, Y: y, Width: 0.3, Height: 0.2},
		Confidence: 3,
		Type:       model.DiagramGraph,
		Version:    1,
	}
}

func TestStoreRegionRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.PutRegion(storedRegion("r1", "doc-1", 2, 0.3)))

	got, ok := s.GetRegion("r1")
	require.True(t, ok)
	assert.Equal(t, "doc-1", got.DocumentID)
	assert.Equal(t, 2, got.PageNumber)

	_, ok = s.GetRegion("missing")
	assert.False(t, ok)
}

func TestStoreRegionsByPageOrdered(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.PutRegion(storedRegion("low", "doc-1", 2, 0.8)))
	require.NoError(t, s.PutRegion(storedRegion("high", "doc-1", 2, 0.1)))
	require.NoError(t, s.PutRegion(storedRegion("other", "doc-1", 3, 0.1)))

	page := s.RegionsByPage("doc-1", 2)
	require.Len(t, page, 2)
	assert.Equal(t, "high", page[0].ID)
	assert.Equal(t, "low", page[1].ID)

	all := s.RegionsByDocument("doc-1")
	require.Len(t, all, 3)
	assert.Equal(t, "other", all[2].ID, "ordered by page, then position")
}

func TestStorePutRegionReplacesAndReindexes(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.PutRegion(storedRegion("r1", "doc-1", 2, 0.3)))

	moved := storedRegion("r1", "doc-1", 5, 0.3)
	moved.Version = 2
	require.NoError(t, s.PutRegion(moved))

	assert.Empty(t, s.RegionsByPage("doc-1", 2))
	require.Len(t, s.RegionsByPage("doc-1", 5), 1)
	got, _ := s.GetRegion("r1")
	assert.Equal(t, 2, got.Version)
}

func TestStoreDeleteRegionScrubsAssignments(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.PutRegion(storedRegion("r1", "doc-1", 2, 0.3)))
	require.NoError(t, s.PutRegion(storedRegion("r2", "doc-1", 2, 0.6)))
	s.PutAssignment("q1", []string{"r1", "r2"})
	s.PutAssignment("q2", []string{"r1"})

	require.True(t, s.DeleteRegion("r1"))

	// No dangling references anywhere.
	assert.Equal(t, []string{"r2"}, s.Assignment("q1"))
	assert.Empty(t, s.Assignment("q2"))
	assert.Empty(t, s.QuestionsForRegion("r1"))
	assert.False(t, s.DeleteRegion("r1"), "second delete is a no-op")
}

func TestStoreReverseLookup(t *testing.T) {
	s := NewMemoryStore()
	s.PutAssignment("q1", []string{"r1"})
	s.PutAssignment("q2", []string{"r1", "r2"})

	assert.Equal(t, []string{"q1", "q2"}, s.QuestionsForRegion("r1"))
	assert.Equal(t, []string{"q2"}, s.QuestionsForRegion("r2"))

	// Reassignment drops the old reverse entries.
	s.PutAssignment("q1", []string{"r2"})
	assert.Equal(t, []string{"q2"}, s.QuestionsForRegion("r1"))
}

func TestStoreQuestionsRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	qs := []model.Question{
		{ID: "q1", Text: "first", PageNumber: 1, HasDiagram: true},
		{ID: "q2", Text: "second", PageNumber: 2},
	}
	require.NoError(t, s.PutQuestions("doc-1", qs))

	got := s.Questions("doc-1")
	require.Len(t, got, 2)
	assert.Equal(t, "q1", got[0].ID)
	assert.Empty(t, s.Questions("doc-2"))
}

func TestStoreDeleteDocumentCascades(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.PutRegion(storedRegion("r1", "doc-1", 1, 0.2)))
	require.NoError(t, s.PutRegion(storedRegion("r2", "doc-1", 2, 0.4)))
	require.NoError(t, s.PutRegion(storedRegion("keep", "doc-2", 1, 0.4)))
	require.NoError(t, s.PutQuestions("doc-1", []model.Question{{ID: "q1", HasDiagram: true}}))
	s.PutAssignment("q1", []string{"r1"})

	removed := s.DeleteDocument("doc-1")

	assert.Equal(t, 2, removed)
	assert.Empty(t, s.RegionsByDocument("doc-1"))
	assert.Empty(t, s.Questions("doc-1"))
	assert.Empty(t, s.Assignment("q1"))
	_, ok := s.GetRegion("keep")
	assert.True(t, ok, "other documents untouched")
}

func TestStoreReset(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.PutRegion(storedRegion("r1", "doc-1", 1, 0.2)))
	s.PutAssignment("q1", []string{"r1"})

	s.Reset()

	assert.Empty(t, s.RegionsByDocument("doc-1"))
	assert.Empty(t, s.Assignment("q1"))
	_, ok := s.GetRegion("r1")
	assert.False(t, ok)
}
