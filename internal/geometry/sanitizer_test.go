package geometry

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namandhakad712/Rankify-sub003/internal/model"
)

func box(x, y, w, h float64) model.NormalizedBox {
	return model.NormalizedBox{X: x, Y: y, Width: w, Height: h}
}

func assertInvariants(t *testing.T, b model.NormalizedBox, cfg Config) {
	t.Helper()
	assert.GreaterOrEqual(t, b.X, 0.0)
	assert.GreaterOrEqual(t, b.Y, 0.0)
	assert.LessOrEqual(t, b.Right(), 1.0+1e-9)
	assert.LessOrEqual(t, b.Bottom(), 1.0+1e-9)
	assert.GreaterOrEqual(t, b.Width, cfg.MinWidth-1e-9)
	assert.GreaterOrEqual(t, b.Height, cfg.MinHeight-1e-9)
}

func TestSanitizeEnforcesInvariants(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSanitizer(cfg)

	tests := []struct {
		name string
		in   model.NormalizedBox
	}{
		{"already valid", box(0.1, 0.1, 0.3, 0.2)},
		{"overhanging right edge", box(0.9, 0.1, 0.3, 0.2)},
		{"overhanging bottom edge", box(0.1, 0.95, 0.2, 0.3)},
		{"negative origin", box(-0.05, -0.05, 0.3, 0.3)},
		{"tiny box in the middle", box(0.5, 0.5, 0.001, 0.001)},
		{"tiny box at left edge", box(0.0, 0.5, 0.001, 0.05)},
		{"inverted x", box(0.6, 0.2, -0.3, 0.2)},
		{"inverted both", box(0.6, 0.7, -0.3, -0.4)},
		{"full page", box(0, 0, 1, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.Sanitize(tt.in, ContextAIResponse, model.DiagramGraph)
			require.False(t, res.Dropped, "drop reason: %s", res.DropReason)
			assertInvariants(t, res.Box, cfg)
		})
	}
}

func TestSanitizeIsIdempotent(t *testing.T) {
	s := NewSanitizer(DefaultConfig())

	inputs := []model.NormalizedBox{
		box(0.1, 0.1, 0.3, 0.2),
		box(0.9, 0.1, 0.3, 0.2),
		box(0.5, 0.5, 0.001, 0.001),
		box(0.6, 0.2, -0.3, 0.2),
		box(-0.05, 0.97, 0.5, 0.5),
		box(0.123456, 0.654321, 0.0421, 0.0377),
		// Tall box clamped against the top-left corner: aspect correction
		// must reach the bound in one call, not creep toward it.
		box(-0.075, -0.044, 0.140, 0.435),
		// Bottom edge lands exactly on 1.0 after snapping.
		box(0.1, 0.7951, 0.3, 0.2049),
	}

	for _, ctx := range []Context{ContextManualEdit, ContextAIResponse, ContextStorageRead} {
		for _, in := range inputs {
			first := s.Sanitize(in, ctx, model.DiagramTable)
			if first.Dropped {
				continue
			}
			second := s.Sanitize(first.Box, ctx, model.DiagramTable)
			require.False(t, second.Dropped)
			assert.Equal(t, first.Box, second.Box, "ctx=%s in=%+v", ctx, in)
			assert.Empty(t, second.Changes, "second pass must be a no-op, ctx=%s in=%+v", ctx, in)
		}
	}
}

func TestSanitizeIsIdempotentFuzzed(t *testing.T) {
	s := NewSanitizer(DefaultConfig())
	rng := rand.New(rand.NewSource(1))

	contexts := []Context{ContextManualEdit, ContextAIResponse, ContextStorageRead}
	types := []model.DiagramType{
		model.DiagramGraph, model.DiagramTable, model.DiagramFlowchart, model.DiagramOther,
	}

	for i := 0; i < 5000; i++ {
		in := box(
			rng.Float64()*1.4-0.2,
			rng.Float64()*1.4-0.2,
			rng.Float64()*1.4-0.2,
			rng.Float64()*1.4-0.2,
		)
		ctx := contexts[i%len(contexts)]
		dtype := types[i%len(types)]

		first := s.Sanitize(in, ctx, dtype)
		if first.Dropped {
			continue
		}
		second := s.Sanitize(first.Box, ctx, dtype)
		require.False(t, second.Dropped, "ctx=%s type=%s in=%+v", ctx, dtype, in)
		require.Equal(t, first.Box, second.Box, "ctx=%s type=%s in=%+v", ctx, dtype, in)
		require.Empty(t, second.Changes, "second pass must be a no-op, ctx=%s type=%s in=%+v", ctx, dtype, in)
	}
}

func TestSanitizeSwapsInvertedCoordinates(t *testing.T) {
	s := NewSanitizer(DefaultConfig())

	// x2 < x1: same effective rectangle expressed with a negative width.
	res := s.Sanitize(box(0.6, 0.2, -0.3, 0.2), ContextStorageRead, model.DiagramOther)
	require.False(t, res.Dropped)
	assert.InDelta(t, 0.3, res.Box.X, 1e-9)
	assert.InDelta(t, 0.3, res.Box.Width, 1e-9)
	assert.NotEmpty(t, res.Changes)
}

func TestSanitizeGrowsToMinimumWidth(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSanitizer(cfg)

	res := s.Sanitize(box(0.5, 0.5, 0.001, 0.1), ContextAIResponse, model.DiagramGraph)
	require.False(t, res.Dropped)
	assert.InDelta(t, cfg.MinWidth, res.Box.Width, 1e-9)

	// Growth against one edge shifts inward and still reaches the minimum.
	res = s.Sanitize(box(0.999, 0.5, 0.001, 0.1), ContextAIResponse, model.DiagramGraph)
	require.False(t, res.Dropped)
	assert.InDelta(t, cfg.MinWidth, res.Box.Width, 1e-9)
	assert.InDelta(t, 1.0, res.Box.Right(), 1e-9)
}

func TestSanitizeDropsUnrecoverableBoxes(t *testing.T) {
	s := NewSanitizer(DefaultConfig())

	tests := []struct {
		name string
		in   model.NormalizedBox
	}{
		{"entirely right of page", box(1.2, 0.5, 0.3, 0.3)},
		{"entirely above page", box(0.5, -0.5, 0.3, 0.3)},
		{"zero area outside", box(1.0, 0.5, 0.0, 0.1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.Sanitize(tt.in, ContextAIResponse, model.DiagramOther)
			assert.True(t, res.Dropped)
			assert.NotEmpty(t, res.DropReason)
		})
	}
}

func TestSanitizeAspectCorrectionByContext(t *testing.T) {
	s := NewSanitizer(DefaultConfig())

	// A square "table" violates the default min ratio of 1.2.
	square := box(0.4, 0.4, 0.2, 0.2)

	ai := s.Sanitize(square, ContextAIResponse, model.DiagramTable)
	require.False(t, ai.Dropped)
	assert.Greater(t, ai.Box.Width/ai.Box.Height, 1.19, "ai-response should widen tables")

	// storage-read leaves valid geometry alone even when policy disagrees.
	stored := s.Sanitize(square, ContextStorageRead, model.DiagramTable)
	require.False(t, stored.Dropped)
	assert.Equal(t, square, stored.Box)
	assert.Empty(t, stored.Changes)

	// Graphs are unbounded by default.
	graph := s.Sanitize(square, ContextAIResponse, model.DiagramGraph)
	require.False(t, graph.Dropped)
	assert.Equal(t, square, graph.Box)
}

func TestSanitizeAspectCorrectionAtPageEdge(t *testing.T) {
	s := NewSanitizer(DefaultConfig())

	// Clamping leaves a 0.065x0.391 sliver in the top-left corner; the
	// table bound of 1.2 must be reached in a single call even though
	// symmetric growth is blocked by the left edge.
	res := s.Sanitize(box(-0.075, -0.044, 0.140, 0.435), ContextAIResponse, model.DiagramTable)
	require.False(t, res.Dropped)
	assert.GreaterOrEqual(t, res.Box.Width/res.Box.Height, 1.2-1e-3,
		"widening against an edge must still reach the bound")

	again := s.Sanitize(res.Box, ContextAIResponse, model.DiagramTable)
	require.False(t, again.Dropped)
	assert.Equal(t, res.Box, again.Box)
	assert.Empty(t, again.Changes)
}

func TestSanitizeSnapRecordsNoPhantomChanges(t *testing.T) {
	s := NewSanitizer(DefaultConfig())

	// 0.205/0.005 is 41.000000000000004 in float, and 0.795+0.205 sums
	// past 1.0 by one ulp. Neither may surface as a correction.
	in := box(0.1, 0.795, 0.3, 0.205)
	res := s.Sanitize(in, ContextManualEdit, model.DiagramOther)
	require.False(t, res.Dropped)
	assert.Equal(t, in, res.Box)
	assert.Empty(t, res.Changes)
}

func TestSanitizeManualEditSnapsToGrid(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSanitizer(cfg)

	res := s.Sanitize(box(0.1013, 0.2024, 0.3049, 0.1988), ContextManualEdit, model.DiagramOther)
	require.False(t, res.Dropped)
	for _, v := range []float64{res.Box.X, res.Box.Y, res.Box.Width, res.Box.Height} {
		assert.InDelta(t, 0, remainder(v, cfg.SnapGrid), 1e-9, "value %v not on grid", v)
	}

	// storage-read must not snap.
	stored := s.Sanitize(box(0.1013, 0.2024, 0.3049, 0.1988), ContextStorageRead, model.DiagramOther)
	require.False(t, stored.Dropped)
	assert.Equal(t, 0.1013, stored.Box.X)
}

func remainder(v, grid float64) float64 {
	n := v / grid
	frac := n - float64(int64(n+0.5))
	if frac < 0 {
		frac = -frac
	}
	return frac
}

func TestSanitizeConfidencePenalty(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSanitizer(cfg)

	// Three fields corrected: inverted swap touches x and width, growth
	// touches height. Exceeds the threshold of 2.
	res := s.Sanitize(box(0.6, 0.2, -0.3, 0.001), ContextAIResponse, model.DiagramOther)
	require.False(t, res.Dropped)
	assert.Greater(t, res.CorrectedFields(), cfg.CorrectionThreshold)
	assert.Equal(t, cfg.ConfidencePenalty, res.ConfidencePenalty)

	// A clean box pays no penalty.
	clean := s.Sanitize(box(0.1, 0.1, 0.3, 0.2), ContextAIResponse, model.DiagramOther)
	require.False(t, clean.Dropped)
	assert.Zero(t, clean.ConfidencePenalty)
}
