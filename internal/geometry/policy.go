package geometry

import "github.com/namandhakad712/Rankify-sub003/internal/model"

// AspectBounds constrains the width/height ratio of a diagram type.
// A zero value means the side is unbounded.
type AspectBounds struct {
	MinRatio float64 `json:"min_ratio"` // width/height must be >= MinRatio
	MaxRatio float64 `json:"max_ratio"` // width/height must be <= MaxRatio
}

// AspectPolicy maps diagram types to aspect-ratio bounds. The bounds are
// policy, not constants: detectors disagree on what a "table" looks like,
// so callers may override or clear any entry.
type AspectPolicy map[model.DiagramType]AspectBounds

// DefaultAspectPolicy bounds only the types where the detector is
// reliably wrong: tables come back square far too often, flowcharts come
// back as wide banners. Everything else is unbounded.
func DefaultAspectPolicy() AspectPolicy {
	return AspectPolicy{
		model.DiagramTable:     {MinRatio: 1.2},
		model.DiagramFlowchart: {MaxRatio: 1.4},
	}
}

// BoundsFor returns the bounds for t and whether any are configured
func (p AspectPolicy) BoundsFor(t model.DiagramType) (AspectBounds, bool) {
	if p == nil {
		return AspectBounds{}, false
	}
	b, ok := p[t]
	if !ok || (b.MinRatio <= 0 && b.MaxRatio <= 0) {
		return AspectBounds{}, false
	}
	return b, true
}
