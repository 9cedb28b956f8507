package geometry

import (
	"fmt"
	"math"

	"github.com/namandhakad712/Rankify-sub003/internal/model"
)

// Context selects how strict the sanitizer is about altering input
type Context string

const (
	// ContextManualEdit is lenient: the user is dragging edges, so only
	// snap to the grid and clamp; no aspect correction.
	ContextManualEdit Context = "manual-edit"
	// ContextAIResponse is the strict boundary for untrusted detector
	// output: full correction including type-aware aspect nudging.
	ContextAIResponse Context = "ai-response"
	// ContextStorageRead applies the minimal clamping needed to restore
	// invariants on data we persisted ourselves.
	ContextStorageRead Context = "storage-read"
)

// Default geometry limits
const (
	DefaultMinWidth       = 0.02  // minimum fractional box width
	DefaultMinHeight      = 0.02  // minimum fractional box height
	DefaultSnapGrid       = 0.005 // manual-edit snap grid
	DefaultDegenerateSize = 0.005 // absolute floor after growth; below this the region is dropped

	// DefaultCorrectionThreshold is the number of corrected fields above
	// which the caller should down-weight the region's confidence.
	DefaultCorrectionThreshold = 2
	// DefaultConfidencePenalty is the flat confidence step subtracted
	// when the threshold is exceeded.
	DefaultConfidencePenalty = 1

	maxPasses = 6

	// aspectSlack is the ratio tolerance for aspect correction. Storage
	// quantization perturbs a corrected ratio by up to ~2e-4, so without
	// slack a corrected box would re-trigger correction on re-entry.
	aspectSlack = 1e-3
)

// Change records one correction the sanitizer made to a box field
type Change struct {
	Field  string  `json:"field"`
	Reason string  `json:"reason"`
	From   float64 `json:"from"`
	To     float64 `json:"to"`
}

// Result is the outcome of sanitizing one box. When Dropped is set the
// Box value is meaningless and the region must not be used.
type Result struct {
	Box               model.NormalizedBox `json:"box"`
	Changes           []Change            `json:"changes,omitempty"`
	Dropped           bool                `json:"dropped"`
	DropReason        string              `json:"drop_reason,omitempty"`
	ConfidencePenalty int                 `json:"confidence_penalty"`
}

// CorrectedFields returns how many distinct box fields were altered
func (r Result) CorrectedFields() int {
	seen := map[string]bool{}
	for _, c := range r.Changes {
		seen[c.Field] = true
	}
	return len(seen)
}

// Config holds the sanitizer's tunable limits
type Config struct {
	MinWidth            float64
	MinHeight           float64
	SnapGrid            float64
	DegenerateSize      float64
	CorrectionThreshold int
	ConfidencePenalty   int
	Aspect              AspectPolicy
}

// DefaultConfig returns the sanitizer defaults
func DefaultConfig() Config {
	return Config{
		MinWidth:            DefaultMinWidth,
		MinHeight:           DefaultMinHeight,
		SnapGrid:            DefaultSnapGrid,
		DegenerateSize:      DefaultDegenerateSize,
		CorrectionThreshold: DefaultCorrectionThreshold,
		ConfidencePenalty:   DefaultConfidencePenalty,
		Aspect:              DefaultAspectPolicy(),
	}
}

// Sanitizer enforces the geometric invariants on bounding boxes from any
// origin. It is the single boundary through which untrusted coordinates
// become trusted DiagramRegion geometry.
type Sanitizer struct {
	cfg Config
}

// NewSanitizer creates a sanitizer; zero-valued config fields fall back
// to the defaults.
func NewSanitizer(cfg Config) *Sanitizer {
	def := DefaultConfig()
	if cfg.MinWidth <= 0 {
		cfg.MinWidth = def.MinWidth
	}
	if cfg.MinHeight <= 0 {
		cfg.MinHeight = def.MinHeight
	}
	if cfg.SnapGrid <= 0 {
		cfg.SnapGrid = def.SnapGrid
	}
	if cfg.DegenerateSize <= 0 {
		cfg.DegenerateSize = def.DegenerateSize
	}
	if cfg.CorrectionThreshold <= 0 {
		cfg.CorrectionThreshold = def.CorrectionThreshold
	}
	if cfg.ConfidencePenalty <= 0 {
		cfg.ConfidencePenalty = def.ConfidencePenalty
	}
	if cfg.Aspect == nil {
		cfg.Aspect = def.Aspect
	}
	return &Sanitizer{cfg: cfg}
}

// Sanitize corrects raw into an invariant-respecting box, or drops it.
// The diagram type only matters for aspect correction in the ai-response
// context. Sanitize is idempotent: feeding its output back in yields the
// same box with no further changes.
func (s *Sanitizer) Sanitize(raw model.NormalizedBox, ctx Context, dtype model.DiagramType) Result {
	if !finite(raw.X) || !finite(raw.Y) || !finite(raw.Width) || !finite(raw.Height) {
		return Result{Dropped: true, DropReason: "non-finite coordinates"}
	}
	if outsidePage(raw) {
		return Result{Dropped: true, DropReason: "no intersection with page"}
	}

	res := Result{Box: raw}
	// The correction pipeline runs to a fixpoint. Each individual step is
	// clamped and monotone, so the loop settles within a pass or two; the
	// cap guards against float pathologies.
	for i := 0; i < maxPasses; i++ {
		before := res.Box
		res.Box = s.pass(res.Box, ctx, dtype, &res.Changes)
		if res.Box == before {
			break
		}
	}

	if res.Box.Width < s.cfg.DegenerateSize || res.Box.Height < s.cfg.DegenerateSize {
		return Result{
			Dropped:    true,
			DropReason: fmt.Sprintf("degenerate area %.4fx%.4f after correction", res.Box.Width, res.Box.Height),
			Changes:    res.Changes,
		}
	}

	if res.CorrectedFields() > s.cfg.CorrectionThreshold {
		res.ConfidencePenalty = s.cfg.ConfidencePenalty
	}
	return res
}

// pass applies one round of corrections in invariant order
func (s *Sanitizer) pass(b model.NormalizedBox, ctx Context, dtype model.DiagramType, log *[]Change) model.NormalizedBox {
	b = fixInverted(b, log)
	if ctx == ContextManualEdit {
		b = snapToGrid(b, s.cfg.SnapGrid, log)
	}
	b = clampToPage(b, log)
	b = s.growToMinimum(b, log)
	if ctx == ContextAIResponse {
		b = s.correctAspect(b, dtype, log)
	}
	// Quantize to storage precision. This is representation, not a
	// correction (not logged), and it pins the fixpoint: without it,
	// clamp/snap arithmetic can oscillate in the last float bit.
	b.X = quantize(b.X)
	b.Y = quantize(b.Y)
	b.Width = quantize(b.Width)
	b.Height = quantize(b.Height)
	return b
}

// coordPrecision is the number of decimal places kept for normalized
// coordinates; 1e-6 of a page dimension is far below a pixel at any tier.
const coordPrecision = 1e6

func quantize(v float64) float64 {
	return math.Round(v*coordPrecision) / coordPrecision
}

// fixInverted swaps coordinates expressed with a negative extent
// (x2 < x1 or y2 < y1), preserving the effective rectangle.
func fixInverted(b model.NormalizedBox, log *[]Change) model.NormalizedBox {
	if b.Width < 0 {
		record(log, "x", "inverted x coordinates swapped", b.X, b.X+b.Width)
		record(log, "width", "inverted x coordinates swapped", b.Width, -b.Width)
		b.X += b.Width
		b.Width = -b.Width
	}
	if b.Height < 0 {
		record(log, "y", "inverted y coordinates swapped", b.Y, b.Y+b.Height)
		record(log, "height", "inverted y coordinates swapped", b.Height, -b.Height)
		b.Y += b.Height
		b.Height = -b.Height
	}
	return b
}

// snapToGrid rounds every field to the nearest grid multiple. The
// snapped value is quantized before comparison: grid arithmetic in
// floats (0.205/0.005 = 41.000000000000004) would otherwise report a
// change for a value already on the grid.
func snapToGrid(b model.NormalizedBox, grid float64, log *[]Change) model.NormalizedBox {
	snap := func(field string, v float64) float64 {
		snapped := quantize(math.Round(v/grid) * grid)
		if snapped != v {
			record(log, field, "snapped to grid", v, snapped)
		}
		return snapped
	}
	b.X = snap("x", b.X)
	b.Y = snap("y", b.Y)
	b.Width = snap("width", b.Width)
	b.Height = snap("height", b.Height)
	return b
}

// clampToPage forces all four edges into [0,1]
func clampToPage(b model.NormalizedBox, log *[]Change) model.NormalizedBox {
	if b.X < 0 {
		record(log, "width", "left edge clamped to page", b.Width, b.Width+b.X)
		record(log, "x", "left edge clamped to page", b.X, 0)
		b.Width += b.X
		b.X = 0
	}
	if b.Y < 0 {
		record(log, "height", "top edge clamped to page", b.Height, b.Height+b.Y)
		record(log, "y", "top edge clamped to page", b.Y, 0)
		b.Height += b.Y
		b.Y = 0
	}
	if b.X > 1 {
		record(log, "x", "x clamped to page", b.X, 1)
		b.X = 1
	}
	if b.Y > 1 {
		record(log, "y", "y clamped to page", b.Y, 1)
		b.Y = 1
	}
	if b.Width < 0 {
		record(log, "width", "negative width after clamp", b.Width, 0)
		b.Width = 0
	}
	if b.Height < 0 {
		record(log, "height", "negative height after clamp", b.Height, 0)
		b.Height = 0
	}
	// Trailing edges compare through quantize: for quantized fields the
	// raw sum x+w carries float dust (0.795+0.205 > 1 in float), which
	// must not read as an overhang.
	if quantize(b.Right()) > 1 {
		record(log, "width", "right edge clamped to page", b.Width, quantize(1-b.X))
		b.Width = 1 - b.X
	}
	if quantize(b.Bottom()) > 1 {
		record(log, "height", "bottom edge clamped to page", b.Height, quantize(1-b.Y))
		b.Height = 1 - b.Y
	}
	return b
}

// growToMinimum grows an undersized box symmetrically around its original
// center, re-clamping against the page edges. Growth blocked by one edge
// shifts to the other side; only when both edges clash does the box stay
// under the minimum, which the degenerate check then drops.
func (s *Sanitizer) growToMinimum(b model.NormalizedBox, log *[]Change) model.NormalizedBox {
	if b.Width < s.cfg.MinWidth {
		cx := b.X + b.Width/2
		x1 := math.Max(0, cx-s.cfg.MinWidth/2)
		x2 := x1 + s.cfg.MinWidth
		if x2 > 1 {
			x2 = 1
			x1 = math.Max(0, 1-s.cfg.MinWidth)
		}
		record(log, "width", "grown to minimum width", b.Width, x2-x1)
		if x1 != b.X {
			record(log, "x", "grown to minimum width", b.X, x1)
		}
		b.X = x1
		b.Width = x2 - x1
	}
	if b.Height < s.cfg.MinHeight {
		cy := b.Y + b.Height/2
		y1 := math.Max(0, cy-s.cfg.MinHeight/2)
		y2 := y1 + s.cfg.MinHeight
		if y2 > 1 {
			y2 = 1
			y1 = math.Max(0, 1-s.cfg.MinHeight)
		}
		record(log, "height", "grown to minimum height", b.Height, y2-y1)
		if y1 != b.Y {
			record(log, "y", "grown to minimum height", b.Y, y1)
		}
		b.Y = y1
		b.Height = y2 - y1
	}
	return b
}

// correctAspect grows the short dimension to the configured bound for
// the diagram type in one closed-form step: growth centers on the box,
// and the part blocked by a page edge shifts fully to the other side,
// the same placement growToMinimum uses. Symmetric growth with clamped
// edges would instead creep toward the bound one pass at a time.
func (s *Sanitizer) correctAspect(b model.NormalizedBox, dtype model.DiagramType, log *[]Change) model.NormalizedBox {
	bounds, ok := s.cfg.Aspect.BoundsFor(dtype)
	if !ok || b.Height <= 0 || b.Width <= 0 {
		return b
	}
	ratio := b.Width / b.Height

	if bounds.MinRatio > 0 && ratio < bounds.MinRatio-aspectSlack {
		// Too narrow for its type: widen to the bound.
		want := math.Min(1, b.Height*bounds.MinRatio)
		cx := b.X + b.Width/2
		x1 := math.Max(0, cx-want/2)
		x2 := x1 + want
		if x2 > 1 {
			x2 = 1
			x1 = 1 - want
		}
		if x2-x1 > b.Width {
			record(log, "width", fmt.Sprintf("aspect corrected for %s", dtype), b.Width, x2-x1)
			if x1 != b.X {
				record(log, "x", fmt.Sprintf("aspect corrected for %s", dtype), b.X, x1)
			}
			b.X = x1
			b.Width = x2 - x1
		}
		return b
	}

	if bounds.MaxRatio > 0 && ratio > bounds.MaxRatio+aspectSlack {
		// Too wide for its type: deepen to the bound.
		want := math.Min(1, b.Width/bounds.MaxRatio)
		cy := b.Y + b.Height/2
		y1 := math.Max(0, cy-want/2)
		y2 := y1 + want
		if y2 > 1 {
			y2 = 1
			y1 = 1 - want
		}
		if y2-y1 > b.Height {
			record(log, "height", fmt.Sprintf("aspect corrected for %s", dtype), b.Height, y2-y1)
			if y1 != b.Y {
				record(log, "y", fmt.Sprintf("aspect corrected for %s", dtype), b.Y, y1)
			}
			b.Y = y1
			b.Height = y2 - y1
		}
	}
	return b
}

func record(log *[]Change, field, reason string, from, to float64) {
	if log == nil || from == to {
		return
	}
	*log = append(*log, Change{Field: field, Reason: reason, From: from, To: to})
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// outsidePage reports whether the effective rectangle (inversion
// normalized) has no area inside the unit page at all. Such boxes cannot
// be recovered by clamping; growing them would invent geometry.
func outsidePage(b model.NormalizedBox) bool {
	x1, x2 := b.X, b.X+b.Width
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	y1, y2 := b.Y, b.Y+b.Height
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return x2 <= 0 || x1 >= 1 || y2 <= 0 || y1 >= 1
}
