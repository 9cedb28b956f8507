package model

import (
	"fmt"
	"time"
)

// DiagramType classifies the visual content of a detected region
type DiagramType string

const (
	DiagramGraph      DiagramType = "graph"
	DiagramFlowchart  DiagramType = "flowchart"
	DiagramScientific DiagramType = "scientific"
	DiagramGeometric  DiagramType = "geometric"
	DiagramTable      DiagramType = "table"
	DiagramCircuit    DiagramType = "circuit"
	DiagramImage      DiagramType = "image"
	DiagramOther      DiagramType = "other"
)

// ValidDiagramType reports whether t is one of the known diagram types
func ValidDiagramType(t DiagramType) bool {
	switch t {
	case DiagramGraph, DiagramFlowchart, DiagramScientific, DiagramGeometric,
		DiagramTable, DiagramCircuit, DiagramImage, DiagramOther:
		return true
	}
	return false
}

// DetectionMethod records how a region's coordinates were produced
type DetectionMethod string

const (
	MethodAI       DetectionMethod = "ai"
	MethodManual   DetectionMethod = "manual"
	MethodAdjusted DetectionMethod = "adjusted"
)

// NormalizedBox is a bounding box in page-fraction coordinates.
// All four values are in [0,1]; X/Y are the top-left corner and
// Width/Height are fractions of the page dimensions, so the same box
// addresses the same region at any render resolution.
type NormalizedBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right returns the right edge (x + width)
func (b NormalizedBox) Right() float64 { return b.X + b.Width }

// Bottom returns the bottom edge (y + height)
func (b NormalizedBox) Bottom() float64 { return b.Y + b.Height }

// Area returns the fractional area of the box
func (b NormalizedBox) Area() float64 { return b.Width * b.Height }

// DiagramRegion is a validated diagram bounding box on one page of one
// document. Regions are owned by their document (cascade-deleted with it)
// and weakly referenced by questions through id lists only.
type DiagramRegion struct {
	ID              string          `json:"id"`
	DocumentID      string          `json:"document_id"`
	PageNumber      int             `json:"page_number"`
	Box             NormalizedBox   `json:"box"`
	Confidence      int             `json:"confidence"` // 1 (lowest) .. 5 (highest)
	Type            DiagramType     `json:"type"`
	Label           string          `json:"label,omitempty"`
	DetectionMethod DetectionMethod `json:"detection_method"`
	Version         int             `json:"version"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       *time.Time      `json:"updated_at,omitempty"`
}

// Question is the metadata the matcher needs about one exam question.
// DiagramRegionIDs is an ordered list of weak references; a region's
// deletion never dangles because lookups go through the store.
type Question struct {
	ID               string   `json:"id"`
	Text             string   `json:"text"`
	PageNumber       int      `json:"page_number"`
	Type             string   `json:"type,omitempty"`
	HasDiagram       bool     `json:"has_diagram"`
	DiagramRegionIDs []string `json:"diagram_region_ids"`
}

// RegionCandidate is an unvalidated bounding box as returned by the AI
// vision collaborator. Candidates only become DiagramRegions after the
// sanitizer has enforced the geometric invariants.
type RegionCandidate struct {
	Box        NormalizedBox `json:"box"`
	Confidence int           `json:"confidence"`
	Type       DiagramType   `json:"type,omitempty"`
	Label      string        `json:"label,omitempty"`
}

// FailureRecord captures a per-page detection failure. Failures are data,
// not errors: a batch over N pages returns a FailureRecord for each page
// that could not be processed and regions for every page that could.
type FailureRecord struct {
	PageNumber int    `json:"page_number"`
	Stage      string `json:"stage"` // "rasterize", "detect", "parse"
	Message    string `json:"message"`
	Attempts   int    `json:"attempts"`
}

// Error formats the record for logging; FailureRecord itself is not an error
func (f FailureRecord) String() string {
	return fmt.Sprintf("page %d: %s failed after %d attempt(s): %s", f.PageNumber, f.Stage, f.Attempts, f.Message)
}

// ResolutionTier selects one of the fixed render scales
type ResolutionTier string

const (
	TierThumbnail ResolutionTier = "thumbnail"
	TierPreview   ResolutionTier = "preview"
	TierFull      ResolutionTier = "full"
)

// ValidTier reports whether t is a known resolution tier
func ValidTier(t ResolutionTier) bool {
	return t == TierThumbnail || t == TierPreview || t == TierFull
}
