package engine

import (
	"github.com/namandhakad712/Rankify-sub003/internal/detect"
	"github.com/namandhakad712/Rankify-sub003/internal/geometry"
	"github.com/namandhakad712/Rankify-sub003/internal/match"
	"github.com/namandhakad712/Rankify-sub003/internal/model"
	"github.com/namandhakad712/Rankify-sub003/internal/render"
)

// LoadDocumentRequest carries an uploaded question paper
type LoadDocumentRequest struct {
	DocumentID string `json:"document_id,omitempty"` // generated when empty
	Data       []byte `json:"-"`
}

// LoadDocumentResult describes the opened document
type LoadDocumentResult struct {
	DocumentID string           `json:"document_id"`
	PageCount  int              `json:"page_count"`
	Questions  []model.Question `json:"questions"`
}

// DetectRequest selects the pages to run detection over; empty Pages
// means the whole document
type DetectRequest struct {
	DocumentID string `json:"document_id"`
	Pages      []int  `json:"pages,omitempty"`
}

// DetectResult is the per-page detection outcome
type DetectResult = detect.Result

// MatchRequest asks for region-to-question assignment over a document
type MatchRequest struct {
	DocumentID string `json:"document_id"`
}

// MatchResult is the authoritative assignment
type MatchResult = match.Result

// RenderRequest asks for one region's pixels at one tier
type RenderRequest struct {
	RegionID string               `json:"region_id"`
	Tier     model.ResolutionTier `json:"tier"`
}

// RenderResult is the rendered crop
type RenderResult = render.Rendered

// AddRegionRequest creates a manually drawn region
type AddRegionRequest struct {
	DocumentID string              `json:"document_id"`
	PageNumber int                 `json:"page_number"`
	Box        model.NormalizedBox `json:"box"`
	Type       model.DiagramType   `json:"type,omitempty"`
	Label      string              `json:"label,omitempty"`
}

// UpdateRegionRequest moves or resizes an existing region
type UpdateRegionRequest struct {
	RegionID string              `json:"region_id"`
	Box      model.NormalizedBox `json:"box"`
}

// RegionResult reports a region mutation, including what the sanitizer
// changed about the requested box
type RegionResult struct {
	Region  model.DiagramRegion `json:"region"`
	Changes []geometry.Change   `json:"changes,omitempty"`
}

// AssignRequest manually attaches an orphan region to a question
type AssignRequest struct {
	QuestionID string `json:"question_id"`
	RegionID   string `json:"region_id"`
}

// InfoResult summarizes engine state for diagnostics
type InfoResult struct {
	Name          string            `json:"name"`
	Version       string            `json:"version"`
	Documents     int               `json:"documents"`
	Regions       int               `json:"regions"`
	CacheStats    render.CacheStats `json:"cache_stats"`
	VisionEnabled bool              `json:"vision_enabled"`
}
