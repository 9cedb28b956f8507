// Package engine is the facade over the diagram pipeline: document
// loading, detection, matching, manual region editing and on-demand
// rendering, with the store and render cache behind it.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/namandhakad712/Rankify-sub003/internal/detect"
	"github.com/namandhakad712/Rankify-sub003/internal/geometry"
	"github.com/namandhakad712/Rankify-sub003/internal/loader"
	"github.com/namandhakad712/Rankify-sub003/internal/match"
	"github.com/namandhakad712/Rankify-sub003/internal/model"
	"github.com/namandhakad712/Rankify-sub003/internal/questions"
	"github.com/namandhakad712/Rankify-sub003/internal/raster"
	"github.com/namandhakad712/Rankify-sub003/internal/render"
	"github.com/namandhakad712/Rankify-sub003/internal/store"
	"github.com/namandhakad712/Rankify-sub003/internal/vision"
)

var log = logrus.WithField("component", "engine")

// Service orchestrates the diagram pipeline components
type Service struct {
	mu        sync.RWMutex
	documents map[string]*raster.Document

	store     store.Store
	sanitizer *geometry.Sanitizer
	detector  *detect.Detector
	matcher   *match.Matcher
	renderer  *render.Renderer
	loader    *loader.Loader
	extractor *questions.Extractor

	name    string
	version string
	vision  bool
}

// Options wires the service together. Vision may be nil for manual-only
// sessions; detection then returns an error instead of candidates.
type Options struct {
	Vision       vision.Detector
	Sanitizer    *geometry.Sanitizer
	DetectConfig detect.Config
	MatchConfig  match.Config
	CacheEntries int
	CacheBytes   int64
	TierScales   render.TierScales
	LookAhead    int
	Name         string
	Version      string
}

// NewService creates a service with all pipeline components
func NewService(opts Options) *Service {
	if opts.Sanitizer == nil {
		opts.Sanitizer = geometry.NewSanitizer(geometry.DefaultConfig())
	}
	s := &Service{
		documents: make(map[string]*raster.Document),
		store:     store.NewMemoryStore(),
		sanitizer: opts.Sanitizer,
		matcher:   match.NewMatcher(opts.MatchConfig),
		renderer:  render.NewRenderer(render.NewCache(opts.CacheEntries, opts.CacheBytes), opts.TierScales),
		extractor: questions.NewExtractor(),
		name:      opts.Name,
		version:   opts.Version,
		vision:    opts.Vision != nil,
	}
	if opts.Vision != nil {
		s.detector = detect.NewDetector(opts.Vision, opts.Sanitizer, opts.DetectConfig)
	}
	s.loader = loader.NewLoader(s.loaderRender, opts.LookAhead)
	return s
}

// Store exposes the persistence collaborator
func (s *Service) Store() store.Store { return s.store }

// LoadDocument validates and opens PDF bytes, extracts the question
// text and stores it. The document stays open until DeleteDocument.
func (s *Service) LoadDocument(req LoadDocumentRequest) (*LoadDocumentResult, error) {
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	id := req.DocumentID
	if id == "" {
		id = uuid.NewString()
	}

	doc, err := raster.OpenDocument(id, req.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}

	qs, err := s.extractor.Extract(id, req.Data)
	if err != nil {
		// Scanned papers have no text layer; detection still works.
		log.WithError(err).WithField("document", id).Warn("Question extraction failed")
	}
	if err := s.store.PutQuestions(id, qs); err != nil {
		doc.Close()
		return nil, err
	}

	s.mu.Lock()
	if old, ok := s.documents[id]; ok {
		old.Close()
	}
	s.documents[id] = doc
	s.mu.Unlock()

	log.WithFields(logrus.Fields{
		"document":  id,
		"pages":     doc.PageCount(),
		"questions": len(qs),
	}).Info("Document loaded")

	return &LoadDocumentResult{DocumentID: id, PageCount: doc.PageCount(), Questions: qs}, nil
}

// DetectDocument runs AI detection over the document's pages and
// persists the surviving regions
func (s *Service) DetectDocument(ctx context.Context, req DetectRequest) (*DetectResult, error) {
	if s.detector == nil {
		return nil, fmt.Errorf("no vision backend configured")
	}
	doc, err := s.document(req.DocumentID)
	if err != nil {
		return nil, err
	}

	res, err := s.detector.DetectDocument(ctx, req.DocumentID, doc, req.Pages)
	if res != nil {
		for _, regions := range res.Regions {
			for _, r := range regions {
				if putErr := s.store.PutRegion(r); putErr != nil {
					return res, putErr
				}
			}
		}
	}
	return res, err
}

// MatchQuestions assigns the document's stored regions to its stored
// questions and persists the assignment
func (s *Service) MatchQuestions(req MatchRequest) (*MatchResult, error) {
	qs := s.store.Questions(req.DocumentID)
	regionsByPage := make(map[int][]model.DiagramRegion)
	for _, r := range s.store.RegionsByDocument(req.DocumentID) {
		regionsByPage[r.PageNumber] = append(regionsByPage[r.PageNumber], r)
	}

	res := s.matcher.Match(qs, regionsByPage)

	for _, q := range res.Questions {
		s.store.PutAssignment(q.ID, q.DiagramRegionIDs)
	}
	if err := s.store.PutQuestions(req.DocumentID, res.Questions); err != nil {
		return nil, err
	}
	s.loader.SetQuestions(res.Questions)
	return res, nil
}

// RenderRegion renders one region at one tier, through the cache. The
// context cancels an in-flight render between its stages.
func (s *Service) RenderRegion(ctx context.Context, req RenderRequest) (*RenderResult, error) {
	region, ok := s.store.GetRegion(req.RegionID)
	if !ok {
		return nil, &render.Unavailable{RegionID: req.RegionID, Reason: "unknown region"}
	}

	s.mu.RLock()
	doc := s.documents[region.DocumentID]
	s.mu.RUnlock()

	var src render.PageSource
	if doc != nil {
		src = doc
	}
	return s.renderer.Render(ctx, src, region, req.Tier)
}

// AddManualRegion creates a region from a user-drawn box
func (s *Service) AddManualRegion(req AddRegionRequest) (*RegionResult, error) {
	doc, err := s.document(req.DocumentID)
	if err != nil {
		return nil, err
	}
	if req.PageNumber < 1 || req.PageNumber > doc.PageCount() {
		return nil, fmt.Errorf("page %d out of range [1,%d]", req.PageNumber, doc.PageCount())
	}

	dtype := req.Type
	if !model.ValidDiagramType(dtype) {
		dtype = model.DiagramOther
	}
	sr := s.sanitizer.Sanitize(req.Box, geometry.ContextManualEdit, dtype)
	if sr.Dropped {
		return nil, fmt.Errorf("box rejected: %s", sr.DropReason)
	}

	region := model.DiagramRegion{
		ID:              uuid.NewString(),
		DocumentID:      req.DocumentID,
		PageNumber:      req.PageNumber,
		Box:             sr.Box,
		Confidence:      5, // the user drew it
		Type:            dtype,
		Label:           req.Label,
		DetectionMethod: model.MethodManual,
		Version:         1,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.store.PutRegion(region); err != nil {
		return nil, err
	}
	return &RegionResult{Region: region, Changes: sr.Changes}, nil
}

// UpdateRegionBox applies a manual coordinate edit: the box is
// sanitized, the version bumps, the method becomes adjusted and the
// old cache entries are invalidated.
func (s *Service) UpdateRegionBox(req UpdateRegionRequest) (*RegionResult, error) {
	region, ok := s.store.GetRegion(req.RegionID)
	if !ok {
		return nil, fmt.Errorf("unknown region %s", req.RegionID)
	}

	sr := s.sanitizer.Sanitize(req.Box, geometry.ContextManualEdit, region.Type)
	if sr.Dropped {
		return nil, fmt.Errorf("box rejected: %s", sr.DropReason)
	}

	now := time.Now().UTC()
	region.Box = sr.Box
	region.Version++
	region.DetectionMethod = model.MethodAdjusted
	region.UpdatedAt = &now

	if err := s.store.PutRegion(region); err != nil {
		return nil, err
	}
	s.renderer.Cache().Invalidate(region.ID)
	return &RegionResult{Region: region, Changes: sr.Changes}, nil
}

// SanitizeBox runs a raw box through the sanitizer without persisting
// anything. The review UI calls this live while the user drags edges.
func (s *Service) SanitizeBox(box model.NormalizedBox, dtype model.DiagramType) geometry.Result {
	return s.sanitizer.Sanitize(box, geometry.ContextManualEdit, dtype)
}

// DeleteRegion removes a region, its assignments and its cached crops
func (s *Service) DeleteRegion(regionID string) error {
	if !s.store.DeleteRegion(regionID) {
		return fmt.Errorf("unknown region %s", regionID)
	}
	s.renderer.Cache().Invalidate(regionID)
	return nil
}

// AssignRegion manually attaches a region to a question, appending it
// to the question's ordered list
func (s *Service) AssignRegion(req AssignRequest) error {
	region, ok := s.store.GetRegion(req.RegionID)
	if !ok {
		return fmt.Errorf("unknown region %s", req.RegionID)
	}

	qs := s.store.Questions(region.DocumentID)
	found := false
	for i := range qs {
		if qs[i].ID != req.QuestionID {
			continue
		}
		found = true
		for _, rid := range qs[i].DiagramRegionIDs {
			if rid == req.RegionID {
				return nil // already assigned
			}
		}
		qs[i].DiagramRegionIDs = append(qs[i].DiagramRegionIDs, req.RegionID)
		qs[i].HasDiagram = true
		s.store.PutAssignment(req.QuestionID, qs[i].DiagramRegionIDs)
	}
	if !found {
		return fmt.Errorf("unknown question %s", req.QuestionID)
	}
	return s.store.PutQuestions(region.DocumentID, qs)
}

// DeleteDocument cascades: regions, questions, assignments, cached
// crops and the open document handle all go
func (s *Service) DeleteDocument(documentID string) error {
	for _, r := range s.store.RegionsByDocument(documentID) {
		s.renderer.Cache().Invalidate(r.ID)
	}
	s.store.DeleteDocument(documentID)

	s.mu.Lock()
	doc := s.documents[documentID]
	delete(s.documents, documentID)
	s.mu.Unlock()

	if doc == nil {
		return fmt.Errorf("unknown document %s", documentID)
	}
	log.WithField("document", documentID).Info("Document deleted")
	return doc.Close()
}

// OrphanRegions lists the document's regions not assigned to any
// question, for manual assignment in the review UI
func (s *Service) OrphanRegions(documentID string) []model.DiagramRegion {
	var orphans []model.DiagramRegion
	for _, r := range s.store.RegionsByDocument(documentID) {
		if len(s.store.QuestionsForRegion(r.ID)) == 0 {
			orphans = append(orphans, r)
		}
	}
	return orphans
}

// NeedsManualAssignment lists diagram-flagged questions that ended up
// with no regions
func (s *Service) NeedsManualAssignment(documentID string) []model.Question {
	var needs []model.Question
	for _, q := range s.store.Questions(documentID) {
		if q.HasDiagram && len(q.DiagramRegionIDs) == 0 {
			needs = append(needs, q)
		}
	}
	return needs
}

// SetQuestionVisible feeds the viewport signal into the loader
func (s *Service) SetQuestionVisible(questionID string, visible bool) {
	s.loader.SetVisible(questionID, visible)
}

// Info reports engine diagnostics
func (s *Service) Info() *InfoResult {
	s.mu.RLock()
	docs := len(s.documents)
	regions := 0
	for id := range s.documents {
		regions += len(s.store.RegionsByDocument(id))
	}
	s.mu.RUnlock()

	return &InfoResult{
		Name:          s.name,
		Version:       s.version,
		Documents:     docs,
		Regions:       regions,
		CacheStats:    s.renderer.Cache().Stats(),
		VisionEnabled: s.vision,
	}
}

// Reset tears the session down: open documents close, the store and
// cache empty
func (s *Service) Reset() {
	s.mu.Lock()
	for _, doc := range s.documents {
		doc.Close()
	}
	s.documents = make(map[string]*raster.Document)
	s.mu.Unlock()

	s.store.Reset()
	s.renderer.Cache().Reset()
	s.loader.SetQuestions(nil)
}

// document looks up an open document handle
func (s *Service) document(documentID string) (*raster.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[documentID]
	if !ok {
		return nil, fmt.Errorf("unknown document %s", documentID)
	}
	return doc, nil
}

// loaderRender is the loader's render callback: a cache warm-up, so a
// failed prefetch is not fatal. The loader's per-task context rides
// through to the renderer, so scrolling a question out of view stops
// its render, not just the bookkeeping.
func (s *Service) loaderRender(ctx context.Context, regionID string, tier model.ResolutionTier) error {
	_, err := s.RenderRegion(ctx, RenderRequest{RegionID: regionID, Tier: tier})
	return err
}
