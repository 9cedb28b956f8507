// Package detect orchestrates per-page AI diagram detection over a
// document: bounded concurrency against the rate-limited vision service,
// exponential backoff on transient failures, and per-page failure records
// so one bad page never aborts the batch.
package detect

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/namandhakad712/Rankify-sub003/internal/geometry"
	"github.com/namandhakad712/Rankify-sub003/internal/model"
	"github.com/namandhakad712/Rankify-sub003/internal/vision"
)

var log = logrus.WithField("component", "detect")

// Detection defaults
const (
	DefaultAnalysisScale = 2.0 // ~144 DPI, enough for the model to read captions
	DefaultMaxInFlight   = 3
	DefaultMaxAttempts   = 3
	DefaultBaseDelay     = 500 * time.Millisecond
)

// PageImager supplies encoded page rasters; *raster.Document satisfies it
type PageImager interface {
	PageImage(pageNumber int, scale float64) ([]byte, error)
	PageCount() int
}

// Config tunes the detection batch
type Config struct {
	AnalysisScale float64       // render scale for analysis rasters
	MaxInFlight   int           // bounded concurrency against the vision service
	MaxAttempts   int           // attempts per page including the first
	BaseDelay     time.Duration // backoff base; doubles per retry
	Instructions  string        // override for the extraction prompt
}

// DefaultConfig returns the detection defaults
func DefaultConfig() Config {
	return Config{
		AnalysisScale: DefaultAnalysisScale,
		MaxInFlight:   DefaultMaxInFlight,
		MaxAttempts:   DefaultMaxAttempts,
		BaseDelay:     DefaultBaseDelay,
	}
}

// Result maps each requested page to either its validated regions or a
// failure record. A page appears in exactly one of the two maps; pages
// cancelled mid-flight appear in neither.
type Result struct {
	DocumentID string                          `json:"document_id"`
	Regions    map[int][]model.DiagramRegion   `json:"regions"`
	Failures   map[int]model.FailureRecord     `json:"failures"`
	Dropped    map[int][]model.RegionCandidate `json:"dropped,omitempty"`
}

// Detector runs detection batches
type Detector struct {
	vision    vision.Detector
	sanitizer *geometry.Sanitizer
	cfg       Config
}

// NewDetector creates a detector; zero-valued config fields fall back to
// the defaults.
func NewDetector(v vision.Detector, s *geometry.Sanitizer, cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.AnalysisScale <= 0 {
		cfg.AnalysisScale = def.AnalysisScale
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = def.MaxInFlight
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if s == nil {
		s = geometry.NewSanitizer(geometry.DefaultConfig())
	}
	return &Detector{vision: v, sanitizer: s, cfg: cfg}
}

// DetectDocument runs detection over the given pages of a document.
// Pages run with at most MaxInFlight concurrent vision calls. Failures
// are recorded per page, never thrown: the returned error is non-nil
// only for invalid input or context cancellation, and even then the
// Result holds every page that completed before the cancel.
func (d *Detector) DetectDocument(ctx context.Context, documentID string, imager PageImager, pages []int) (*Result, error) {
	if len(pages) == 0 {
		pages = allPages(imager.PageCount())
	}
	for _, p := range pages {
		if p < 1 || p > imager.PageCount() {
			return nil, fmt.Errorf("page %d out of range [1,%d]", p, imager.PageCount())
		}
	}

	res := &Result{
		DocumentID: documentID,
		Regions:    make(map[int][]model.DiagramRegion),
		Failures:   make(map[int]model.FailureRecord),
		Dropped:    make(map[int][]model.RegionCandidate),
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, d.cfg.MaxInFlight)
	)

	for _, page := range pages {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(page int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				// Cancelled before the page ever started; it stays out
				// of both maps.
				return
			}
			if ctx.Err() != nil {
				return
			}

			regions, dropped, fail := d.detectPage(ctx, documentID, imager, page)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case fail != nil && ctx.Err() != nil:
				// A cancelled in-flight request is not a page failure;
				// discard the partial outcome.
			case fail != nil:
				res.Failures[page] = *fail
			default:
				res.Regions[page] = regions
				if len(dropped) > 0 {
					res.Dropped[page] = dropped
				}
			}
		}(page)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// detectPage rasterizes, submits and validates one page. The returned
// FailureRecord is nil on success.
func (d *Detector) detectPage(ctx context.Context, documentID string, imager PageImager, page int) ([]model.DiagramRegion, []model.RegionCandidate, *model.FailureRecord) {
	logger := log.WithFields(logrus.Fields{"document": documentID, "page": page})

	raster, err := imager.PageImage(page, d.cfg.AnalysisScale)
	if err != nil {
		logger.WithError(err).Warn("Page rasterization failed")
		return nil, nil, &model.FailureRecord{
			PageNumber: page,
			Stage:      "rasterize",
			Message:    err.Error(),
			Attempts:   1,
		}
	}

	candidates, attempts, err := d.callWithRetry(ctx, raster)
	if err != nil {
		stage := "detect"
		if _, ok := err.(*vision.ParseError); ok {
			stage = "parse"
		}
		logger.WithError(err).WithField("attempts", attempts).Warn("Page detection failed")
		return nil, nil, &model.FailureRecord{
			PageNumber: page,
			Stage:      stage,
			Message:    err.Error(),
			Attempts:   attempts,
		}
	}

	regions, dropped := d.validate(documentID, page, candidates)
	logger.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"regions":    len(regions),
		"dropped":    len(dropped),
	}).Debug("Page detection complete")
	return regions, dropped, nil
}

// callWithRetry submits one raster, retrying transient failures with
// exponentially doubling delay up to the attempt cap.
func (d *Detector) callWithRetry(ctx context.Context, raster []byte) ([]model.RegionCandidate, int, error) {
	var lastErr error
	delay := d.cfg.BaseDelay

	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		candidates, err := d.vision.DetectRegions(ctx, raster, d.cfg.Instructions)
		if err == nil {
			return candidates, attempt, nil
		}
		lastErr = err

		if !vision.IsTransient(err) || attempt == d.cfg.MaxAttempts {
			return nil, attempt, err
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, attempt, ctx.Err()
		}
		delay *= 2
	}
	return nil, d.cfg.MaxAttempts, lastErr
}

// validate runs every candidate through the sanitizer and keeps the
// survivors as DiagramRegions ordered top-to-bottom.
func (d *Detector) validate(documentID string, page int, candidates []model.RegionCandidate) ([]model.DiagramRegion, []model.RegionCandidate) {
	now := time.Now().UTC()
	regions := make([]model.DiagramRegion, 0, len(candidates))
	var dropped []model.RegionCandidate

	for _, c := range candidates {
		sr := d.sanitizer.Sanitize(c.Box, geometry.ContextAIResponse, c.Type)
		if sr.Dropped {
			dropped = append(dropped, c)
			continue
		}

		conf := c.Confidence - sr.ConfidencePenalty
		if conf < 1 {
			conf = 1
		}
		regions = append(regions, model.DiagramRegion{
			ID:              uuid.NewString(),
			DocumentID:      documentID,
			PageNumber:      page,
			Box:             sr.Box,
			Confidence:      conf,
			Type:            c.Type,
			Label:           c.Label,
			DetectionMethod: model.MethodAI,
			Version:         1,
			CreatedAt:       now,
		})
	}

	sort.SliceStable(regions, func(i, j int) bool {
		if regions[i].Box.Y != regions[j].Box.Y {
			return regions[i].Box.Y < regions[j].Box.Y
		}
		return regions[i].Box.X < regions[j].Box.X
	})
	return regions, dropped
}

func allPages(count int) []int {
	pages := make([]int, count)
	for i := range pages {
		pages[i] = i + 1
	}
	return pages
}
