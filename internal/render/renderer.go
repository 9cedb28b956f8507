// Package render produces pixel crops for diagram regions on demand.
// Crops are rendered at one of a small set of resolution tiers and kept
// in a bounded LRU cache keyed by region identity and version.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/sirupsen/logrus"

	"github.com/namandhakad712/Rankify-sub003/internal/model"
	"github.com/namandhakad712/Rankify-sub003/internal/raster"
)

var log = logrus.WithField("component", "render")

// TierScales maps each resolution tier to its render scale multiplier
type TierScales map[model.ResolutionTier]float64

// DefaultTierScales returns the standard tier multipliers
func DefaultTierScales() TierScales {
	return TierScales{
		model.TierThumbnail: 0.4,
		model.TierPreview:   1.0,
		model.TierFull:      2.0,
	}
}

// Rendered is one diagram crop at one tier
type Rendered struct {
	RegionID  string               `json:"region_id"`
	Version   int                  `json:"version"`
	Tier      model.ResolutionTier `json:"tier"`
	PNG       []byte               `json:"-"`
	Width     int                  `json:"width"`
	Height    int                  `json:"height"`
	FromCache bool                 `json:"from_cache"`
}

// SizeBytes is the entry's contribution to the cache byte budget
func (r *Rendered) SizeBytes() int64 { return int64(len(r.PNG)) }

// Unavailable is the typed render failure: an invalid page, a removed
// document, or an unknown tier. Callers show a placeholder instead of
// pixels.
type Unavailable struct {
	RegionID string
	Reason   string
}

func (u *Unavailable) Error() string {
	return fmt.Sprintf("render unavailable for region %s: %s", u.RegionID, u.Reason)
}

// PageSource yields page rasters; *raster.Document satisfies it
type PageSource interface {
	RasterizeRegion(pageNumber int, scale float64, box model.NormalizedBox) (*raster.PageRaster, error)
	PageCount() int
}

// Renderer renders region crops through the cache
type Renderer struct {
	cache  *Cache
	scales TierScales
}

// NewRenderer creates a renderer backed by the given cache. A nil
// scales map uses the defaults.
func NewRenderer(cache *Cache, scales TierScales) *Renderer {
	if scales == nil {
		scales = DefaultTierScales()
	}
	return &Renderer{cache: cache, scales: scales}
}

// Cache exposes the underlying cache for invalidation and stats
func (r *Renderer) Cache() *Cache { return r.cache }

// Render returns the pixel crop for a region at the given tier. Cache
// hits are returned immediately; misses rasterize only the region's
// sub-rectangle at the tier's scale. A cancelled context stops the
// render between stages and comes back as the context's error; failures
// a caller should placeholder over come back as *Unavailable.
func (r *Renderer) Render(ctx context.Context, src PageSource, region model.DiagramRegion, tier model.ResolutionTier) (*Rendered, error) {
	scale, ok := r.scales[tier]
	if !ok {
		return nil, &Unavailable{RegionID: region.ID, Reason: fmt.Sprintf("unknown resolution tier %q", tier)}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cached, ok := r.cache.Get(region.ID, region.Version, tier); ok {
		hit := *cached
		hit.FromCache = true
		return &hit, nil
	}

	if src == nil {
		return nil, &Unavailable{RegionID: region.ID, Reason: "document no longer available"}
	}
	if region.PageNumber < 1 || region.PageNumber > src.PageCount() {
		return nil, &Unavailable{RegionID: region.ID, Reason: fmt.Sprintf("page %d out of range", region.PageNumber)}
	}

	crop, err := src.RasterizeRegion(region.PageNumber, scale, region.Box)
	if err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"region": region.ID,
			"page":   region.PageNumber,
			"tier":   tier,
		}).Warn("Region rasterization failed")
		return nil, &Unavailable{RegionID: region.ID, Reason: err.Error()}
	}

	// The rasterize call itself is not interruptible; honor a
	// cancellation that arrived during it before paying for the encode
	// and cache insert.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, crop.Image); err != nil {
		return nil, fmt.Errorf("failed to encode region %s: %w", region.ID, err)
	}

	out := &Rendered{
		RegionID: region.ID,
		Version:  region.Version,
		Tier:     tier,
		PNG:      buf.Bytes(),
		Width:    crop.Image.Bounds().Dx(),
		Height:   crop.Image.Bounds().Dy(),
	}
	r.cache.Put(region.ID, region.Version, tier, out)
	return out, nil
}
