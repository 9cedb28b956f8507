package raster

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/namandhakad712/Rankify-sub003/internal/model"
)

// PageRaster is the pixel output of rendering one page at one scale.
// Width and Height are scale-relative: the same page rendered at 2x has
// twice the pixel dimensions.
type PageRaster struct {
	PageNumber int
	Scale      float64
	Image      *image.RGBA
	Width      int
	Height     int
}

// Rasterize renders one page at the given scale. The result is
// deterministic for the same (document bytes, page, scale), which is what
// makes coordinate-only storage viable: any consumer can re-derive the
// identical pixels. Rasters are memoized briefly so several regions on
// the same page within a short window share one decode.
func (d *Document) Rasterize(pageNumber int, scale float64) (*PageRaster, error) {
	if pageNumber < 1 || pageNumber > d.pageCount {
		return nil, fmt.Errorf("%w: %d (document has %d pages)", ErrInvalidPage, pageNumber, d.pageCount)
	}
	if scale <= 0 {
		return nil, fmt.Errorf("scale must be positive, got %v", scale)
	}

	if cached := d.memo.get(pageNumber, scale); cached != nil {
		return cached, nil
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrDocumentClosed
	}
	// go-fitz pages are zero-based.
	img, err := d.fz.ImageDPI(pageNumber-1, BaseDPI*scale)
	d.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d at scale %v: %w", pageNumber, scale, err)
	}

	rgba := toRGBA(img)
	pr := &PageRaster{
		PageNumber: pageNumber,
		Scale:      scale,
		Image:      rgba,
		Width:      rgba.Bounds().Dx(),
		Height:     rgba.Bounds().Dy(),
	}
	d.memo.put(pageNumber, scale, pr)
	return pr, nil
}

// RasterizeRegion renders only the sub-rectangle of a page addressed by a
// normalized box, at the given scale. The page raster behind it comes
// from the memo when warm, so a burst of region renders on one page costs
// a single page decode.
func (d *Document) RasterizeRegion(pageNumber int, scale float64, box model.NormalizedBox) (*PageRaster, error) {
	page, err := d.Rasterize(pageNumber, scale)
	if err != nil {
		return nil, err
	}

	rect := PixelRect(box, page.Width, page.Height)
	if rect.Empty() {
		return nil, fmt.Errorf("region %+v maps to an empty pixel rect on page %d", box, pageNumber)
	}

	crop := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(crop, crop.Bounds(), page.Image, rect.Min, draw.Src)

	return &PageRaster{
		PageNumber: pageNumber,
		Scale:      scale,
		Image:      crop,
		Width:      rect.Dx(),
		Height:     rect.Dy(),
	}, nil
}

// PixelRect converts a normalized box to an absolute pixel rectangle on a
// raster of the given dimensions, clamped to the raster bounds.
func PixelRect(box model.NormalizedBox, width, height int) image.Rectangle {
	x0 := int(math.Round(box.X * float64(width)))
	y0 := int(math.Round(box.Y * float64(height)))
	x1 := int(math.Round(box.Right() * float64(width)))
	y1 := int(math.Round(box.Bottom() * float64(height)))

	r := image.Rect(x0, y0, x1, y1)
	return r.Intersect(image.Rect(0, 0, width, height))
}

// toRGBA returns img as *image.RGBA without copying when possible
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
