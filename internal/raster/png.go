package raster

import (
	"bytes"
	"fmt"
	"image/png"
)

// PageImage renders a page at the given scale and encodes it as PNG.
// This is the form the vision collaborator consumes.
func (d *Document) PageImage(pageNumber int, scale float64) ([]byte, error) {
	pr, err := d.Rasterize(pageNumber, scale)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, pr.Image); err != nil {
		return nil, fmt.Errorf("failed to encode page %d as PNG: %w", pageNumber, err)
	}
	return buf.Bytes(), nil
}
