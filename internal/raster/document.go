// Package raster adapts the external document-rendering collaborator
// (MuPDF via go-fitz) behind a deterministic rasterization API. All
// coordinates entering the package are normalized [0,1] fractions; all
// output is pixels at an explicit scale.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpumodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// BaseDPI is the PDF point resolution; a render scale of 1.0 maps one
// PDF point to one pixel.
const BaseDPI = 72.0

var (
	// ErrInvalidPage is returned for page numbers outside [1, PageCount]
	ErrInvalidPage = errors.New("invalid page number")
	// ErrDocumentClosed is returned after Close
	ErrDocumentClosed = errors.New("document is closed")
)

// Document is an immutable uploaded PDF: the raw bytes, an opaque id and
// a page count. It owns a MuPDF handle for rasterization; the handle is
// not safe for concurrent use, so every render takes the document lock.
type Document struct {
	id        string
	data      []byte
	pageCount int

	mu     sync.Mutex
	fz     *fitz.Document
	closed bool

	memo *pageMemo
}

// OpenDocument validates data as a PDF (pdfcpu, relaxed mode) and opens
// it for rasterization. The bytes are retained for the document lifetime;
// callers must not mutate them afterwards.
func OpenDocument(id string, data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	conf := pdfcpumodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfcpumodel.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}

	fz, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open document for rendering: %w", err)
	}

	return &Document{
		id:        id,
		data:      data,
		pageCount: ctx.PageCount,
		fz:        fz,
		memo:      newPageMemo(defaultMemoTTL, defaultMemoEntries),
	}, nil
}

// ID returns the opaque document id
func (d *Document) ID() string { return d.id }

// PageCount returns the number of pages
func (d *Document) PageCount() int { return d.pageCount }

// Bytes returns the underlying PDF bytes (read-only)
func (d *Document) Bytes() []byte { return d.data }

// Close releases the MuPDF handle and drops memoized rasters. Render
// calls after Close fail with ErrDocumentClosed.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.memo.clear()
	return d.fz.Close()
}
