// Package vision talks to the external AI vision collaborator. Its output
// is untrusted by definition: every candidate it returns must pass the
// geometry sanitizer before becoming a DiagramRegion.
package vision

import (
	"context"
	"errors"
	"fmt"

	"github.com/namandhakad712/Rankify-sub003/internal/model"
)

// Detector is the boundary to the external AI vision service
type Detector interface {
	// DetectRegions submits one page raster (encoded PNG) with a
	// structured-extraction instruction and returns raw candidates.
	DetectRegions(ctx context.Context, pageImage []byte, instructions string) ([]model.RegionCandidate, error)
}

// ServiceError is a failure of the vision service itself. Transient
// errors (timeouts, rate limits, 5xx-class) are worth retrying; terminal
// ones are not.
type ServiceError struct {
	Transient bool
	Err       error
}

func (e *ServiceError) Error() string {
	kind := "terminal"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("vision service error (%s): %v", kind, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// ParseError marks a response that came back but could not be understood.
// It is always terminal: retrying the same prompt for malformed output
// rarely converges and burns rate budget.
type ParseError struct {
	Err error
	Raw string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable vision response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried with backoff
func IsTransient(err error) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Transient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

// DefaultInstructions is the structured-extraction prompt sent with every
// page raster. The contract with the model: JSON only, normalized
// coordinates, 1-5 confidence, a fixed type vocabulary and the printed
// caption as label when one is visible.
const DefaultInstructions = `Identify every diagram, figure, chart, table, circuit or other ` +
	`non-text visual region on this exam page. Respond with JSON only, no prose, in the form ` +
	`{"regions":[{"box":{"x":0.1,"y":0.2,"width":0.3,"height":0.25},"confidence":4,` +
	`"type":"graph","label":"Figure 2.1"}]}. Coordinates are fractions of the page in [0,1] ` +
	`measured from the top-left corner. confidence is an integer 1 (unsure) to 5 (certain). ` +
	`type is one of: graph, flowchart, scientific, geometric, table, circuit, image, other. ` +
	`label is the printed caption near the region (e.g. "Figure 5.1", "Table 2") or omitted. ` +
	`Do not include regions that are only text.`
