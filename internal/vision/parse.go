package vision

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/namandhakad712/Rankify-sub003/internal/model"
)

// wire types mirror what the model was asked for, loosely: some models
// flatten the box, some return a bare array, most wrap in code fences.
type wireBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type wireCandidate struct {
	Box        *wireBox `json:"box"`
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
	Width      *float64 `json:"width"`
	Height     *float64 `json:"height"`
	Confidence *float64 `json:"confidence"`
	Type       string   `json:"type"`
	Label      string   `json:"label"`
}

type wireResponse struct {
	Regions []wireCandidate `json:"regions"`
}

// ParseCandidates extracts region candidates from a raw model response.
// A response that yields no parseable JSON is a ParseError; a response
// that parses to zero regions is a valid empty page.
func ParseCandidates(raw string) ([]model.RegionCandidate, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, &ParseError{Err: fmt.Errorf("no JSON object or array in response"), Raw: raw}
	}

	var resp wireResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil || resp.Regions == nil {
		// Some models return the bare array.
		var list []wireCandidate
		if err2 := json.Unmarshal([]byte(payload), &list); err2 != nil {
			if err == nil {
				err = err2
			}
			return nil, &ParseError{Err: err, Raw: raw}
		}
		resp.Regions = list
	}

	out := make([]model.RegionCandidate, 0, len(resp.Regions))
	for _, w := range resp.Regions {
		c, ok := toCandidate(w)
		if !ok {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func toCandidate(w wireCandidate) (model.RegionCandidate, bool) {
	var box model.NormalizedBox
	switch {
	case w.Box != nil:
		box = model.NormalizedBox{X: w.Box.X, Y: w.Box.Y, Width: w.Box.Width, Height: w.Box.Height}
	case w.X != nil && w.Y != nil && w.Width != nil && w.Height != nil:
		box = model.NormalizedBox{X: *w.X, Y: *w.Y, Width: *w.Width, Height: *w.Height}
	default:
		return model.RegionCandidate{}, false
	}

	conf := 3
	if w.Confidence != nil {
		conf = clampConfidence(*w.Confidence)
	}

	dtype := model.DiagramType(strings.ToLower(strings.TrimSpace(w.Type)))
	if !model.ValidDiagramType(dtype) {
		dtype = model.DiagramOther
	}

	return model.RegionCandidate{
		Box:        box,
		Confidence: conf,
		Type:       dtype,
		Label:      strings.TrimSpace(w.Label),
	}, true
}

// clampConfidence maps any numeric confidence into the 1..5 scale.
// Models asked for 1-5 occasionally answer with 0-1 probabilities.
func clampConfidence(v float64) int {
	if math.IsNaN(v) {
		return 1
	}
	if v > 0 && v <= 1 {
		v = v * 5
	}
	n := int(math.Round(v))
	if n < 1 {
		n = 1
	}
	if n > 5 {
		n = 5
	}
	return n
}

// extractJSON pulls the JSON payload out of a chatty response: fenced
// blocks first, then the outermost object or array.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		// Skip a language tag like "json".
		if j := strings.IndexByte(rest, '\n'); j >= 0 {
			rest = rest[j+1:]
		}
		if k := strings.Index(rest, "```"); k >= 0 {
			s = strings.TrimSpace(rest[:k])
		}
	}

	objStart := strings.IndexByte(s, '{')
	arrStart := strings.IndexByte(s, '[')
	start := objStart
	end := strings.LastIndexByte(s, '}')
	if objStart < 0 || (arrStart >= 0 && arrStart < objStart) {
		start = arrStart
		end = strings.LastIndexByte(s, ']')
	}
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
