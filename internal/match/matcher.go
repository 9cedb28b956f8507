// Package match assigns detected diagram regions to the questions that
// reference them. Label mentions in the question text always beat
// physical proximity; unassigned regions are surfaced as orphans for
// manual assignment rather than discarded.
package match

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/namandhakad712/Rankify-sub003/internal/model"
)

var log = logrus.WithField("component", "match")

// DefaultLabelPageWindow bounds how far a label match may reach from
// the question's own page.
const DefaultLabelPageWindow = 3

// Config tunes the matcher
type Config struct {
	LabelPageWindow int // max page distance for label matches; 0 uses the default
}

// Result is the authoritative region-to-question assignment.
type Result struct {
	Questions []model.Question `json:"questions"`
	// Orphans are regions matched to no question, ordered by page then
	// vertical position. They stay available for manual assignment.
	Orphans []model.DiagramRegion `json:"orphans"`
	// NeedsManual lists diagram-flagged question ids that ended with an
	// empty region list. They keep hasDiagram=true and must be surfaced
	// to the reviewer, never silently treated as "no diagram".
	NeedsManual []string `json:"needs_manual"`
}

// Matcher assigns regions to questions
type Matcher struct {
	cfg Config
}

// NewMatcher creates a matcher; a zero LabelPageWindow falls back to
// the default.
func NewMatcher(cfg Config) *Matcher {
	if cfg.LabelPageWindow <= 0 {
		cfg.LabelPageWindow = DefaultLabelPageWindow
	}
	return &Matcher{cfg: cfg}
}

// Match assigns regions to diagram-flagged questions in three passes of
// decreasing priority: label mention, same page, adjacent page (±1).
// A label match claims its region even when the region sits physically
// nearer another question. Positional matches consume a region
// exclusively; label matches may be shared, since two questions citing
// the same figure is an explicit multi-part scenario.
func (m *Matcher) Match(questions []model.Question, regionsByPage map[int][]model.DiagramRegion) *Result {
	regions := flatten(regionsByPage)

	out := make([]model.Question, len(questions))
	copy(out, questions)
	for i := range out {
		out[i].DiagramRegionIDs = nil
	}

	assigned := make(map[int][]model.DiagramRegion, len(out)) // question index -> regions
	claimed := make(map[string]bool, len(regions))            // region id -> taken

	// Pass 1: label mentions. Highest priority, allowed to cross a
	// small page offset.
	for qi := range out {
		q := &out[qi]
		if !q.HasDiagram {
			continue
		}
		text := strings.ToLower(q.Text)
		for ri := range regions {
			r := &regions[ri]
			if r.Label == "" || !strings.Contains(text, strings.ToLower(r.Label)) {
				continue
			}
			if pageDistance(q.PageNumber, r.PageNumber) > m.cfg.LabelPageWindow {
				continue
			}
			assigned[qi] = append(assigned[qi], *r)
			claimed[r.ID] = true
		}
	}

	// Pass 2: same page. Regions already claimed by a label match are
	// off the table. When several diagram questions share a page the
	// regions are dealt out round-robin in top-to-bottom order.
	byPage := make(map[int][]int) // page -> question indexes still matching positionally
	for qi := range out {
		q := &out[qi]
		if q.HasDiagram {
			byPage[q.PageNumber] = append(byPage[q.PageNumber], qi)
		}
	}
	for page, qis := range byPage {
		free := unclaimed(regionsByPage[page], claimed)
		if len(free) == 0 {
			continue
		}
		for i, r := range free {
			qi := qis[i%len(qis)]
			assigned[qi] = append(assigned[qi], r)
			claimed[r.ID] = true
		}
	}

	// Pass 3: adjacent pages, only for questions that still have
	// nothing.
	for qi := range out {
		q := &out[qi]
		if !q.HasDiagram || len(assigned[qi]) > 0 {
			continue
		}
		for _, page := range []int{q.PageNumber - 1, q.PageNumber + 1} {
			for _, r := range unclaimed(regionsByPage[page], claimed) {
				assigned[qi] = append(assigned[qi], r)
				claimed[r.ID] = true
			}
		}
	}

	res := &Result{Questions: out}
	for qi := range out {
		q := &out[qi]
		if !q.HasDiagram {
			continue
		}
		matched := assigned[qi]
		sortRegions(matched)
		for _, r := range matched {
			q.DiagramRegionIDs = append(q.DiagramRegionIDs, r.ID)
		}
		if len(matched) == 0 {
			res.NeedsManual = append(res.NeedsManual, q.ID)
		}
	}

	for _, r := range regions {
		if !claimed[r.ID] {
			res.Orphans = append(res.Orphans, r)
		}
	}
	sortRegions(res.Orphans)

	log.WithFields(logrus.Fields{
		"questions":    len(questions),
		"regions":      len(regions),
		"orphans":      len(res.Orphans),
		"needs_manual": len(res.NeedsManual),
	}).Debug("Matching complete")
	return res
}

func flatten(regionsByPage map[int][]model.DiagramRegion) []model.DiagramRegion {
	var all []model.DiagramRegion
	for _, rs := range regionsByPage {
		all = append(all, rs...)
	}
	sortRegions(all)
	return all
}

func unclaimed(regions []model.DiagramRegion, claimed map[string]bool) []model.DiagramRegion {
	var free []model.DiagramRegion
	for _, r := range regions {
		if !claimed[r.ID] {
			free = append(free, r)
		}
	}
	sortRegions(free)
	return free
}

// sortRegions orders by page, then top-to-bottom, then left-to-right.
func sortRegions(rs []model.DiagramRegion) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].PageNumber != rs[j].PageNumber {
			return rs[i].PageNumber < rs[j].PageNumber
		}
		if rs[i].Box.Y != rs[j].Box.Y {
			return rs[i].Box.Y < rs[j].Box.Y
		}
		return rs[i].Box.X < rs[j].Box.X
	})
}

func pageDistance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
