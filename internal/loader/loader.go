// Package loader decides when diagram renders actually run. Rendering
// follows the reader: a region renders once its question is visible or
// within a small look-ahead window, and a pending render is cancelled
// the moment its question scrolls back out of the window.
package loader

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/namandhakad712/Rankify-sub003/internal/model"
)

var log = logrus.WithField("component", "loader")

// DefaultLookAhead prefetches the next questions behind the visible one
const DefaultLookAhead = 2

// RenderFunc performs one region render. The context is cancelled if
// the region leaves the active window before the render completes.
type RenderFunc func(ctx context.Context, regionID string, tier model.ResolutionTier) error

// Loader tracks question visibility and drives renders
type Loader struct {
	mu        sync.Mutex
	render    RenderFunc
	lookAhead int

	questions []model.Question
	index     map[string]int // question id -> position
	visible   map[string]bool
	pending   map[string]*renderTask // region id -> in-flight render
	done      map[string]bool        // region id -> rendered
}

type renderTask struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewLoader creates a loader; a non-positive lookAhead uses the default.
func NewLoader(render RenderFunc, lookAhead int) *Loader {
	if lookAhead <= 0 {
		lookAhead = DefaultLookAhead
	}
	return &Loader{
		render:    render,
		lookAhead: lookAhead,
		index:     make(map[string]int),
		visible:   make(map[string]bool),
		pending:   make(map[string]*renderTask),
		done:      make(map[string]bool),
	}
}

// SetQuestions installs the ordered question list the window is
// computed over. Resets visibility and render bookkeeping.
func (l *Loader) SetQuestions(questions []model.Question) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, task := range l.pending {
		task.cancel()
	}
	l.questions = questions
	l.index = make(map[string]int, len(questions))
	for i, q := range questions {
		l.index[q.ID] = i
	}
	l.visible = make(map[string]bool)
	l.pending = make(map[string]*renderTask)
	l.done = make(map[string]bool)
}

// SetVisible records a visibility change for one question's container
// and reconciles renders: regions entering the active window start
// rendering, pending renders for regions that left it are cancelled.
// The visible question renders at preview, look-ahead ones at
// thumbnail.
func (l *Loader) SetVisible(questionID string, visible bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.index[questionID]; !ok {
		return
	}
	if l.visible[questionID] == visible {
		return
	}
	if visible {
		l.visible[questionID] = true
	} else {
		delete(l.visible, questionID)
	}
	l.reconcile()
}

// Pending reports how many renders are in flight
func (l *Loader) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// reconcile starts and cancels renders to match the active window.
// Caller holds the lock.
func (l *Loader) reconcile() {
	want := l.activeRegions()

	for regionID, task := range l.pending {
		if _, ok := want[regionID]; !ok {
			log.WithField("region", regionID).Debug("Cancelling render outside window")
			task.cancel()
			delete(l.pending, regionID)
		}
	}

	for regionID, tier := range want {
		if l.done[regionID] {
			continue
		}
		if _, ok := l.pending[regionID]; ok {
			continue
		}
		l.start(regionID, tier)
	}
}

// activeRegions maps region id to the tier it should render at. A
// region both visible and in look-ahead renders at the stronger
// preview tier.
func (l *Loader) activeRegions() map[string]model.ResolutionTier {
	want := make(map[string]model.ResolutionTier)
	for qid := range l.visible {
		i := l.index[qid]
		for _, rid := range l.questions[i].DiagramRegionIDs {
			want[rid] = model.TierPreview
		}
		for j := i + 1; j <= i+l.lookAhead && j < len(l.questions); j++ {
			for _, rid := range l.questions[j].DiagramRegionIDs {
				if _, ok := want[rid]; !ok {
					want[rid] = model.TierThumbnail
				}
			}
		}
	}
	return want
}

// start launches one render. Caller holds the lock.
func (l *Loader) start(regionID string, tier model.ResolutionTier) {
	ctx, cancel := context.WithCancel(context.Background())
	task := &renderTask{ctx: ctx, cancel: cancel}
	l.pending[regionID] = task

	go func() {
		err := l.render(ctx, regionID, tier)
		cancel()

		l.mu.Lock()
		defer l.mu.Unlock()
		if l.pending[regionID] == task {
			delete(l.pending, regionID)
		}
		switch {
		case err == nil:
			l.done[regionID] = true
		case ctx.Err() != nil:
			// Cancelled; it renders again if it re-enters the window.
		default:
			log.WithError(err).WithField("region", regionID).Warn("Render failed")
		}
	}()
}
