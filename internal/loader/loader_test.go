package loader

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namandhakad712/Rankify-sub003/internal/model"
)

// renderRecorder scripts render completion so tests control timing
type renderRecorder struct {
	mu        sync.Mutex
	started   []string
	tiers     map[string]model.ResolutionTier
	cancelled []string
	release   chan struct{} // nil means complete immediately
	startedCh chan string
}

func newRecorder(blocking bool) *renderRecorder {
	r := &renderRecorder{
		tiers:     make(map[string]model.ResolutionTier),
		startedCh: make(chan string, 32),
	}
	if blocking {
		r.release = make(chan struct{})
	}
	return r
}

func (r *renderRecorder) render(ctx context.Context, regionID string, tier model.ResolutionTier) error {
	r.mu.Lock()
	r.started = append(r.started, regionID)
	r.tiers[regionID] = tier
	r.mu.Unlock()
	r.startedCh <- regionID

	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			r.mu.Lock()
			r.cancelled = append(r.cancelled, regionID)
			r.mu.Unlock()
			return ctx.Err()
		}
	}
	return nil
}

func (r *renderRecorder) waitStarted(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.startedCh:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for render %d of %d to start", i+1, n)
		}
	}
}

func (r *renderRecorder) startedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.started...)
}

func (r *renderRecorder) cancelledIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.cancelled...)
}

func questions() []model.Question {
	return []model.Question{
		{ID: "q1", HasDiagram: true, DiagramRegionIDs: []string{"r1"}},
		{ID: "q2", HasDiagram: true, DiagramRegionIDs: []string{"r2"}},
		{ID: "q3", HasDiagram: true, DiagramRegionIDs: []string{"r3"}},
		{ID: "q4", HasDiagram: true, DiagramRegionIDs: []string{"r4"}},
		{ID: "q5", HasDiagram: false},
	}
}

func waitPendingZero(t *testing.T, l *Loader) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for l.Pending() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("renders never drained")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestLoaderRendersVisibleAndLookAhead(t *testing.T) {
	rec := newRecorder(false)
	l := NewLoader(rec.render, 2)
	l.SetQuestions(questions())

	l.SetVisible("q1", true)
	rec.waitStarted(t, 3)
	waitPendingZero(t, l)

	started := rec.startedIDs()
	assert.ElementsMatch(t, []string{"r1", "r2", "r3"}, started, "visible question plus 2 look-ahead")
	assert.Equal(t, model.TierPreview, rec.tiers["r1"], "visible renders at preview")
	assert.Equal(t, model.TierThumbnail, rec.tiers["r2"], "look-ahead prefetches at thumbnail")
	assert.Equal(t, model.TierThumbnail, rec.tiers["r3"])
}

func TestLoaderSkipsRegionsOutsideWindow(t *testing.T) {
	rec := newRecorder(false)
	l := NewLoader(rec.render, 1)
	l.SetQuestions(questions())

	l.SetVisible("q1", true)
	rec.waitStarted(t, 2)
	waitPendingZero(t, l)

	assert.NotContains(t, rec.startedIDs(), "r3", "beyond the look-ahead window")
	assert.NotContains(t, rec.startedIDs(), "r4")
}

func TestLoaderCancelsWhenInvisible(t *testing.T) {
	rec := newRecorder(true) // renders block until released
	l := NewLoader(rec.render, 1)
	l.SetQuestions(questions())

	l.SetVisible("q1", true)
	rec.waitStarted(t, 2) // r1 and r2 in flight

	l.SetVisible("q1", false)

	deadline := time.Now().Add(2 * time.Second)
	for len(rec.cancelledIDs()) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("pending renders were not cancelled")
		}
		time.Sleep(time.Millisecond)
	}
	assert.ElementsMatch(t, []string{"r1", "r2"}, rec.cancelledIDs())
}

func TestLoaderDoesNotRerenderCompleted(t *testing.T) {
	rec := newRecorder(false)
	l := NewLoader(rec.render, 1)
	l.SetQuestions(questions())

	l.SetVisible("q1", true)
	rec.waitStarted(t, 2)
	waitPendingZero(t, l)

	l.SetVisible("q1", false)
	l.SetVisible("q1", true)
	// No new renders: both regions already completed.
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, rec.startedIDs(), 2)
}

func TestLoaderRerendersAfterCancel(t *testing.T) {
	rec := newRecorder(true)
	l := NewLoader(rec.render, 0) // default look-ahead, but only q1 matters
	l.SetQuestions([]model.Question{{ID: "q1", HasDiagram: true, DiagramRegionIDs: []string{"r1"}}})

	l.SetVisible("q1", true)
	rec.waitStarted(t, 1)
	l.SetVisible("q1", false) // cancels r1 mid-flight

	deadline := time.Now().Add(2 * time.Second)
	for len(rec.cancelledIDs()) < 1 {
		if time.Now().After(deadline) {
			t.Fatal("render was not cancelled")
		}
		time.Sleep(time.Millisecond)
	}

	l.SetVisible("q1", true) // re-enters the window, renders again
	rec.waitStarted(t, 1)
	assert.Equal(t, []string{"r1", "r1"}, rec.startedIDs())
}

func TestLoaderIgnoresUnknownQuestions(t *testing.T) {
	rec := newRecorder(false)
	l := NewLoader(rec.render, 2)
	l.SetQuestions(questions())

	l.SetVisible("nope", true)
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, rec.startedIDs())
	assert.Equal(t, 0, l.Pending())
}

func TestLoaderSetQuestionsCancelsInFlight(t *testing.T) {
	rec := newRecorder(true)
	l := NewLoader(rec.render, 1)
	l.SetQuestions(questions())
	l.SetVisible("q1", true)
	rec.waitStarted(t, 2)

	l.SetQuestions(questions()) // reset mid-flight

	deadline := time.Now().Add(2 * time.Second)
	for len(rec.cancelledIDs()) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("reset did not cancel in-flight renders")
		}
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, 0, l.Pending())
}
