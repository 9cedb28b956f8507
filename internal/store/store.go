// Package store is the persistence boundary for regions and their
// question assignments. Regions are keyed by (documentId, pageNumber)
// and assignments by questionId, with a reverse index from region to
// questions so deleting a region can never leave a dangling reference
// inside a question.
package store

import (
	"sort"
	"sync"

	"github.com/namandhakad712/Rankify-sub003/internal/model"
)

// Store is the key-value persistence collaborator
type Store interface {
	// Regions
	PutRegion(region model.DiagramRegion) error
	GetRegion(regionID string) (model.DiagramRegion, bool)
	RegionsByPage(documentID string, pageNumber int) []model.DiagramRegion
	RegionsByDocument(documentID string) []model.DiagramRegion
	DeleteRegion(regionID string) bool

	// Questions and assignments
	PutQuestions(documentID string, questions []model.Question) error
	Questions(documentID string) []model.Question
	PutAssignment(questionID string, regionIDs []string)
	Assignment(questionID string) []string
	QuestionsForRegion(regionID string) []string

	// DeleteDocument cascades: regions, questions and assignments for
	// the document all go. Returns the number of regions removed.
	DeleteDocument(documentID string) int

	// Reset drops everything. Session teardown hook.
	Reset()
}

type pageKey struct {
	documentID string
	pageNumber int
}

// MemoryStore is the in-memory Store used for session-scoped state
type MemoryStore struct {
	mu          sync.RWMutex
	regions     map[string]model.DiagramRegion
	byPage      map[pageKey]map[string]struct{}
	byDocument  map[string]map[string]struct{}
	questions   map[string][]model.Question    // documentID -> questions
	questionDoc map[string]string              // questionID -> documentID
	assignments map[string][]string            // questionID -> region ids
	byRegion    map[string]map[string]struct{} // regionID -> question ids
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	s.initLocked()
	return s
}

func (s *MemoryStore) initLocked() {
	s.regions = make(map[string]model.DiagramRegion)
	s.byPage = make(map[pageKey]map[string]struct{})
	s.byDocument = make(map[string]map[string]struct{})
	s.questions = make(map[string][]model.Question)
	s.questionDoc = make(map[string]string)
	s.assignments = make(map[string][]string)
	s.byRegion = make(map[string]map[string]struct{})
}

// PutRegion inserts or replaces a region
func (s *MemoryStore) PutRegion(region model.DiagramRegion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.regions[region.ID]; ok {
		s.unindexLocked(old)
	}
	s.regions[region.ID] = region

	pk := pageKey{region.DocumentID, region.PageNumber}
	if s.byPage[pk] == nil {
		s.byPage[pk] = make(map[string]struct{})
	}
	s.byPage[pk][region.ID] = struct{}{}
	if s.byDocument[region.DocumentID] == nil {
		s.byDocument[region.DocumentID] = make(map[string]struct{})
	}
	s.byDocument[region.DocumentID][region.ID] = struct{}{}
	return nil
}

// GetRegion looks up one region by id
func (s *MemoryStore) GetRegion(regionID string) (model.DiagramRegion, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.regions[regionID]
	return r, ok
}

// RegionsByPage returns a page's regions ordered top-to-bottom
func (s *MemoryStore) RegionsByPage(documentID string, pageNumber int) []model.DiagramRegion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectLocked(s.byPage[pageKey{documentID, pageNumber}])
}

// RegionsByDocument returns all of a document's regions ordered by
// page, then top-to-bottom
func (s *MemoryStore) RegionsByDocument(documentID string) []model.DiagramRegion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectLocked(s.byDocument[documentID])
}

// DeleteRegion removes a region and scrubs it out of every question
// assignment via the reverse index
func (s *MemoryStore) DeleteRegion(regionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	region, ok := s.regions[regionID]
	if !ok {
		return false
	}
	s.unindexLocked(region)
	delete(s.regions, regionID)

	for qid := range s.byRegion[regionID] {
		s.assignments[qid] = removeID(s.assignments[qid], regionID)
	}
	delete(s.byRegion, regionID)
	return true
}

// PutQuestions replaces the question list for a document
func (s *MemoryStore) PutQuestions(documentID string, questions []model.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, q := range s.questions[documentID] {
		delete(s.questionDoc, q.ID)
	}
	qs := make([]model.Question, len(questions))
	copy(qs, questions)
	s.questions[documentID] = qs
	for _, q := range qs {
		s.questionDoc[q.ID] = documentID
	}
	return nil
}

// Questions returns the stored question list for a document
func (s *MemoryStore) Questions(documentID string) []model.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	qs := s.questions[documentID]
	out := make([]model.Question, len(qs))
	copy(out, qs)
	return out
}

// PutAssignment replaces a question's ordered region list and rebuilds
// the reverse index entries it touches
func (s *MemoryStore) PutAssignment(questionID string, regionIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rid := range s.assignments[questionID] {
		if qs := s.byRegion[rid]; qs != nil {
			delete(qs, questionID)
			if len(qs) == 0 {
				delete(s.byRegion, rid)
			}
		}
	}

	ids := make([]string, len(regionIDs))
	copy(ids, regionIDs)
	s.assignments[questionID] = ids
	for _, rid := range ids {
		if s.byRegion[rid] == nil {
			s.byRegion[rid] = make(map[string]struct{})
		}
		s.byRegion[rid][questionID] = struct{}{}
	}
}

// Assignment returns a question's ordered region ids
func (s *MemoryStore) Assignment(questionID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.assignments[questionID]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// QuestionsForRegion is the reverse lookup: which questions reference
// this region
func (s *MemoryStore) QuestionsForRegion(regionID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.byRegion[regionID]))
	for qid := range s.byRegion[regionID] {
		out = append(out, qid)
	}
	sort.Strings(out)
	return out
}

// DeleteDocument cascades over the document's regions, questions and
// assignments
func (s *MemoryStore) DeleteDocument(documentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byDocument[documentID]
	removed := len(ids)
	for rid := range ids {
		region := s.regions[rid]
		delete(s.regions, rid)
		delete(s.byPage, pageKey{documentID, region.PageNumber})
		for qid := range s.byRegion[rid] {
			s.assignments[qid] = removeID(s.assignments[qid], rid)
		}
		delete(s.byRegion, rid)
	}
	delete(s.byDocument, documentID)

	for _, q := range s.questions[documentID] {
		delete(s.questionDoc, q.ID)
		delete(s.assignments, q.ID)
	}
	delete(s.questions, documentID)
	return removed
}

// Reset drops all state
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initLocked()
}

// Internal helpers; callers hold the lock.

func (s *MemoryStore) unindexLocked(region model.DiagramRegion) {
	pk := pageKey{region.DocumentID, region.PageNumber}
	if ids := s.byPage[pk]; ids != nil {
		delete(ids, region.ID)
		if len(ids) == 0 {
			delete(s.byPage, pk)
		}
	}
	if ids := s.byDocument[region.DocumentID]; ids != nil {
		delete(ids, region.ID)
		if len(ids) == 0 {
			delete(s.byDocument, region.DocumentID)
		}
	}
}

func (s *MemoryStore) collectLocked(ids map[string]struct{}) []model.DiagramRegion {
	out := make([]model.DiagramRegion, 0, len(ids))
	for id := range ids {
		out = append(out, s.regions[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PageNumber != out[j].PageNumber {
			return out[i].PageNumber < out[j].PageNumber
		}
		if out[i].Box.Y != out[j].Box.Y {
			return out[i].Box.Y < out[j].Box.Y
		}
		return out[i].Box.X < out[j].Box.X
	})
	return out
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
