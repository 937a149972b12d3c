/*
Package memory provides a map-backed points.Store for tests.

PURPOSE:
  Lets the ledger service tests run without a database. Enforces the
  same invariants as the SQLite store: unique point type names and one
  activity-sourced entry per (student, date, batchYear, type).

NOT FOR PRODUCTION:
  No persistence. Use store/sqlite in real deployments.
*/
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/khedma/ministry-engine/core"
	"github.com/khedma/ministry-engine/points"
)

// Store implements points.Store in memory.
type Store struct {
	mu        sync.RWMutex
	types     map[core.ID]points.PointType
	entries   map[core.ID]points.Entry
	summaries map[core.ID]points.Summary
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		types:     make(map[core.ID]points.PointType),
		entries:   make(map[core.ID]points.Entry),
		summaries: make(map[core.ID]points.Summary),
	}
}

// =============================================================================
// POINT TYPES
// =============================================================================

func (s *Store) InsertPointType(_ context.Context, t *points.PointType) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.types {
		if existing.Name == t.Name {
			return &core.DuplicateError{Entity: "point type", Fields: []string{"name"}}
		}
	}
	t.CreatedAt = time.Now().UTC()
	s.types[t.ID] = *t
	return nil
}

func (s *Store) GetPointType(_ context.Context, id core.ID) (*points.PointType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.types[id]
	if !ok {
		return nil, &core.NotFoundError{Entity: "point type", ID: id}
	}
	return &t, nil
}

func (s *Store) GetPointTypeByName(_ context.Context, name string) (*points.PointType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.types {
		if t.Name == name {
			t := t
			return &t, nil
		}
	}
	return nil, &core.NotFoundError{Entity: "point type"}
}

func (s *Store) ListPointTypes(_ context.Context) ([]points.PointType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]points.PointType, 0, len(s.types))
	for _, t := range s.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) UpdatePointType(_ context.Context, t *points.PointType) (*points.PointType, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.types[t.ID]
	if !ok {
		return nil, &core.NotFoundError{Entity: "point type", ID: t.ID}
	}
	for id, other := range s.types {
		if id != t.ID && other.Name == t.Name {
			return nil, &core.DuplicateError{Entity: "point type", Fields: []string{"name"}}
		}
	}
	t.CreatedAt = existing.CreatedAt
	s.types[t.ID] = *t
	return t, nil
}

func (s *Store) DeletePointType(_ context.Context, id core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.types[id]; !ok {
		return &core.NotFoundError{Entity: "point type", ID: id}
	}
	delete(s.types, id)
	return nil
}

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

func (s *Store) InsertEntry(_ context.Context, e *points.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Source.Type.IsActivity() {
		for _, existing := range s.entries {
			if existing.Source.Type.IsActivity() &&
				existing.Student == e.Student &&
				existing.BatchYear == e.BatchYear &&
				existing.Type == e.Type &&
				existing.Date.Equal(e.Date) {
				return &core.DuplicateError{
					Entity: "points entry",
					Fields: []string{"student", "date", "batchYear", "type"},
				}
			}
		}
	}
	e.CreatedAt = time.Now().UTC()
	s.entries[e.ID] = *e
	return nil
}

func (s *Store) GetEntry(_ context.Context, id core.ID) (*points.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, &core.NotFoundError{Entity: "points entry", ID: id}
	}
	return &e, nil
}

func matchEntry(e points.Entry, f points.EntryFilter) bool {
	if !f.ID.IsZero() && e.ID != f.ID {
		return false
	}
	if !f.StudentID.IsZero() && e.Student != f.StudentID {
		return false
	}
	if !f.BatchYearID.IsZero() && e.BatchYear != f.BatchYearID {
		return false
	}
	if !f.TypeID.IsZero() && e.Type != f.TypeID {
		return false
	}
	if !f.Date.IsZero() && !e.Date.Equal(f.Date) {
		return false
	}
	if f.SourceType != "" && e.Source.Type != f.SourceType {
		return false
	}
	if !f.SourceID.IsZero() && e.Source.ID != f.SourceID {
		return false
	}
	return true
}

// ListEntries supports the id-based filter fields; the name-based fields
// need the roster tables and only work on the SQLite store.
func (s *Store) ListEntries(_ context.Context, f points.EntryFilter) ([]points.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []points.Entry
	for _, e := range s.entries {
		if matchEntry(e, f) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[j].Date.Before(out[i].Date)
		}
		return strings.Compare(out[i].ID.String(), out[j].ID.String()) < 0
	})
	return out, nil
}

func (s *Store) UpdateEntry(_ context.Context, e *points.Entry) (*points.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.entries[e.ID]
	if !ok {
		return nil, &core.NotFoundError{Entity: "points entry", ID: e.ID}
	}
	e.Source = existing.Source
	if e.Source.Type.IsActivity() {
		for id, other := range s.entries {
			if id != e.ID && other.Source.Type.IsActivity() &&
				other.Student == e.Student &&
				other.BatchYear == e.BatchYear &&
				other.Type == e.Type &&
				other.Date.Equal(e.Date) {
				return nil, &core.DuplicateError{
					Entity: "points entry",
					Fields: []string{"student", "date", "batchYear", "type"},
				}
			}
		}
	}
	e.CreatedAt = existing.CreatedAt
	s.entries[e.ID] = *e
	return e, nil
}

func (s *Store) DeleteEntry(_ context.Context, id core.ID) (*points.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, &core.NotFoundError{Entity: "points entry", ID: id}
	}
	delete(s.entries, id)
	return &e, nil
}

func (s *Store) DeleteEntriesByStudent(_ context.Context, studentID core.ID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	for id, e := range s.entries {
		if e.Student == studentID {
			delete(s.entries, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) Totals(_ context.Context, studentID, batchYearID core.ID) (*points.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := &points.Totals{BySource: make(map[core.SourceType]points.SourceTotal)}
	for _, e := range s.entries {
		if e.Student != studentID {
			continue
		}
		if !batchYearID.IsZero() && e.BatchYear != batchYearID {
			continue
		}
		st := totals.BySource[e.Source.Type]
		st.Count++
		st.Points += e.Points
		totals.BySource[e.Source.Type] = st
		totals.Overall.Count++
		totals.Overall.Points += e.Points
	}
	return totals, nil
}

// =============================================================================
// SUMMARIES
// =============================================================================

func (s *Store) summaryKey(studentID, batchYearID core.ID) (core.ID, bool) {
	for id, sum := range s.summaries {
		if sum.Student == studentID && sum.BatchYear == batchYearID {
			return id, true
		}
	}
	return "", false
}

func (s *Store) InsertSummary(_ context.Context, sum *points.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.summaryKey(sum.Student, sum.BatchYear); ok {
		return &core.DuplicateError{Entity: "summary", Fields: []string{"student", "batchYear"}}
	}
	sum.CreatedAt = time.Now().UTC()
	s.summaries[sum.ID] = *sum
	return nil
}

func (s *Store) GetSummary(_ context.Context, studentID, batchYearID core.ID) (*points.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.summaryKey(studentID, batchYearID); ok {
		sum := s.summaries[id]
		return &sum, nil
	}
	return nil, &core.NotFoundError{Entity: "summary"}
}

func (s *Store) ListSummaries(_ context.Context, f points.SummaryFilter) ([]points.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []points.Summary
	for _, sum := range s.summaries {
		if !f.StudentID.IsZero() && sum.Student != f.StudentID {
			continue
		}
		if !f.BatchYearID.IsZero() && sum.BatchYear != f.BatchYearID {
			continue
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalPoints > out[j].TotalPoints })
	return out, nil
}

func (s *Store) UpdateSummaryTotals(_ context.Context, sum *points.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.summaryKey(sum.Student, sum.BatchYear)
	if !ok {
		id = core.NewID()
		sum.CreatedAt = time.Now().UTC()
	} else {
		sum.CreatedAt = s.summaries[id].CreatedAt
	}
	sum.ID = id
	s.summaries[id] = *sum
	return nil
}

func (s *Store) DeleteSummariesByStudent(_ context.Context, studentID core.ID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	for id, sum := range s.summaries {
		if sum.Student == studentID {
			delete(s.summaries, id)
			n++
		}
	}
	return n, nil
}
