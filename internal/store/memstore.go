package store

import (
	"fmt"
	"sort"
	"sync"

	"nodeflow/pkg/workflow"
	"nodeflow/pkg/workflow/execute"
)

// MemStore implements Store in memory. Used in tests and when no --db is given.
type MemStore struct {
	mu        sync.RWMutex
	workflows map[workflow.WorkflowID]*WorkflowRecord
	runs      map[string]*RunRecord
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		workflows: make(map[workflow.WorkflowID]*WorkflowRecord),
		runs:      make(map[string]*RunRecord),
	}
}

func (s *MemStore) SaveWorkflow(g *workflow.Graph) error {
	rec, err := newWorkflowRecord(g, nowUTC())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.workflows[rec.ID]; ok {
		rec.CreatedAt = prev.CreatedAt
	}
	s.workflows[rec.ID] = rec
	return nil
}

func (s *MemStore) GetWorkflow(id workflow.WorkflowID) (*WorkflowRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workflows[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (s *MemStore) ListWorkflows() ([]*WorkflowRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*WorkflowRecord, 0, len(s.workflows))
	for _, w := range s.workflows {
		cp := *w
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) SaveRun(res *execute.Result) error {
	rec, err := newRunRecord(res)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[rec.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRun, rec.ID)
	}
	s.runs[rec.ID] = rec
	return nil
}

func (s *MemStore) GetRun(id string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *MemStore) ListRuns(workflowID workflow.WorkflowID) ([]*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*RunRecord
	for _, r := range s.runs {
		if workflowID != "" && r.WorkflowID != workflowID {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt != out[j].StartedAt {
			return out[i].StartedAt > out[j].StartedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemStore) Close() error { return nil }

var (
	_ Store = (*MemStore)(nil)
	_ Store = (*SqlStore)(nil)
)
