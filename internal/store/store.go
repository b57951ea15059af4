// Package store persists workflow documents and execution history.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"nodeflow/pkg/workflow"
	"nodeflow/pkg/workflow/execute"
)

// DefaultDBPath is the default relative path for the SQLite DB.
// Open() creates the parent dir (.nodeflow) when needed.
const DefaultDBPath = ".nodeflow/nodeflow.db"

// ErrDuplicateRun is returned when a run id has already been recorded.
var ErrDuplicateRun = errors.New("store: run already recorded")

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

// nowUTC returns the current UTC time in the stored layout.
func nowUTC() string { return formatTime(time.Now()) }

// WorkflowRecord is one saved workflow document. Document holds the graph as JSON.
type WorkflowRecord struct {
	ID        workflow.WorkflowID
	Name      string
	Nodes     int
	Edges     int
	Document  []byte
	CreatedAt string
	UpdatedAt string
}

// Graph decodes the stored document.
func (w *WorkflowRecord) Graph() (*workflow.Graph, error) {
	var g workflow.Graph
	if err := json.Unmarshal(w.Document, &g); err != nil {
		return nil, fmt.Errorf("decode workflow %s: %w", w.ID, err)
	}
	return &g, nil
}

// RunRecord is one recorded execution. Output and Logs are JSON.
type RunRecord struct {
	ID         string
	WorkflowID workflow.WorkflowID
	Success    bool
	Error      string
	Output     []byte
	Logs       []byte
	StartedAt  string
	FinishedAt string
}

// Outputs decodes the terminal node outputs; nil for failed runs.
func (r *RunRecord) Outputs() (map[string]map[string]any, error) {
	if len(r.Output) == 0 {
		return nil, nil
	}
	var out map[string]map[string]any
	if err := json.Unmarshal(r.Output, &out); err != nil {
		return nil, fmt.Errorf("decode run %s output: %w", r.ID, err)
	}
	return out, nil
}

// LogEntries decodes the run log.
func (r *RunRecord) LogEntries() ([]execute.LogEntry, error) {
	var logs []execute.LogEntry
	if len(r.Logs) == 0 {
		return logs, nil
	}
	if err := json.Unmarshal(r.Logs, &logs); err != nil {
		return nil, fmt.Errorf("decode run %s logs: %w", r.ID, err)
	}
	return logs, nil
}

// Store is the persistence facade for workflows and runs.
// Get methods return nil, nil when the record does not exist.
type Store interface {
	// SaveWorkflow inserts or replaces a workflow, keeping its original CreatedAt.
	SaveWorkflow(g *workflow.Graph) error
	GetWorkflow(id workflow.WorkflowID) (*WorkflowRecord, error)
	// ListWorkflows returns all workflows ordered by id.
	ListWorkflows() ([]*WorkflowRecord, error)

	SaveRun(res *execute.Result) error
	GetRun(id string) (*RunRecord, error)
	// ListRuns returns runs newest first; an empty workflowID lists every run.
	ListRuns(workflowID workflow.WorkflowID) ([]*RunRecord, error)

	Close() error
}

func newWorkflowRecord(g *workflow.Graph, now string) (*WorkflowRecord, error) {
	if g.ID == "" {
		return nil, errors.New("store: workflow id is empty")
	}
	doc, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encode workflow %s: %w", g.ID, err)
	}
	return &WorkflowRecord{
		ID:        g.ID,
		Name:      g.Name,
		Nodes:     len(g.Nodes),
		Edges:     len(g.Edges),
		Document:  doc,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func newRunRecord(res *execute.Result) (*RunRecord, error) {
	if res.RunID == "" {
		return nil, errors.New("store: run id is empty")
	}
	rec := &RunRecord{
		ID:         res.RunID,
		WorkflowID: res.WorkflowID,
		Success:    res.Success,
		Error:      res.Error,
		StartedAt:  formatTime(res.StartedAt),
		FinishedAt: formatTime(res.FinishedAt),
	}
	if res.Output != nil {
		out, err := json.Marshal(res.Output)
		if err != nil {
			return nil, fmt.Errorf("encode run %s output: %w", res.RunID, err)
		}
		rec.Output = out
	}
	logs := res.Logs
	if logs == nil {
		logs = []execute.LogEntry{}
	}
	l, err := json.Marshal(logs)
	if err != nil {
		return nil, fmt.Errorf("encode run %s logs: %w", res.RunID, err)
	}
	rec.Logs = l
	return rec, nil
}
