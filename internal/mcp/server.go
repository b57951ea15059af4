// Package mcp exposes workflow validation, type inference and execution as
// MCP tools for an editor or agent collaborator.
package mcp

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"nodeflow/internal/logging"
	"nodeflow/internal/wiring"
	"nodeflow/pkg/workflow"
	"nodeflow/pkg/workflow/execute"
	"nodeflow/pkg/workflow/infer"
)

// Version is reported in the MCP implementation info.
var Version = "dev"

// Server wraps the MCP SDK server and tracks asynchronous run sessions.
type Server struct {
	MCPServer *sdkmcp.Server
	Engine    *wiring.Engine

	// Now stamps runs that do not carry a timestamp.
	Now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewServer creates an MCP server backed by eng.
func NewServer(eng *wiring.Engine) *Server {
	s := &Server{Engine: eng, Now: time.Now, sessions: make(map[string]*Session)}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "nodeflow", Version: Version},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "validate_workflow",
		Description: "Check a workflow document: shape, node types, structural errors (cycles, unsatisfied inputs, invalid connections, orphans) and lint findings.",
	}, s.handleValidate)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "infer_types",
		Description: "Propagate port types along edges in topological order and report coverage.",
	}, s.handleInfer)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "execute_workflow",
		Description: "Run a workflow to completion and return terminal node outputs and the run log.",
	}, s.handleExecute)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "start_run",
		Description: "Start a workflow run in the background. Returns a session ID for get_run_events and get_run_result.",
	}, s.handleStartRun)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_run_events",
		Description: "Read run events (node start/finish/log, completion) from a session, optionally since an index.",
	}, s.handleGetRunEvents)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_run_result",
		Description: "Wait for a background run to finish and return its result.",
	}, s.handleGetRunResult)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_node_types",
		Description: "List every node type the server can validate and execute, with its ports.",
	}, s.handleListNodeTypes)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_runs",
		Description: "List recorded runs, newest first, optionally for one workflow. Requires a store.",
	}, s.handleListRuns)
}

// --- Tool input/output types ---

type documentInput struct {
	Document string `json:"document" jsonschema:"workflow document text (JSON or YAML)"`
	Format   string `json:"format,omitempty" jsonschema:"json or yaml; detected from content when empty"`
}

type validationErrorOut struct {
	Kind    string `json:"kind"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

type validateOutput struct {
	WorkflowID     string               `json:"workflow_id,omitempty"`
	Valid          bool                 `json:"valid"`
	DocumentIssues []workflow.Issue     `json:"document_issues,omitempty"`
	Errors         []validationErrorOut `json:"errors"`
	Lint           []workflow.Issue     `json:"lint,omitempty"`
}

type inferredTypeOut struct {
	Node string `json:"node"`
	Port string `json:"port"`
	Type string `json:"type"`
	From string `json:"from,omitempty"`
}

type inferOutput struct {
	WorkflowID    string            `json:"workflow_id"`
	Order         []string          `json:"order"`
	Types         []inferredTypeOut `json:"types"`
	TotalPorts    int               `json:"total_ports"`
	InferredPorts int               `json:"inferred_ports"`
	Missing       []string          `json:"missing,omitempty"`
	Complete      bool              `json:"complete"`
}

type runInput struct {
	Document  string         `json:"document" jsonschema:"workflow document text (JSON or YAML)"`
	Format    string         `json:"format,omitempty" jsonschema:"json or yaml; detected from content when empty"`
	Variables map[string]any `json:"variables,omitempty" jsonschema:"execution variables; triggerData feeds trigger.manual"`
	Timestamp int64          `json:"timestamp,omitempty" jsonschema:"execution timestamp in Unix milliseconds (default now)"`
	Save      bool           `json:"save,omitempty" jsonschema:"record the workflow and run in the store"`
}

type runOutput struct {
	RunID      string                    `json:"run_id"`
	WorkflowID string                    `json:"workflow_id"`
	Success    bool                      `json:"success"`
	Output     map[string]map[string]any `json:"output,omitempty"`
	Error      string                    `json:"error,omitempty"`
	Logs       []string                  `json:"logs"`
}

type startRunOutput struct {
	SessionID  string `json:"session_id"`
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
}

type sessionInput struct {
	SessionID string `json:"session_id" jsonschema:"session ID from start_run"`
	Since     int    `json:"since,omitempty" jsonschema:"return events from this index onward (0-based)"`
}

type runEventsOutput struct {
	State  string   `json:"state"`
	Events []Signal `json:"events"`
	Total  int      `json:"total"`
}

type runResultOutput struct {
	State string    `json:"state"`
	Run   runOutput `json:"run"`
}

type listNodeTypesInput struct {
	Category string `json:"category,omitempty" jsonschema:"only list types of this category"`
}

type nodeTypeOut struct {
	Type        string   `json:"type"`
	Category    string   `json:"category"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Inputs      []string `json:"inputs"`
	Outputs     []string `json:"outputs"`
}

type listNodeTypesOutput struct {
	Types []nodeTypeOut `json:"types"`
}

type listRunsInput struct {
	WorkflowID string `json:"workflow_id,omitempty" jsonschema:"only list runs of this workflow"`
}

type runSummaryOut struct {
	RunID      string `json:"run_id"`
	WorkflowID string `json:"workflow_id"`
	Success    bool   `json:"success"`
	StartedAt  string `json:"started_at"`
	Error      string `json:"error,omitempty"`
}

type listRunsOutput struct {
	Runs []runSummaryOut `json:"runs"`
}

// --- Tool handlers ---

func extFor(format string) string {
	switch format {
	case "json":
		return ".json"
	case "yaml", "yml":
		return ".yaml"
	}
	return ""
}

func (s *Server) handleValidate(_ context.Context, _ *sdkmcp.CallToolRequest, input documentInput) (*sdkmcp.CallToolResult, validateOutput, error) {
	rep, err := s.Engine.Check([]byte(input.Document), extFor(input.Format))
	if err != nil {
		return nil, validateOutput{}, fmt.Errorf("validate_workflow: %w", err)
	}
	out := validateOutput{
		WorkflowID:     string(rep.Workflow),
		Valid:          rep.Valid,
		DocumentIssues: rep.Document,
		Errors:         make([]validationErrorOut, len(rep.Errors)),
		Lint:           rep.Lint,
	}
	for i, e := range rep.Errors {
		out.Errors[i] = validationErrorOut{Kind: string(e.Kind()), Subject: workflow.Subject(e), Message: e.Message()}
	}
	return nil, out, nil
}

func (s *Server) handleInfer(_ context.Context, _ *sdkmcp.CallToolRequest, input documentInput) (*sdkmcp.CallToolResult, inferOutput, error) {
	g, err := s.Engine.Load([]byte(input.Document), extFor(input.Format))
	if err != nil {
		return nil, inferOutput{}, fmt.Errorf("infer_types: %w", err)
	}
	res, err := infer.Infer(g)
	if err != nil {
		return nil, inferOutput{}, fmt.Errorf("infer_types: %w", err)
	}

	out := inferOutput{WorkflowID: string(g.ID)}
	for _, id := range res.Order() {
		out.Order = append(out.Order, string(id))
		n, _ := g.NodeByID(id)
		for _, ports := range [][]workflow.Port{n.Inputs, n.Outputs} {
			for _, p := range ports {
				t, ok := res.Lookup(n.ID, p.ID)
				if !ok {
					continue
				}
				o := inferredTypeOut{Node: string(n.ID), Port: string(p.ID), Type: t.PortType.String()}
				if t.Provenance != nil {
					o.From = string(workflow.KeyOf(t.Provenance.FromNodeID, t.Provenance.FromPortID))
				}
				out.Types = append(out.Types, o)
			}
		}
	}
	rep := res.Report()
	out.TotalPorts, out.InferredPorts = rep.TotalPorts, rep.InferredPorts
	for _, m := range rep.Missing {
		out.Missing = append(out.Missing, m.String())
	}
	out.Complete = len(rep.Missing) == 0
	return nil, out, nil
}

func (s *Server) prepareRun(input runInput) (*workflow.Graph, workflow.ExecContext, error) {
	g, err := s.Engine.Load([]byte(input.Document), extFor(input.Format))
	if err != nil {
		return nil, workflow.ExecContext{}, err
	}
	ectx := workflow.ExecContext{WorkflowID: g.ID, Variables: input.Variables, Timestamp: input.Timestamp}
	if ectx.Variables == nil {
		ectx.Variables = map[string]any{}
	}
	if ectx.Timestamp == 0 {
		ectx.Timestamp = s.Now().UnixMilli()
	}
	return g, ectx, nil
}

func toRunOutput(res *execute.Result) runOutput {
	out := runOutput{
		RunID:      res.RunID,
		WorkflowID: string(res.WorkflowID),
		Success:    res.Success,
		Error:      res.Error,
		Logs:       make([]string, len(res.Logs)),
	}
	for i, l := range res.Logs {
		out.Logs[i] = l.String()
	}
	if res.Output != nil {
		out.Output = make(map[string]map[string]any, len(res.Output))
		for node, ports := range res.Output {
			m := make(map[string]any, len(ports))
			for p, v := range ports {
				m[string(p)] = v
			}
			out.Output[string(node)] = m
		}
	}
	return out
}

func (s *Server) handleExecute(ctx context.Context, _ *sdkmcp.CallToolRequest, input runInput) (*sdkmcp.CallToolResult, runOutput, error) {
	g, ectx, err := s.prepareRun(input)
	if err != nil {
		return nil, runOutput{}, fmt.Errorf("execute_workflow: %w", err)
	}
	res, err := s.Engine.Run(ctx, g, ectx, input.Save)
	if err != nil {
		return nil, runOutput{}, fmt.Errorf("execute_workflow: %w", err)
	}
	return nil, toRunOutput(res), nil
}

func (s *Server) handleStartRun(ctx context.Context, _ *sdkmcp.CallToolRequest, input runInput) (*sdkmcp.CallToolResult, startRunOutput, error) {
	if input.Save && s.Engine.Store == nil {
		return nil, startRunOutput{}, fmt.Errorf("start_run: %w", wiring.ErrNoStore)
	}
	g, ectx, err := s.prepareRun(input)
	if err != nil {
		return nil, startRunOutput{}, fmt.Errorf("start_run: %w", err)
	}
	sess := NewSession(ctx, s.Engine, g, ectx, input.Save)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	logging.New("mcp").Info("run started", "session", sess.ID, "workflow", g.ID)
	return nil, startRunOutput{SessionID: sess.ID, WorkflowID: string(g.ID), Status: string(StateRunning)}, nil
}

func (s *Server) handleGetRunEvents(_ context.Context, _ *sdkmcp.CallToolRequest, input sessionInput) (*sdkmcp.CallToolResult, runEventsOutput, error) {
	sess, err := s.getSession(input.SessionID)
	if err != nil {
		return nil, runEventsOutput{}, err
	}
	events := sess.Bus.Since(input.Since)
	if events == nil {
		events = []Signal{}
	}
	return nil, runEventsOutput{State: string(sess.GetState()), Events: events, Total: sess.Bus.Len()}, nil
}

func (s *Server) handleGetRunResult(ctx context.Context, _ *sdkmcp.CallToolRequest, input sessionInput) (*sdkmcp.CallToolResult, runResultOutput, error) {
	sess, err := s.getSession(input.SessionID)
	if err != nil {
		return nil, runResultOutput{}, err
	}
	select {
	case <-sess.Done():
	case <-ctx.Done():
		return nil, runResultOutput{}, ctx.Err()
	}
	if err := sess.Err(); err != nil {
		return nil, runResultOutput{}, fmt.Errorf("get_run_result: %w", err)
	}
	return nil, runResultOutput{State: string(sess.GetState()), Run: toRunOutput(sess.Result())}, nil
}

func (s *Server) handleListNodeTypes(_ context.Context, _ *sdkmcp.CallToolRequest, input listNodeTypesInput) (*sdkmcp.CallToolResult, listNodeTypesOutput, error) {
	out := listNodeTypesOutput{Types: []nodeTypeOut{}}
	for _, t := range s.Engine.Registry.Catalog().List() {
		if input.Category != "" && string(t.Category) != input.Category {
			continue
		}
		out.Types = append(out.Types, nodeTypeOut{
			Type:        t.Type,
			Category:    string(t.Category),
			Label:       t.Label,
			Description: t.Description,
			Inputs:      portList(t.Inputs),
			Outputs:     portList(t.Outputs),
		})
	}
	return nil, out, nil
}

func portList(ps []workflow.Port) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = fmt.Sprintf("%s:%s", p.ID, p.Type)
	}
	return out
}

func (s *Server) handleListRuns(_ context.Context, _ *sdkmcp.CallToolRequest, input listRunsInput) (*sdkmcp.CallToolResult, listRunsOutput, error) {
	if s.Engine.Store == nil {
		return nil, listRunsOutput{}, fmt.Errorf("list_runs: %w", wiring.ErrNoStore)
	}
	recs, err := s.Engine.Store.ListRuns(workflow.WorkflowID(input.WorkflowID))
	if err != nil {
		return nil, listRunsOutput{}, fmt.Errorf("list_runs: %w", err)
	}
	out := listRunsOutput{Runs: make([]runSummaryOut, len(recs))}
	for i, r := range recs {
		out.Runs[i] = runSummaryOut{
			RunID:      r.ID,
			WorkflowID: string(r.WorkflowID),
			Success:    r.Success,
			StartedAt:  r.StartedAt,
			Error:      r.Error,
		}
	}
	return nil, out, nil
}

// SessionIDs returns the ids of every tracked session, sorted.
func (s *Server) SessionIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Shutdown cancels every running session and waits for them to exit.
func (s *Server) Shutdown() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.Cancel()
		<-sess.Done()
	}
}

func (s *Server) getSession(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("unknown session %q (call start_run first)", id)
	}
	return sess, nil
}
