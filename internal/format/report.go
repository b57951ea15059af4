package format

import (
	"fmt"
	"sort"
	"strings"

	"nodeflow/internal/store"
	"nodeflow/pkg/workflow"
	"nodeflow/pkg/workflow/execute"
	"nodeflow/pkg/workflow/infer"
)

// ValidationTable lists structural errors found in one workflow.
func ValidationTable(m Mode, name string, res workflow.Result) string {
	tb := NewTable(m)
	tb.Title(fmt.Sprintf("%s %s", BoolMark(res.Valid), name))
	tb.Header("#", "Kind", "Subject", "Message")
	for i, e := range res.Errors {
		tb.Row(i+1, e.Kind(), workflow.Subject(e), e.Message())
	}
	if res.Valid {
		tb.Footer("", "", "", "valid")
	} else {
		tb.Footer("", "", "", fmt.Sprintf("%d error(s)", len(res.Errors)))
	}
	tb.Columns(ColumnConfig{Number: 1, Right: true}, ColumnConfig{Number: 4, MaxWidth: 80})
	return tb.String()
}

// IssuesTable lists document or lint issues by path.
func IssuesTable(m Mode, title string, issues []workflow.Issue) string {
	tb := NewTable(m)
	tb.Title(title)
	tb.Header("Path", "Message")
	for _, is := range issues {
		tb.Row(is.Path, is.Message)
	}
	return tb.String()
}

// InferenceTable lists every port of g with its inferred type, in topological order.
func InferenceTable(m Mode, g *workflow.Graph, res *infer.Result) string {
	tb := NewTable(m)
	tb.Title(fmt.Sprintf("types %s", g.ID))
	tb.Header("Node", "Port", "Dir", "Declared", "Inferred", "From")
	for _, id := range res.Order() {
		n, ok := g.NodeByID(id)
		if !ok {
			continue
		}
		row := func(p workflow.Port) {
			inferred, from := "-", ""
			if t, ok := res.Lookup(n.ID, p.ID); ok {
				inferred = t.PortType.String()
				if t.Provenance != nil {
					from = workflow.PortRef{NodeID: t.Provenance.FromNodeID, PortID: t.Provenance.FromPortID}.String()
				}
			}
			tb.Row(n.ID, p.ID, p.Direction, p.Type.String(), inferred, from)
		}
		for _, p := range n.Inputs {
			row(p)
		}
		for _, p := range n.Outputs {
			row(p)
		}
	}
	rep := res.Report()
	tb.Footer("", "", "", "", fmt.Sprintf("%d/%d", rep.InferredPorts, rep.TotalPorts), missing(rep.Missing))
	return tb.String()
}

func missing(refs []workflow.PortRef) string {
	if len(refs) == 0 {
		return "complete"
	}
	s := make([]string, len(refs))
	for i, r := range refs {
		s[i] = r.String()
	}
	return "missing " + strings.Join(s, ", ")
}

// RunTable lists the terminal outputs of a run, sorted by node and port.
func RunTable(m Mode, res *execute.Result) string {
	tb := NewTable(m)
	tb.Title(fmt.Sprintf("%s run %s (%s)", BoolMark(res.Success), res.RunID, FmtDuration(res.FinishedAt.Sub(res.StartedAt))))
	tb.Header("Node", "Port", "Value")
	nodes := make([]string, 0, len(res.Output))
	for id := range res.Output {
		nodes = append(nodes, string(id))
	}
	sort.Strings(nodes)
	for _, id := range nodes {
		ports := res.Output[workflow.NodeID(id)]
		keys := make([]string, 0, len(ports))
		for p := range ports {
			keys = append(keys, string(p))
		}
		sort.Strings(keys)
		for _, p := range keys {
			tb.Row(id, p, Truncate(FmtValue(ports[workflow.PortID(p)]), 60))
		}
	}
	if !res.Success {
		tb.Footer("error", "", res.Error)
	}
	return tb.String()
}

// RunLog renders the run log one entry per line.
func RunLog(logs []execute.LogEntry) string {
	var b strings.Builder
	for _, l := range logs {
		b.WriteString(l.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// NodeTypesTable lists catalog entries.
func NodeTypesTable(m Mode, types []workflow.NodeType) string {
	tb := NewTable(m)
	tb.Header("Type", "Category", "Inputs", "Outputs", "Description")
	for _, t := range types {
		tb.Row(t.Type, t.Category, ports(t.Inputs), ports(t.Outputs), t.Description)
	}
	tb.Columns(ColumnConfig{Number: 5, MaxWidth: 48})
	return tb.String()
}

// ports renders "id:type" pairs; required inputs get a trailing "*".
func ports(ps []workflow.Port) string {
	if len(ps) == 0 {
		return "-"
	}
	s := make([]string, len(ps))
	for i, p := range ps {
		s[i] = fmt.Sprintf("%s:%s", p.ID, p.Type)
		if p.Required {
			s[i] += "*"
		}
	}
	return strings.Join(s, " ")
}

// WorkflowsTable lists stored workflows.
func WorkflowsTable(m Mode, recs []*store.WorkflowRecord) string {
	tb := NewTable(m)
	tb.Header("ID", "Name", "Nodes", "Edges", "Updated")
	for _, w := range recs {
		tb.Row(w.ID, w.Name, w.Nodes, w.Edges, w.UpdatedAt)
	}
	tb.Columns(ColumnConfig{Number: 3, Right: true}, ColumnConfig{Number: 4, Right: true})
	return tb.String()
}

// RunsTable lists stored runs.
func RunsTable(m Mode, recs []*store.RunRecord) string {
	tb := NewTable(m)
	tb.Header("Run", "Workflow", "OK", "Started", "Error")
	for _, r := range recs {
		tb.Row(r.ID, r.WorkflowID, BoolMark(r.Success), r.StartedAt, Truncate(r.Error, 60))
	}
	tb.Footer("", "", "", fmt.Sprintf("%d run(s)", len(recs)), "")
	return tb.String()
}
