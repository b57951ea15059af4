package execute_test

import (
	"context"
	"errors"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"nodeflow/pkg/workflow"
	"nodeflow/pkg/workflow/execute"
	"nodeflow/pkg/workflow/infer"
)

var _ = ginkgo.Describe("Workflow scenarios", func() {
	ginkgo.It("runs a manual trigger into an if node", func() {
		g := manualIntoIf()
		gomega.Expect(workflow.Validate(g).Valid).To(gomega.BeTrue())

		res := newExecutor().Execute(context.Background(), g, ctxWith(map[string]any{"triggerData": true}))
		gomega.Expect(res.Err).To(gomega.Succeed())
		gomega.Expect(res.Success).To(gomega.BeTrue())
		gomega.Expect(res.Output).To(gomega.HaveKey(workflow.NodeID("branch")))
		gomega.Expect(res.Output["branch"]).To(gomega.Equal(map[workflow.PortID]any{"true": true, "false": false}))
	})

	ginkgo.It("refuses to run a graph with an unsatisfied required input", func() {
		g := &workflow.Graph{ID: "lonely-if", Nodes: []workflow.Node{mustNode("branch", "logic.if", nil)}}

		v := workflow.Validate(g)
		gomega.Expect(v.Valid).To(gomega.BeFalse())
		gomega.Expect(v.Errors).To(gomega.ConsistOf(
			workflow.UnsatisfiedInputError{NodeID: "branch", PortID: "condition"},
		))

		trace := &execute.TraceCollector{}
		res := newExecutor(execute.WithObserver(trace)).Execute(context.Background(), g, ctxWith(nil))
		gomega.Expect(res.Success).To(gomega.BeFalse())
		gomega.Expect(errors.Is(res.Err, execute.ErrInvalidGraph)).To(gomega.BeTrue())
		gomega.Expect(trace.EventsOfType(execute.EventNodeStart)).To(gomega.BeEmpty())
		gomega.Expect(res.Logs).NotTo(gomega.BeEmpty())
	})

	ginkgo.It("reports a string to number edge as an invalid connection", func() {
		name := mustNode("name", "data.variable", map[string]any{"name": "customer"})
		sink := workflow.Node{ID: "sink", Type: "effect.db", Category: workflow.CategoryEffect,
			Inputs: []workflow.Port{{ID: "amount", Type: workflow.TypeOf(workflow.KindNumber), Required: true, Direction: workflow.DirectionInput}}}
		g := &workflow.Graph{ID: "mismatch", Nodes: []workflow.Node{name, sink},
			Edges: []workflow.Edge{link("bad", "name", "value", "sink", "amount")}}

		c := workflow.CheckPortCompatibility(name.Outputs[0].Type, sink.Inputs[0].Type)
		gomega.Expect(c.Valid).To(gomega.BeFalse())

		v := workflow.Validate(g)
		gomega.Expect(v.Errors).To(gomega.HaveLen(1))
		gomega.Expect(v.Errors[0]).To(gomega.BeAssignableToTypeOf(workflow.InvalidConnectionError{}))
		gomega.Expect(v.Errors[0].(workflow.InvalidConnectionError).EdgeID).To(gomega.Equal(workflow.EdgeID("bad")))
	})

	ginkgo.It("detects a three node cycle everywhere", func() {
		var nodes []workflow.Node
		for _, id := range []string{"a", "b", "c"} {
			nodes = append(nodes, mustNode(id, "transform.map", nil))
		}
		g := &workflow.Graph{ID: "ring", Nodes: nodes, Edges: []workflow.Edge{
			link("ab", "a", "result", "b", "array"),
			link("bc", "b", "result", "c", "array"),
			link("ca", "c", "result", "a", "array"),
		}}

		report := workflow.DetectCycles(g)
		gomega.Expect(report.HasCycle).To(gomega.BeTrue())
		gomega.Expect(report.Cycle).To(gomega.Equal([]workflow.NodeID{"a", "b", "c"}))

		v := workflow.Validate(g)
		gomega.Expect(v.Errors).To(gomega.HaveLen(1))
		gomega.Expect(v.Errors[0].Kind()).To(gomega.Equal(workflow.KindCycle))

		types, err := infer.Infer(g)
		gomega.Expect(types).To(gomega.BeNil())
		gomega.Expect(err).To(gomega.MatchError(infer.ErrCyclic))

		res := newExecutor().Execute(context.Background(), g, ctxWith(nil))
		gomega.Expect(res.Success).To(gomega.BeFalse())
		gomega.Expect(res.Output).To(gomega.BeNil())
	})
})
