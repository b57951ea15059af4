package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nodeflow/internal/format"
	"nodeflow/pkg/workflow"
	"nodeflow/pkg/workflow/infer"
)

var inferFlags struct {
	output string
}

var inferCmd = &cobra.Command{
	Use:   "infer <file>",
	Short: "Propagate port types along edges and report coverage",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfer,
}

func init() {
	inferCmd.Flags().StringVarP(&inferFlags.output, "output", "o", "table", "Output: table, markdown or json")
}

type inferReport struct {
	Workflow workflow.WorkflowID  `json:"workflowId"`
	Order    []workflow.NodeID    `json:"order"`
	Types    []infer.InferredType `json:"types"`
	Report   infer.Report         `json:"report"`
	Output   []infer.InferredType `json:"workflowOutput"`
}

func runInfer(cmd *cobra.Command, args []string) error {
	asJSON, mode, err := outputFormat(inferFlags.output)
	if err != nil {
		return err
	}
	eng, err := openEngine(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer eng.Close(cmd.Context())

	g, err := eng.LoadFile(args[0])
	if err != nil {
		return err
	}
	res, err := infer.Infer(g)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	out := cmd.OutOrStdout()
	if !asJSON {
		fmt.Fprintln(out, format.InferenceTable(mode, g, res))
		return nil
	}
	rep := inferReport{Workflow: g.ID, Order: res.Order(), Report: res.Report(), Output: res.WorkflowOutput()}
	for _, id := range res.Order() {
		n, _ := g.NodeByID(id)
		for _, ports := range [][]workflow.Port{n.Inputs, n.Outputs} {
			for _, p := range ports {
				if t, ok := res.Lookup(n.ID, p.ID); ok {
					rep.Types = append(rep.Types, t)
				}
			}
		}
	}
	return writeJSON(out, rep)
}
