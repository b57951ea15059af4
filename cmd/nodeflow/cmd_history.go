package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"nodeflow/internal/format"
	"nodeflow/pkg/workflow"
)

var historyFlags struct {
	runID     string
	workflows bool
	output    string
}

var historyCmd = &cobra.Command{
	Use:   "history [workflow-id]",
	Short: "List recorded runs and workflows",
	Long: `List runs recorded with 'nodeflow run --save', newest first.

  nodeflow history                 # every run
  nodeflow history nightly         # runs of one workflow
  nodeflow history --run <run-id>  # one run with outputs and log
  nodeflow history --workflows     # saved workflows`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyFlags.runID, "run", "", "Show a single run")
	f.BoolVar(&historyFlags.workflows, "workflows", false, "List saved workflows instead of runs")
	f.StringVarP(&historyFlags.output, "output", "o", "table", "Output: table, markdown or json")
}

func runHistory(cmd *cobra.Command, args []string) error {
	asJSON, mode, err := outputFormat(historyFlags.output)
	if err != nil {
		return err
	}
	eng, err := openEngine(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer eng.Close(cmd.Context())
	st := eng.Store
	out := cmd.OutOrStdout()

	switch {
	case historyFlags.runID != "":
		rec, err := st.GetRun(historyFlags.runID)
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("run %q not found", historyFlags.runID)
		}
		outputs, err := rec.Outputs()
		if err != nil {
			return err
		}
		logs, err := rec.LogEntries()
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(out, map[string]any{
				"runId":      rec.ID,
				"workflowId": rec.WorkflowID,
				"success":    rec.Success,
				"error":      rec.Error,
				"startedAt":  rec.StartedAt,
				"finishedAt": rec.FinishedAt,
				"output":     outputs,
				"logs":       logs,
			})
		}
		tb := format.NewTable(mode)
		tb.Title(fmt.Sprintf("%s run %s of %s", format.BoolMark(rec.Success), rec.ID, rec.WorkflowID))
		tb.Header("Node", "Port", "Value")
		for _, node := range slices.Sorted(maps.Keys(outputs)) {
			ports := outputs[node]
			for _, port := range slices.Sorted(maps.Keys(ports)) {
				tb.Row(node, port, format.Truncate(format.FmtValue(ports[port]), 60))
			}
		}
		fmt.Fprintln(out, tb.String())
		fmt.Fprint(out, format.RunLog(logs))
		return nil

	case historyFlags.workflows:
		recs, err := st.ListWorkflows()
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(out, recs)
		}
		fmt.Fprintln(out, format.WorkflowsTable(mode, recs))
		return nil
	}

	var id workflow.WorkflowID
	if len(args) > 0 {
		id = workflow.WorkflowID(args[0])
	}
	recs, err := st.ListRuns(id)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(out, recs)
	}
	fmt.Fprintln(out, format.RunsTable(mode, recs))
	return nil
}
