package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"nodeflow/internal/format"
	"nodeflow/internal/logging"
	"nodeflow/internal/runconfig"
	"nodeflow/pkg/workflow/execute"
)

var runFlags struct {
	varsPath string
	save     bool
	output   string
	showLogs bool
}

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Execute a workflow and print terminal node outputs",
	Long: `Execute a workflow node by node in topological order. The graph is
validated first; an invalid graph runs nothing.

Variables come from --vars (YAML or JSON):

  workflowId: nightly        # optional, defaults to the document id
  timestamp: 1767607200000   # optional, Unix ms, defaults to now
  variables:
    triggerData: true        # read by trigger.manual

With --save (and --db or $NODEFLOW_DB) the workflow and the run are
recorded for 'nodeflow history'.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.varsPath, "vars", "", "Run config file (YAML/JSON) with workflowId, timestamp and variables")
	f.BoolVar(&runFlags.save, "save", false, "Record the workflow and run in the history DB")
	f.StringVarP(&runFlags.output, "output", "o", "table", "Output: table, markdown or json")
	f.BoolVar(&runFlags.showLogs, "logs", false, "Print the run log after the outputs")
}

func runRun(cmd *cobra.Command, args []string) error {
	asJSON, mode, err := outputFormat(runFlags.output)
	if err != nil {
		return err
	}
	var cfg *runconfig.Config
	if runFlags.varsPath != "" {
		if cfg, err = runconfig.LoadFromPath(runFlags.varsPath); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	eng, err := openEngine(ctx, runFlags.save)
	if err != nil {
		return err
	}
	defer eng.Close(ctx)

	g, err := eng.LoadFile(args[0])
	if err != nil {
		return err
	}
	obs := &execute.LogObserver{Logger: logging.New("run")}
	res, err := eng.Run(ctx, g, cfg.ExecContext(g, time.Now()), runFlags.save, obs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		if err := writeJSON(out, res); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, format.RunTable(mode, res))
		if runFlags.showLogs || !res.Success {
			fmt.Fprint(out, format.RunLog(res.Logs))
		}
	}
	if !res.Success {
		return fmt.Errorf("run %s failed: %s", res.RunID, res.Error)
	}
	return nil
}
