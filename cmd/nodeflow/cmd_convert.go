package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nodeflow/pkg/workflow"
)

var convertFlags struct {
	to string
}

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Re-encode a workflow document as JSON or YAML",
	Long: `Load a workflow document (strictly checked, labels and port names filled
in from the catalog) and write it to stdout in the requested format.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVar(&convertFlags.to, "to", "yaml", "Target format: json or yaml")
}

func runConvert(cmd *cobra.Command, args []string) error {
	var f workflow.Format
	switch convertFlags.to {
	case "json":
		f = workflow.FormatJSON
	case "yaml", "yml":
		f = workflow.FormatYAML
	default:
		return fmt.Errorf("unknown target format %q (want json or yaml)", convertFlags.to)
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
	data, err := workflow.MarshalDocument(g, f)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
