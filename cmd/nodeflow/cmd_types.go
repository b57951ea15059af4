package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nodeflow/internal/format"
	"nodeflow/pkg/workflow"
)

var typesFlags struct {
	category string
	output   string
}

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List the node types available to workflows",
	Long: `List built-in and plugin node types with their ports. Required inputs are
marked with "*".`,
	Args: cobra.NoArgs,
	RunE: runTypes,
}

func init() {
	f := typesCmd.Flags()
	f.StringVar(&typesFlags.category, "category", "", "Only list one category (trigger, logic, transform, effect, data)")
	f.StringVarP(&typesFlags.output, "output", "o", "table", "Output: table, markdown or json")
}

func runTypes(cmd *cobra.Command, _ []string) error {
	asJSON, mode, err := outputFormat(typesFlags.output)
	if err != nil {
		return err
	}
	if c := workflow.Category(typesFlags.category); c != "" && !c.Valid() {
		return fmt.Errorf("unknown category %q", typesFlags.category)
	}
	eng, err := openEngine(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer eng.Close(cmd.Context())

	var types []workflow.NodeType
	for _, t := range eng.Registry.Catalog().List() {
		if typesFlags.category == "" || string(t.Category) == typesFlags.category {
			types = append(types, t)
		}
	}
	if asJSON {
		return writeJSON(cmd.OutOrStdout(), types)
	}
	fmt.Fprintln(cmd.OutOrStdout(), format.NodeTypesTable(mode, types))
	return nil
}
