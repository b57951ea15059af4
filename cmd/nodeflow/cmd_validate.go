package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"nodeflow/internal/format"
	"nodeflow/internal/wiring"
)

// validateParallel bounds how many documents are checked at once.
const validateParallel = 4

var validateFlags struct {
	output string
}

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Check workflow documents for structural errors",
	Long: `Check one or more workflow documents. Every problem is reported, not just
the first: document shape, unknown node types, duplicate ids, dangling edges,
cycles, unsatisfied required inputs, incompatible connections and orphan
nodes. Lint findings from plugins are shown but do not fail validation.

Exits non-zero when any document is invalid.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&validateFlags.output, "output", "o", "table", "Output: table, markdown or json")
}

func runValidate(cmd *cobra.Command, args []string) error {
	asJSON, mode, err := outputFormat(validateFlags.output)
	if err != nil {
		return err
	}
	eng, err := openEngine(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer eng.Close(cmd.Context())

	reports := make([]*wiring.Report, len(args))
	g := new(errgroup.Group)
	g.SetLimit(validateParallel)
	for i, path := range args {
		g.Go(func() error {
			rep, err := eng.CheckFile(path)
			if err != nil {
				return err
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	invalid := 0
	for _, rep := range reports {
		if !rep.Valid {
			invalid++
		}
	}
	if asJSON {
		if err := writeJSON(out, reports); err != nil {
			return err
		}
	} else {
		for _, rep := range reports {
			if len(rep.Document) > 0 {
				fmt.Fprintln(out, format.IssuesTable(mode, rep.Source+": document", rep.Document))
			}
			fmt.Fprintln(out, format.ValidationTable(mode, rep.Source, rep.Result()))
			if len(rep.Lint) > 0 {
				fmt.Fprintln(out, format.IssuesTable(mode, rep.Source+": lint", rep.Lint))
			}
		}
	}
	if invalid > 0 {
		return fmt.Errorf("%d of %d workflow(s) invalid", invalid, len(reports))
	}
	return nil
}
