// nodeflow validates, type-checks and runs node-graph workflows.
//
// Usage:
//
//	nodeflow validate <file>...
//	nodeflow infer <file>
//	nodeflow run <file> [--vars vars.yaml] [--save]
//	nodeflow history [workflow-id] [--run <id>] [--workflows]
//	nodeflow types [--category logic]
//	nodeflow convert <file> --to yaml
//	nodeflow serve
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nodeflow/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	logLevel  string
	logFormat string
	dbPath    string
}

var rootCmd = &cobra.Command{
	Use:   "nodeflow",
	Short: "Validate, type-check and run node-graph workflows",
	Long: `nodeflow checks workflow documents (JSON or YAML graphs of typed nodes and
edges) for structural errors, propagates port types along edges, and executes
workflows node by node in topological order.`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return logging.Configure(resolveLogLevel(rootFlags.logLevel), rootFlags.logFormat, cmd.ErrOrStderr())
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error (default: $NODEFLOW_LOG_LEVEL or warn)")
	pf.StringVar(&rootFlags.logFormat, "log-format", "text", "Log format: text or json")
	pf.StringVar(&rootFlags.dbPath, "db", "", "Run history DB path (default: $NODEFLOW_DB; history is off when empty)")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(inferCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(typesCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
