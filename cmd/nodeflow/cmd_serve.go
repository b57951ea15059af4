package main

import (
	"context"

	"github.com/spf13/cobra"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"nodeflow/internal/logging"
	mcpserver "nodeflow/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server over stdio",
	Long: `Starts an MCP server over stdin/stdout exposing validate_workflow,
infer_types, execute_workflow, start_run, get_run_events, get_run_result,
list_node_types and list_runs. list_runs and saved runs need --db.

The server monitors for parent process death. When the client disconnects,
the server self-terminates to prevent zombie processes.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	eng, err := openEngine(ctx, false)
	if err != nil {
		return err
	}
	defer eng.Close(context.WithoutCancel(ctx))

	mcpserver.Version = version
	srv := mcpserver.NewServer(eng)
	defer srv.Shutdown()

	mcpserver.WatchParent(ctx, mcpserver.DefaultParentPoll, cancel)

	logging.New("mcp").Info("starting nodeflow MCP server over stdio (parent watchdog active)")
	return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}
