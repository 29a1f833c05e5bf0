package main

import (
	"github.com/spf13/cobra"

	mcpadapter "github.com/kirillkom/ride-progress/internal/adapters/mcp"
)

const version = "1.0.0"

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can read the
timeline. The server speaks over stdin/stdout; diagnostics go to stderr.

  {
    "mcpServers": {
      "ride-progress": { "command": "ridectl", "args": ["mcp"] }
    }
  }

AVAILABLE TOOLS:

  list_snapshots    Timeline, newest first
  get_snapshot      One snapshot with its metrics
  compare_snapshot  Changes since the previous snapshot
  metric_trend      One metric across the timeline`,
	RunE: func(cmd *cobra.Command, args []string) error {
		server := mcpadapter.NewServer(version, userID, app.Timeline, app.Compare, app.Trends)
		return server.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
