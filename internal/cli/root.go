package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mongo-mcp",
	Short: "MongoDB tools for MCP-compatible agents",
	Long: `mongo-mcp - MongoDB over the Model Context Protocol

mongo-mcp exposes a fixed set of MongoDB operations (aggregation, CRUD and
introspection) as MCP tools over stdio, so agents like Claude Desktop can
query and modify a database through a single persistent connection.

Configuration comes from the environment:
  MONGODB_URI        connection string (required)
  DEFAULT_DATABASE   database used when a tool call names none

Quick Start:
  mongo-mcp                 Start the server (same as 'mongo-mcp serve')
  mongo-mcp tools           Print the tool catalog
  mongo-mcp version         Print the version`,
	Args: cobra.NoArgs,
	Run:  runServe,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	addServeFlags(rootCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(toolsCmd)
}
