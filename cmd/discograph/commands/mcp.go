package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/teranos/discograph/am"
	"github.com/teranos/discograph/errors"
	"github.com/teranos/discograph/logger"
	"github.com/teranos/discograph/mcp"
	"github.com/teranos/discograph/storage"
)

// MCPCmd serves the discograph tools over stdio
var MCPCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve network, search and relation tools over the Model Context Protocol",
	Long: `Run an MCP server on stdin/stdout exposing discograph_network,
discograph_search and discograph_relations, plus the role catalog as the
discograph://roles resource.

Logs go to stderr; use --json for machine-readable logs.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

var mcpTestMode bool

func init() {
	MCPCmd.Flags().BoolVar(&mcpTestMode, "test-mode", false, "Serve an in-memory database seeded with the demo fixture")
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	var (
		store     *storage.SQLStore
		closeFunc func()
	)
	if mcpTestMode || cfg.TestMode {
		store, closeFunc, err = openSeededMemoryStore(context.Background())
	} else {
		store, closeFunc, err = openStore(cmd)
	}
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer closeFunc()

	verbosity, _ := cmd.Flags().GetCount("verbose")
	return mcp.NewServer(store, cfg.Network, logger.ClampVerbosity(verbosity), logger.Logger).Serve()
}
