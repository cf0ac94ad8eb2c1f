package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/discograph/am"
	"github.com/teranos/discograph/cmd/discograph/commands"
	"github.com/teranos/discograph/logger"
)

var rootCmd = &cobra.Command{
	Use:   "discograph",
	Short: "discograph - ego networks over a music discography",
	Long: `discograph - ego networks over a music discography.

discograph stores artists, labels and the credited relations between them,
and builds bounded ego networks around any entity for visualisation.

Available commands:
  server  - Serve the HTTP and WebSocket API
  network - Build an ego network from the command line
  search  - Find artists and labels by name
  random  - Pick a random entity to explore
  roles   - List the role catalog
  db      - Migrate, inspect and import into the database
  am      - Show and validate configuration ("as configured")
  mcp     - Serve the discograph tools over the Model Context Protocol

Examples:
  discograph db import fixtures/seefeel.yaml
  discograph network artist-2239 --roles "Member Of" --roles Alias
  discograph server --port 5000`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			am.SetConfigPath(path)
		}

		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json")
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json", false, "Output results (and logs) as JSON")
	rootCmd.PersistentFlags().String("db-path", "", "Database path (overrides config)")
	rootCmd.PersistentFlags().String("config", "", "Config file (highest precedence after environment)")

	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.MCPCmd)
	rootCmd.AddCommand(commands.NetworkCmd)
	rootCmd.AddCommand(commands.RandomCmd)
	rootCmd.AddCommand(commands.RolesCmd)
	rootCmd.AddCommand(commands.SearchCmd)
	rootCmd.AddCommand(commands.ServerCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
