package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/discograph/db"
	"github.com/teranos/discograph/display"
	"github.com/teranos/discograph/errors"
	"github.com/teranos/discograph/ixgest/fixture"
	"github.com/teranos/discograph/logger"
	"github.com/teranos/discograph/role"
	"github.com/teranos/discograph/storage"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the discograph database",
	Long: `db - Manage the discograph database

Examples:
  discograph db migrate                       # Apply pending schema migrations
  discograph db stats                         # Entity and relation counts
  discograph db import fixtures/seefeel.yaml  # Import a discography fixture
  discograph db import --dry-run data.json    # Validate a fixture without writing`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Args:  cobra.NoArgs,
	RunE:  runDbMigrate,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show entity and relation counts",
	Args:  cobra.NoArgs,
	RunE:  runDbStats,
}

var dbImportCmd = &cobra.Command{
	Use:   "import <fixture>",
	Short: "Import a YAML or JSON discography fixture",
	Long: `Import artists, labels and relations from a fixture file. Entities are
upserted, duplicate relations are merged, and relation counts are recomputed
for every touched entity.`,
	Args: cobra.ExactArgs(1),
	RunE: runDbImport,
}

var importDryRun bool

func init() {
	dbImportCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate and resolve the fixture without writing")

	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
	DbCmd.AddCommand(dbImportCmd)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	database, dbPath, err := openDatabase(cmd)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	applied, err := db.AppliedVersions(database)
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(map[string]interface{}{"path": dbPath, "applied": applied})
	}
	pterm.Success.Printf("%s is at schema version %s (%d migrations)\n", dbPath, lastOr(applied, "none"), len(applied))
	return nil
}

func runDbStats(cmd *cobra.Command, args []string) error {
	database, dbPath, err := openDatabase(cmd)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	stats, err := storage.NewSQLStore(database, logger.Logger).Stats(context.Background())
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(stats)
	}

	fmt.Printf("Database Statistics\n")
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	fmt.Printf("Database Path:  %s\n\n", dbPath)
	for _, row := range display.StatsRows(stats) {
		fmt.Printf("%-20s %s\n", row[0]+":", row[1])
	}
	return nil
}

func runDbImport(cmd *cobra.Command, args []string) error {
	path := args[0]
	verbosity, _ := cmd.Flags().GetCount("verbose")
	jsonOutput := display.ShouldOutputJSON(cmd)

	store, closeStore, err := openStore(cmd)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer closeStore()

	if !jsonOutput {
		pterm.DefaultHeader.WithFullWidth().Printf("Fixture import")
		pterm.Println()
		if importDryRun {
			pterm.Warning.Println("DRY RUN MODE: nothing will be written")
			pterm.Println()
		}
		pterm.Info.Printf("Importing: %s\n", path)
	}

	var spinner *pterm.SpinnerPrinter
	if !jsonOutput && !logger.ShouldOutput(verbosity, logger.OutputProgress) {
		spinner, _ = pterm.DefaultSpinner.Start("Importing fixture...")
	}

	start := time.Now()
	processor := fixture.NewFixtureProcessor(store, role.Default(), importDryRun, verbosity, logger.Logger)
	result, err := processor.ProcessFile(context.Background(), path)
	if spinner != nil {
		_ = spinner.Stop()
	}
	if err != nil {
		if !jsonOutput {
			pterm.Error.Printf("Failed to import %s: %v\n", path, err)
		}
		return err
	}

	if jsonOutput {
		return display.OutputJSON(result)
	}

	pterm.Println()
	pterm.Success.Println(result.Message)
	pterm.Info.Println("Statistics:")
	pterm.Printf("  Entities processed:  %d\n", result.EntitiesProcessed)
	pterm.Printf("  Relations created:   %d\n", result.RelationsCreated)
	pterm.Printf("  Relations merged:    %d\n", result.RelationsMerged)
	pterm.Printf("  Roles synced:        %d\n", result.RolesSynced)
	pterm.Printf("  Counts recomputed:   %d\n", result.CountsRecomputed)
	pterm.Printf("  Resolved references: %d\n", result.ResolvedReferences)
	pterm.Printf("  Processing time:     %s\n", time.Since(start).Round(time.Millisecond))
	if len(result.UnresolvedReferences) > 0 {
		pterm.Warning.Printf("Unresolved references: %v\n", result.UnresolvedReferences)
	}
	if importDryRun {
		pterm.Println()
		pterm.Info.Printf("Run 'discograph db import %s' without --dry-run to write\n", path)
	}
	return nil
}

func lastOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return values[len(values)-1]
}
