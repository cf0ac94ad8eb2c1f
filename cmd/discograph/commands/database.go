package commands

import (
	"context"
	"database/sql"

	"github.com/spf13/cobra"

	"github.com/teranos/discograph/am"
	"github.com/teranos/discograph/db"
	"github.com/teranos/discograph/errors"
	"github.com/teranos/discograph/ixgest/fixture"
	"github.com/teranos/discograph/logger"
	"github.com/teranos/discograph/role"
	"github.com/teranos/discograph/storage"
)

// resolveDatabasePath picks the database path: --db-path, then am config.
func resolveDatabasePath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("db-path"); path != "" {
		return path, nil
	}
	path, err := am.GetDatabasePath()
	if err != nil {
		return "", errors.Wrap(err, "failed to get database path")
	}
	return path, nil
}

// openDatabase opens and migrates the database named by --db-path or config.
// Uses logger.Logger for db operations.
func openDatabase(cmd *cobra.Command) (*sql.DB, string, error) {
	dbPath, err := resolveDatabasePath(cmd)
	if err != nil {
		return nil, "", err
	}

	database, err := db.Open(dbPath, logger.Logger)
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to open database at %s", dbPath)
	}

	if err := db.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, "", errors.Wrapf(err, "failed to run migrations on %s", dbPath)
	}

	return database, dbPath, nil
}

// openStore opens the configured database as a SQLStore. The returned
// close function releases the connection.
func openStore(cmd *cobra.Command) (*storage.SQLStore, func(), error) {
	database, _, err := openDatabase(cmd)
	if err != nil {
		return nil, nil, err
	}
	return storage.NewSQLStore(database, logger.Logger), func() { database.Close() }, nil
}

// openSeededMemoryStore returns an in-memory store holding the embedded
// Seefeel fixture.
func openSeededMemoryStore(ctx context.Context) (*storage.SQLStore, func(), error) {
	database, err := db.OpenWithMigrations(db.MemoryPath, logger.Logger)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open in-memory database")
	}
	store := storage.NewSQLStore(database, logger.Logger)

	f, err := fixture.Parse(fixture.Seefeel, "yaml")
	if err != nil {
		database.Close()
		return nil, nil, errors.Wrap(err, "failed to parse embedded fixture")
	}
	processor := fixture.NewFixtureProcessor(store, role.Default(), false, 0, logger.Logger)
	if _, err := processor.Process(ctx, f, "seefeel.yaml"); err != nil {
		database.Close()
		return nil, nil, errors.Wrap(err, "failed to seed in-memory database")
	}
	return store, func() { database.Close() }, nil
}
