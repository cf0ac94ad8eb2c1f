package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/discograph/am"
	"github.com/teranos/discograph/cache"
	"github.com/teranos/discograph/errors"
	"github.com/teranos/discograph/logger"
	"github.com/teranos/discograph/server"
	"github.com/teranos/discograph/storage"
)

// ServerCmd starts the discograph API server
var ServerCmd = &cobra.Command{
	Use:     "server",
	Aliases: []string{"serve"},
	Short:   "Start the discograph API server",
	Long: `Serve ego networks, relations, name search and the role catalog over HTTP,
and stream networks to WebSocket clients on /ws.

The config file in use is watched: network budgets, rate limits and allowed
origins are reloaded without a restart.`,
	RunE: runServer,
}

var (
	serverPort     int
	serverTestMode bool
)

func init() {
	ServerCmd.Flags().IntVar(&serverPort, "port", 0, "Port to listen on (overrides server.port)")
	ServerCmd.Flags().BoolVar(&serverTestMode, "test-mode", false, "Serve an in-memory database seeded with the demo fixture")
}

func runServer(cmd *cobra.Command, args []string) error {
	// Default to Info for the server
	verbosity, _ := cmd.Flags().GetCount("verbose")
	if verbosity == 0 {
		verbosity = 1
		logger.SetVerbosity(verbosity)
	}
	verbosity = logger.ClampVerbosity(verbosity)

	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	port := cfg.GetServerPort()
	if serverPort != 0 {
		port = serverPort
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		store     *storage.SQLStore
		closeFunc func()
		dbPath    string
	)
	if serverTestMode || cfg.TestMode {
		store, closeFunc, err = openSeededMemoryStore(ctx)
		dbPath = "in-memory (test mode)"
	} else {
		store, closeFunc, err = openStore(cmd)
		dbPath, _ = resolveDatabasePath(cmd)
	}
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer closeFunc()

	responseCache, err := cache.New(ctx, cfg.Cache, logger.Logger)
	if err != nil {
		return errors.Wrap(err, "failed to create cache")
	}

	srv, err := server.New(cfg, store, responseCache, verbosity, logger.Logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	if path := am.ConfigFileUsed(); path != "" {
		if err := srv.WatchConfig(path); err != nil {
			logger.Named("cli").Warnw("Config changes will need a restart", "path", path, logger.FieldError, err)
		}
	}

	if logger.ShouldOutput(verbosity, logger.OutputStartup) {
		printStartupBanner(cfg, port, verbosity, dbPath)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(ctx, port)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return errors.Wrap(err, "server stopped unexpectedly")
	case <-sigChan:
		pterm.Info.Println("\nShutting down gracefully (press Ctrl+C again to force)...")

		shutdownDone := make(chan error, 1)
		go func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), server.ShutdownTimeout)
			defer stopCancel()
			shutdownDone <- srv.Stop(stopCtx)
		}()

		select {
		case err := <-shutdownDone:
			if err != nil {
				return fmt.Errorf("shutdown error: %w", err)
			}
			pterm.Success.Println("Server stopped cleanly")
			return nil
		case <-sigChan:
			pterm.Warning.Println("\nForce shutdown - exiting immediately")
			os.Exit(1)
			return nil
		}
	}
}
