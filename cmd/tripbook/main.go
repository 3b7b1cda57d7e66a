/*
main.go - Application entry point

PURPOSE:
  The tripbook CLI. Wires configuration, logging, the store, the domain
  service and the HTTP layer together.

COMMANDS:
  serve    Start the HTTP server with graceful shutdown
  export   Render one (vehicle, year) logbook to xlsx or pdf

STARTUP SEQUENCE (serve):
  1. Load config (yaml file + TRIPBOOK_ env overrides)
  2. Configure zerolog
  3. Open the SQLite store (migrates on open)
  4. Build service, handler, router
  5. Serve until SIGINT/SIGTERM, then drain for up to 30s

EXAMPLES:
  # Run with the default database
  tripbook serve

  # Run against a scratch database on another port
  TRIPBOOK_SERVER_LISTEN=:3000 tripbook serve --db ":memory:"

  # Export a logbook
  tripbook export --vehicle 0c7f9a1e-... --year 2025 --format pdf

SEE ALSO:
  - config/config.go: configuration precedence
  - api/server.go: router configuration
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tripbook/trip-engine/api"
	"github.com/tripbook/trip-engine/config"
	"github.com/tripbook/trip-engine/export"
	"github.com/tripbook/trip-engine/logbook"
	"github.com/tripbook/trip-engine/store/sqlite"
)

func main() {
	root := &cobra.Command{
		Use:           "tripbook",
		Short:         "Vehicle trip ledger with retroactive consumption tracking",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var configPath, dbPath string
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a yaml config file")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")

	root.AddCommand(serveCmd(&configPath, &dbPath))
	root.AddCommand(exportCmd(&configPath, &dbPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setup(configPath, dbPath string) (config.Config, zerolog.Logger, *sqlite.Store, *logbook.Service, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, zerolog.Logger{}, nil, nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return config.Config{}, zerolog.Logger{}, nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()

	st, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return config.Config{}, zerolog.Logger{}, nil, nil, fmt.Errorf("opening database: %w", err)
	}

	return cfg, log, st, logbook.New(st, log), nil
}

func serveCmd(configPath, dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, st, svc, err := setup(*configPath, *dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			handler := api.NewHandler(svc, log)
			server := &http.Server{
				Addr:         cfg.Server.Listen,
				Handler:      api.NewRouter(handler, log),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 60 * time.Second, // exports can take a while
				IdleTimeout:  60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("listen", cfg.Server.Listen).Str("db", cfg.Database.Path).Msg("server starting")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return err
			case sig := <-quit:
				log.Info().Str("signal", sig.String()).Msg("shutting down")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			log.Info().Msg("server stopped")
			return nil
		},
	}
}

func exportCmd(configPath, dbPath *string) *cobra.Command {
	var vehicleRaw, format, out string
	var year int

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render one vehicle-year logbook to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, st, svc, err := setup(*configPath, *dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			vehicleID, err := uuid.Parse(vehicleRaw)
			if err != nil {
				return fmt.Errorf("invalid vehicle id: %w", err)
			}
			if year == 0 {
				year = time.Now().Year()
			}
			if format == "" {
				format = cfg.Export.Format
			}

			ctx := cmd.Context()
			vehicle, err := svc.GetVehicle(ctx, vehicleID)
			if err != nil {
				return err
			}
			grid, err := svc.Grid(ctx, vehicleID, year)
			if err != nil {
				return err
			}
			stats, err := svc.Stats(ctx, vehicleID, year)
			if err != nil {
				return err
			}
			lb := export.Logbook{Config: vehicle, Year: year, Grid: grid, Stats: stats}

			if out == "" {
				out = filepath.Join(cfg.Export.Dir,
					fmt.Sprintf("logbook-%s-%d.%s", vehicle.LicensePlate, year, format))
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("creating %s: %w", out, err)
			}
			defer f.Close()

			switch format {
			case "xlsx":
				err = export.WriteXLSX(f, lb)
			case "pdf":
				err = export.WritePDF(f, lb)
			default:
				return fmt.Errorf("unknown format %q (use xlsx or pdf)", format)
			}
			if err != nil {
				return err
			}
			fmt.Println("wrote", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&vehicleRaw, "vehicle", "", "vehicle id (required)")
	cmd.Flags().IntVar(&year, "year", 0, "ledger year (default: current)")
	cmd.Flags().StringVar(&format, "format", "", "xlsx or pdf (default: config)")
	cmd.Flags().StringVar(&out, "out", "", "output path (default: derived from plate and year)")
	cmd.MarkFlagRequired("vehicle")

	return cmd
}
