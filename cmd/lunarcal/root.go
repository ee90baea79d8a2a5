package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/zapponejosh/lunar-calendar-api/internal/calendar"
	"github.com/zapponejosh/lunar-calendar-api/internal/config"
	"github.com/zapponejosh/lunar-calendar-api/internal/database"
	"github.com/zapponejosh/lunar-calendar-api/internal/logger"
)

// now is the clock; tests replace it.
var now = time.Now

var rootCmd = &cobra.Command{
	Use:   "lunarcal",
	Short: "Lunar month ledger and calendar resolver",
	Long: "lunarcal records observed month starts and resolves solar dates to\n" +
		"lunar dates, months, and feasts using the same ledger as the API server.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (default $DATABASE_PATH)")
	rootCmd.PersistentFlags().Bool("json", false, "print JSON instead of text")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging on stderr")
}

// app is what a command needs to reach the ledger.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	db     *database.DB
	engine *calendar.Engine
}

func (a *app) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// loadConfig reads the environment and applies the persistent flags. Logs
// go to stderr so stdout stays clean for --json.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if path, _ := cmd.Flags().GetString("db"); path != "" {
		cfg.DatabasePath = path
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.LogLevel = "debug"
	} else if cfg.LogLevel == "info" {
		cfg.LogLevel = "warn"
	}
	return cfg, logger.SetupWriter(cfg, os.Stderr), nil
}

// openApp loads configuration and opens the migrated ledger.
func openApp(cmd *cobra.Command) (*app, error) {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := database.Open(database.DefaultConfig(cfg.DatabasePath), log)
	if err != nil {
		return nil, err
	}
	if _, err := db.Migrate(commandContext(cmd)); err != nil {
		db.Close()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		log:    log,
		db:     db,
		engine: calendar.NewEngine(db, calendar.Options{Strict: cfg.LedgerStrict}, log),
	}, nil
}

// observerLocation is the cached location, else the configured default.
func (a *app) observerLocation(ctx context.Context) (*calendar.Location, error) {
	cached, err := a.db.GetCachedLocation(ctx)
	if err != nil && !database.IsNotFound(err) {
		return nil, err
	}
	var fallback *calendar.Location
	if a.cfg.HasDefaultLocation() {
		fallback = &calendar.Location{Latitude: *a.cfg.DefaultLatitude, Longitude: *a.cfg.DefaultLongitude}
	}
	return calendar.ChooseLocation(cached, fallback, a.cfg.LocationMaxAge, now(), a.log), nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// wantJSON reports whether --json was given.
func wantJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

// printJSON writes v as indented JSON to the command's stdout.
func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseDateArg parses args[i] as a civil date, or returns today's civil date
// in the configured zone when the argument is absent.
func parseDateArg(args []string, i int, tz *time.Location) (time.Time, error) {
	if len(args) <= i {
		return calendar.CivilDate(now().In(tz)), nil
	}
	return calendar.ParseDate(args[i])
}
