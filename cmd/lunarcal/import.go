package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zapponejosh/lunar-calendar-api/internal/calendar"
	"github.com/zapponejosh/lunar-calendar-api/internal/database"
)

var importCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Load month anchors and leap decisions from a JSON file",
	Long: `Loads a ledger file in a single transaction. Existing entries with the
same (year, month) are replaced; nothing is written if any entry fails.

File format:

  {
    "anchors": [{"year": 1, "month": 1, "start_date": "2024-04-09"}],
    "leap_decisions": [{"year": 1, "is_aviv": false, "decided_on": "2025-03-28"}]
  }`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

// LedgerFile is the import format.
type LedgerFile struct {
	Anchors       []AnchorEntry `json:"anchors"`
	LeapDecisions []LeapEntry   `json:"leap_decisions"`
}

// AnchorEntry is one month start in a ledger file.
type AnchorEntry struct {
	Year      int    `json:"year"`
	Month     int    `json:"month"`
	StartDate string `json:"start_date"`
}

// LeapEntry is one leap decision in a ledger file. A null is_aviv records
// the year as undecided.
type LeapEntry struct {
	Year      int    `json:"year"`
	IsAviv    *bool  `json:"is_aviv"`
	DecidedOn string `json:"decided_on,omitempty"`
}

// ImportStats tracks import statistics.
type ImportStats struct {
	Anchors       int
	LeapDecisions int
}

func runImport(cmd *cobra.Command, args []string) error {
	startTime := time.Now()

	file, err := readLedgerFile(args[0])
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := commandContext(cmd)

	stats, err := importLedger(ctx, a.db, file, a.log)
	if err != nil {
		return fmt.Errorf("import %s: %w", args[0], err)
	}

	report, err := a.engine.Coverage(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== Import Summary ===")
	fmt.Fprintf(out, "Anchors imported:        %d\n", stats.Anchors)
	fmt.Fprintf(out, "Leap decisions imported: %d\n", stats.LeapDecisions)
	fmt.Fprintf(out, "Anchors in ledger:       %d\n", report.TotalAnchors)
	fmt.Fprintf(out, "Time elapsed:            %v\n", time.Since(startTime).Round(time.Millisecond))

	if !report.Healthy() {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: ledger has %d malformed gap(s); run lunarcal coverage\n", len(report.Gaps))
	}
	return nil
}

// readLedgerFile parses and checks a ledger file without touching the
// database.
func readLedgerFile(path string) (*LedgerFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ledger file: %w", err)
	}

	var file LedgerFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse ledger file: %w", err)
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

// Validate checks month ranges, dates, and that no start date repeats.
func (f *LedgerFile) Validate() error {
	var errs []error
	seen := make(map[string]int, len(f.Anchors))

	for i, entry := range f.Anchors {
		if entry.Month < 1 || entry.Month > 13 {
			errs = append(errs, fmt.Errorf("anchors[%d]: month %d out of range 1-13", i, entry.Month))
		}
		if _, err := calendar.ParseDate(entry.StartDate); err != nil {
			errs = append(errs, fmt.Errorf("anchors[%d]: %w", i, err))
			continue
		}
		if j, dup := seen[entry.StartDate]; dup {
			errs = append(errs, fmt.Errorf("anchors[%d]: start date %s repeats anchors[%d]", i, entry.StartDate, j))
		}
		seen[entry.StartDate] = i
	}

	for i, entry := range f.LeapDecisions {
		if entry.DecidedOn == "" {
			continue
		}
		if _, err := calendar.ParseDate(entry.DecidedOn); err != nil {
			errs = append(errs, fmt.Errorf("leap_decisions[%d]: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

// importLedger writes a validated file in one transaction. Projections
// cached for imported keys are dropped so they are recomputed from the new
// anchors.
func importLedger(ctx context.Context, db *database.DB, file *LedgerFile, log *slog.Logger) (ImportStats, error) {
	var stats ImportStats

	err := db.WithTx(ctx, func(tx *database.Tx) error {
		for _, entry := range file.Anchors {
			start, err := calendar.ParseDate(entry.StartDate)
			if err != nil {
				return err
			}
			anchor := &database.MonthAnchor{
				YearNumber:  entry.Year,
				MonthNumber: entry.Month,
				StartDate:   start,
				Confirmed:   true,
			}
			if err := tx.UpsertAnchor(ctx, anchor); err != nil {
				return fmt.Errorf("anchor %d/%d: %w", entry.Year, entry.Month, err)
			}
			if err := tx.DeleteProjectedLength(ctx, entry.Year, entry.Month); err != nil {
				return err
			}
			stats.Anchors++
			log.Debug("imported anchor",
				slog.Int("year", entry.Year),
				slog.Int("month", entry.Month),
				slog.String("start_date", entry.StartDate),
			)
		}

		for _, entry := range file.LeapDecisions {
			decision := &database.YearLeapDecision{YearNumber: entry.Year, IsAviv: entry.IsAviv}
			if entry.DecidedOn != "" {
				d, err := calendar.ParseDate(entry.DecidedOn)
				if err != nil {
					return err
				}
				decision.DecidedOn = &d
			}
			if err := tx.SetLeapDecision(ctx, decision); err != nil {
				return fmt.Errorf("leap decision %d: %w", entry.Year, err)
			}
			stats.LeapDecisions++
		}
		return nil
	})
	if err != nil {
		return ImportStats{}, err
	}

	log.Info("ledger imported",
		slog.Int("anchors", stats.Anchors),
		slog.Int("leap_decisions", stats.LeapDecisions),
	)
	return stats, nil
}
