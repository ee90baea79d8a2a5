package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Report ledger health: confirmed months, gaps, and projection reach",
	Long: "Lists every pair of consecutive anchors whose distance is not a valid\n" +
		"month length. Exits non-zero when any are found.",
	Args: cobra.NoArgs,
	RunE: runCoverage,
}

func init() {
	rootCmd.AddCommand(coverageCmd)
}

func runCoverage(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.engine.Coverage(commandContext(cmd))
	if err != nil {
		return err
	}

	if wantJSON(cmd) {
		if err := printJSON(cmd, report); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "================================================================")
		fmt.Fprintln(out, "Ledger Coverage")
		fmt.Fprintln(out, "================================================================")
		fmt.Fprintf(out, "Anchors:           %d\n", report.TotalAnchors)
		fmt.Fprintf(out, "Confirmed months:  %d\n", report.ConfirmedMonths)
		if report.Earliest != nil {
			fmt.Fprintf(out, "Earliest:          %d/%d on %s\n",
				report.Earliest.YearNumber, report.Earliest.MonthNumber, report.Earliest.StartDate.Format("2006-01-02"))
			fmt.Fprintf(out, "Latest:            %d/%d on %s\n",
				report.Latest.YearNumber, report.Latest.MonthNumber, report.Latest.StartDate.Format("2006-01-02"))
		}
		if report.ProjectedThrough != nil {
			fmt.Fprintf(out, "Projected through: %s\n", report.ProjectedThrough.Format("2006-01-02"))
		}

		if len(report.LeapDecisions) > 0 {
			years := make([]int, 0, len(report.LeapDecisions))
			for y := range report.LeapDecisions {
				years = append(years, y)
			}
			sort.Ints(years)
			fmt.Fprintln(out, "\nLeap decisions:")
			for _, y := range years {
				fmt.Fprintf(out, "  %d: %s\n", y, report.LeapDecisions[y])
			}
		}

		if len(report.Gaps) > 0 {
			fmt.Fprintln(out, "\nMalformed gaps:")
			for _, g := range report.Gaps {
				fmt.Fprintf(out, "  %s (%s) -> %s (%s): %d days\n",
					g.From, g.FromStart.Format("2006-01-02"), g.To, g.ToStart.Format("2006-01-02"), g.Days)
			}
		}
	}

	if !report.Healthy() {
		return errors.New("ledger has malformed gaps")
	}
	return nil
}
