package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zapponejosh/lunar-calendar-api/internal/calendar"
)

// maxTableDays bounds the table command.
const maxTableDays = 3660

var resolveCmd = &cobra.Command{
	Use:   "resolve [date]",
	Short: "Resolve a solar date (default: lunar today) to its lunar date",
	Long: "Without a date, resolve the current instant using the sunset day\n" +
		"boundary at the cached or configured location.",
	Args: cobra.MaximumNArgs(1),
	RunE: runResolve,
}

var monthCmd = &cobra.Command{
	Use:   "month <year> [month]",
	Short: "Show one lunar month, or every month of a year",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runMonth,
}

var feastsCmd = &cobra.Command{
	Use:   "feasts <year>",
	Short: "List the feasts of a lunar year",
	Args:  cobra.ExactArgs(1),
	RunE:  runFeasts,
}

var tableCmd = &cobra.Command{
	Use:   "table <start> <end>",
	Short: "Print the lunar date of every solar date in a range",
	Args:  cobra.ExactArgs(2),
	RunE:  runTable,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(monthCmd)
	rootCmd.AddCommand(feastsCmd)
	rootCmd.AddCommand(tableCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := commandContext(cmd)

	settings, err := a.engine.Settings(ctx)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		loc, err := a.observerLocation(ctx)
		if err != nil {
			return err
		}
		today, err := a.engine.Today(ctx, now(), a.cfg.Location(), loc)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, today)
		}
		boundary := "sunset"
		if today.Fallback {
			boundary = "fallback"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  (day began %s, %s)\n",
			formatDay(*today.Day, settings.NamingMode),
			today.Boundary.Format("2006-01-02 15:04 MST"), boundary)
		return nil
	}

	date, err := calendar.ParseDate(args[0])
	if err != nil {
		return err
	}
	day, err := a.engine.ResolveFor(ctx, date)
	if err != nil {
		return err
	}
	if wantJSON(cmd) {
		return printJSON(cmd, day)
	}
	fmt.Fprintln(cmd.OutOrStdout(), formatDay(*day, settings.NamingMode))
	return nil
}

func runMonth(cmd *cobra.Command, args []string) error {
	year, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid year %q", args[0])
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := commandContext(cmd)

	settings, err := a.engine.Settings(ctx)
	if err != nil {
		return err
	}

	var months []calendar.MonthDefinition
	if len(args) == 2 {
		month, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid month %q", args[1])
		}
		m, err := a.engine.GetMonth(ctx, year, month)
		if err != nil {
			return err
		}
		months = append(months, *m)
	} else {
		months, err = a.engine.MonthsForYear(ctx, year)
		if err != nil {
			return err
		}
		if len(months) == 0 {
			return fmt.Errorf("year %d: %w", year, calendar.ErrNotFound)
		}
	}

	if wantJSON(cmd) {
		return printJSON(cmd, months)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MONTH\tNAME\tSTART\tLAST DAY\tDAYS\tSTATUS")
	for _, m := range months {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			m.Key(), calendar.MonthName(settings.NamingMode, m.Month),
			m.StartDate.Format("2006-01-02"), m.Day(m.LengthDays).Format("2006-01-02"),
			m.LengthDays, m.Status)
	}
	return tw.Flush()
}

func runFeasts(cmd *cobra.Command, args []string) error {
	year, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid year %q", args[0])
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	feasts, err := a.engine.FeastDaysForYear(commandContext(cmd), year)
	if err != nil {
		return err
	}
	if len(feasts) == 0 {
		return fmt.Errorf("year %d: %w", year, calendar.ErrNotFound)
	}

	if wantJSON(cmd) {
		return printJSON(cmd, feasts)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tWEEKDAY\tLUNAR\tFEAST")
	for _, f := range feasts {
		lunar := "-"
		if f.DayOfMonth > 0 {
			lunar = fmt.Sprintf("%d/%d", f.Month, f.DayOfMonth)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			f.Date.Format("2006-01-02"), calendar.DayName(f.Date), lunar, f.Title)
	}
	return tw.Flush()
}

func runTable(cmd *cobra.Command, args []string) error {
	start, err := calendar.ParseDate(args[0])
	if err != nil {
		return err
	}
	end, err := calendar.ParseDate(args[1])
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("end %s is before start %s", args[1], args[0])
	}
	if end.Sub(start).Hours()/24 > maxTableDays {
		return fmt.Errorf("range is longer than %d days", maxTableDays)
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := commandContext(cmd)

	settings, err := a.engine.Settings(ctx)
	if err != nil {
		return err
	}
	days, err := a.engine.ResolveRange(ctx, start, end)
	if err != nil {
		return err
	}

	if wantJSON(cmd) {
		return printJSON(cmd, days)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tWEEKDAY\tYEAR\tMONTH\tDAY\tSTATUS")
	for _, d := range days {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%s\n",
			d.Date.Format("2006-01-02"), calendar.DayName(d.Date), d.Year,
			calendar.MonthName(settings.NamingMode, d.Month), d.DayOfMonth, d.Status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	total := int(end.Sub(start).Hours()/24) + 1
	if skipped := total - len(days); skipped > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d date(s) could not be resolved\n", skipped)
	}
	return nil
}

// formatDay renders a resolved day on one line.
func formatDay(d calendar.ResolvedDay, mode calendar.NamingMode) string {
	return fmt.Sprintf("%s %s: year %d, %s, day %d [%s]",
		d.Date.Format("2006-01-02"), calendar.DayName(d.Date), d.Year,
		calendar.MonthName(mode, d.Month), d.DayOfMonth, d.Status)
}
