package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zapponejosh/lunar-calendar-api/internal/calendar"
)

var anchorCmd = &cobra.Command{
	Use:   "anchor",
	Short: "Record and list observed month starts",
}

var anchorSetCmd = &cobra.Command{
	Use:   "set <year> <month> <date>",
	Short: "Record that a lunar month began on a solar date",
	Args:  cobra.ExactArgs(3),
	RunE:  runAnchorSet,
}

var anchorNextCmd = &cobra.Command{
	Use:   "next <date>",
	Short: "Record that the month after the current one began on a solar date",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnchorNext,
}

var anchorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every recorded month start",
	Args:  cobra.NoArgs,
	RunE:  runAnchorList,
}

var leapCmd = &cobra.Command{
	Use:   "leap <year> <aviv|not-aviv|unknown>",
	Short: "Record whether the barley was aviv at the end of month 12",
	Long: "not-aviv gives the year a thirteenth month. unknown clears the\n" +
		"decision, which leaves month 13 unresolvable until it is made.",
	Args: cobra.ExactArgs(2),
	RunE: runLeap,
}

func init() {
	leapCmd.Flags().String("decided-on", "", "date the decision was made (YYYY-MM-DD)")

	anchorCmd.AddCommand(anchorSetCmd)
	anchorCmd.AddCommand(anchorNextCmd)
	anchorCmd.AddCommand(anchorListCmd)
	rootCmd.AddCommand(anchorCmd)
	rootCmd.AddCommand(leapCmd)
}

func runAnchorSet(cmd *cobra.Command, args []string) error {
	year, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid year %q", args[0])
	}
	month, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid month %q", args[1])
	}
	date, err := calendar.ParseDate(args[2])
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	anchor, err := a.engine.SetAnchor(commandContext(cmd), year, month, date)
	if err != nil {
		return err
	}
	if wantJSON(cmd) {
		return printJSON(cmd, anchor)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "month %d/%d begins %s\n",
		anchor.YearNumber, anchor.MonthNumber, anchor.StartDate.Format("2006-01-02"))
	return nil
}

func runAnchorNext(cmd *cobra.Command, args []string) error {
	date, err := calendar.ParseDate(args[0])
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	anchor, err := a.engine.StartNextMonthOn(commandContext(cmd), date)
	if err != nil {
		return err
	}
	if wantJSON(cmd) {
		return printJSON(cmd, anchor)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "month %d/%d begins %s\n",
		anchor.YearNumber, anchor.MonthNumber, anchor.StartDate.Format("2006-01-02"))
	return nil
}

func runAnchorList(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	anchors, err := a.db.ListAnchors(commandContext(cmd))
	if err != nil {
		return err
	}
	if wantJSON(cmd) {
		return printJSON(cmd, anchors)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "YEAR\tMONTH\tSTART")
	for _, anchor := range anchors {
		fmt.Fprintf(tw, "%d\t%d\t%s\n", anchor.YearNumber, anchor.MonthNumber, anchor.StartDate.Format("2006-01-02"))
	}
	return tw.Flush()
}

func runLeap(cmd *cobra.Command, args []string) error {
	year, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid year %q", args[0])
	}
	isAviv, err := parseLeap(args[1])
	if err != nil {
		return err
	}

	var decidedOn *time.Time
	if raw, _ := cmd.Flags().GetString("decided-on"); raw != "" {
		d, err := calendar.ParseDate(raw)
		if err != nil {
			return err
		}
		decidedOn = &d
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.engine.SetLeapDecision(commandContext(cmd), year, isAviv, decidedOn); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "year %d: %s\n", year, args[1])
	return nil
}

// parseLeap maps the leap argument onto the stored tri-state.
func parseLeap(s string) (*bool, error) {
	switch s {
	case "aviv":
		v := true
		return &v, nil
	case "not-aviv", "not_aviv":
		v := false
		return &v, nil
	case "unknown":
		return nil, nil
	}
	return nil, fmt.Errorf("leap decision must be aviv, not-aviv, or unknown; got %q", s)
}
