package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zapponejosh/lunar-calendar-api/internal/astro"
)

var sunsetCmd = &cobra.Command{
	Use:   "sunset [date]",
	Short: "Compute local sunset for a date (default: today)",
	Long: "Uses --lat/--lon when given, else the cached or configured location.\n" +
		"Times are shown in the configured TIMEZONE.",
	Args: cobra.MaximumNArgs(1),
	RunE: runSunset,
}

var conjunctionCmd = &cobra.Command{
	Use:   "conjunction [date]",
	Short: "Find the most recent new moon on or before a date (default: today)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConjunction,
}

func init() {
	sunsetCmd.Flags().Float64("lat", 0, "latitude in degrees, north positive")
	sunsetCmd.Flags().Float64("lon", 0, "longitude in degrees, east positive")
	conjunctionCmd.Flags().Float64("lat", 0, "observer latitude for the first-sliver estimate")

	rootCmd.AddCommand(sunsetCmd)
	rootCmd.AddCommand(conjunctionCmd)
}

func runSunset(cmd *cobra.Command, args []string) error {
	var lat, lon float64
	explicit := cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon")
	if explicit {
		if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lon") {
			return errors.New("--lat and --lon must be given together")
		}
		lat, _ = cmd.Flags().GetFloat64("lat")
		lon, _ = cmd.Flags().GetFloat64("lon")
	}

	var tz *time.Location
	if explicit {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		tz = cfg.Location()
	} else {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		loc, err := a.observerLocation(commandContext(cmd))
		if err != nil {
			return err
		}
		if loc == nil {
			return errors.New("no location: pass --lat and --lon, or set DEFAULT_LATITUDE and DEFAULT_LONGITUDE")
		}
		lat, lon = loc.Latitude, loc.Longitude
		tz = a.cfg.Location()
	}

	date, err := parseDateArg(args, 0, tz)
	if err != nil {
		return err
	}

	noon := time.Date(date.Year(), date.Month(), date.Day(), 12, 0, 0, 0, tz)
	sunset, err := astro.Sunset(noon, lat, lon, tz)
	if err != nil {
		return err
	}

	if wantJSON(cmd) {
		return printJSON(cmd, map[string]interface{}{
			"date":      date.Format("2006-01-02"),
			"latitude":  lat,
			"longitude": lon,
			"sunset":    sunset,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sunset %s at %.4f, %.4f: %s\n",
		date.Format("2006-01-02"), lat, lon, sunset.Format("15:04:05 MST"))
	return nil
}

func runConjunction(cmd *cobra.Command, args []string) error {
	date, err := parseDateArg(args, 0, time.UTC)
	if err != nil {
		return err
	}
	lat, _ := cmd.Flags().GetFloat64("lat")

	c, err := astro.MostRecentConjunction(date)
	if err != nil {
		return err
	}
	sliver := astro.FirstSliverVisibility(c.Date, lat)

	if wantJSON(cmd) {
		return printJSON(cmd, map[string]interface{}{
			"lunation":     c.K,
			"jde":          c.JDE,
			"conjunction":  c.Date.Format("2006-01-02"),
			"first_sliver": sliver.Format("2006-01-02"),
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "new moon %s (lunation %d), first sliver about %s\n",
		c.Date.Format("2006-01-02"), c.K, sliver.Format("2006-01-02"))
	return nil
}
