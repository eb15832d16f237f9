package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/driveradar/driveradar/internal/model"
	"github.com/driveradar/driveradar/internal/timectx"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show and change stored preferences",
}

// -- prefs show --

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored preferences",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		prefs, err := st.Preferences(ctx)
		if err != nil {
			return eris.Wrap(err, "prefs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(prefs)
	},
}

// -- prefs set --

var prefsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update stored preferences",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		prefs, err := st.Preferences(ctx)
		if err != nil {
			return eris.Wrap(err, "prefs set")
		}

		if cmd.Flags().Changed("name") {
			prefs.Name, _ = cmd.Flags().GetString("name")
		}
		if cmd.Flags().Changed("scoring-mode") {
			mode, _ := cmd.Flags().GetString("scoring-mode")
			if mode != "PILOT" && mode != "PERSONAL" {
				return eris.Errorf("prefs: invalid scoring mode %q (PILOT, PERSONAL)", mode)
			}
			prefs.ScoringMode = mode
		}
		if cmd.Flags().Changed("language") {
			prefs.Language, _ = cmd.Flags().GetString("language")
		}
		if cmd.Flags().Changed("zone") {
			prefs.SelectedZone, _ = cmd.Flags().GetString("zone")
		}
		if cmd.Flags().Changed("temperature") {
			prefs.Temperature, _ = cmd.Flags().GetFloat64("temperature")
		}
		if cmd.Flags().Changed("notifications") {
			prefs.NotificationsEnabled, _ = cmd.Flags().GetBool("notifications")
		}

		if err := st.SavePreferences(ctx, prefs); err != nil {
			return eris.Wrap(err, "prefs set")
		}
		fmt.Fprintln(os.Stdout, "Preferences saved.")
		return nil
	},
}

// -- prefs reset --

var prefsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all stored data",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		confirmed, _ := cmd.Flags().GetBool("yes")
		if !confirmed {
			return eris.New("prefs reset: pass --yes to delete all sessions, offers, earnings, and receipts")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteAllData(ctx); err != nil {
			return eris.Wrap(err, "prefs reset")
		}
		fmt.Fprintln(os.Stdout, "All data deleted.")
		return nil
	},
}

// -- stats --

var statsCmd = &cobra.Command{
	Use:   "stats <zone-id>",
	Short: "Show rolling per-platform earnings stats for a zone",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		catalog, err := loadCatalog()
		if err != nil {
			return err
		}
		zoneID := args[0]
		if catalog.ByID(zoneID) == nil {
			return eris.Errorf("stats: unknown zone %q", zoneID)
		}

		tc := timectx.Resolve(time.Now())
		fmt.Fprintf(os.Stdout, "Zone: %s (%s / %s)\n\n",
			catalog.Name(zoneID), tc.DayType.Label(), tc.TimeRegime.Label())

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "PLATFORM\tPLN/H\tSAMPLES\tUPDATED")
		_, _ = fmt.Fprintln(w, "--------\t-----\t-------\t-------")
		for _, p := range model.AllPlatforms() {
			stat, err := st.GetEMA(ctx, p, zoneID, string(tc.DayType), string(tc.TimeRegime))
			if err != nil {
				return eris.Wrap(err, "stats")
			}
			if stat == nil {
				_, _ = fmt.Fprintf(w, "%s\t-\t0\t-\n", p.DisplayName())
				continue
			}
			_, _ = fmt.Fprintf(w, "%s\t%.0f\t%d\t%s\n",
				p.DisplayName(),
				stat.EMARevPerHour,
				stat.SampleCount,
				time.UnixMilli(stat.UpdatedAtMs).Format("2006-01-02 15:04"),
			)
		}
		return w.Flush()
	},
}

func init() {
	prefsSetCmd.Flags().String("name", "", "driver display name")
	prefsSetCmd.Flags().String("scoring-mode", "", "ranking mode: PILOT or PERSONAL")
	prefsSetCmd.Flags().String("language", "", "ui language code")
	prefsSetCmd.Flags().String("zone", "", "default selected zone")
	prefsSetCmd.Flags().Float64("temperature", 0, "softmax temperature for rankings")
	prefsSetCmd.Flags().Bool("notifications", false, "enable notifications")

	prefsResetCmd.Flags().Bool("yes", false, "confirm deletion")

	prefsCmd.AddCommand(prefsShowCmd)
	prefsCmd.AddCommand(prefsSetCmd)
	prefsCmd.AddCommand(prefsResetCmd)
	rootCmd.AddCommand(prefsCmd)
	rootCmd.AddCommand(statsCmd)
}
