package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/driveradar/driveradar/internal/rank"
)

var rankCmd = &cobra.Command{
	Use:   "rank <zone-id>",
	Short: "Rank platforms by expected earnings for a zone",
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
		z := catalog.ByID(zoneID)
		if z == nil {
			return eris.Errorf("rank: unknown zone %q", zoneID)
		}

		modeFlag, _ := cmd.Flags().GetString("mode")
		mode, err := resolveRankMode(modeFlag)
		if err != nil {
			return err
		}
		if mode == "" {
			prefs, err := st.Preferences(ctx)
			if err != nil {
				return eris.Wrap(err, "rank: load preferences")
			}
			mode = rank.Mode(prefs.ScoringMode)
		}

		logs, err := st.ListEarnings(ctx)
		if err != nil {
			return eris.Wrap(err, "rank: load earnings")
		}

		res := rank.DefaultConfig().Dual(mode, logs, zoneID, z.Category, time.Now())
		formatRanking(os.Stdout, z.Name, res)
		return nil
	},
}

// resolveRankMode maps the --mode flag onto a ranking mode. Empty
// means defer to stored preferences.
func resolveRankMode(flag string) (rank.Mode, error) {
	switch strings.ToLower(flag) {
	case "":
		return "", nil
	case "pilot":
		return rank.ModePilot, nil
	case "personal":
		return rank.ModePersonal, nil
	default:
		return "", eris.Errorf("rank: invalid mode %q (pilot, personal)", flag)
	}
}

// formatRanking writes a tabular ranking to w.
func formatRanking(out io.Writer, zoneName string, res rank.DualResult) {
	fmt.Fprintf(out, "Zone: %s\n", zoneName)
	fmt.Fprintf(out, "Mode: %s (%s)\n", res.Mode, res.ModeLabel)
	fmt.Fprintf(out, "Context: %s / %s\n", res.Context.DayType.Label(), res.Context.TimeRegime.Label())
	fmt.Fprintf(out, "Confidence: %s (gap %.2f)\n\n", res.Confidence, res.ConfidenceValue)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tPLATFORM\tSCORE\tPROBABILITY\tDEMAND\tFRICTION")
	_, _ = fmt.Fprintln(w, "-\t--------\t-----\t-----------\t------\t--------")
	for i, r := range res.Rankings {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%.3f\t%.1f%%\t%s\t%s\n",
			i+1,
			r.Platform.DisplayName(),
			r.Score,
			r.Probability*100,
			rank.DemandLevel(r.Demand),
			rank.FrictionLevel(r.Friction),
		)
	}
	_ = w.Flush()

	if res.Mode == rank.ModePilot && res.CurrentRecordCount < res.MinRecordsRequired {
		fmt.Fprintf(out, "\nLog %d more trips in this zone to unlock Personal mode.\n",
			res.MinRecordsRequired-res.CurrentRecordCount)
	}
}

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "List the zone catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		catalog, err := loadCatalog()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tRADIUS_KM\tBIAS")
		_, _ = fmt.Fprintln(w, "--\t----\t--------\t---------\t----")
		for _, z := range catalog.Zones() {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%s\n",
				z.ID, z.Name, z.Category, z.RadiusKm, z.Bias)
		}
		return w.Flush()
	},
}

func init() {
	rankCmd.Flags().String("mode", "", "ranking mode: pilot or personal (default from saved preferences)")

	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(zonesCmd)
}
