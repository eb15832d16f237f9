package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/driveradar/driveradar/internal/advisor"
)

var adviseCmd = &cobra.Command{
	Use:   "advise",
	Short: "Idle positioning advice and earnings proof",
}

// -- advise idle --

var adviseIdleCmd = &cobra.Command{
	Use:   "idle",
	Short: "Advise whether to wait in the current zone or reposition",
	RunE: func(cmd *cobra.Command, _ []string) error {
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

		zoneID, _ := cmd.Flags().GetString("zone")
		dwellMin, _ := cmd.Flags().GetFloat64("dwell-min")
		now := time.Now()

		// Fall back to the active session's open dwell when no zone
		// was passed.
		if zoneID == "" {
			session, err := st.ActiveSession(ctx)
			if err != nil {
				return eris.Wrap(err, "advise: active session")
			}
			if session != nil {
				dwell, err := st.OpenDwellFor(ctx, session.ID)
				if err != nil {
					return eris.Wrap(err, "advise: open dwell")
				}
				if dwell != nil {
					zoneID = dwell.ZoneID
					if !cmd.Flags().Changed("dwell-min") {
						dwellMin = float64(now.UnixMilli()-dwell.StartMs) / 60_000
					}
				}
			}
		}

		adv := advisor.New(st, catalog, advisorSettings())
		rec := adv.IdleRecommendation(ctx, zoneID, dwellMin, now)
		formatRecommendation(os.Stdout, rec)
		return nil
	},
}

// -- advise proof --

var adviseProofCmd = &cobra.Command{
	Use:   "proof",
	Short: "Compare followed-recommendation earnings against baseline",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		proof, err := st.MoneyProof(ctx, time.Now().UnixMilli())
		if err != nil {
			return eris.Wrap(err, "advise proof")
		}
		if proof == nil || proof.BaselineCount == 0 {
			fmt.Fprintln(os.Stderr, "No offer feedback in the last two hours.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "Baseline:\t%.0f PLN/h\t(%d trips)\n", proof.BaselineHourly, proof.BaselineCount)
		_, _ = fmt.Fprintf(w, "Followed:\t%.0f PLN/h\t(%d trips)\n", proof.FollowedHourly, proof.FollowedCount)
		if proof.FollowedCount > 0 && proof.BaselineHourly > 0 {
			delta := (proof.FollowedHourly - proof.BaselineHourly) / proof.BaselineHourly * 100
			_, _ = fmt.Fprintf(w, "Delta:\t%+.0f%%\t\n", delta)
		}
		return w.Flush()
	},
}

func init() {
	adviseIdleCmd.Flags().String("zone", "", "current zone id (default from the active session's open dwell)")
	adviseIdleCmd.Flags().Float64("dwell-min", 0, "minutes already spent in the zone")

	adviseCmd.AddCommand(adviseIdleCmd)
	adviseCmd.AddCommand(adviseProofCmd)
	rootCmd.AddCommand(adviseCmd)
}
