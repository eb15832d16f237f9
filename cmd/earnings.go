package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/driveradar/driveradar/internal/model"
	"github.com/driveradar/driveradar/internal/timectx"
)

var earningsCmd = &cobra.Command{
	Use:   "earnings",
	Short: "Log and inspect earnings history",
}

// -- earnings add --

var earningsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Log one earned trip",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		platform, _ := cmd.Flags().GetString("platform")
		amount, _ := cmd.Flags().GetFloat64("amount")
		zoneID, _ := cmd.Flags().GetString("zone")
		duration, _ := cmd.Flags().GetFloat64("duration")
		at, _ := cmd.Flags().GetString("at")

		p := model.Platform(platform)
		if !p.Valid() {
			return eris.Errorf("earnings: invalid platform %q (uber, bolt, freenow)", platform)
		}
		if amount <= 0 {
			return eris.New("earnings: --amount must be > 0")
		}

		ts := time.Now()
		if at != "" {
			ts, err = time.ParseInLocation("2006-01-02 15:04", at, time.Local)
			if err != nil {
				return eris.Wrapf(err, "earnings: invalid --at %q (want YYYY-MM-DD HH:MM)", at)
			}
		}

		log := model.EarningsLog{
			ID:          uuid.NewString(),
			Platform:    p,
			Amount:      amount,
			Zone:        zoneID,
			DurationMin: duration,
			TimestampMs: ts.UnixMilli(),
		}
		if err := st.AddEarnings(ctx, log); err != nil {
			return eris.Wrap(err, "earnings add")
		}

		// Feed the rolling per-bucket average when the trip carries
		// enough detail to compute a rate.
		if zoneID != "" && duration > 0 {
			tc := timectx.Resolve(ts)
			revPerHour := amount / duration * 60
			if err := st.UpsertEMA(ctx, p, zoneID, string(tc.DayType), string(tc.TimeRegime), revPerHour, ts.UnixMilli()); err != nil {
				return eris.Wrap(err, "earnings add: update zone stats")
			}
		}

		fmt.Fprintf(os.Stdout, "Logged %.2f PLN on %s (%s).\n", amount, p.DisplayName(), log.ID)
		return nil
	},
}

// -- earnings list --

var earningsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List logged earnings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		logs, err := st.ListEarnings(ctx)
		if err != nil {
			return eris.Wrap(err, "earnings list")
		}
		if len(logs) == 0 {
			fmt.Fprintln(os.Stderr, "No earnings logged.")
			return nil
		}

		formatEarningsList(os.Stdout, logs)
		return nil
	},
}

// formatEarningsList writes a tabular list of earnings with a total.
func formatEarningsList(out io.Writer, logs []model.EarningsLog) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPLATFORM\tAMOUNT\tZONE\tMINUTES\tWHEN")
	_, _ = fmt.Fprintln(w, "--\t--------\t------\t----\t-------\t----")

	var total float64
	for _, l := range logs {
		total += l.Amount
		duration := ""
		if l.DurationMin > 0 {
			duration = fmt.Sprintf("%.0f", l.DurationMin)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\t%s\n",
			truncateID(l.ID),
			l.Platform.DisplayName(),
			l.Amount,
			l.Zone,
			duration,
			time.UnixMilli(l.TimestampMs).Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "\nTotal: %.2f PLN across %d trips\n", total, len(logs))
}

// truncateID returns the first 8 characters of a UUID for compact
// display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// -- earnings delete --

var earningsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one earnings entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteEarnings(ctx, args[0]); err != nil {
			return eris.Wrap(err, "earnings delete")
		}
		fmt.Fprintf(os.Stdout, "Deleted %s.\n", args[0])
		return nil
	},
}

func init() {
	earningsAddCmd.Flags().String("platform", "", "platform the trip was earned on (uber, bolt, freenow)")
	earningsAddCmd.Flags().Float64("amount", 0, "amount earned in PLN")
	earningsAddCmd.Flags().String("zone", "", "zone the trip started in")
	earningsAddCmd.Flags().Float64("duration", 0, "trip minutes (optional)")
	earningsAddCmd.Flags().String("at", "", "trip time as YYYY-MM-DD HH:MM (default now)")
	_ = earningsAddCmd.MarkFlagRequired("platform")
	_ = earningsAddCmd.MarkFlagRequired("amount")

	earningsCmd.AddCommand(earningsAddCmd)
	earningsCmd.AddCommand(earningsListCmd)
	earningsCmd.AddCommand(earningsDeleteCmd)
	rootCmd.AddCommand(earningsCmd)
}
