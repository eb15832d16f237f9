package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/driveradar/driveradar/internal/export"
	"github.com/driveradar/driveradar/internal/model"
	"github.com/driveradar/driveradar/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export offer history to CSV or XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")
		platform, _ := cmd.Flags().GetString("platform")
		dest, _ := cmd.Flags().GetString("dest")

		offers, err := st.ListOffers(ctx, store.OfferFilter{
			Platform: model.Platform(platform),
			DestZone: dest,
		})
		if err != nil {
			return eris.Wrap(err, "export: list offers")
		}

		switch strings.ToLower(format) {
		case "csv":
			err = export.WriteCSV(offers, out)
		case "xlsx":
			err = export.WriteXLSX(offers, out)
		default:
			return eris.Errorf("export: invalid format %q (csv, xlsx)", format)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Wrote %d offers to %s.\n", len(offers), out)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "csv", "output format: csv or xlsx")
	exportCmd.Flags().String("out", "offers.csv", "output file path")
	exportCmd.Flags().String("platform", "", "filter by platform")
	exportCmd.Flags().String("dest", "", "filter by destination zone")

	rootCmd.AddCommand(exportCmd)
}
