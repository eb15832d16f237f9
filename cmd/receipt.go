package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/driveradar/driveradar/internal/model"
	"github.com/driveradar/driveradar/internal/receipt"
)

var receiptCmd = &cobra.Command{
	Use:   "receipt",
	Short: "Parse platform receipt text into earnings",
}

// readReceipt loads receipt text from a file, or stdin when path is "-".
func readReceipt(path string) (string, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return "", eris.Wrapf(err, "receipt: read %s", path)
	}
	return string(raw), nil
}

// resolveReceiptPlatform honors an explicit --platform flag and falls
// back to keyword detection.
func resolveReceiptPlatform(flag, text string) (model.Platform, error) {
	if flag != "" {
		p := model.Platform(flag)
		if !p.Valid() {
			return "", eris.Errorf("receipt: invalid platform %q (uber, bolt, freenow)", flag)
		}
		return p, nil
	}
	if p := receipt.AutoDetectPlatform(text); p != "" {
		return p, nil
	}
	return "", eris.New("receipt: platform not recognized, pass --platform")
}

// -- receipt parse --

var receiptParseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a receipt and print the extracted fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readReceipt(args[0])
		if err != nil {
			return err
		}

		platformFlag, _ := cmd.Flags().GetString("platform")
		platform, err := resolveReceiptPlatform(platformFlag, text)
		if err != nil {
			return err
		}

		parsed := receipt.Parse(text, platform, time.Now())

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(parsed)
	},
}

// -- receipt import --

var receiptImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Parse a receipt and log it as earnings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		text, err := readReceipt(args[0])
		if err != nil {
			return err
		}

		platformFlag, _ := cmd.Flags().GetString("platform")
		platform, err := resolveReceiptPlatform(platformFlag, text)
		if err != nil {
			return err
		}
		zoneID, _ := cmd.Flags().GetString("zone")

		parsed := receipt.Parse(text, platform, time.Now())
		if err := st.PushReceipt(ctx, parsed); err != nil {
			return eris.Wrap(err, "receipt import")
		}

		if parsed.Amount <= 0 {
			fmt.Fprintln(os.Stderr, "No amount found; receipt stored but not logged as earnings.")
			for _, e := range parsed.Errors {
				fmt.Fprintf(os.Stderr, "  - %s\n", e)
			}
			return nil
		}

		log := parsed.ToEarningsLog(zoneID)
		if err := st.AddEarnings(ctx, log); err != nil {
			return eris.Wrap(err, "receipt import")
		}

		fmt.Fprintf(os.Stdout, "Logged %.2f %s on %s (confidence %s).\n",
			parsed.Amount, parsed.Currency, platform.DisplayName(), parsed.Confidence)
		for _, e := range parsed.Errors {
			fmt.Fprintf(os.Stderr, "  - %s\n", e)
		}
		return nil
	},
}

// -- receipt queue --

var receiptQueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List stored receipts, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		receipts, err := st.ListReceipts(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "receipt queue")
		}
		if len(receipts) == 0 {
			fmt.Fprintln(os.Stderr, "No receipts stored.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tPLATFORM\tAMOUNT\tCURRENCY\tCONFIDENCE\tWHEN")
		_, _ = fmt.Fprintln(w, "--\t--------\t------\t--------\t----------\t----")
		for _, r := range receipts {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\t%s\n",
				truncateID(strings.TrimPrefix(r.ID, "receipt-")),
				r.Platform,
				r.Amount,
				r.Currency,
				r.Confidence,
				time.UnixMilli(r.TimestampMs).Format("2006-01-02 15:04"),
			)
		}
		return w.Flush()
	},
}

func init() {
	receiptParseCmd.Flags().String("platform", "", "receipt platform (default auto-detect)")

	receiptImportCmd.Flags().String("platform", "", "receipt platform (default auto-detect)")
	receiptImportCmd.Flags().String("zone", "", "zone to attribute the earnings to")

	receiptQueueCmd.Flags().Int("limit", 50, "max number of receipts to display")

	receiptCmd.AddCommand(receiptParseCmd)
	receiptCmd.AddCommand(receiptImportCmd)
	receiptCmd.AddCommand(receiptQueueCmd)
	rootCmd.AddCommand(receiptCmd)
}
