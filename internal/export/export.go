// Package export writes persisted offers to CSV or XLSX files.
package export

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/driveradar/driveradar/internal/model"
)

// offerColumns defines the ordered offer export columns.
var offerColumns = []string{
	"id",
	"platform",
	"pickupZone",
	"destZone",
	"fare",
	"etaMinutes",
	"distanceKm",
	"surgeFlag",
	"createdAt",
	"timeRegime",
	"dayType",
	"recommendation",
	"confidence",
	"feedback",
	"actualFare",
	"actualDurationMin",
}

// WriteCSV writes offers as a CSV file with a fixed header row.
func WriteCSV(offers []model.Offer, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return eris.Wrap(err, "export: create csv file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(offerColumns); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, o := range offers {
		if err := w.Write(buildRow(o)); err != nil {
			return eris.Wrapf(err, "export: write row %d", o.ID)
		}
	}
	return nil
}

// WriteXLSX writes offers as a single-sheet XLSX workbook with the
// same columns as the CSV export.
func WriteXLSX(offers []model.Offer, outputPath string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Offers")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range offerColumns {
		header.AddCell().Value = col
	}
	for _, o := range offers {
		row := sheet.AddRow()
		for _, cell := range buildRow(o) {
			row.AddCell().Value = cell
		}
	}

	return eris.Wrap(f.Save(outputPath), "export: save xlsx")
}

// buildRow maps an offer to an export row. Nullable fields render as
// empty cells.
func buildRow(o model.Offer) []string {
	surge := "0"
	if o.Surge {
		surge = "1"
	}
	feedback := ""
	if o.Feedback != nil {
		feedback = string(*o.Feedback)
	}
	return []string{
		strconv.FormatInt(o.ID, 10),
		string(o.Platform),
		o.PickupZone,
		o.DestZone,
		formatFloat(o.Fare),
		formatFloat(o.ETAMinutes),
		formatFloatPtr(o.DistanceKm),
		surge,
		formatTimestamp(o.CreatedAtMs),
		o.TimeRegime,
		o.DayType,
		o.RecommendationAction,
		o.RecommendationConfidence,
		feedback,
		formatFloatPtr(o.ActualFare),
		formatFloatPtr(o.ActualDuration),
	}
}

func formatTimestamp(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
