package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/driveradar/driveradar/internal/advisor"
	"github.com/driveradar/driveradar/internal/config"
	"github.com/driveradar/driveradar/internal/store"
	"github.com/driveradar/driveradar/internal/zone"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "driveradar",
	Short: "Rideshare platform advisor for Krakow drivers",
	Long:  "Ranks Uber, Bolt, and FreeNow by expected earnings, judges live dispatch offers, tracks sessions and zone dwell, and logs earnings history.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// initStore validates the CLI config and opens the local database with
// migrations applied.
func initStore(ctx context.Context) (*store.SQLiteStore, error) {
	if err := cfg.Validate("cli"); err != nil {
		return nil, err
	}

	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// loadCatalog returns the configured zone catalog, falling back to the
// embedded Krakow set.
func loadCatalog() (*zone.Catalog, error) {
	if cfg.Zones.Path == "" {
		return zone.DefaultCatalog(), nil
	}
	return zone.LoadCatalog(cfg.Zones.Path)
}

// advisorSettings maps the scoring config onto the advisor's
// preferences.
func advisorSettings() advisor.Settings {
	return advisor.Settings{
		TargetHourly:   cfg.Scoring.TargetHourly,
		CostPerKm:      cfg.Scoring.CostPerKm,
		Tolerance:      cfg.Scoring.Tolerance,
		RiskPreference: cfg.Scoring.RiskPreference,
	}
}

// detectorConfig maps the detector config onto the hysteresis tuning.
func detectorConfig() zone.DetectorConfig {
	return zone.DetectorConfig{
		AccuracyMaxM: cfg.Detector.AccuracyMaxM,
		StableMs:     cfg.Detector.StableMs,
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
