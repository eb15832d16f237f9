package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Scoring  ScoringConfig  `yaml:"scoring" mapstructure:"scoring"`
	Detector DetectorConfig `yaml:"detector" mapstructure:"detector"`
	Zones    ZonesConfig    `yaml:"zones" mapstructure:"zones"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the local database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the admin backend.
type ServerConfig struct {
	Addr           string   `yaml:"addr" mapstructure:"addr"`
	AdminPassword  string   `yaml:"admin_password" mapstructure:"admin_password"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	LoginPerMinute int      `yaml:"login_per_minute" mapstructure:"login_per_minute"`
	DatabaseURL    string   `yaml:"database_url" mapstructure:"database_url"`
	MaxConns       int32    `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns       int32    `yaml:"min_conns" mapstructure:"min_conns"`
	// PingURL, when set, is where session tracking posts location
	// pings. VisitorID identifies this install; generated per run when
	// empty.
	PingURL   string `yaml:"ping_url" mapstructure:"ping_url"`
	VisitorID string `yaml:"visitor_id" mapstructure:"visitor_id"`
}

// ScoringConfig holds the driver's economic preferences used by the
// offer advisor when the store carries no saved preferences.
type ScoringConfig struct {
	TargetHourly   float64 `yaml:"target_hourly" mapstructure:"target_hourly"`
	CostPerKm      float64 `yaml:"cost_per_km" mapstructure:"cost_per_km"`
	Tolerance      float64 `yaml:"tolerance" mapstructure:"tolerance"`
	RiskPreference float64 `yaml:"risk_preference" mapstructure:"risk_preference"`
}

// DetectorConfig configures GPS zone detection.
type DetectorConfig struct {
	AccuracyMaxM float64 `yaml:"accuracy_max_m" mapstructure:"accuracy_max_m"`
	StableMs     int64   `yaml:"stable_ms" mapstructure:"stable_ms"`
}

// ZonesConfig points at an optional catalog override file. When the
// path is empty the embedded Krakow catalog is used.
type ZonesConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DRIVERADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.path", "driveradar.db")
	v.SetDefault("server.addr", ":8787")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.login_per_minute", 10)
	v.SetDefault("server.max_conns", 10)
	v.SetDefault("server.min_conns", 2)
	v.SetDefault("scoring.target_hourly", 90.0)
	v.SetDefault("scoring.cost_per_km", 0.70)
	v.SetDefault("scoring.tolerance", 0.10)
	v.SetDefault("scoring.risk_preference", 0.5)
	v.SetDefault("detector.accuracy_max_m", 80.0)
	v.SetDefault("detector.stable_ms", 25_000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields required for the given mode. CLI modes
// only need the local store; serve additionally needs Postgres and an
// admin password.
func (c *Config) Validate(mode string) error {
	var missing []string

	check := func() error {
		if len(missing) > 0 {
			return eris.New("config: " + strings.Join(missing, "; "))
		}
		return nil
	}

	if c.Store.Path == "" {
		missing = append(missing, "store.path is required")
	}
	if c.Scoring.TargetHourly <= 0 {
		missing = append(missing, "scoring.target_hourly must be > 0")
	}
	if c.Scoring.CostPerKm < 0 {
		missing = append(missing, "scoring.cost_per_km must be >= 0")
	}
	if c.Scoring.Tolerance < 0 || c.Scoring.Tolerance >= 1 {
		missing = append(missing, "scoring.tolerance must be in [0, 1)")
	}
	if c.Scoring.RiskPreference < 0 || c.Scoring.RiskPreference > 1 {
		missing = append(missing, "scoring.risk_preference must be in [0, 1]")
	}
	if c.Detector.AccuracyMaxM <= 0 {
		missing = append(missing, "detector.accuracy_max_m must be > 0")
	}
	if c.Detector.StableMs < 0 {
		missing = append(missing, "detector.stable_ms must be >= 0")
	}

	switch mode {
	case "cli":
		return check()
	case "serve":
		if c.Server.Addr == "" {
			missing = append(missing, "server.addr is required")
		}
		if c.Server.DatabaseURL == "" {
			missing = append(missing, "server.database_url is required")
		}
		if c.Server.AdminPassword == "" {
			missing = append(missing, "server.admin_password is required")
		}
		if c.Server.LoginPerMinute < 1 {
			missing = append(missing, "server.login_per_minute must be >= 1")
		}
		return check()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
