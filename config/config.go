package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/askelund/spotheat/core/metrics"
	"github.com/askelund/spotheat/infra/gateway"
	"github.com/askelund/spotheat/infra/prices/nordpool"
)

// Config aggregates all service settings.
type Config struct {
	Zones   []string        `json:"zones"`
	Prices  nordpool.Config `json:"prices"`
	Gateway gateway.Config  `json:"gateway"`
	Metrics metrics.Config  `json:"metrics"`
	Store   StoreConfig     `json:"store"`
	Jobs    JobsConfig      `json:"jobs"`
}

// StoreConfig locates the SQLite database and the optional legacy import.
type StoreConfig struct {
	Path string `json:"path"`
	// LegacyImportDir triggers a one-time import of old per-user JSON
	// files on startup when set.
	LegacyImportDir string `json:"legacy_import_dir"`
}

// SetDefaults applies sane defaults.
func (c *StoreConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "spotheat.db"
	}
}

// JobsConfig tunes the periodic triggers and their lease sizes. Each lease
// is sized to the slowest expected external call plus margin.
type JobsConfig struct {
	PriceRefreshMinutes    int `json:"price_refresh_minutes"`
	ScheduleComputeMinutes int `json:"schedule_compute_minutes"`
	TokenRefreshMinutes    int `json:"token_refresh_minutes"`
	DailyBatchHourUTC      int `json:"daily_batch_hour_utc"`

	PriceRefreshLeaseSeconds    int `json:"price_refresh_lease_seconds"`
	ScheduleComputeLeaseSeconds int `json:"schedule_compute_lease_seconds"`
	TokenRefreshLeaseSeconds    int `json:"token_refresh_lease_seconds"`
	DailyBatchLeaseSeconds      int `json:"daily_batch_lease_seconds"`
}

// SetDefaults applies sane defaults.
func (c *JobsConfig) SetDefaults() {
	if c.PriceRefreshMinutes <= 0 {
		c.PriceRefreshMinutes = 15
	}
	if c.ScheduleComputeMinutes <= 0 {
		c.ScheduleComputeMinutes = 15
	}
	if c.TokenRefreshMinutes <= 0 {
		c.TokenRefreshMinutes = 60
	}
	if c.PriceRefreshLeaseSeconds <= 0 {
		c.PriceRefreshLeaseSeconds = 60
	}
	if c.ScheduleComputeLeaseSeconds <= 0 {
		c.ScheduleComputeLeaseSeconds = 120
	}
	if c.TokenRefreshLeaseSeconds <= 0 {
		c.TokenRefreshLeaseSeconds = 30
	}
	if c.DailyBatchLeaseSeconds <= 0 {
		c.DailyBatchLeaseSeconds = 600
	}
}

// Validate checks mandatory fields.
func (c JobsConfig) Validate() error {
	if c.DailyBatchHourUTC < 0 || c.DailyBatchHourUTC > 23 {
		return fmt.Errorf("daily_batch_hour_utc must be in [0,23]")
	}
	return nil
}

// Load reads the configuration file with optional environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides, e.g. SH_gateway__base_url.
	if err := k.Load(env.Provider("SH_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "sh_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Prices.SetDefaults()
	cfg.Gateway.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.Store.SetDefaults()
	cfg.Jobs.SetDefaults()
	if len(cfg.Zones) == 0 {
		return nil, fmt.Errorf("at least one zone is required")
	}
	if err := cfg.Prices.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Gateway.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Jobs.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
