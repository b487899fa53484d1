package config

import (
	"fmt"
	"sort"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	Server struct {
		Port           string   `env:"PORT" envDefault:"5250"`
		GinMode        string   `env:"GIN_MODE" envDefault:"release"`
		AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
		LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	}

	Store struct {
		// sqlite, firestore or memory
		Backend string `env:"STORE_BACKEND" envDefault:"sqlite"`

		SQLitePath string `env:"SQLITE_PATH" envDefault:"data/marketstats.db"`

		FirestoreProjectID string `env:"FIRESTORE_PROJECT_ID"`
		FirestoreCredsFile string `env:"FIRESTORE_CREDS_FILE"`
	}

	Reports struct {
		HierarchyDir string `env:"HIERARCHY_DIR" envDefault:"config/hierarchies"`

		// Trailing window lengths, including the baseline period
		Months int `env:"REPORT_MONTHS" envDefault:"14"`
		Years  int `env:"REPORT_YEARS" envDefault:"11"`

		DistributionRanges []float64 `env:"DISTRIBUTION_RANGES" envSeparator:"," envDefault:"1,200000,300000,400000,500000,600000,700000,800000,900000,1000000,1500000,2000000"`

		StrictLocations bool `env:"STRICT_LOCATIONS" envDefault:"true"`
	}

	Jobs struct {
		QueueSize int `env:"JOB_QUEUE_SIZE" envDefault:"100"`

		// Hour of the day (0-23) of the daily full-year recompute, -1 disables it
		ScheduleHour int `env:"JOB_SCHEDULE_HOUR" envDefault:"3"`

		YTDStartMonth int `env:"YTD_START_MONTH" envDefault:"1"`

		// Nodes of one rollup level computed at the same time
		RollupConcurrency int `env:"ROLLUP_CONCURRENCY" envDefault:"8"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings env tags cannot express.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite", "memory":
	case "firestore":
		if c.Store.FirestoreProjectID == "" {
			return fmt.Errorf("FIRESTORE_PROJECT_ID is required for the firestore backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	if c.Reports.Months < 2 {
		return fmt.Errorf("REPORT_MONTHS must be at least 2, got %d", c.Reports.Months)
	}
	if c.Reports.Years < 2 {
		return fmt.Errorf("REPORT_YEARS must be at least 2, got %d", c.Reports.Years)
	}
	if c.Jobs.YTDStartMonth < 1 || c.Jobs.YTDStartMonth > 12 {
		return fmt.Errorf("YTD_START_MONTH must be within 1..12, got %d", c.Jobs.YTDStartMonth)
	}
	if c.Jobs.ScheduleHour < -1 || c.Jobs.ScheduleHour > 23 {
		return fmt.Errorf("JOB_SCHEDULE_HOUR must be within -1..23, got %d", c.Jobs.ScheduleHour)
	}
	if c.Jobs.QueueSize < 1 {
		return fmt.Errorf("JOB_QUEUE_SIZE must be positive, got %d", c.Jobs.QueueSize)
	}
	r := c.Reports.DistributionRanges
	if !sort.Float64sAreSorted(r) {
		return fmt.Errorf("DISTRIBUTION_RANGES must be ascending")
	}
	for i := 1; i < len(r); i++ {
		if r[i] == r[i-1] {
			return fmt.Errorf("DISTRIBUTION_RANGES has duplicate boundary %v", r[i])
		}
	}
	return nil
}
