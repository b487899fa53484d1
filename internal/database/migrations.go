package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"marketstats/server/internal/models"
)

type statPeriodRow struct {
	City              string   `gorm:"primaryKey"`
	Location          string   `gorm:"primaryKey"`
	PropertyType      string   `gorm:"primaryKey"`
	Year              int      `gorm:"primaryKey;autoIncrement:false"`
	Month             int      `gorm:"primaryKey;autoIncrement:false"`
	Sold              *float64 `gorm:"column:sold"`
	Active            *float64 `gorm:"column:active"`
	DOM               *float64 `gorm:"column:dom"`
	BenchmarkPrice    *float64 `gorm:"column:benchmark_price"`
	BenchmarkPriceYTD *float64 `gorm:"column:benchmark_price_ytd"`
	UpdatedAt         time.Time
}

func (statPeriodRow) TableName() string { return "stat_periods" }

func newStatPeriodRow(key models.PeriodKey, s models.Stats) statPeriodRow {
	return statPeriodRow{
		City:              key.City,
		Location:          key.Location,
		PropertyType:      key.PropertyType,
		Year:              key.Year,
		Month:             key.Month,
		Sold:              s.Sold,
		Active:            s.Active,
		DOM:               s.DOM,
		BenchmarkPrice:    s.BenchmarkPrice,
		BenchmarkPriceYTD: s.BenchmarkPriceYTD,
	}
}

func (r statPeriodRow) toModel() models.StatPeriod {
	return models.StatPeriod{
		Key: models.PeriodKey{
			City:         r.City,
			Location:     r.Location,
			PropertyType: r.PropertyType,
			Year:         r.Year,
			Month:        r.Month,
		},
		Stats: models.Stats{
			Sold:              r.Sold,
			Active:            r.Active,
			DOM:               r.DOM,
			BenchmarkPrice:    r.BenchmarkPrice,
			BenchmarkPriceYTD: r.BenchmarkPriceYTD,
		},
		UpdatedAt: r.UpdatedAt,
	}
}

// distributionBucketRow holds one property type value of a bucket. The row
// with an empty PropertyType marks the bucket itself.
type distributionBucketRow struct {
	City         string  `gorm:"primaryKey"`
	Year         int     `gorm:"primaryKey;autoIncrement:false"`
	Month        int     `gorm:"primaryKey;autoIncrement:false"`
	RangeFrom    float64 `gorm:"primaryKey"`
	PropertyType string  `gorm:"primaryKey"`
	Value        *float64
}

func (distributionBucketRow) TableName() string { return "distribution_buckets" }

type distributionRangeRow struct {
	City      string  `gorm:"primaryKey"`
	RangeFrom float64 `gorm:"primaryKey"`
}

func (distributionRangeRow) TableName() string { return "distribution_ranges" }

type lastAvailableRow struct {
	City      string `gorm:"primaryKey"`
	Year      int
	Month     int
	UpdatedAt time.Time
}

func (lastAvailableRow) TableName() string { return "last_available" }

// MigrateSchema creates or updates every table of the store.
func MigrateSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&statPeriodRow{},
		&distributionBucketRow{},
		&distributionRangeRow{},
		&lastAvailableRow{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	// Location listings and YTD passes scan by city and location
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_stat_periods_city_location
		ON stat_periods(city, location);
	`).Error; err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}
