package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"marketstats/server/internal/models"
)

type Database struct {
	db *gorm.DB
}

// NewDatabase opens (creating if needed) the sqlite file at dbPath and
// migrates the schema.
func NewDatabase(dbPath string) (*Database, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on&_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := MigrateSchema(db); err != nil {
		return nil, err
	}
	return &Database{db: db}, nil
}

// NewTestDB returns a migrated in-memory database.
func NewTestDB() (*Database, error) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	// every pooled connection would otherwise get its own empty database
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := MigrateSchema(db); err != nil {
		return nil, err
	}
	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) GetPeriod(ctx context.Context, key models.PeriodKey) (*models.StatPeriod, error) {
	var row statPeriodRow
	err := d.db.WithContext(ctx).
		Where("city = ? AND location = ? AND property_type = ? AND year = ? AND month = ?",
			key.City, key.Location, key.PropertyType, key.Year, key.Month).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get period: %w", err)
	}
	p := row.toModel()
	return &p, nil
}

func (d *Database) PutPeriod(ctx context.Context, key models.PeriodKey, s models.Stats) error {
	row := newStatPeriodRow(key, s)
	row.UpdatedAt = time.Now()
	err := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to put period: %w", err)
	}
	return nil
}

// UpsertPeriods writes a batch of periods in one transaction.
func UpsertPeriods(tx *gorm.DB, periods []models.StatPeriod) error {
	if len(periods) == 0 {
		return nil
	}
	now := time.Now()
	rows := make([]statPeriodRow, len(periods))
	for i, p := range periods {
		rows[i] = newStatPeriodRow(p.Key, p.Stats)
		rows[i].UpdatedAt = now
	}
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(rows, 200).Error
}

// PutPeriods stores a batch of periods atomically.
func (d *Database) PutPeriods(ctx context.Context, periods []models.StatPeriod) error {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return UpsertPeriods(tx, periods)
	})
	if err != nil {
		return fmt.Errorf("failed to upsert periods: %w", err)
	}
	return nil
}

func (d *Database) GetDistribution(ctx context.Context, city string, ym models.YearMonth) ([]models.DistributionRow, error) {
	var buckets []distributionBucketRow
	err := d.db.WithContext(ctx).
		Where("city = ? AND year = ? AND month = ?", city, ym.Year, ym.Month).
		Order("range_from").
		Find(&buckets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get distribution: %w", err)
	}
	if len(buckets) == 0 {
		return nil, nil
	}

	var rows []models.DistributionRow
	for _, b := range buckets {
		if len(rows) == 0 || rows[len(rows)-1].RangeFrom != b.RangeFrom {
			rows = append(rows, models.DistributionRow{RangeFrom: b.RangeFrom, Values: map[string]*float64{}})
		}
		if b.PropertyType != "" {
			rows[len(rows)-1].Values[b.PropertyType] = b.Value
		}
	}
	return rows, nil
}

// PutDistribution replaces the whole distribution of a month.
func (d *Database) PutDistribution(ctx context.Context, city string, ym models.YearMonth, rows []models.DistributionRow) error {
	var buckets []distributionBucketRow
	for _, r := range rows {
		// an empty marker keeps boundaries that carry no values
		buckets = append(buckets, distributionBucketRow{City: city, Year: ym.Year, Month: ym.Month, RangeFrom: r.RangeFrom})
		for pt, v := range r.Values {
			buckets = append(buckets, distributionBucketRow{
				City:         city,
				Year:         ym.Year,
				Month:        ym.Month,
				RangeFrom:    r.RangeFrom,
				PropertyType: pt,
				Value:        v,
			})
		}
	}

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("city = ? AND year = ? AND month = ?", city, ym.Year, ym.Month).
			Delete(&distributionBucketRow{}).Error; err != nil {
			return err
		}
		if len(buckets) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&buckets).Error
	})
	if err != nil {
		return fmt.Errorf("failed to put distribution: %w", err)
	}
	return nil
}

func (d *Database) GetDistributionRanges(ctx context.Context, city string) ([]float64, error) {
	var ranges []float64
	err := d.db.WithContext(ctx).
		Model(&distributionRangeRow{}).
		Where("city = ?", city).
		Order("range_from").
		Pluck("range_from", &ranges).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get distribution ranges: %w", err)
	}
	if len(ranges) == 0 {
		return nil, nil
	}
	return ranges, nil
}

func (d *Database) PutDistributionRanges(ctx context.Context, city string, ranges []float64) error {
	rows := make([]distributionRangeRow, len(ranges))
	for i, r := range ranges {
		rows[i] = distributionRangeRow{City: city, RangeFrom: r}
	}

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("city = ?", city).Delete(&distributionRangeRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("failed to put distribution ranges: %w", err)
	}
	return nil
}

func (d *Database) GetLastAvailable(ctx context.Context, city string) (*models.YearMonth, error) {
	var row lastAvailableRow
	err := d.db.WithContext(ctx).Where("city = ?", city).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last available month: %w", err)
	}
	return &models.YearMonth{Year: row.Year, Month: row.Month}, nil
}

func (d *Database) PutLastAvailable(ctx context.Context, city string, ym models.YearMonth) error {
	row := lastAvailableRow{City: city, Year: ym.Year, Month: ym.Month, UpdatedAt: time.Now()}
	err := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to put last available month: %w", err)
	}
	return nil
}

func (d *Database) ListLocations(ctx context.Context, city string) ([]string, error) {
	var names []string
	err := d.db.WithContext(ctx).
		Model(&statPeriodRow{}).
		Where("city = ?", city).
		Distinct().
		Order("location").
		Pluck("location", &names).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	return names, nil
}
