package importer

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/sirupsen/logrus"

	"marketstats/server/config"
	"marketstats/server/internal/location"
	"marketstats/server/internal/models"
	"marketstats/server/internal/queue"
)

// Store is the storage the importer writes to.
type Store interface {
	PutPeriod(ctx context.Context, key models.PeriodKey, s models.Stats) error
	GetLastAvailable(ctx context.Context, city string) (*models.YearMonth, error)
	PutLastAvailable(ctx context.Context, city string, ym models.YearMonth) error
}

// BatchWriter is implemented by stores that can save a whole import in
// one transaction.
type BatchWriter interface {
	PutPeriods(ctx context.Context, periods []models.StatPeriod) error
}

// JobPusher accepts recompute jobs
type JobPusher interface {
	Push(job *models.RecomputeJob) error
}

// Result summarizes one import.
type Result struct {
	City          string           `json:"city"`
	Period        models.YearMonth `json:"period"`
	PropertyTypes []string         `json:"propertyTypes"`
	Records       int              `json:"records"`
	Ignored       []string         `json:"ignoredSheets,omitempty"`
	Unknown       []string         `json:"unknownLocations,omitempty"`
	JobID         string           `json:"jobId,omitempty"`
}

// Importer loads monthly workbooks into the store
type Importer struct {
	store    Store
	registry *location.Registry
	queue    JobPusher
	logger   *logrus.Logger
}

func NewImporter(store Store, registry *location.Registry, q JobPusher, logger *logrus.Logger) *Importer {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &Importer{store: store, registry: registry, queue: q, logger: logger}
}

// Import parses a workbook for city, writes every known location record,
// advances the city's last available month and enqueues a recompute of
// the imported month. Sheets for property types the city does not track
// are ignored.
func (i *Importer) Import(ctx context.Context, cityID string, r io.Reader) (*Result, error) {
	city, err := config.GetCityByID(cityID)
	if err != nil {
		return nil, err
	}
	tree, ok := i.registry.Tree(cityID)
	if !ok {
		return nil, fmt.Errorf("no hierarchy loaded for %s", cityID)
	}

	wb, err := Parse(r, tree)
	if err != nil {
		return nil, err
	}

	res := &Result{City: cityID, Period: wb.Period, Unknown: wb.Unknown}
	sort.Strings(res.Unknown)
	log := i.logger.WithFields(logrus.Fields{
		"city":  cityID,
		"year":  wb.Period.Year,
		"month": wb.Period.Month,
	})

	var periods []models.StatPeriod
	for _, pt := range wb.PropertyTypes {
		if !city.HasPropertyType(pt) {
			res.Ignored = append(res.Ignored, pt)
			continue
		}
		res.PropertyTypes = append(res.PropertyTypes, pt)

		names := make([]string, 0, len(wb.Records[pt]))
		for name := range wb.Records[pt] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			periods = append(periods, models.StatPeriod{
				Key: models.PeriodKey{
					City:         cityID,
					Location:     name,
					PropertyType: pt,
					Year:         wb.Period.Year,
					Month:        wb.Period.Month,
				},
				Stats: wb.Records[pt][name],
			})
		}
	}
	if len(res.PropertyTypes) == 0 {
		return nil, fmt.Errorf("%w: no sheet matches a property type of %s", ErrInvalidWorkbook, cityID)
	}
	if err := i.save(ctx, periods); err != nil {
		return nil, err
	}
	res.Records = len(periods)

	last, err := i.store.GetLastAvailable(ctx, cityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load last available month: %w", err)
	}
	if last == nil || last.Before(wb.Period) {
		if err := i.store.PutLastAvailable(ctx, cityID, wb.Period); err != nil {
			return nil, fmt.Errorf("failed to save last available month: %w", err)
		}
	}

	if len(res.Unknown) > 0 {
		log.WithField("locations", res.Unknown).Warn("Workbook contains unknown locations")
	}
	log.WithField("records", res.Records).Info("Workbook imported")

	job := queue.NewJob(models.JobKindImport, cityID, wb.Period.Year, []int{wb.Period.Month})
	if err := i.queue.Push(job); err != nil {
		return res, fmt.Errorf("imported %d records but failed to enqueue recompute: %w", res.Records, err)
	}
	res.JobID = job.ID
	return res, nil
}

// save writes the records in one batch when the store supports it.
func (i *Importer) save(ctx context.Context, periods []models.StatPeriod) error {
	if batch, ok := i.store.(BatchWriter); ok {
		if err := batch.PutPeriods(ctx, periods); err != nil {
			return fmt.Errorf("failed to save workbook records: %w", err)
		}
		return nil
	}
	for _, p := range periods {
		if err := i.store.PutPeriod(ctx, p.Key, p.Stats); err != nil {
			return fmt.Errorf("failed to save %s/%s: %w", p.Key.Location, p.Key.PropertyType, err)
		}
	}
	return nil
}
