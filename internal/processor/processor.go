package processor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"marketstats/server/config"
	"marketstats/server/internal/aggregate"
	"marketstats/server/internal/location"
	"marketstats/server/internal/models"
	"marketstats/server/internal/queue"
)

// ErrStopped is returned for jobs delivered after Stop.
var ErrStopped = errors.New("processor stopped")

// Store is what a recompute reads and writes.
type Store interface {
	aggregate.PeriodStore
	ListLocations(ctx context.Context, city string) ([]string, error)
}

// Observer is notified of job outcomes.
type Observer interface {
	JobProcessed(kind, city string, d time.Duration, err error)
	PeriodsWritten(city, stage string, n int)
}

// Processor consumes recompute jobs: rollups for each requested month,
// then a year-to-date pass over every location of the city. Jobs are
// handled one at a time so that two recomputes of a city never interleave.
type Processor struct {
	store     Store
	registry  *location.Registry
	rollup    *aggregate.Rollup
	ytd       *aggregate.YTD
	logger    *logrus.Logger
	config    *config.Config
	observer  Observer
	queue     *queue.JobQueue
	waitGroup sync.WaitGroup
	mu        sync.Mutex
	stateMu   sync.Mutex
	stopped   bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewProcessor creates a new processor instance
func NewProcessor(store Store, registry *location.Registry, q *queue.JobQueue, cfg *config.Config, observer Observer, logger *logrus.Logger) *Processor {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Processor{
		store:    store,
		registry: registry,
		rollup:   aggregate.NewRollup(store, logger, cfg.Jobs.RollupConcurrency),
		ytd:      aggregate.NewYTD(store, logger),
		logger:   logger,
		config:   cfg,
		observer: observer,
		queue:    q,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes the processor to its queue
func (p *Processor) Start() {
	p.queue.Subscribe(p.handle)
}

func (p *Processor) handle(job *models.RecomputeJob) error {
	p.stateMu.Lock()
	if p.stopped {
		p.stateMu.Unlock()
		return ErrStopped
	}
	p.waitGroup.Add(1)
	p.stateMu.Unlock()
	defer p.waitGroup.Done()

	return p.Process(p.ctx, job)
}

// Stop cancels the running job and waits for it to return. Jobs delivered
// afterwards are rejected with ErrStopped.
func (p *Processor) Stop() {
	p.stateMu.Lock()
	p.stopped = true
	p.stateMu.Unlock()

	p.cancel()
	p.waitGroup.Wait()
}

// Process runs one job to completion.
func (p *Processor) Process(ctx context.Context, job *models.RecomputeJob) (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	log := p.logger.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"job_type": job.Kind,
		"city":     job.City,
		"year":     job.Year,
	})
	defer func() {
		if p.observer != nil {
			p.observer.JobProcessed(job.Kind, job.City, time.Since(start), err)
		}
		if err != nil {
			log.WithError(err).Error("Recompute job failed")
			return
		}
		log.WithField("duration", time.Since(start).String()).Info("Recompute job completed")
	}()

	city, err := config.GetCityByID(job.City)
	if err != nil {
		return err
	}
	tree, ok := p.registry.Tree(job.City)
	if !ok {
		return fmt.Errorf("no hierarchy loaded for %s", job.City)
	}

	months := append([]int(nil), job.Months...)
	sort.Ints(months)
	for _, m := range months {
		ym := models.YearMonth{Year: job.Year, Month: m}
		if !ym.Valid() {
			return fmt.Errorf("invalid period %s", ym)
		}
		result, err := p.rollup.Tree(ctx, tree, city.RollupTypes(), ym)
		if err != nil {
			return err
		}
		p.written(job.City, "rollup", result.Written)
	}

	locations, err := p.ytdLocations(ctx, tree, job.Location)
	if err != nil {
		return err
	}

	var written int
	var writtenMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if p.config.Jobs.RollupConcurrency > 0 {
		g.SetLimit(p.config.Jobs.RollupConcurrency)
	}
	for _, loc := range locations {
		g.Go(func() error {
			n, err := p.ytd.Location(gctx, job.City, loc, city.PropertyTypes, job.Year, p.config.Jobs.YTDStartMonth)
			writtenMu.Lock()
			written += n
			writtenMu.Unlock()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to recalculate YTD: %w", err)
	}
	p.written(job.City, "ytd", written)
	return nil
}

// ytdLocations returns the locations whose YTD a job refreshes: the named
// location and its ancestors, or every known location of the city.
func (p *Processor) ytdLocations(ctx context.Context, tree *location.Tree, only string) ([]string, error) {
	if only != "" {
		locations := []string{only}
		for parent := tree.Parent(only); parent != ""; parent = tree.Parent(parent) {
			locations = append(locations, parent)
		}
		return locations, nil
	}

	stored, err := p.store.ListLocations(ctx, tree.City)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	seen := make(map[string]bool)
	var locations []string
	for _, name := range append(tree.Names(), stored...) {
		if !seen[name] {
			seen[name] = true
			locations = append(locations, name)
		}
	}
	return locations, nil
}

func (p *Processor) written(city, stage string, n int) {
	if p.observer != nil {
		p.observer.PeriodsWritten(city, stage, n)
	}
}
