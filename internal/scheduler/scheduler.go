package scheduler

import (
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"marketstats/server/internal/models"
	"marketstats/server/internal/queue"
)

// JobPusher accepts recompute jobs
type JobPusher interface {
	Push(job *models.RecomputeJob) error
}

// Scheduler enqueues the daily full-year recompute of every city
type Scheduler struct {
	queue    JobPusher
	logger   *logrus.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
	cities   []string
	hour     int
	jobMutex sync.Mutex // Ensures sequential job execution
	lastRun  string
}

// NewScheduler creates a new scheduler. A negative hour disables the daily run.
func NewScheduler(q JobPusher, logger *logrus.Logger, cities []string, hour int) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.InfoLevel)
	}

	return &Scheduler{
		queue:    q,
		logger:   logger,
		stopChan: make(chan struct{}),
		cities:   cities,
		hour:     hour,
	}
}

// Start begins the scheduled tasks
func (s *Scheduler) Start() {
	if s.hour < 0 {
		s.logger.Info("Daily recompute disabled")
		return
	}
	s.wg.Add(1)
	go s.runScheduler()
}

// runScheduler handles all scheduled tasks
func (s *Scheduler) runScheduler() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case t := <-ticker.C:
			s.executeScheduledJobs(t)
		}
	}
}

// executeScheduledJobs enqueues the daily jobs when t falls in the
// configured hour, at most once per day. It reports whether jobs were
// enqueued.
func (s *Scheduler) executeScheduledJobs(t time.Time) bool {
	if s.hour < 0 || t.Hour() != s.hour {
		return false
	}

	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	day := t.Format("2006-01-02")
	if s.lastRun == day {
		return false
	}
	s.lastRun = day

	s.logger.WithField("hour", s.hour).Info("Starting scheduled recompute jobs")
	for _, year := range recomputeYears(t) {
		s.enqueueRecomputes(year)
	}
	s.logger.Info("Completed scheduled recompute jobs")
	return true
}

// recomputeYears is the current year, plus the previous one in January
// while December figures may still be arriving.
func recomputeYears(t time.Time) []int {
	if t.Month() == time.January {
		return []int{t.Year() - 1, t.Year()}
	}
	return []int{t.Year()}
}

// enqueueRecomputes pushes a full-year job for all configured cities
func (s *Scheduler) enqueueRecomputes(year int) {
	for _, city := range s.cities {
		job := queue.NewJob(models.JobKindScheduled, city, year, models.AllMonths())
		fields := logrus.Fields{
			"city":     city,
			"year":     year,
			"job_id":   job.ID,
			"job_type": job.Kind,
		}
		if err := s.queue.Push(job); err != nil {
			s.logger.WithError(err).WithFields(fields).Error("Failed to enqueue recompute job")
			continue
		}
		s.logger.WithFields(fields).Info("Recompute job enqueued")
	}
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}
