package queue

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"marketstats/server/internal/models"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// JobQueue represents an in-memory queue of recompute jobs
type JobQueue struct {
	items    chan *models.RecomputeJob
	done     chan struct{}
	maxSize  int
	closed   bool
	mu       sync.RWMutex
	logger   *logrus.Logger
	handlers []func(*models.RecomputeJob) error
}

// NewJobQueue creates a new job queue with the specified buffer size
func NewJobQueue(bufferSize int, logger *logrus.Logger) *JobQueue {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &JobQueue{
		items:    make(chan *models.RecomputeJob, bufferSize),
		done:     make(chan struct{}),
		maxSize:  bufferSize,
		logger:   logger,
		handlers: make([]func(*models.RecomputeJob) error, 0),
	}
}

// NewJob builds a job with a fresh id.
func NewJob(kind, city string, year int, months []int) *models.RecomputeJob {
	return &models.RecomputeJob{
		ID:       uuid.NewString(),
		Kind:     kind,
		City:     city,
		Year:     year,
		Months:   months,
		QueuedAt: time.Now().UTC(),
	}
}

// Push adds a job to the queue
func (q *JobQueue) Push(job *models.RecomputeJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	// Non-blocking send to prevent deadlocks
	select {
	case q.items <- job:
		q.logger.WithFields(logrus.Fields{
			"job_id":   job.ID,
			"job_type": job.Kind,
			"city":     job.City,
			"year":     job.Year,
		}).Debug("Pushed job to queue")
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe adds a handler function that will be called for each job
func (q *JobQueue) Subscribe(handler func(*models.RecomputeJob) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start begins processing items in the queue
func (q *JobQueue) Start() {
	go q.process()
}

// process handles the queue processing loop. Jobs run one at a time.
func (q *JobQueue) process() {
	for {
		select {
		case <-q.done:
			return
		case job, ok := <-q.items:
			if !ok {
				return
			}
			q.processJob(job)
		}
	}
}

// processJob sends the job to all subscribed handlers
func (q *JobQueue) processJob(job *models.RecomputeJob) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(job); err != nil {
			q.logger.WithError(err).WithFields(logrus.Fields{
				"job_id": job.ID,
				"city":   job.City,
			}).Error("Handler failed to process job")
		}
	}
}

// Close stops the queue and prevents new items from being added
func (q *JobQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.done)
	close(q.items)
	return nil
}

// Len returns the current number of jobs in the queue
func (q *JobQueue) Len() int {
	return len(q.items)
}

// IsClosed returns whether the queue has been closed
func (q *JobQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
