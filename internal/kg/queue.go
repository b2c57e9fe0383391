package kg

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/kgbridge-backend/internal/platform/logger"
)

// Runner executes one ingestion job to completion. It must not panic; the
// queue recovers anyway so one bad job never kills the loop.
type Runner func(ctx context.Context, job Job)

// IngestQueue is the single-worker, dedup-aware job runner. At most one job
// per (project_id, doc_id) key is queued or running at any time, and exactly
// one job runs at a time system-wide.
type IngestQueue struct {
	log      *logger.Logger
	interval time.Duration

	mu      sync.Mutex
	jobs    []Job
	queued  map[string]bool
	running map[string]bool

	// Called when a popped job's key is somehow already running; the attempt
	// completes as a no-op instead of erroring.
	OnDuplicate func(job Job)
}

func NewIngestQueue(log *logger.Logger, interval time.Duration) *IngestQueue {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &IngestQueue{
		log:      log.With("component", "IngestQueue"),
		interval: interval,
		queued:   map[string]bool{},
		running:  map[string]bool{},
	}
}

// Enqueue returns false and does nothing when the job's key is already queued
// or running (at-most-one-pending-per-key).
func (q *IngestQueue) Enqueue(job Job) bool {
	key := job.Key()
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.queued[key] || q.running[key] {
		q.log.Debug("duplicate enqueue ignored", "project_id", job.ProjectID, "doc_id", job.DocID)
		return false
	}
	job.EnqueuedAt = time.Now().UTC()
	q.queued[key] = true
	q.jobs = append(q.jobs, job)
	return true
}

// Depth reports the number of queued (not yet running) jobs.
func (q *IngestQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Start launches the poll loop. One job is drained per tick at most, and a
// job runs to completion before the next is considered. Returns immediately;
// the loop stops when ctx is cancelled.
func (q *IngestQueue) Start(ctx context.Context, run Runner) {
	go func() {
		ticker := time.NewTicker(q.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				q.drainOne(ctx, run)
			}
		}
	}()
}

func (q *IngestQueue) drainOne(ctx context.Context, run Runner) {
	q.mu.Lock()
	if len(q.jobs) == 0 {
		q.mu.Unlock()
		return
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	key := job.Key()
	delete(q.queued, key)
	if q.running[key] {
		q.mu.Unlock()
		q.log.Warn("job key already running, completing as no-op", "project_id", job.ProjectID, "doc_id", job.DocID)
		if q.OnDuplicate != nil {
			q.OnDuplicate(job)
		}
		return
	}
	q.running[key] = true
	q.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			q.log.Error("ingest job panic", "project_id", job.ProjectID, "doc_id", job.DocID, "panic", r)
		}
		q.mu.Lock()
		delete(q.running, key)
		q.mu.Unlock()
	}()

	run(ctx, job)
}
