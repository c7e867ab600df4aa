package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloo-solutions/ragdocs/internal/domain"
	"github.com/rs/zerolog"
)

const (
	DefaultJobTTL     = 24 * time.Hour
	DefaultMaxEntries = 10000
)

// TrackerConfig bounds the tracker's memory.
type TrackerConfig struct {
	TTL        time.Duration
	MaxEntries int
}

// Tracker holds ingestion job state in memory. Terminal jobs expire TTL
// after completion; when full, Create evicts the oldest terminal job, or
// the oldest job if none has finished.
type Tracker struct {
	mu         sync.RWMutex
	jobs       map[string]*domain.Job
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	log        zerolog.Logger
}

// NewTracker creates an empty tracker.
func NewTracker(cfg TrackerConfig, log zerolog.Logger) *Tracker {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Tracker{
		jobs:       make(map[string]*domain.Job),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		log:        log,
	}
}

// Create registers a new job in the PROCESSING status.
func (t *Tracker) Create(jobID string, documentID int64, filename string) *domain.Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.jobs[jobID]; !exists && len(t.jobs) >= t.maxEntries {
		t.evictOldestLocked()
	}

	job := domain.NewJob(jobID, documentID, filename, t.now().UTC())
	t.jobs[jobID] = job
	return job.Clone()
}

// Get returns a copy of the job.
func (t *Tracker) Get(jobID string) (*domain.Job, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	job, ok := t.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return job.Clone(), nil
}

// SetStage advances a running job to stage.
func (t *Tracker) SetStage(jobID string, stage domain.Stage) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	if !job.Stage.CanAdvanceTo(stage) {
		return domain.NewDomainErrorWithCause(domain.ErrCodeInvalidOperation, "invalid stage transition",
			fmt.Errorf("%s -> %s", job.Stage, stage))
	}
	job.Stage = stage
	return nil
}

// MarkCompleted finishes a job successfully.
func (t *Tracker) MarkCompleted(jobID string, result *domain.JobResult) error {
	return t.finish(jobID, domain.JobStatusCompleted, domain.StageCompleted, func(job *domain.Job) {
		if result != nil {
			r := *result
			r.ChunksPreview = append([]string(nil), result.ChunksPreview...)
			job.Result = &r
		}
	})
}

// MarkFailed finishes a job with an error message.
func (t *Tracker) MarkFailed(jobID string, message string) error {
	return t.finish(jobID, domain.JobStatusFailed, domain.StageFailed, func(job *domain.Job) {
		job.Error = message
	})
}

func (t *Tracker) finish(jobID string, status domain.JobStatus, stage domain.Stage, apply func(*domain.Job)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	if job.Status.IsTerminal() {
		return domain.NewDomainErrorWithCause(domain.ErrCodeInvalidOperation, "job already finished",
			fmt.Errorf("job %s is %s", jobID, job.Status))
	}

	now := t.now().UTC()
	job.Status = status
	job.Stage = stage
	job.CompletedAt = &now
	apply(job)
	return nil
}

// Len returns the number of tracked jobs.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.jobs)
}

// Run evicts expired terminal jobs. It is the tracker's periodic sweep.
func (t *Tracker) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n := t.Sweep(); n > 0 {
		t.log.Debug().Int("evicted", n).Msg("expired jobs evicted")
	}
	return nil
}

// Sweep removes terminal jobs older than the TTL and returns how many it removed.
func (t *Tracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.ttl)
	evicted := 0
	for id, job := range t.jobs {
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(t.jobs, id)
			evicted++
		}
	}
	return evicted
}

func (t *Tracker) evictOldestLocked() {
	var oldestDone, oldestAny *domain.Job
	for _, job := range t.jobs {
		if oldestAny == nil || job.CreatedAt.Before(oldestAny.CreatedAt) {
			oldestAny = job
		}
		if job.CompletedAt != nil && (oldestDone == nil || job.CompletedAt.Before(*oldestDone.CompletedAt)) {
			oldestDone = job
		}
	}

	victim := oldestDone
	if victim == nil {
		victim = oldestAny
	}
	if victim == nil {
		return
	}
	delete(t.jobs, victim.ID)
	t.log.Warn().Str("job_id", victim.ID).Str("status", string(victim.Status)).
		Msg("job tracker full, evicted job")
}
