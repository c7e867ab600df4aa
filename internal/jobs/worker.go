package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Task is work run on every worker tick.
type Task interface {
	Run(ctx context.Context) error
}

// Worker runs a Task periodically in the background
type Worker struct {
	name         string
	task         Task
	pollInterval time.Duration
	log          zerolog.Logger
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewWorker creates a new Worker instance
func NewWorker(name string, task Task, pollInterval time.Duration, log zerolog.Logger) *Worker {
	return &Worker{
		name:         name,
		task:         task,
		pollInterval: pollInterval,
		log:          log.With().Str("worker", name).Logger(),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start begins the worker's polling loop and blocks until it stops
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	w.log.Info().Dur("poll_interval", w.pollInterval).Msg("worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("worker stopped: context cancelled")
			return
		case <-w.stopChan:
			w.log.Info().Msg("worker stopped: stop signal received")
			return
		case <-ticker.C:
			if err := w.task.Run(ctx); err != nil {
				w.log.Error().Err(err).Msg("worker task failed")
			}
		}
	}
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	w.log.Info().Msg("worker shutdown complete")
}
