// Package workers runs periodic background maintenance.
package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job removes expired records and reports how many it removed.
type Job struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// Cleanup runs its jobs on a fixed interval until stopped.
type Cleanup struct {
	jobs     []Job
	log      *zap.Logger
	interval time.Duration
	timeout  time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewCleanup creates a cleanup worker. Each pass gives every job up to
// timeout to finish.
func NewCleanup(logger *zap.Logger, interval, timeout time.Duration, jobs ...Job) *Cleanup {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cleanup{
		jobs:     jobs,
		log:      logger,
		interval: interval,
		timeout:  timeout,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background loop.
func (w *Cleanup) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("cleanup worker started",
		zap.Duration("interval", w.interval),
		zap.Int("jobs", len(w.jobs)))
}

// Stop signals the loop to exit and waits for the current pass.
func (w *Cleanup) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	w.log.Info("cleanup worker stopped")
}

// RunOnce runs every job once. A failing job is logged and does not stop
// the others.
func (w *Cleanup) RunOnce(ctx context.Context) {
	for _, job := range w.jobs {
		jctx, cancel := context.WithTimeout(ctx, w.timeout)
		n, err := job.Run(jctx)
		cancel()
		if err != nil {
			w.log.Error("cleanup job failed", zap.String("job", job.Name), zap.Error(err))
			continue
		}
		if n > 0 {
			w.log.Info("cleanup job removed records",
				zap.String("job", job.Name), zap.Int64("count", n))
		}
	}
}

func (w *Cleanup) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(context.Background())
		}
	}
}
