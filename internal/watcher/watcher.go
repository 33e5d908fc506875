// Package watcher polls the provider for in-flight bulk jobs so their
// logs reach a terminal state even when no browser is watching.
package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ignite/verifyhub/internal/pkg/logger"
	"github.com/ignite/verifyhub/internal/service/verification"
)

// consecutive provider errors tolerated before a job is marked failed.
const maxPollErrors = 5

// Watcher runs at most one polling loop per job id. Watch is
// idempotent: a second call for the same job is a no-op while the
// first loop is alive.
type Watcher struct {
	svc      *verification.Service
	interval time.Duration
	maxAge   time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func New(svc *verification.Service, interval, maxAge time.Duration) *Watcher {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Watcher{
		svc:      svc,
		interval: interval,
		maxAge:   maxAge,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Watch starts polling the given job until it completes, fails, or
// outlives the max age. Returns false when a watcher for this job is
// already running.
func (w *Watcher) Watch(ctx context.Context, jobID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.cancels[jobID]; exists {
		return false
	}

	jobCtx, cancel := context.WithCancel(ctx)
	w.cancels[jobID] = cancel
	w.wg.Add(1)
	go w.run(jobCtx, jobID)
	return true
}

// Stop cancels the watcher for one job, if any.
func (w *Watcher) Stop(jobID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if cancel, ok := w.cancels[jobID]; ok {
		cancel()
		delete(w.cancels, jobID)
	}
}

// StopAll cancels every watcher and waits for the loops to exit.
func (w *Watcher) StopAll() {
	w.mu.Lock()
	for jobID, cancel := range w.cancels {
		cancel()
		delete(w.cancels, jobID)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// Watching reports whether a loop is currently running for the job.
func (w *Watcher) Watching(jobID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.cancels[jobID]
	return ok
}

func (w *Watcher) run(ctx context.Context, jobID string) {
	defer w.wg.Done()
	defer w.Stop(jobID)

	deadline := time.Now().Add(w.maxAge)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	errCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			logger.Warn("job exceeded max watch age", "job_id", jobID, "max_age", w.maxAge.String())
			w.fail(ctx, jobID, "Verification timed out")
			return
		}

		status, err := w.svc.CheckStatus(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			errCount++
			logger.Warn("job status poll failed", "job_id", jobID, "attempt", errCount, "error", err.Error())
			if errCount >= maxPollErrors {
				w.fail(ctx, jobID, "Verification status could not be determined")
				return
			}
			continue
		}
		errCount = 0

		switch {
		case status.Complete():
			logger.Info("job completed", "job_id", jobID, "total", status.Total)
			w.archive(ctx, jobID)
			return
		case status.InFlight():
			// Keep polling.
		default:
			w.fail(ctx, jobID, fmt.Sprintf("Provider reported unexpected status %q", status.Status))
			return
		}
	}
}

func (w *Watcher) fail(ctx context.Context, jobID, message string) {
	if err := w.svc.MarkFailed(context.WithoutCancel(ctx), jobID, message); err != nil {
		logger.Error("could not mark job failed", "job_id", jobID, "error", err.Error())
	}
}

func (w *Watcher) archive(ctx context.Context, jobID string) {
	key, err := w.svc.ArchiveResults(context.WithoutCancel(ctx), jobID)
	if err != nil {
		if err == verification.ErrArchiveDisabled {
			return
		}
		logger.Warn("result archive failed", "job_id", jobID, "error", err.Error())
		return
	}
	logger.Info("results archived", "job_id", jobID, "key", key)
}
