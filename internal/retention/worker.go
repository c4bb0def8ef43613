// Package retention removes stored documents, finished jobs and old login
// attempts once they outlive their retention period.
package retention

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rmitchellscott/binder/internal/database"
	"github.com/rmitchellscott/binder/internal/jobs"
	"github.com/rmitchellscott/binder/internal/logging"
	"github.com/rmitchellscott/binder/internal/storage"
)

const (
	sweepBatch       = 100
	loginAttemptsTTL = 30 * 24 * time.Hour
)

type Worker struct {
	backend  storage.StorageBackend
	store    *jobs.Store
	interval time.Duration
	jobTTL   time.Duration

	mu      sync.Mutex
	running bool
	quit    chan struct{}
	done    chan struct{}
}

// Stats summarizes one sweep.
type Stats struct {
	Documents     int
	Jobs          int
	LoginAttempts int64
}

// NewWorker builds a worker. backend may be nil when output is not stored.
func NewWorker(backend storage.StorageBackend, store *jobs.Store, interval, jobTTL time.Duration) *Worker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Worker{
		backend:  backend,
		store:    store,
		interval: interval,
		jobTTL:   jobTTL,
	}
}

func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.quit = make(chan struct{})
	w.done = make(chan struct{})
	go w.run(w.quit, w.done)
}

// Stop halts the worker and waits for an in-flight sweep to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.quit)
	done := w.done
	w.mu.Unlock()
	<-done
}

func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Worker) run(quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), w.interval)
			w.Sweep(ctx, time.Now())
			cancel()
		}
	}
}

// Sweep performs one retention pass as of now.
func (w *Worker) Sweep(ctx context.Context, now time.Time) Stats {
	var stats Stats

	if w.store != nil && w.jobTTL > 0 {
		stats.Jobs = w.store.Prune(now.Add(-w.jobTTL))
	}

	if database.Enabled() {
		stats.Documents = w.sweepDocuments(ctx, now)
		if n, err := database.PruneLoginAttempts(now.Add(-loginAttemptsTTL)); err != nil {
			logging.Logf("[WARNING] [RETENTION] Failed to prune login attempts: %v", err)
		} else {
			stats.LoginAttempts = n
		}
	}

	if stats.Documents > 0 || stats.Jobs > 0 {
		logging.Logf("[RETENTION] Removed %d documents and %d jobs", stats.Documents, stats.Jobs)
	}
	return stats
}

func (w *Worker) sweepDocuments(ctx context.Context, now time.Time) int {
	removed := 0
	for ctx.Err() == nil {
		docs, err := database.ExpiredDocuments(now, sweepBatch)
		if err != nil {
			logging.Logf("[ERROR] [RETENTION] %v", err)
			return removed
		}
		if len(docs) == 0 {
			return removed
		}
		for _, doc := range docs {
			if err := Remove(ctx, w.backend, &doc); err != nil {
				logging.Logf("[WARNING] [RETENTION] Failed to remove document %s: %v", doc.ID, err)
				// leave it for the next pass rather than spin on it
				return removed
			}
			removed++
		}
		if len(docs) < sweepBatch {
			return removed
		}
	}
	return removed
}

// Remove deletes a stored document's object and then its record.
func Remove(ctx context.Context, backend storage.StorageBackend, doc *database.Document) error {
	if backend != nil {
		if err := backend.Delete(ctx, doc.StorageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
	if err := database.DeleteDocument(doc.ID); err != nil && !errors.Is(err, database.ErrDocumentNotFound) {
		return err
	}
	return nil
}
