// Package janitor periodically purges expired entries from stores that do not
// expire keys on their own.
package janitor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"agentmesh/internal/store"
)

// Worker runs store.Sweeper.Sweep on a fixed interval.
type Worker struct {
	ctx      context.Context
	cancel   context.CancelFunc
	sweeper  store.Sweeper
	logger   *logrus.Entry
	interval time.Duration
	started  bool
	done     chan struct{}
}

// Config holds the configuration for the janitor worker
type Config struct {
	Sweeper     store.Sweeper
	Logger      *logrus.Entry
	IntervalSec int
}

// NewWorker creates a new janitor worker
func NewWorker(cfg *Config) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	interval := time.Duration(cfg.IntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	return &Worker{
		ctx:      ctx,
		cancel:   cancel,
		sweeper:  cfg.Sweeper,
		logger:   cfg.Logger.WithField("component", "store-janitor"),
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins the periodic sweeps
func (w *Worker) Start() {
	w.logger.WithField("interval", w.interval.String()).Info("Starting store janitor...")
	w.started = true
	ticker := time.NewTicker(w.interval)
	go func() {
		defer close(w.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.RunOnce()
			case <-w.ctx.Done():
				w.logger.Info("Stopping store janitor...")
				return
			}
		}
	}()
}

// Stop cancels the worker and waits for an in-flight sweep to finish.
func (w *Worker) Stop() {
	w.cancel()
	if w.started {
		<-w.done
	}
}

// RunOnce performs a single sweep and returns the number of purged entries.
func (w *Worker) RunOnce() int {
	start := time.Now()
	n, err := w.sweeper.Sweep(w.ctx)
	if err != nil {
		if w.ctx.Err() == nil {
			w.logger.Errorf("Failed to sweep expired entries: %v", err)
		}
		return 0
	}
	if n > 0 {
		w.logger.WithFields(logrus.Fields{
			"purged":   n,
			"duration": time.Since(start).String(),
		}).Info("Expired entries purged")
	}
	return n
}
