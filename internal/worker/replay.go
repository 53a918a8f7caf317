package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"harambee/internal/log"
)

// ReplayConfig holds configuration for the replay loop.
type ReplayConfig struct {
	// PollInterval is how often pending rows are retried (default: 1m).
	PollInterval time.Duration
}

func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{PollInterval: time.Minute}
}

// Replayer periodically mirrors rows whose events were lost or whose
// append failed.
type Replayer struct {
	worker *SyncWorker
	config ReplayConfig
	logger *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewReplayer(worker *SyncWorker, config ReplayConfig) *Replayer {
	if config.PollInterval <= 0 {
		config = DefaultReplayConfig()
	}
	return &Replayer{
		worker: worker,
		config: config,
		logger: worker.logger,
	}
}

// Start begins the loop. Returns an error if already running.
func (r *Replayer) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("replayer is already running")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	go r.runLoop(ctx, stopCh, doneCh)

	r.logger.InfoContext(ctx, "Replayer started", "poll_interval", r.config.PollInterval)
	return nil
}

// Stop signals the loop and waits for the current batch to finish.
func (r *Replayer) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		r.logger.InfoContext(ctx, "Replayer stopped gracefully")
	case <-ctx.Done():
		r.logger.WarnContext(ctx, "Replayer stop timed out")
		return ctx.Err()
	}

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	return nil
}

func (r *Replayer) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Replayer) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.replayOnce(ctx)
		}
	}
}

func (r *Replayer) replayOnce(ctx context.Context) {
	synced, err := r.worker.ProcessPending(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Replay failed", log.FieldError, err)
		return
	}
	if synced > 0 {
		r.logger.InfoContext(ctx, "Replayed pending records", log.FieldCount, synced)
	}
}
