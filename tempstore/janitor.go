package tempstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wudi/pdfmaster/observability"
)

// Defaults for the periodic sweep.
const (
	DefaultSweepInterval = 5 * time.Minute
	DefaultIdleTimeout   = 10 * time.Minute
)

// ErrJanitorRunning is returned by Start when the janitor is already started.
var ErrJanitorRunning = errors.New("janitor already running")

// Janitor periodically sweeps a Store. It is started and stopped by the
// owner of the process lifecycle, typically the HTTP server.
type Janitor struct {
	store    *Store
	interval time.Duration
	idle     time.Duration
	logger   observability.Logger
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewJanitor returns a janitor that removes entries of store idle for longer
// than idle, checking every interval. Zero durations select the defaults.
func NewJanitor(store *Store, interval, idle time.Duration) *Janitor {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Janitor{
		store:    store,
		interval: interval,
		idle:     idle,
		logger:   store.logger,
		now:      time.Now,
	}
}

// Start launches the sweep loop. The loop ends when ctx is done or Stop is
// called.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.done != nil {
		return ErrJanitorRunning
	}
	ctx, j.cancel = context.WithCancel(ctx)
	j.done = make(chan struct{})
	go j.loop(ctx, j.done)
	j.logger.Info("temp janitor started",
		observability.String("dir", j.store.Dir()),
		observability.Duration("interval", j.interval),
		observability.Duration("idle", j.idle))
	return nil
}

// Stop halts the loop and waits for it to exit. Calling Stop on a janitor
// that is not running does nothing.
func (j *Janitor) Stop() {
	j.mu.Lock()
	cancel, done := j.cancel, j.done
	j.cancel, j.done = nil, nil
	j.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	j.logger.Info("temp janitor stopped")
}

// RunOnce performs a single sweep.
func (j *Janitor) RunOnce() (int, error) {
	n, err := j.store.Sweep(j.idle, j.now())
	if err != nil {
		j.logger.Warn("temp sweep failed", observability.Error("error", err))
	}
	if n > 0 {
		j.logger.Info("temp sweep", observability.Int(observability.MetricSweptFiles, n))
	}
	return n, err
}

func (j *Janitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce()
		}
	}
}
