package expiry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
	"vipbot/lib/sl"
)

const DefaultInterval = 60 * time.Second

type Sweeper interface {
	SweepExpired(ctx context.Context) ([]int64, error)
}

// Watcher runs the expiry sweep once at start and then on every tick.
type Watcher struct {
	sweeper  Sweeper
	interval time.Duration
	log      *slog.Logger
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	mu       sync.Mutex
	started  bool
	stopped  bool
}

func NewWatcher(sweeper Sweeper, interval time.Duration, log *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{
		sweeper:  sweeper,
		interval: interval,
		log:      log.With(sl.Module("expiry")),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start blocks until ctx is cancelled or Stop is called. A watcher runs once;
// Start after Stop returns at once.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("expiry watcher already started")
	}
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.mu.Unlock()
	defer close(w.done)
	w.log.Info("expiry watcher started", slog.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ticker.C:
			w.sweep(ctx)
		case <-w.stopCh:
			w.log.Info("expiry watcher stopped")
			return nil
		case <-ctx.Done():
			w.log.Info("expiry watcher stopped")
			return nil
		}
	}
}

// Stop ends the loop and waits for a running sweep to finish. It does not
// block when Start was never called.
func (w *Watcher) Stop() {
	w.mu.Lock()
	w.stopped = true
	started := w.started
	w.mu.Unlock()

	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	if started {
		<-w.done
	}
}

func (w *Watcher) sweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("sweep panic", slog.Any("panic", r))
		}
	}()
	evicted, err := w.sweeper.SweepExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error("sweep", sl.Err(err))
		}
		return
	}
	if len(evicted) > 0 {
		w.log.Info("expired subscriptions processed", slog.Int("count", len(evicted)))
	}
}
