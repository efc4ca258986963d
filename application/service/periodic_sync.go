package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopvec/shopvec/domain/task"
	"github.com/shopvec/shopvec/internal/config"
)

// PlatformLister names the platforms eligible for periodic syncing.
type PlatformLister interface {
	Platforms() []string
}

// PeriodicSync enqueues SyncPlatform tasks for every configured
// platform on a timer. The queue's dedup keys collapse ticks that fire
// while a previous sync task is still pending.
type PeriodicSync struct {
	platforms     PlatformLister
	queue         *Queue
	logger        *slog.Logger
	interval      time.Duration
	checkInterval time.Duration
	enabled       bool

	lastRun map[string]time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPeriodicSync creates a new PeriodicSync from config and dependencies.
func NewPeriodicSync(
	cfg config.PeriodicSyncConfig,
	platforms PlatformLister,
	queue *Queue,
	logger *slog.Logger,
) *PeriodicSync {
	return &PeriodicSync{
		platforms:     platforms,
		queue:         queue,
		logger:        logger,
		interval:      cfg.Interval(),
		checkInterval: cfg.CheckInterval(),
		enabled:       cfg.Enabled(),
		lastRun:       make(map[string]time.Time),
	}
}

// Start begins periodic sync in a background goroutine.
// If disabled, this is a no-op.
func (p *PeriodicSync) Start(ctx context.Context) {
	if !p.enabled {
		p.logger.Info("periodic sync disabled")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Go(func() {
		p.run(ctx)
	})

	p.logger.Info("periodic sync started", slog.Duration("interval", p.interval))
}

// Stop cancels the background goroutine and waits for it to finish.
func (p *PeriodicSync) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	p.logger.Info("periodic sync stopped")
}

func (p *PeriodicSync) run(ctx context.Context) {
	// Sync immediately on startup
	p.sync(ctx)

	ticker := time.NewTicker(p.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sync(ctx)
		}
	}
}

// sync enqueues a platform sync for every platform whose last enqueue
// is older than the configured interval.
func (p *PeriodicSync) sync(ctx context.Context) {
	now := time.Now()
	enqueued := 0

	for _, platform := range p.platforms.Platforms() {
		if last, ok := p.lastRun[platform]; ok && now.Sub(last) < p.interval {
			continue
		}

		payload := map[string]any{"platform": platform}
		if err := p.queue.EnqueueOperation(ctx, task.OperationSyncPlatform, task.PriorityNormal, payload); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("periodic sync failed to enqueue",
				slog.String("platform", platform),
				slog.String("error", err.Error()),
			)
			continue
		}
		p.lastRun[platform] = now
		enqueued++
	}

	if enqueued > 0 {
		p.logger.Debug("periodic sync enqueued", slog.Int("count", enqueued))
	}
}
