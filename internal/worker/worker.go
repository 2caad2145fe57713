package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Pool runs background jobs such as the refresh token sweep and waits for
// them on shutdown.
type Pool struct {
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// NewPool creates a new worker pool
func NewPool(logger *slog.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Submit adds a task to the pool and tracks it
func (p *Pool) Submit(task func(ctx context.Context)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		task(p.ctx)
	}()
}

// SubmitWithTimeout adds a task with a timeout to the pool
func (p *Pool) SubmitWithTimeout(timeout time.Duration, task func(ctx context.Context)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(p.ctx, timeout)
		defer cancel()
		task(ctx)
	}()
}

// Every runs task on each tick of interval until the pool shuts down.
// Each run gets a context bounded by the interval. A non-positive interval
// disables the job.
func (p *Pool) Every(name string, interval time.Duration, task func(ctx context.Context) error) {
	if interval <= 0 {
		p.logger.Warn("⚠️ [Worker] Periodic job disabled", "job", name, "interval", interval)
		return
	}

	p.logger.Info("⏱️ [Worker] Scheduling periodic job", "job", name, "interval", interval)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-p.ctx.Done():
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(p.ctx, interval)
				if err := task(ctx); err != nil {
					p.logger.Error("❌ [Worker] Periodic job failed", "job", name, "error", err)
				}
				cancel()
			}
		}
	}()
}

// Context returns the pool's context
func (p *Pool) Context() context.Context {
	return p.ctx
}

// Shutdown signals all workers to stop and waits for completion
func (p *Pool) Shutdown(timeout time.Duration) {
	p.logger.Info("🛑 [Worker] Initiating graceful shutdown...")

	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("✅ [Worker] All background tasks completed")
	case <-time.After(timeout):
		p.logger.Warn("⚠️ [Worker] Shutdown timeout exceeded, some tasks may not have completed",
			"timeout", timeout,
		)
	}
}
