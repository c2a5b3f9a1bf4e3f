package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/clipfetch/clipfetch/internal/config"
	"github.com/clipfetch/clipfetch/internal/domain"
)

// Executor runs blocking resolver calls on a bounded pool so one slow
// resolution cannot starve request handling. It is purely an isolation
// boundary: resolver errors pass through unchanged, and there are no
// retries here.
type Executor struct {
	slots          chan struct{}
	acquireTimeout time.Duration
	resolveTimeout time.Duration
	logger         *slog.Logger
}

// New creates a new Executor
func New(cfg config.ExecutorConfig, logger *slog.Logger) *Executor {
	size := cfg.PoolSize
	if size <= 0 {
		size = 1
	}
	return &Executor{
		slots:          make(chan struct{}, size),
		acquireTimeout: cfg.AcquireTimeout,
		resolveTimeout: cfg.ResolveTimeout,
		logger:         logger,
	}
}

type result struct {
	info *domain.StreamInfo
	err  error
}

// Execute runs resolver.Resolve for one request. The caller blocks until
// the resolution finishes, fails, or times out. When the pool is saturated
// past the acquire timeout the call is rejected with ErrExecutorBusy
// instead of queueing unboundedly.
func (e *Executor) Execute(ctx context.Context, resolver domain.Resolver, videoID string, format domain.Format) (*domain.StreamInfo, error) {
	acquire := time.NewTimer(e.acquireTimeout)
	defer acquire.Stop()

	select {
	case e.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-acquire.C:
		e.logger.Warn("resolution pool saturated",
			"video_id", videoID,
		)
		return nil, domain.ErrExecutorBusy
	}

	resolveCtx, cancel := context.WithTimeout(ctx, e.resolveTimeout)
	defer cancel()

	results := make(chan result, 1)
	go func() {
		defer func() { <-e.slots }()
		info, err := resolver.Resolve(resolveCtx, videoID, format)
		results <- result{info: info, err: err}
	}()

	select {
	case res := <-results:
		return res.info, res.err
	case <-resolveCtx.Done():
		// The goroutine keeps its slot until the resolver call returns,
		// so a hung adapter still counts against the pool bound.
		return nil, resolveCtx.Err()
	}
}
