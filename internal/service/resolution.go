package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/clipfetch/clipfetch/internal/domain"
)

// StreamExecutor isolates blocking resolver calls on a bounded pool.
type StreamExecutor interface {
	Execute(ctx context.Context, resolver domain.Resolver, videoID string, format domain.Format) (*domain.StreamInfo, error)
}

// ResolverLookup selects the resolver for a source.
type ResolverLookup interface {
	For(source domain.Source) (domain.Resolver, error)
}

// ResolutionEvent describes one resolution outcome for the event stream.
// DurationMS is zero for cache hits.
type ResolutionEvent struct {
	Type       string        `json:"type"`
	Source     domain.Source `json:"source"`
	VideoID    string        `json:"video_id"`
	Format     domain.Format `json:"format"`
	DurationMS int64         `json:"duration_ms"`
	Timestamp  time.Time     `json:"timestamp"`
}

const (
	EventCacheHit = "cache_hit"
	EventResolved = "resolved"
	EventFailed   = "resolution_failed"
)

// ResolutionService implements the cache-aside resolution pipeline: check
// the cache, resolve through the executor on a miss, write the result back
// with a fixed TTL. Concurrent misses for the same key share one in-flight
// resolution via singleflight.
type ResolutionService struct {
	cache          domain.Cache
	resolvers      ResolverLookup
	executor       StreamExecutor
	logger         *slog.Logger
	ttl            time.Duration
	group          singleflight.Group
	eventBroadcast func(event *ResolutionEvent)
}

// NewResolutionService creates a new ResolutionService
func NewResolutionService(
	cache domain.Cache,
	resolvers ResolverLookup,
	executor StreamExecutor,
	logger *slog.Logger,
	ttl time.Duration,
) *ResolutionService {
	return &ResolutionService{
		cache:     cache,
		resolvers: resolvers,
		executor:  executor,
		logger:    logger,
		ttl:       ttl,
	}
}

// SetEventBroadcast sets the function to broadcast resolution events
func (s *ResolutionService) SetEventBroadcast(fn func(event *ResolutionEvent)) {
	s.eventBroadcast = fn
}

// ResolveLink resolves a request to the bare stream URL. Cached under the
// link key scheme, disjoint from the metadata key space.
func (s *ResolutionService) ResolveLink(ctx context.Context, req domain.ResolutionRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	key := req.LinkCacheKey()
	if cached := s.lookup(ctx, key); cached != nil {
		s.broadcast(EventCacheHit, req, 0)
		return string(cached), nil
	}

	start := time.Now()
	info, err := s.resolveShared(ctx, key, req)
	if err != nil {
		s.broadcast(EventFailed, req, time.Since(start))
		return "", err
	}

	s.store(ctx, key, []byte(info.URL))
	s.broadcast(EventResolved, req, time.Since(start))
	return info.URL, nil
}

// ResolveMetadata resolves a request to the full stream metadata record.
func (s *ResolutionService) ResolveMetadata(ctx context.Context, req domain.ResolutionRequest) (*domain.StreamInfo, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := req.MetadataCacheKey()
	if cached := s.lookup(ctx, key); cached != nil {
		var info domain.StreamInfo
		if err := json.Unmarshal(cached, &info); err == nil {
			s.broadcast(EventCacheHit, req, 0)
			return &info, nil
		}
		// Undecodable entry: treat as a miss and overwrite below.
		s.logger.Warn("discarding undecodable cache entry", "key", key)
	}

	start := time.Now()
	info, err := s.resolveShared(ctx, key, req)
	if err != nil {
		s.broadcast(EventFailed, req, time.Since(start))
		return nil, err
	}

	if encoded, err := json.Marshal(info); err == nil {
		s.store(ctx, key, encoded)
	}
	s.broadcast(EventResolved, req, time.Since(start))
	return info, nil
}

// resolveShared funnels concurrent misses for one key into a single
// resolver call. Nothing is cached on failure; the caller gets the error.
func (s *ResolutionService) resolveShared(ctx context.Context, key string, req domain.ResolutionRequest) (*domain.StreamInfo, error) {
	// The shared call is detached from the initiating caller's cancellation:
	// other callers may be waiting on the same flight. The executor's own
	// resolve timeout still bounds the work.
	sharedCtx := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(key, func() (any, error) {
		resolver, err := s.resolvers.For(req.Source)
		if err != nil {
			return nil, err
		}
		return s.executor.Execute(sharedCtx, resolver, req.VideoID, req.Format)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.StreamInfo), nil
}

// lookup reads the cache, degrading to a miss when the store is
// unreachable. A cache outage never fails the request.
func (s *ResolutionService) lookup(ctx context.Context, key string) []byte {
	value, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache lookup failed, resolving directly",
			"key", key,
			"error", err,
		)
		return nil
	}
	return value
}

// store writes a resolution result back with the fixed TTL. Write failures
// are logged and swallowed: the result is already in hand.
func (s *ResolutionService) store(ctx context.Context, key string, value []byte) {
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn("cache write failed",
			"key", key,
			"error", err,
		)
	}
}

func (s *ResolutionService) broadcast(eventType string, req domain.ResolutionRequest, elapsed time.Duration) {
	if s.eventBroadcast == nil {
		return
	}
	s.eventBroadcast(&ResolutionEvent{
		Type:       eventType,
		Source:     req.Source,
		VideoID:    req.VideoID,
		Format:     req.Format,
		DurationMS: elapsed.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	})
}
