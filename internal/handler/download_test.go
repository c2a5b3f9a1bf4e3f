package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/clipfetch/clipfetch/internal/domain"
	"github.com/clipfetch/clipfetch/internal/service"
)

// In-memory fakes behind the domain interfaces; handler tests exercise the
// real services on top of them.

type fakeCache struct {
	entries map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	return c.entries[key], nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.entries[key] = value
	return nil
}

type fakeResolver struct {
	info *domain.StreamInfo
	err  error
}

func (r *fakeResolver) Resolve(ctx context.Context, videoID string, format domain.Format) (*domain.StreamInfo, error) {
	return r.info, r.err
}

type fakeLookup struct {
	resolver domain.Resolver
}

func (l *fakeLookup) For(source domain.Source) (domain.Resolver, error) {
	return l.resolver, nil
}

type passthroughExecutor struct{}

func (passthroughExecutor) Execute(ctx context.Context, resolver domain.Resolver, videoID string, format domain.Format) (*domain.StreamInfo, error) {
	return resolver.Resolve(ctx, videoID, format)
}

type fakeBroker struct {
	published [][]byte
	err       error
}

func (b *fakeBroker) Publish(ctx context.Context, payload []byte) error {
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, payload)
	return nil
}

func (b *fakeBroker) Consume(ctx context.Context) (*domain.Delivery, error) { return nil, nil }
func (b *fakeBroker) Ack(ctx context.Context, d *domain.Delivery) error     { return nil }
func (b *fakeBroker) Retry(ctx context.Context, d *domain.Delivery, payload []byte, delay time.Duration) error {
	return nil
}
func (b *fakeBroker) DeadLetter(ctx context.Context, d *domain.Delivery, payload []byte) error {
	return nil
}
func (b *fakeBroker) MoveDue(ctx context.Context) (int, error)      { return 0, nil }
func (b *fakeBroker) Heartbeat(ctx context.Context) error           { return nil }
func (b *fakeBroker) ReclaimStale(ctx context.Context) (int, error) { return 0, nil }
func (b *fakeBroker) QueueDepths(ctx context.Context) (int64, int64, int64, error) {
	return 0, 0, 0, nil
}

type fakeVideoData struct {
	data map[string]any
	err  error
}

func (f *fakeVideoData) VideoData(ctx context.Context, videoID string) (map[string]any, error) {
	return f.data, f.err
}

type fakeDeliveryLog struct {
	records []*domain.DeliveryRecord
	limit   int
}

func (l *fakeDeliveryLog) Record(ctx context.Context, rec *domain.DeliveryRecord) error {
	l.records = append(l.records, rec)
	return nil
}

func (l *fakeDeliveryLog) ListRecent(ctx context.Context, limit int) ([]*domain.DeliveryRecord, error) {
	l.limit = limit
	return l.records, nil
}

type handlerFixture struct {
	router      chi.Router
	cache       *fakeCache
	broker      *fakeBroker
	deliveryLog *fakeDeliveryLog
}

func newFixture(resolver domain.Resolver, videoData VideoDataFetcher) *handlerFixture {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	cache := newFakeCache()
	broker := &fakeBroker{}
	deliveryLog := &fakeDeliveryLog{}

	resolution := service.NewResolutionService(cache, &fakeLookup{resolver: resolver}, passthroughExecutor{}, logger, 120*time.Second)
	notify := service.NewNotifyService(broker, logger)

	h := NewDownloadHandler(resolution, notify, videoData, deliveryLog)
	router := chi.NewRouter()
	router.Route("/api/v1", h.RegisterRoutes)

	return &handlerFixture{router: router, cache: cache, broker: broker, deliveryLog: deliveryLog}
}

func (f *handlerFixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestDownloadHandler_DownloadLink(t *testing.T) {
	streamInfo := &domain.StreamInfo{
		Title:      "clip",
		URL:        "https://cdn.example.com/v.mp4",
		Resolution: "1080p",
		Duration:   212,
		FileSizeMB: 48.5,
	}

	t.Run("resolves and queues the email", func(t *testing.T) {
		f := newFixture(&fakeResolver{info: streamInfo}, nil)

		rec := f.get(t, "/api/v1/download-link?source=youtube&video_id=7t2alSnE2-I&fmt=mp4&email=user@example.com")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Link for download video was sent by email.")

		assert.Len(t, f.broker.published, 1)
		msg, err := domain.DecodeEmailMessage(f.broker.published[0])
		assert.NoError(t, err)
		assert.Equal(t, "user@example.com", msg.Recipient)
		assert.Equal(t, 0, msg.Attempts)
		assert.Contains(t, msg.Body, streamInfo.URL)

		// The bare link is cached under the link key scheme.
		assert.Equal(t, []byte(streamInfo.URL), f.cache.entries["7t2alSnE2-I&mp4"])
	})

	t.Run("rejects a missing email", func(t *testing.T) {
		f := newFixture(&fakeResolver{info: streamInfo}, nil)

		rec := f.get(t, "/api/v1/download-link?source=youtube&video_id=7t2alSnE2-I&fmt=mp4")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, f.broker.published)
	})

	t.Run("rejects an unknown source", func(t *testing.T) {
		f := newFixture(&fakeResolver{info: streamInfo}, nil)

		rec := f.get(t, "/api/v1/download-link?source=vimeo&video_id=7t2alSnE2-I&fmt=mp4&email=user@example.com")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects a malformed video id", func(t *testing.T) {
		f := newFixture(&fakeResolver{info: streamInfo}, nil)

		rec := f.get(t, "/api/v1/download-link?source=youtube&video_id=short&fmt=mp4&email=user@example.com")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeResponse(t, rec)
		assert.Equal(t, "INVALID_VIDEO_ID", resp.Error.Code)
	})

	t.Run("missing video maps to 404", func(t *testing.T) {
		f := newFixture(&fakeResolver{err: domain.ErrVideoNotFound}, nil)

		rec := f.get(t, "/api/v1/download-link?source=youtube&video_id=7t2alSnE2-I&fmt=mp4&email=user@example.com")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Empty(t, f.broker.published)
	})

	t.Run("publish failure fails the request even after resolution", func(t *testing.T) {
		f := newFixture(&fakeResolver{info: streamInfo}, nil)
		f.broker.err = domain.ErrBrokerUnavailable

		rec := f.get(t, "/api/v1/download-link?source=youtube&video_id=7t2alSnE2-I&fmt=mp4&email=user@example.com")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		resp := decodeResponse(t, rec)
		assert.Equal(t, "NOTIFICATION_UNAVAILABLE", resp.Error.Code)
	})
}

func TestDownloadHandler_Metadata(t *testing.T) {
	streamInfo := &domain.StreamInfo{
		Title:      "clip",
		URL:        "https://cdn.example.com/v.mp4",
		Resolution: "1080p",
		Duration:   212,
		FileSizeMB: 48.5,
	}

	t.Run("returns the metadata record", func(t *testing.T) {
		f := newFixture(&fakeResolver{info: streamInfo}, nil)

		rec := f.get(t, "/api/v1/metadata?source=youtube&video_id=7t2alSnE2-I&fmt=mp4")

		assert.Equal(t, http.StatusOK, rec.Code)

		resp := decodeResponse(t, rec)
		assert.True(t, resp.Success)

		encoded, err := json.Marshal(resp.Data)
		assert.NoError(t, err)
		var got domain.StreamInfo
		assert.NoError(t, json.Unmarshal(encoded, &got))
		assert.Equal(t, *streamInfo, got)

		// The full record is cached under the metadata key scheme.
		assert.Contains(t, f.cache.entries, "youtube$7t2alSnE2-I$mp4")
	})

	t.Run("rejects an unknown format", func(t *testing.T) {
		f := newFixture(&fakeResolver{info: streamInfo}, nil)

		rec := f.get(t, "/api/v1/metadata?source=youtube&video_id=7t2alSnE2-I&fmt=avi")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("retryable provider failure maps to 502", func(t *testing.T) {
		f := newFixture(&fakeResolver{err: domain.NewResolutionError(domain.SourceYouTube, "upstream timed out", true)}, nil)

		rec := f.get(t, "/api/v1/metadata?source=youtube&video_id=7t2alSnE2-I&fmt=mp4")

		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestDownloadHandler_VideoData(t *testing.T) {
	t.Run("returns the raw record", func(t *testing.T) {
		f := newFixture(&fakeResolver{}, &fakeVideoData{data: map[string]any{"id": "7t2alSnE2-I"}})

		rec := f.get(t, "/api/v1/video-data/7t2alSnE2-I")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "7t2alSnE2-I")
	})

	t.Run("validates the id before calling the platform", func(t *testing.T) {
		f := newFixture(&fakeResolver{}, &fakeVideoData{err: domain.ErrVideoNotFound})

		rec := f.get(t, "/api/v1/video-data/bad")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDownloadHandler_Deliveries(t *testing.T) {
	now := time.Now().UTC()

	t.Run("lists recent records with the default limit", func(t *testing.T) {
		f := newFixture(&fakeResolver{}, nil)
		f.deliveryLog.records = []*domain.DeliveryRecord{
			{Recipient: "user@example.com", Status: domain.DeliveryDelivered, Attempts: 0, RecordedAt: now},
		}

		rec := f.get(t, "/api/v1/deliveries")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, defaultDeliveryListLimit, f.deliveryLog.limit)
		assert.Contains(t, rec.Body.String(), "user@example.com")
	})

	t.Run("caps the requested limit", func(t *testing.T) {
		f := newFixture(&fakeResolver{}, nil)

		rec := f.get(t, "/api/v1/deliveries?limit=9999")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, defaultDeliveryListLimit, f.deliveryLog.limit)
	})

	t.Run("honors an explicit limit", func(t *testing.T) {
		f := newFixture(&fakeResolver{}, nil)

		rec := f.get(t, "/api/v1/deliveries?limit=10")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 10, f.deliveryLog.limit)
	})
}
