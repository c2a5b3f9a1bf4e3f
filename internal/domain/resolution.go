package domain

import (
	"context"
	"regexp"
	"time"
)

// Source identifies the external platform a video comes from
type Source string

const (
	SourceYouTube   Source = "youtube"
	SourceInstagram Source = "instagram"
)

func (s Source) IsValid() bool {
	switch s {
	case SourceYouTube, SourceInstagram:
		return true
	}
	return false
}

// Format is the requested container format of the stream
type Format string

const (
	FormatMP4  Format = "mp4"
	FormatWebM Format = "webm"
	FormatMKV  Format = "mkv"
)

func (f Format) IsValid() bool {
	switch f {
	case FormatMP4, FormatWebM, FormatMKV:
		return true
	}
	return false
}

// Video id patterns per source. The ids never contain the cache key
// separators '$' and '&', which keeps derived keys collision free.
var (
	youtubeIDPattern   = regexp.MustCompile(`^[0-9A-Za-z_-]{11}$`)
	instagramIDPattern = regexp.MustCompile(`^[0-9A-Za-z_-]{5,15}$`)
)

// ResolutionRequest identifies one resolution. It is the cache identity:
// two requests with equal fields share a cache entry.
type ResolutionRequest struct {
	Source  Source `json:"source"`
	VideoID string `json:"video_id"`
	Format  Format `json:"format"`
}

// Validate checks the request against the source-specific id pattern and
// the supported format set.
func (r ResolutionRequest) Validate() error {
	if !r.Source.IsValid() {
		return ErrUnsupportedSource
	}
	if !r.Format.IsValid() {
		return ErrUnsupportedFormat
	}

	var pattern *regexp.Regexp
	switch r.Source {
	case SourceYouTube:
		pattern = youtubeIDPattern
	case SourceInstagram:
		pattern = instagramIDPattern
	}
	if !pattern.MatchString(r.VideoID) {
		return ErrInvalidVideoID
	}
	return nil
}

// LinkCacheKey derives the cache key for the bare download-link shape.
func (r ResolutionRequest) LinkCacheKey() string {
	return r.VideoID + "&" + string(r.Format)
}

// MetadataCacheKey derives the cache key for the structured metadata shape.
// The key space is disjoint from LinkCacheKey: this scheme always carries
// the source prefix and uses '$' as separator.
func (r ResolutionRequest) MetadataCacheKey() string {
	return string(r.Source) + "$" + r.VideoID + "$" + string(r.Format)
}

// StreamInfo is the metadata record produced by a resolver for one stream.
// Read-only after creation.
type StreamInfo struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Resolution string  `json:"resolution"`
	Duration   int     `json:"duration"`
	FileSizeMB float64 `json:"file_size_mb"`
}

// Resolver is the boundary around one external platform's extraction
// mechanism. Implementations block on network work; callers isolate them
// behind the executor.
type Resolver interface {
	// Resolve returns stream metadata for a video id, or a typed error.
	Resolve(ctx context.Context, videoID string, format Format) (*StreamInfo, error)
}

// Cache is the shared key-value store holding resolution results.
type Cache interface {
	// Get returns the stored value, or nil when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key with an expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
