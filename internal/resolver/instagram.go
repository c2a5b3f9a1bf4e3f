package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/clipfetch/clipfetch/internal/config"
	"github.com/clipfetch/clipfetch/internal/domain"
)

// InstagramResolver resolves reel shortcodes via the extraction backend.
type InstagramResolver struct {
	client       *http.Client
	extractorURL string
}

// NewInstagramResolver creates a new InstagramResolver
func NewInstagramResolver(cfg config.ExtractorConfig) *InstagramResolver {
	return &InstagramResolver{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		extractorURL: cfg.URL,
	}
}

// Resolve returns the media stream behind a reel shortcode. Instagram
// serves a single rendition, so the format parameter only routes caching.
func (r *InstagramResolver) Resolve(ctx context.Context, videoID string, format domain.Format) (*domain.StreamInfo, error) {
	endpoint := fmt.Sprintf("%s/instagram/%s", r.extractorURL, url.PathEscape(videoID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, domain.NewResolutionError(domain.SourceInstagram, fmt.Sprintf("extractor unreachable: %v", err), true)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrVideoNotFound
	case resp.StatusCode != http.StatusOK:
		var extract extractResponse
		msg := string(body)
		if json.Unmarshal(body, &extract) == nil && extract.Error != "" {
			msg = extract.Error
		}
		return nil, domain.NewResolutionError(domain.SourceInstagram, msg, resp.StatusCode >= 500)
	}

	var extract extractResponse
	if err := json.Unmarshal(body, &extract); err != nil {
		return nil, domain.NewResolutionError(domain.SourceInstagram, "invalid extractor response", false)
	}
	if extract.URL == "" {
		return nil, domain.ErrVideoNotFound
	}

	return &domain.StreamInfo{
		Title:      extract.Title,
		URL:        extract.URL,
		Resolution: extract.Resolution,
		Duration:   extract.Duration,
		FileSizeMB: extract.FileSizeMB,
	}, nil
}
