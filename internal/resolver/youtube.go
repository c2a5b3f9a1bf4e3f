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

// YouTubeResolver resolves YouTube video ids against the extraction
// backend and exposes the data API for snippet lookups.
type YouTubeResolver struct {
	client       *http.Client
	extractorURL string
	apiURL       string
	apiKey       string
}

// NewYouTubeResolver creates a new YouTubeResolver
func NewYouTubeResolver(ytCfg config.YouTubeConfig, exCfg config.ExtractorConfig) *YouTubeResolver {
	return &YouTubeResolver{
		client: &http.Client{
			Timeout: exCfg.Timeout,
		},
		extractorURL: exCfg.URL,
		apiURL:       ytCfg.APIURL,
		apiKey:       ytCfg.APIKey,
	}
}

// extractResponse is the extraction backend's wire format.
type extractResponse struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Resolution string  `json:"resolution"`
	Duration   int     `json:"duration"`
	FileSizeMB float64 `json:"file_size_mb"`
	Error      string  `json:"error,omitempty"`
}

// Resolve picks the highest-resolution stream in the requested format.
func (r *YouTubeResolver) Resolve(ctx context.Context, videoID string, format domain.Format) (*domain.StreamInfo, error) {
	endpoint := fmt.Sprintf("%s/youtube/%s?fmt=%s", r.extractorURL, url.PathEscape(videoID), format)
	return r.extract(ctx, endpoint)
}

func (r *YouTubeResolver) extract(ctx context.Context, endpoint string) (*domain.StreamInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, domain.NewResolutionError(domain.SourceYouTube, fmt.Sprintf("extractor unreachable: %v", err), true)
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
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, domain.NewResolutionError(domain.SourceYouTube, msg, retryable)
	}

	var extract extractResponse
	if err := json.Unmarshal(body, &extract); err != nil {
		return nil, domain.NewResolutionError(domain.SourceYouTube, "invalid extractor response", false)
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

// VideoData fetches the raw snippet record from the YouTube data API.
// Used by the passthrough endpoint only; resolution goes through Resolve.
func (r *YouTubeResolver) VideoData(ctx context.Context, videoID string) (map[string]any, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("id", videoID)
	params.Set("key", r.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, domain.NewResolutionError(domain.SourceYouTube, "service youtube unavailable", true)
	}
	defer resp.Body.Close()

	var result struct {
		Items []map[string]any `json:"items"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, domain.NewResolutionError(domain.SourceYouTube, "invalid api response", false)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewResolutionError(domain.SourceYouTube, result.Error.Message, resp.StatusCode >= 500)
	}
	if len(result.Items) == 0 {
		return nil, domain.ErrVideoNotFound
	}

	return result.Items[0], nil
}
