package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/clipfetch/clipfetch/internal/domain"
	"github.com/clipfetch/clipfetch/internal/service"
)

const defaultDeliveryListLimit = 50

// VideoDataFetcher fetches the raw platform record for a video id.
type VideoDataFetcher interface {
	VideoData(ctx context.Context, videoID string) (map[string]any, error)
}

// DownloadHandler handles resolution HTTP requests
type DownloadHandler struct {
	resolution  *service.ResolutionService
	notify      *service.NotifyService
	videoData   VideoDataFetcher
	deliveryLog domain.DeliveryLog
	validate    *validator.Validate
}

// NewDownloadHandler creates a new DownloadHandler
func NewDownloadHandler(
	resolution *service.ResolutionService,
	notify *service.NotifyService,
	videoData VideoDataFetcher,
	deliveryLog domain.DeliveryLog,
) *DownloadHandler {
	return &DownloadHandler{
		resolution:  resolution,
		notify:      notify,
		videoData:   videoData,
		deliveryLog: deliveryLog,
		validate:    validator.New(),
	}
}

// RegisterRoutes registers download routes
func (h *DownloadHandler) RegisterRoutes(r chi.Router) {
	r.Get("/download-link", h.DownloadLink)
	r.Get("/metadata", h.Metadata)
	r.Get("/video-data/{videoID}", h.VideoData)
	r.Get("/deliveries", h.Deliveries)
}

// downloadLinkQuery is the query contract of the download-link endpoint
type downloadLinkQuery struct {
	Source  string `validate:"required,oneof=youtube instagram"`
	VideoID string `validate:"required"`
	Format  string `validate:"required,oneof=mp4 webm mkv"`
	Email   string `validate:"required,email"`
}

// DownloadLink resolves a video and emails the requester the link
// @Summary Request a download link
// @Description Resolve a video to its download link and send it by email
// @Tags resolution
// @Produce json
// @Param source query string true "Video source" Enums(youtube, instagram)
// @Param video_id query string true "Video id"
// @Param fmt query string true "Container format" Enums(mp4, webm, mkv)
// @Param email query string true "Recipient email"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 503 {object} Response
// @Router /api/v1/download-link [get]
func (h *DownloadHandler) DownloadLink(w http.ResponseWriter, r *http.Request) {
	q := downloadLinkQuery{
		Source:  r.URL.Query().Get("source"),
		VideoID: r.URL.Query().Get("video_id"),
		Format:  r.URL.Query().Get("fmt"),
		Email:   r.URL.Query().Get("email"),
	}
	if err := h.validate.Struct(q); err != nil {
		JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	req := domain.ResolutionRequest{
		Source:  domain.Source(q.Source),
		VideoID: q.VideoID,
		Format:  domain.Format(q.Format),
	}

	url, err := h.resolution.ResolveLink(r.Context(), req)
	if err != nil {
		HandleError(w, err)
		return
	}

	// The email is the product of this endpoint: a publish failure is a
	// hard failure even though resolution itself succeeded.
	if err := h.notify.PublishDownloadLink(r.Context(), q.Email, url); err != nil {
		HandleError(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]string{
		"detail": "Link for download video was sent by email.",
	})
}

// metadataQuery is the query contract of the metadata endpoint
type metadataQuery struct {
	Source  string `validate:"required,oneof=youtube instagram"`
	VideoID string `validate:"required"`
	Format  string `validate:"required,oneof=mp4 webm mkv"`
}

// Metadata resolves a video to its stream metadata record
// @Summary Resolve stream metadata
// @Description Resolve a video to duration, size, title, url and resolution
// @Tags resolution
// @Produce json
// @Param source query string true "Video source" Enums(youtube, instagram)
// @Param video_id query string true "Video id"
// @Param fmt query string true "Container format" Enums(mp4, webm, mkv)
// @Success 200 {object} Response{data=domain.StreamInfo}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /api/v1/metadata [get]
func (h *DownloadHandler) Metadata(w http.ResponseWriter, r *http.Request) {
	q := metadataQuery{
		Source:  r.URL.Query().Get("source"),
		VideoID: r.URL.Query().Get("video_id"),
		Format:  r.URL.Query().Get("fmt"),
	}
	if err := h.validate.Struct(q); err != nil {
		JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	info, err := h.resolution.ResolveMetadata(r.Context(), domain.ResolutionRequest{
		Source:  domain.Source(q.Source),
		VideoID: q.VideoID,
		Format:  domain.Format(q.Format),
	})
	if err != nil {
		HandleError(w, err)
		return
	}

	JSON(w, http.StatusOK, info)
}

// VideoData returns the raw platform record for a YouTube video
// @Summary Raw video data
// @Description Fetch the raw snippet record from the platform API
// @Tags resolution
// @Produce json
// @Param videoID path string true "Video id"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /api/v1/video-data/{videoID} [get]
func (h *DownloadHandler) VideoData(w http.ResponseWriter, r *http.Request) {
	req := domain.ResolutionRequest{
		Source:  domain.SourceYouTube,
		VideoID: chi.URLParam(r, "videoID"),
		Format:  domain.FormatMP4,
	}
	if err := req.Validate(); err != nil {
		HandleError(w, err)
		return
	}

	data, err := h.videoData.VideoData(r.Context(), req.VideoID)
	if err != nil {
		HandleError(w, err)
		return
	}

	JSON(w, http.StatusOK, data)
}

// Deliveries lists recent delivery outcomes
// @Summary Recent deliveries
// @Description List recent notification delivery outcomes
// @Tags deliveries
// @Produce json
// @Param limit query int false "Max records" default(50)
// @Success 200 {object} Response{data=[]domain.DeliveryRecord}
// @Failure 500 {object} Response
// @Router /api/v1/deliveries [get]
func (h *DownloadHandler) Deliveries(w http.ResponseWriter, r *http.Request) {
	limit := defaultDeliveryListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	records, err := h.deliveryLog.ListRecent(r.Context(), limit)
	if err != nil {
		HandleError(w, err)
		return
	}

	JSON(w, http.StatusOK, records)
}
