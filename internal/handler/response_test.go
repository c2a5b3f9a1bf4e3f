package handler

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clipfetch/clipfetch/internal/domain"
)

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid video id", domain.ErrInvalidVideoID, 400, "INVALID_VIDEO_ID"},
		{"unsupported format", domain.ErrUnsupportedFormat, 400, "UNSUPPORTED_FORMAT"},
		{"unsupported source", domain.ErrUnsupportedSource, 400, "UNSUPPORTED_SOURCE"},
		{"video not found", domain.ErrVideoNotFound, 404, "VIDEO_NOT_FOUND"},
		{"executor busy", domain.ErrExecutorBusy, 503, "RESOLUTION_BUSY"},
		{"broker unavailable", domain.ErrBrokerUnavailable, 503, "NOTIFICATION_UNAVAILABLE"},
		{"not found", domain.ErrNotFound, 404, "NOT_FOUND"},
		{"retryable resolution failure", domain.NewResolutionError(domain.SourceYouTube, "upstream timed out", true), 502, "RESOLUTION_FAILED"},
		{"permanent resolution failure", domain.NewResolutionError(domain.SourceYouTube, "video is private", false), 400, "RESOLUTION_FAILED"},
		{"validation error", domain.NewValidationError("video_id", "required"), 400, "VALIDATION_ERROR"},
		{"unknown error", errors.New("boom"), 500, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeResponse(t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestHandleError_WrappedSentinel(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleError(rec, errors.Join(errors.New("ping failed"), domain.ErrBrokerUnavailable))

	assert.Equal(t, 503, rec.Code)
}

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, 200, map[string]string{"detail": "ok"})

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
}
