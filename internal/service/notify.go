package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clipfetch/clipfetch/internal/domain"
)

const downloadLinkSubject = "Your video download link"

// NotifyService publishes delivery requests to the email queue. The call
// returns once the broker accepted the message; delivery itself happens
// asynchronously in the consumer.
type NotifyService struct {
	broker domain.Broker
	logger *slog.Logger
}

// NewNotifyService creates a new NotifyService
func NewNotifyService(broker domain.Broker, logger *slog.Logger) *NotifyService {
	return &NotifyService{
		broker: broker,
		logger: logger,
	}
}

// PublishDownloadLink queues an email carrying the download link. Freshly
// published messages always start with zero attempts.
func (s *NotifyService) PublishDownloadLink(ctx context.Context, recipient, url string) error {
	msg := &domain.EmailMessage{
		Recipient: recipient,
		Subject:   downloadLinkSubject,
		Body:      fmt.Sprintf("Link for downloading your video: %s", url),
		Attempts:  0,
	}

	payload, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	if err := s.broker.Publish(ctx, payload); err != nil {
		s.logger.Error("failed to publish notification",
			"recipient", recipient,
			"error", err,
		)
		return err
	}

	s.logger.Info("notification queued",
		"recipient", recipient,
	)

	return nil
}
