package worker

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/clipfetch/clipfetch/internal/config"
	"github.com/clipfetch/clipfetch/internal/domain"
)

// Consumer drains the email queue. Each worker holds at most one
// unacknowledged message at a time and finishes every claim through the
// broker: ack on success, delayed retry while attempts remain, dead-letter
// once they run out. Acknowledgment of the claimed copy happens only after
// the retry or dead-letter publish succeeded, so a crash in between leads
// to redelivery, not loss (at-least-once).
type Consumer struct {
	broker      domain.Broker
	mailer      domain.MailSender
	deliveryLog domain.DeliveryLog
	logger      *slog.Logger
	queueConfig config.QueueConfig
	workerCfg   config.WorkerConfig

	mu         sync.Mutex
	running    bool
	wg         sync.WaitGroup
	cancelFunc context.CancelFunc
}

// NewConsumer creates a new Consumer
func NewConsumer(
	broker domain.Broker,
	mailer domain.MailSender,
	deliveryLog domain.DeliveryLog,
	logger *slog.Logger,
	queueConfig config.QueueConfig,
	workerCfg config.WorkerConfig,
) *Consumer {
	return &Consumer{
		broker:      broker,
		mailer:      mailer,
		deliveryLog: deliveryLog,
		logger:      logger,
		queueConfig: queueConfig,
		workerCfg:   workerCfg,
	}
}

// Start starts the consumer workers and the maintenance loop
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.mu.Unlock()

	ctx, c.cancelFunc = context.WithCancel(ctx)

	for i := 0; i < c.workerCfg.Count; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i)
	}

	c.wg.Add(1)
	go c.maintenance(ctx)

	c.logger.Info("consumer started",
		"workers", c.workerCfg.Count,
		"max_retries", c.queueConfig.MaxRetries,
	)

	return nil
}

// Stop stops the consumer and waits for in-flight work
func (c *Consumer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	if c.cancelFunc != nil {
		c.cancelFunc()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("consumer stopped gracefully")
	case <-time.After(30 * time.Second):
		c.logger.Warn("consumer stop timed out")
	}
}

// worker is the main consume loop. Broker outages are absorbed with a
// capped exponential backoff; the worker never exits on them.
func (c *Consumer) worker(ctx context.Context, workerID int) {
	defer c.wg.Done()

	logger := c.logger.With("worker_id", workerID)
	logger.Info("worker started")

	brokerFailures := 0

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stopped")
			return
		default:
		}

		err := c.processNext(ctx, logger)
		switch {
		case err == nil:
			brokerFailures = 0
		case errors.Is(err, context.Canceled):
			return
		case errors.Is(err, domain.ErrBrokerUnavailable):
			brokerFailures++
			delay := brokerBackoff(brokerFailures)
			logger.Warn("broker unavailable, backing off",
				"failures", brokerFailures,
				"delay", delay,
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		default:
			logger.Error("failed to process message", "error", err)
		}
	}
}

// processNext claims and processes one message
func (c *Consumer) processNext(ctx context.Context, logger *slog.Logger) error {
	d, err := c.broker.Consume(ctx)
	if err != nil {
		return err
	}

	if d == nil {
		// Queue is empty, wait a bit before checking again
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.workerCfg.PollInterval):
			return nil
		}
	}

	msg, err := domain.DecodeEmailMessage(d.Payload)
	if err != nil {
		// Malformed payloads are not worth retrying: straight to the
		// dead-letter queue, attempts untouched, mailer never invoked.
		logger.Error("malformed message, dead-lettering", "error", err)
		if err := c.broker.DeadLetter(ctx, d, d.Payload); err != nil {
			return err
		}
		emailsFailedTotal.WithLabelValues(failReasonMalformed).Inc()
		return nil
	}

	return c.deliver(ctx, d, msg, logger)
}

// deliver attempts one delivery and applies the retry/dead-letter policy
func (c *Consumer) deliver(ctx context.Context, d *domain.Delivery, msg *domain.EmailMessage, logger *slog.Logger) error {
	logger = logger.With("recipient", msg.Recipient)

	sendErr := c.mailer.Send(ctx, msg.Recipient, msg.Subject, msg.Body)
	if sendErr == nil {
		if err := c.broker.Ack(ctx, d); err != nil {
			return err
		}
		c.record(ctx, msg, domain.DeliveryDelivered, nil)
		emailsSentTotal.Inc()
		logger.Info("email sent", "attempts", msg.Attempts)
		return nil
	}

	msg.Attempts++

	if msg.Attempts < c.queueConfig.MaxRetries {
		payload, err := msg.Encode()
		if err != nil {
			return err
		}
		if err := c.broker.Retry(ctx, d, payload, c.queueConfig.RetryDelay); err != nil {
			return err
		}
		c.record(ctx, msg, domain.DeliveryRetried, sendErr)
		emailsFailedTotal.WithLabelValues(failReasonRetried).Inc()
		logger.Warn("delivery failed, scheduled retry",
			"attempts", msg.Attempts,
			"delay", c.queueConfig.RetryDelay,
			"error", sendErr,
		)
		return nil
	}

	payload, err := msg.Encode()
	if err != nil {
		return err
	}
	if err := c.broker.DeadLetter(ctx, d, payload); err != nil {
		return err
	}
	c.record(ctx, msg, domain.DeliveryDeadLettered, sendErr)
	emailsFailedTotal.WithLabelValues(failReasonDeadLettered).Inc()
	logger.Error("delivery failed permanently, dead-lettered",
		"attempts", msg.Attempts,
		"error", sendErr,
	)
	return nil
}

// record writes a delivery outcome to the audit log. Logging failures do
// not affect message disposition.
func (c *Consumer) record(ctx context.Context, msg *domain.EmailMessage, status domain.DeliveryStatus, sendErr error) {
	if c.deliveryLog == nil {
		return
	}

	rec := &domain.DeliveryRecord{
		Recipient:  msg.Recipient,
		Subject:    msg.Subject,
		Status:     status,
		Attempts:   msg.Attempts,
		RecordedAt: time.Now().UTC(),
	}
	if sendErr != nil {
		errMsg := domain.ScrubControlSequences(sendErr.Error())
		rec.LastError = &errMsg
	}

	if err := c.deliveryLog.Record(ctx, rec); err != nil {
		c.logger.Warn("failed to record delivery outcome",
			"recipient", msg.Recipient,
			"error", err,
		)
	}
}

// maintenance heartbeats this consumer, promotes due retry messages back
// onto the main queue and reclaims the claims of dead consumers.
func (c *Consumer) maintenance(ctx context.Context) {
	defer c.wg.Done()

	c.maintain(ctx)

	ticker := time.NewTicker(c.workerCfg.MoveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.maintain(ctx)
		}
	}
}

func (c *Consumer) maintain(ctx context.Context) {
	if err := c.broker.Heartbeat(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Warn("failed to heartbeat", "error", err)
		}
	}

	moved, err := c.broker.MoveDue(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Warn("failed to move due retries", "error", err)
		}
	} else if moved > 0 {
		c.logger.Debug("moved due retries", "count", moved)
	}

	reclaimed, err := c.broker.ReclaimStale(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Warn("failed to reclaim stale claims", "error", err)
		}
	} else if reclaimed > 0 {
		c.logger.Info("reclaimed messages from dead consumers", "count", reclaimed)
	}
}

// brokerBackoff calculates capped exponential backoff for reconnects
func brokerBackoff(failures int) time.Duration {
	multiplier := math.Pow(2, float64(failures-1))
	delay := time.Duration(float64(500*time.Millisecond) * multiplier)

	maxDelay := 30 * time.Second
	if delay > maxDelay {
		delay = maxDelay
	}

	return delay
}
