package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EmailMessage is the wire schema of a queued notification.
// Attempts is incremented by the consumer each time delivery fails.
type EmailMessage struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Attempts  int    `json:"attempts"`
}

// DecodeEmailMessage parses a queue payload. A payload that is not valid
// JSON or is missing the recipient is malformed and must not be retried.
func DecodeEmailMessage(payload []byte) (*EmailMessage, error) {
	var msg EmailMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, ErrMalformedMessage
	}
	if msg.Recipient == "" {
		return nil, ErrMalformedMessage
	}
	return &msg, nil
}

// Encode serializes the message for the broker.
func (m *EmailMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Delivery is one claimed message. The broker owns its state: the consumer
// finishes a claim through exactly one of Ack, Retry or DeadLetter.
type Delivery struct {
	Payload []byte
	// Token identifies the claimed copy inside the broker.
	Token string
}

// Broker is the durable queue between publisher and consumer.
type Broker interface {
	// Publish appends a message to the main queue. It returns only after
	// the broker accepted the message.
	Publish(ctx context.Context, payload []byte) error

	// Consume claims the next message for this consumer, or returns nil
	// when the queue is empty. A consumer holds at most one unacknowledged
	// claim at a time.
	Consume(ctx context.Context) (*Delivery, error)

	// Ack discards a claimed message; terminal success.
	Ack(ctx context.Context, d *Delivery) error

	// Retry re-publishes payload onto the delayed retry path and discards
	// the claimed copy.
	Retry(ctx context.Context, d *Delivery, payload []byte, delay time.Duration) error

	// DeadLetter routes payload to the dead-letter queue and discards the
	// claimed copy.
	DeadLetter(ctx context.Context, d *Delivery, payload []byte) error

	// MoveDue promotes retry messages whose delay elapsed back onto the
	// main queue and returns how many were moved.
	MoveDue(ctx context.Context) (int, error)

	// Heartbeat announces this consumer as alive to the broker.
	Heartbeat(ctx context.Context) error

	// ReclaimStale returns claims held by dead consumers to the main
	// queue and reports how many messages were recovered.
	ReclaimStale(ctx context.Context) (int, error)

	// QueueDepths reports the sizes of the main, retry and dead-letter queues.
	QueueDepths(ctx context.Context) (main, retry, dead int64, err error)
}

// MailSender delivers a single email.
type MailSender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// DeliveryStatus is the terminal (or intermediate) outcome of a processing
// attempt, recorded in the delivery log.
type DeliveryStatus string

const (
	DeliveryDelivered    DeliveryStatus = "delivered"
	DeliveryRetried      DeliveryStatus = "retried"
	DeliveryDeadLettered DeliveryStatus = "dead_lettered"
)

// DeliveryRecord is an audit entry for one consumer processing attempt.
type DeliveryRecord struct {
	ID         int64          `json:"id"`
	Recipient  string         `json:"recipient"`
	Subject    string         `json:"subject"`
	Status     DeliveryStatus `json:"status"`
	Attempts   int            `json:"attempts"`
	LastError  *string        `json:"last_error,omitempty"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// DeliveryLog persists delivery outcomes for inspection.
type DeliveryLog interface {
	Record(ctx context.Context, rec *DeliveryRecord) error
	ListRecent(ctx context.Context, limit int) ([]*DeliveryRecord, error)
}
