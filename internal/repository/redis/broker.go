package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/clipfetch/clipfetch/internal/domain"
)

const (
	mainQueueKey   = "email_queue"
	retryQueueKey  = "email_queue:retry"
	deadLetterKey  = "email_queue:dead"
	processingBase = "email_queue:processing:"
	consumerSetKey = "email_queue:consumers"
	heartbeatBase  = "email_queue:heartbeat:"

	// A consumer whose heartbeat key expired is considered dead and its
	// processing list becomes eligible for reclaim.
	heartbeatTTL = 15 * time.Second
)

// Broker implements domain.Broker as a Redis reliable queue.
//
// Published messages live on the main list. A consumer claims a message by
// atomically moving it onto its own processing list; the message stays
// there until the consumer finishes the claim through Ack, Retry or
// DeadLetter. Consumers announce themselves with a TTL heartbeat key, and
// ReclaimStale returns the claims of dead consumers to the main queue, so
// a crashed worker redelivers rather than strands its claim.
// The retry path is a sorted set scored by ready-time, drained back onto
// the main list by MoveDue.
type Broker struct {
	client     *Client
	consumerID string
}

// NewBroker creates a new Broker. Each consumer process gets its own
// processing list keyed by a fresh consumer id.
func NewBroker(client *Client) *Broker {
	return &Broker{
		client:     client,
		consumerID: uuid.New().String(),
	}
}

func (b *Broker) processingKey() string {
	return processingBase + b.consumerID
}

// retryEntry wraps a retried payload under a fresh id so identical
// payloads stay distinct members of the retry set.
type retryEntry struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

func encodeRetryEntry(payload []byte) ([]byte, error) {
	return json.Marshal(retryEntry{ID: uuid.NewString(), Payload: payload})
}

func decodeRetryEntry(member []byte) []byte {
	var e retryEntry
	if err := json.Unmarshal(member, &e); err == nil && len(e.Payload) > 0 {
		return []byte(e.Payload)
	}
	return member
}

// Publish appends a message to the main queue.
func (b *Broker) Publish(ctx context.Context, payload []byte) error {
	if err := b.client.client.LPush(ctx, mainQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBrokerUnavailable, err)
	}
	return nil
}

// Consume claims the oldest message from the main queue, or returns nil
// when the queue is empty.
func (b *Broker) Consume(ctx context.Context) (*domain.Delivery, error) {
	payload, err := b.client.client.LMove(ctx, mainQueueKey, b.processingKey(), "RIGHT", "LEFT").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrBrokerUnavailable, err)
	}

	return &domain.Delivery{
		Payload: payload,
		Token:   b.processingKey(),
	}, nil
}

// Ack discards the claimed copy.
func (b *Broker) Ack(ctx context.Context, d *domain.Delivery) error {
	if err := b.client.client.LRem(ctx, d.Token, 1, d.Payload).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBrokerUnavailable, err)
	}
	return nil
}

// Retry schedules payload for redelivery after delay and discards the
// claimed copy. The claimed copy is removed only after the retry entry is
// stored, so a crash in between redelivers rather than drops.
func (b *Broker) Retry(ctx context.Context, d *domain.Delivery, payload []byte, delay time.Duration) error {
	member, err := encodeRetryEntry(payload)
	if err != nil {
		return fmt.Errorf("failed to encode retry entry: %w", err)
	}

	readyAt := time.Now().Add(delay)
	if err := b.client.client.ZAdd(ctx, retryQueueKey, redis.Z{
		Score:  float64(readyAt.UnixMilli()),
		Member: member,
	}).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBrokerUnavailable, err)
	}

	return b.Ack(ctx, d)
}

// DeadLetter routes payload to the dead-letter queue and discards the
// claimed copy. Dead-lettered messages are kept for manual inspection;
// nothing reprocesses them.
func (b *Broker) DeadLetter(ctx context.Context, d *domain.Delivery, payload []byte) error {
	if err := b.client.client.RPush(ctx, deadLetterKey, payload).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBrokerUnavailable, err)
	}

	return b.Ack(ctx, d)
}

// MoveDue promotes retry messages whose delay elapsed back onto the main
// queue and returns how many were moved.
func (b *Broker) MoveDue(ctx context.Context) (int, error) {
	now := fmt.Sprintf("%d", time.Now().UnixMilli())

	due, err := b.client.client.ZRangeByScore(ctx, retryQueueKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrBrokerUnavailable, err)
	}

	moved := 0
	for _, member := range due {
		// Remove first so two movers never promote the same entry twice.
		removed, err := b.client.client.ZRem(ctx, retryQueueKey, member).Result()
		if err != nil {
			return moved, fmt.Errorf("%w: %v", domain.ErrBrokerUnavailable, err)
		}
		if removed == 0 {
			continue
		}
		if err := b.client.client.LPush(ctx, mainQueueKey, decodeRetryEntry([]byte(member))).Err(); err != nil {
			return moved, fmt.Errorf("%w: %v", domain.ErrBrokerUnavailable, err)
		}
		moved++
	}

	return moved, nil
}

// Heartbeat announces this consumer as alive. Claims of a consumer whose
// heartbeat lapses are returned to the main queue by ReclaimStale.
func (b *Broker) Heartbeat(ctx context.Context) error {
	pipe := b.client.client.Pipeline()
	pipe.SAdd(ctx, consumerSetKey, b.consumerID)
	pipe.Set(ctx, heartbeatBase+b.consumerID, "1", heartbeatTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBrokerUnavailable, err)
	}
	return nil
}

// ReclaimStale moves claims held by dead consumers back onto the main
// queue and returns how many messages were recovered. A consumer is dead
// once its heartbeat key expired.
func (b *Broker) ReclaimStale(ctx context.Context) (int, error) {
	ids, err := b.client.client.SMembers(ctx, consumerSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrBrokerUnavailable, err)
	}

	reclaimed := 0
	for _, id := range ids {
		if id == b.consumerID {
			continue
		}

		alive, err := b.client.client.Exists(ctx, heartbeatBase+id).Result()
		if err != nil {
			return reclaimed, fmt.Errorf("%w: %v", domain.ErrBrokerUnavailable, err)
		}
		if alive > 0 {
			continue
		}

		for {
			if err := b.client.client.LMove(ctx, processingBase+id, mainQueueKey, "RIGHT", "LEFT").Err(); err != nil {
				if errors.Is(err, redis.Nil) {
					break
				}
				return reclaimed, fmt.Errorf("%w: %v", domain.ErrBrokerUnavailable, err)
			}
			reclaimed++
		}

		if err := b.client.client.SRem(ctx, consumerSetKey, id).Err(); err != nil {
			return reclaimed, fmt.Errorf("%w: %v", domain.ErrBrokerUnavailable, err)
		}
	}

	return reclaimed, nil
}

// QueueDepths reports the sizes of the main, retry and dead-letter queues.
func (b *Broker) QueueDepths(ctx context.Context) (int64, int64, int64, error) {
	pipe := b.client.client.Pipeline()
	mainCmd := pipe.LLen(ctx, mainQueueKey)
	retryCmd := pipe.ZCard(ctx, retryQueueKey)
	deadCmd := pipe.LLen(ctx, deadLetterKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %v", domain.ErrBrokerUnavailable, err)
	}

	return mainCmd.Val(), retryCmd.Val(), deadCmd.Val(), nil
}
