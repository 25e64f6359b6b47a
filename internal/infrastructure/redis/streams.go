package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cassiomorais/paycore/internal/domain/outbox"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// EventStream carries published transaction lifecycle events.
	EventStream = "payments:events"
	// ReconcileStream carries transaction ids awaiting charge reconciliation.
	ReconcileStream = "payments:reconcile"
)

// EventProducer publishes outbox envelopes to the event stream.
type EventProducer struct {
	client *redis.Client
	stream string
}

func NewEventProducer(client *redis.Client, stream string) *EventProducer {
	if stream == "" {
		stream = EventStream
	}
	return &EventProducer{client: client, stream: stream}
}

// Publish appends the envelope to the stream. XADD preserves append order,
// so entries published in correlation order are consumed in that order.
func (p *EventProducer) Publish(ctx context.Context, env outbox.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"event_id":       env.EventID,
			"kind":           env.Kind,
			"correlation_id": env.CorrelationID,
			"envelope":       string(payload),
			"timestamp":      time.Now().Unix(),
		},
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// ReconcileProducer enqueues transactions for the reconcile worker.
type ReconcileProducer struct {
	client *redis.Client
}

func NewReconcileProducer(client *redis.Client) *ReconcileProducer {
	return &ReconcileProducer{client: client}
}

// Enqueue implements the reconcile queue used by the payment use cases.
func (p *ReconcileProducer) Enqueue(ctx context.Context, transactionID uuid.UUID, attempt int) error {
	args := &redis.XAddArgs{
		Stream: ReconcileStream,
		Values: map[string]any{
			"transaction_id": transactionID.String(),
			"attempt":        attempt,
			"timestamp":      time.Now().Unix(),
		},
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to enqueue reconcile: %w", err)
	}
	return nil
}

type StreamConsumer struct {
	client        *redis.Client
	stream        string
	group         string
	consumer      string
	batchSize     int64
	blockDuration time.Duration
}

func NewStreamConsumer(
	client *redis.Client,
	stream string,
	group string,
	consumer string,
	batchSize int64,
	blockDuration time.Duration,
) *StreamConsumer {
	return &StreamConsumer{
		client:        client,
		stream:        stream,
		group:         group,
		consumer:      consumer,
		batchSize:     batchSize,
		blockDuration: blockDuration,
	}
}

func (c *StreamConsumer) CreateGroup(ctx context.Context) error {
	// Create stream if it doesn't exist
	const busyGroupMsg = "BUSYGROUP"
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), busyGroupMsg) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

func (c *StreamConsumer) Read(ctx context.Context) ([]redis.XStream, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    c.batchSize,
		Block:    c.blockDuration,
	}).Result()

	if err != nil {
		if err == redis.Nil {
			// No new messages
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	return streams, nil
}

func (c *StreamConsumer) Ack(ctx context.Context, messageID string) error {
	err := c.client.XAck(ctx, c.stream, c.group, messageID).Err()
	if err != nil {
		return fmt.Errorf("failed to ack message: %w", err)
	}
	return nil
}

func (c *StreamConsumer) Claim(ctx context.Context, minIdleTime time.Duration, messageIDs []string) ([]redis.XMessage, error) {
	messages, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  minIdleTime,
		Messages: messageIDs,
	}).Result()

	if err != nil {
		return nil, fmt.Errorf("failed to claim messages: %w", err)
	}

	return messages, nil
}
