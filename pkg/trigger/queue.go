// Package trigger carries resolution triggers from the extraction pipeline
// to the linking engine. The upstream job enqueues a message when an
// extraction result reaches ai_done; a Worker dequeues and invokes the
// orchestrator. Retry policy lives here, outside the linking core, which
// never schedules its own retries.
package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Message is one resolution trigger.
type Message struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id,omitempty"`
	ExtractionID int64     `json:"extraction_id"`
	Attempt      int       `json:"attempt"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}

// Source is the consumer-side view of a trigger queue. The Worker depends
// on this interface so tests can run without Redis.
type Source interface {
	// Dequeue blocks up to timeout for the next message. A nil message
	// with nil error means the wait timed out.
	Dequeue(ctx context.Context, timeout time.Duration) (*Message, error)

	// Requeue puts a failed message back for another attempt.
	Requeue(ctx context.Context, msg *Message) error

	// MoveToDLQ parks a message that exhausted its attempts.
	MoveToDLQ(ctx context.Context, msg *Message) error
}

// Queue is a Redis list-backed trigger queue with a dead-letter list.
type Queue struct {
	client *redis.Client
	name   string
}

// NewQueue creates a queue with the given name, e.g. "resolution".
func NewQueue(client *redis.Client, name string) *Queue {
	return &Queue{client: client, name: name}
}

func (q *Queue) key() string    { return "trigger:" + q.name }
func (q *Queue) dlqKey() string { return "trigger:" + q.name + ":dlq" }

// Enqueue pushes a trigger for one extraction result and returns the
// message id.
func (q *Queue) Enqueue(ctx context.Context, tenantID string, extractionID int64) (string, error) {
	msg := &Message{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		ExtractionID: extractionID,
		EnqueuedAt:   time.Now().UTC(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal trigger message: %w", err)
	}

	if err := q.client.LPush(ctx, q.key(), payload).Err(); err != nil {
		return "", fmt.Errorf("failed to enqueue trigger: %w", err)
	}

	return msg.ID, nil
}

// Dequeue blocks up to timeout for the next trigger.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Message, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key()).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue trigger: %w", err)
	}

	// BRPOP returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of length %d", len(res))
	}

	msg := &Message{}
	if err := json.Unmarshal([]byte(res[1]), msg); err != nil {
		return nil, fmt.Errorf("failed to decode trigger message: %w", err)
	}

	return msg, nil
}

// Requeue puts a message back at the tail for another attempt.
func (q *Queue) Requeue(ctx context.Context, msg *Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger message: %w", err)
	}
	if err := q.client.LPush(ctx, q.key(), payload).Err(); err != nil {
		return fmt.Errorf("failed to requeue trigger: %w", err)
	}
	return nil
}

// MoveToDLQ parks a message on the dead-letter list for operator review.
func (q *Queue) MoveToDLQ(ctx context.Context, msg *Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger message: %w", err)
	}
	if err := q.client.LPush(ctx, q.dlqKey(), payload).Err(); err != nil {
		return fmt.Errorf("failed to move trigger to DLQ: %w", err)
	}
	return nil
}

// Depth returns the number of waiting triggers.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue depth: %w", err)
	}
	return n, nil
}

// DLQDepth returns the number of dead-lettered triggers.
func (q *Queue) DLQDepth(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.dlqKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read DLQ depth: %w", err)
	}
	return n, nil
}

var _ Source = (*Queue)(nil)
