package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CompletionStream is the default stream completed checkouts are announced on.
const CompletionStream = "checkout:completed"

// CompletionPublisher appends completion events to a Redis stream so that
// order fulfilment can react to them.
type CompletionPublisher struct {
	client redis.Cmdable
	stream string
	now    func() time.Time
}

func NewCompletionPublisher(client redis.Cmdable, stream string) *CompletionPublisher {
	if stream == "" {
		stream = CompletionStream
	}
	return &CompletionPublisher{client: client, stream: stream, now: time.Now}
}

func (p *CompletionPublisher) PublishCompletion(ctx context.Context, transactionID string, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal completion data: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"transaction_id": transactionID,
			"payload":        string(payload),
			"timestamp":      p.now().Unix(),
		},
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish completion event: %w", err)
	}

	return nil
}
