package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TaskEvent is one entry HIVEMIND's EventBus carries, mirroring the WS
// streaming surface's server→client message shapes (§6): "task_update",
// "task_result", or "error".
type TaskEvent struct {
	Type      string         `json:"type"`
	TaskID    string         `json:"task_id"`
	State     string         `json:"state,omitempty"`
	Progress  float64        `json:"progress,omitempty"`
	Message   string         `json:"message,omitempty"`
	Response  string         `json:"response,omitempty"`
	Error     string         `json:"error,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

const streamPrefix = "hivemind:task:"

// EventBus fans task lifecycle events out to per-task Redis Streams, so
// any number of WS gateway instances can subscribe to the same task
// without coordinating directly with the Coordinator.
type EventBus struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewEventBus parses redisURL and pings the resulting client.
func NewEventBus(redisURL string, logger *zap.Logger) (*EventBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &EventBus{rdb: rdb, logger: logger}, nil
}

func (b *EventBus) Close() error {
	return b.rdb.Close()
}

// Publish appends ev to its task's stream.
func (b *EventBus) Publish(ctx context.Context, ev TaskEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal task event: %w", err)
	}

	stream := streamPrefix + ev.TaskID
	_, err = b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"data": string(data)},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", stream, err)
	}

	b.logger.Debug("published task event",
		zap.String("task_id", ev.TaskID),
		zap.String("type", ev.Type))
	return nil
}

// Subscribe streams every event published for taskID from the moment of
// the call onward. The channel closes when ctx is cancelled.
func (b *EventBus) Subscribe(ctx context.Context, taskID string) <-chan TaskEvent {
	ch := make(chan TaskEvent, 16)
	stream := streamPrefix + taskID

	// Resolve the starting position now, not in the goroutine, so events
	// published right after Subscribe returns are not skipped.
	lastID := "$"
	if msgs, err := b.rdb.XRevRangeN(ctx, stream, "+", "-", 1).Result(); err == nil {
		lastID = "0-0"
		if len(msgs) > 0 {
			lastID = msgs[0].ID
		}
	}

	go func() {
		defer close(ch)

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			results, err := b.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{stream, lastID},
				Count:   10,
				Block:   2 * time.Second,
			}).Result()
			if err != nil {
				if err == context.Canceled || err == context.DeadlineExceeded {
					return
				}
				continue
			}

			for _, r := range results {
				for _, msg := range r.Messages {
					lastID = msg.ID
					data, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}
					var ev TaskEvent
					if json.Unmarshal([]byte(data), &ev) == nil {
						ch <- ev
					}
				}
			}
		}
	}()

	return ch
}
