package notify

import (
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

// TaskNotificationDeliver is consumed by the notification worker fleet;
// delivery internals (push, email) live outside this service.
const TaskNotificationDeliver = "notification:deliver"

// payload is the task body handed to the queue.
type payload struct {
	UserID string      `json:"userId"`
	Kind   string      `json:"kind"`
	Data   interface{} `json:"data,omitempty"`
	SentAt time.Time   `json:"sentAt"`
}

// QueueBridge enqueues notification tasks onto the Redis-backed queue.
// It satisfies chat.NotificationBridge: enqueue failures are returned so
// the caller can log them, but the caller never propagates them further.
type QueueBridge struct {
	client *asynq.Client
}

// NewQueueBridge connects to the queue described by redisURL
// (e.g. redis://localhost:6379/0).
func NewQueueBridge(redisURL string) (*QueueBridge, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, err
	}
	return &QueueBridge{client: asynq.NewClient(opt)}, nil
}

// Notify enqueues one delivery task. Fire-and-forget from the send path's
// point of view; retries are the worker's concern.
func (b *QueueBridge) Notify(userID, kind string, data interface{}) error {
	body, err := json.Marshal(payload{
		UserID: userID,
		Kind:   kind,
		Data:   data,
		SentAt: time.Now(),
	})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskNotificationDeliver, body)
	_, err = b.client.Enqueue(task, asynq.Queue("notifications"), asynq.MaxRetry(3))
	return err
}

// Close releases the queue connection.
func (b *QueueBridge) Close() error {
	return b.client.Close()
}

// LogBridge is the fallback when no queue is configured: it records the
// notification and drops it.
type LogBridge struct{}

// Notify implements chat.NotificationBridge.
func (LogBridge) Notify(userID, kind string, data interface{}) error {
	log.Printf("notify (no queue configured): user=%s kind=%s", userID, kind)
	return nil
}
