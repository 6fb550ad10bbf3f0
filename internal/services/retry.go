package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

const TaskNotificationRetry = "notification:retry"

// RetryQueue schedules failed high priority notifications for redelivery
// with exponential backoff.
type RetryQueue struct {
	client      *asynq.Client
	maxAttempts int
	baseDelay   time.Duration
}

func NewRetryQueue(client *asynq.Client, maxAttempts int, baseDelay time.Duration) *RetryQueue {
	return &RetryQueue{client: client, maxAttempts: maxAttempts, baseDelay: baseDelay}
}

// Enqueue schedules the first redelivery attempt. The queue retries up to
// maxAttempts total, doubling the delay each time.
func (q *RetryQueue) Enqueue(ctx context.Context, input NotificationInput) error {
	payload, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("marshal retry payload: %w", err)
	}

	task := asynq.NewTask(TaskNotificationRetry, payload)
	info, err := q.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(q.maxAttempts-1),
		asynq.ProcessIn(q.baseDelay),
	)
	if err != nil {
		return fmt.Errorf("enqueue notification retry: %w", err)
	}

	log.Printf("Enqueued notification retry %s for user %d", info.ID, input.UserID)
	return nil
}

// Redeliverer retries delivery of an already persisted notification.
type Redeliverer interface {
	Redeliver(ctx context.Context, input NotificationInput) error
}

// RetryWorker consumes the retry queue and reattempts delivery.
type RetryWorker struct {
	server      *asynq.Server
	redeliverer Redeliverer
}

// retryDelay doubles the gap between redelivery attempts. The first attempt
// already waited baseDelay through ProcessIn, and asynq hands over the count
// of retries so far, which is zero when the first attempt fails; shifting by
// n+1 continues the doubling from there.
func retryDelay(baseDelay time.Duration, n int) time.Duration {
	return baseDelay << (n + 1)
}

func NewRetryWorker(redisOpt asynq.RedisConnOpt, baseDelay time.Duration, redeliverer Redeliverer) *RetryWorker {
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 5,
		RetryDelayFunc: func(n int, e error, t *asynq.Task) time.Duration {
			return retryDelay(baseDelay, n)
		},
		Logger: asynqLogger{},
	})
	return &RetryWorker{server: server, redeliverer: redeliverer}
}

// Start runs the worker loop in the background.
func (w *RetryWorker) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskNotificationRetry, w.handleRetry)
	return w.server.Start(mux)
}

func (w *RetryWorker) Shutdown() {
	w.server.Shutdown()
}

func (w *RetryWorker) handleRetry(ctx context.Context, task *asynq.Task) error {
	var input NotificationInput
	if err := json.Unmarshal(task.Payload(), &input); err != nil {
		return fmt.Errorf("unmarshal retry payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := w.redeliverer.Redeliver(ctx, input); err != nil {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		if retried >= maxRetry {
			log.Printf("Abandoning notification for user %d after %d attempts: %v", input.UserID, retried+1, err)
		}
		return err
	}

	log.Printf("Notification redelivered to user %d", input.UserID)
	return nil
}

// asynqLogger adapts the standard logger to asynq's interface.
type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) {}
func (asynqLogger) Info(args ...interface{})  { log.Println(args...) }
func (asynqLogger) Warn(args ...interface{})  { log.Println(args...) }
func (asynqLogger) Error(args ...interface{}) { log.Println(args...) }
func (asynqLogger) Fatal(args ...interface{}) { log.Fatalln(args...) }
