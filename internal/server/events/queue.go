package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"shipyard/pkg/queue"

	"github.com/hibiken/asynq"
)

const NotificationQueue = "notifications"

// Enqueuer is the part of *asynq.Client the publisher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueuePublisher hands status changes to the notifier worker through redis.
// Stage only updates are not enqueued.
type QueuePublisher struct {
	client Enqueuer
}

func NewQueuePublisher(client Enqueuer) *QueuePublisher {
	return &QueuePublisher{client: client}
}

func (q *QueuePublisher) Publish(ctx context.Context, u queue.StatusUpdate) error {
	if !u.StatusChanged() {
		return nil
	}
	return q.enqueue(ctx, queue.PIPELINE_STATUS_UPDATE, u)
}

func (q *QueuePublisher) Remind(ctx context.Context, r queue.ApprovalReminder) error {
	// 同一条流水线同一时间只排一条提醒
	return q.enqueue(ctx, queue.APPROVAL_REMINDER, r, asynq.TaskID("reminder:"+r.PipelineID))
}

func (q *QueuePublisher) enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	opts = append([]asynq.Option{asynq.Queue(NotificationQueue), asynq.MaxRetry(3)}, opts...)
	if _, err := q.client.EnqueueContext(ctx, asynq.NewTask(taskType, data), opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
