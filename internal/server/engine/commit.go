package engine

import (
	"context"
	"time"

	"shipyard/internal/server/dao"
	"shipyard/internal/server/events"
	"shipyard/internal/server/model"
	"shipyard/pkg/queue"

	"go.uber.org/zap"
)

// committer is the single write path for pipelines. Every transition runs
// under the pipeline's lock and is published after the store commits it.
type committer struct {
	pipelines dao.PipelineDao
	locks     *keyedMutex
	publisher events.Publisher
	logger    *zap.Logger
}

func (c *committer) commit(ctx context.Context, id string, mutate func(p *model.Pipeline) error) (*model.Pipeline, error) {
	unlock := c.locks.Lock(id)
	defer unlock()

	var before *model.Pipeline
	after, err := c.pipelines.Update(ctx, id, func(p *model.Pipeline) error {
		before = p.Clone()
		return mutate(p)
	})
	if err != nil {
		return nil, err
	}
	c.publish(ctx, before, after)
	return after, nil
}

func (c *committer) publish(ctx context.Context, before, after *model.Pipeline) {
	if c.publisher == nil {
		return
	}
	update := statusUpdate(after, before.Status)
	for i := range after.Stages {
		if i < len(before.Stages) && before.Stages[i].Status != after.Stages[i].Status {
			update.Stage = after.Stages[i].Name
			update.StageStatus = string(after.Stages[i].Status)
			break
		}
	}
	if err := c.publisher.Publish(ctx, update); err != nil {
		c.logger.Warn("publish pipeline update failed",
			zap.String("pipeline_id", after.ID), zap.String("status", string(after.Status)), zap.Error(err))
	}
}

func statusUpdate(p *model.Pipeline, previous model.PipelineStatus) queue.StatusUpdate {
	occurred := p.UpdatedAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	return queue.StatusUpdate{
		PipelineID:      p.ID,
		ApplicationID:   p.ApplicationID,
		ApplicationName: p.ApplicationName,
		Environment:     string(p.Environment),
		Status:          string(p.Status),
		PreviousStatus:  string(previous),
		TriggeredBy:     p.TriggeredBy,
		OccurredAt:      occurred,
	}
}
