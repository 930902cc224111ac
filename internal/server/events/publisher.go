package events

import (
	"context"
	"errors"

	"shipyard/pkg/queue"

	"go.uber.org/zap"
)

// Publisher receives committed pipeline transitions. Implementations must not
// block for long: the orchestrator publishes while holding the pipeline lock.
type Publisher interface {
	Publish(ctx context.Context, update queue.StatusUpdate) error
}

// Bus fans one update out to every registered publisher.
type Bus struct {
	publishers []Publisher
}

func NewBus(publishers ...Publisher) *Bus {
	return &Bus{publishers: publishers}
}

func (b *Bus) Add(p Publisher) {
	b.publishers = append(b.publishers, p)
}

func (b *Bus) Publish(ctx context.Context, update queue.StatusUpdate) error {
	var errs []error
	for _, p := range b.publishers {
		if err := p.Publish(ctx, update); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogPublisher writes every transition to the structured log.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (l *LogPublisher) Publish(_ context.Context, u queue.StatusUpdate) error {
	fields := []zap.Field{
		zap.String("pipeline_id", u.PipelineID),
		zap.String("application", u.ApplicationName),
		zap.String("environment", u.Environment),
		zap.String("status", u.Status),
	}
	if u.Stage != "" {
		fields = append(fields, zap.String("stage", u.Stage), zap.String("stage_status", u.StageStatus))
	}
	if u.StatusChanged() {
		fields = append(fields, zap.String("previous_status", u.PreviousStatus))
	}
	l.logger.Info("pipeline updated", fields...)
	return nil
}

// PublisherFunc adapts a plain function to Publisher.
type PublisherFunc func(ctx context.Context, update queue.StatusUpdate) error

func (f PublisherFunc) Publish(ctx context.Context, update queue.StatusUpdate) error {
	return f(ctx, update)
}
