package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"shipyard/internal/common"
	"shipyard/internal/server/dao"
	"shipyard/internal/server/model"

	"go.uber.org/zap"
)

// errHalt stops a sequence without touching the pipeline.
var errHalt = errors.New("sequence halted")

// Sequencer advances the stages of one pipeline strictly in order. The lock
// is held per transition only, never while a stage runs.
type Sequencer struct {
	committer    *committer
	apps         dao.ApplicationDao
	policy       *model.StagePolicy
	gate         *ApprovalGate
	runner       StageRunner
	stageTimeout time.Duration
	now          func() time.Time
	logger       *zap.Logger
}

type stageStep struct {
	index       int
	name        string
	environment model.Environment
	startedAt   time.Time
}

// Run drives pipelineID until it finishes, fails, or parks at a gate. When ctx
// is cancelled mid stage the stage stays running for RecoverInFlight.
func (s *Sequencer) Run(ctx context.Context, pipelineID string) error {
	var app *model.Application
	loaded := false

	for {
		step, err := s.enter(ctx, pipelineID)
		if err != nil {
			if errors.Is(err, errHalt) {
				return nil
			}
			return err
		}
		if step == nil {
			return nil
		}

		if !loaded {
			app = s.application(ctx, pipelineID)
			loaded = true
		}

		result, runErr := s.execute(ctx, step, pipelineID, app)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		failed, err := s.complete(ctx, pipelineID, step, result, runErr)
		if err != nil {
			return err
		}
		if failed {
			return nil
		}
	}
}

// enter picks the next stage and marks it running. It returns a nil step
// when the pipeline finished or is now waiting for approval.
func (s *Sequencer) enter(ctx context.Context, pipelineID string) (*stageStep, error) {
	var step *stageStep
	_, err := s.committer.commit(ctx, pipelineID, func(p *model.Pipeline) error {
		step = nil
		if p.Status != model.PipelineRunning || p.RunningStage() >= 0 {
			return errHalt
		}
		now := s.now()

		idx := p.NextStage()
		if idx < 0 {
			if err := p.TransitionTo(model.PipelineSuccess); err != nil {
				return err
			}
			p.Finish(now)
			return nil
		}

		stage := &p.Stages[idx]
		if s.policy.RequiresApproval(p.Environment, stage.Name) && !p.Approved(stage.Name) {
			return s.gate.requestDecision(p, idx)
		}

		stage.Status = model.StageRunning
		stage.StartedAt = &now
		stage.Logs = append(stage.Logs, fmt.Sprintf("stage %s started", stage.Name))
		step = &stageStep{index: idx, name: stage.Name, environment: p.Environment, startedAt: now}
		return nil
	})
	return step, err
}

func (s *Sequencer) execute(ctx context.Context, step *stageStep, pipelineID string, app *model.Application) (StageResult, error) {
	runCtx := ctx
	if s.stageTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.stageTimeout)
		defer cancel()
	}
	return s.runner.Run(runCtx, StageRequest{
		PipelineID:  pipelineID,
		Environment: step.environment,
		Stage:       step.name,
		Index:       step.index,
		Application: app,
	})
}

// complete records the outcome of step; the first failure fails the pipeline.
func (s *Sequencer) complete(ctx context.Context, pipelineID string, step *stageStep, result StageResult, runErr error) (bool, error) {
	success := runErr == nil && result.Success
	_, err := s.committer.commit(ctx, pipelineID, func(p *model.Pipeline) error {
		stage := &p.Stages[step.index]
		if stage.Name != step.name || stage.Status != model.StageRunning {
			return common.NewErrNof(common.STATE_CONFLICT, "stage %s is %s", stage.Name, stage.Status)
		}
		now := s.now()

		duration := result.DurationSeconds
		if duration <= 0 {
			duration = int(math.Round(now.Sub(step.startedAt).Seconds()))
		}
		stage.CompletedAt = &now
		stage.DurationSeconds = &duration
		stage.Logs = append(stage.Logs, result.Logs...)

		if success {
			stage.Status = model.StageSuccess
			return nil
		}
		stage.Status = model.StageFailed
		switch {
		case errors.Is(runErr, context.DeadlineExceeded):
			stage.Logs = append(stage.Logs, fmt.Sprintf("stage %s timed out after %s", stage.Name, s.stageTimeout))
		case runErr != nil:
			stage.Logs = append(stage.Logs, fmt.Sprintf("stage %s error: %v", stage.Name, runErr))
		}
		if err := p.TransitionTo(model.PipelineFailed); err != nil {
			return err
		}
		p.Finish(now)
		return nil
	})
	if err != nil {
		return false, err
	}
	if !success {
		s.logger.Info("stage failed, pipeline halted",
			zap.String("pipeline_id", pipelineID), zap.String("stage", step.name), zap.Error(runErr))
	}
	return !success, nil
}

func (s *Sequencer) application(ctx context.Context, pipelineID string) *model.Application {
	p, err := s.committer.pipelines.GetPipelineByID(ctx, pipelineID)
	if err != nil {
		return nil
	}
	app, err := s.apps.GetApplicationByID(ctx, p.ApplicationID)
	if err != nil {
		s.logger.Warn("application lookup failed", zap.String("application_id", p.ApplicationID), zap.Error(err))
		return nil
	}
	return app
}
