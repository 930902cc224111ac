package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"shipyard/internal/common"
	"shipyard/internal/server/dao"
	"shipyard/internal/server/events"
	"shipyard/internal/server/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errShuttingDown = errors.New("orchestrator is shutting down")

type Options struct {
	Logger       *zap.Logger
	Publisher    events.Publisher
	Runner       StageRunner
	Policy       *model.StagePolicy
	StageTimeout time.Duration    // 0 disables the per stage timeout
	Now          func() time.Time // defaults to time.Now
}

// Orchestrator 对外的流水线操作入口：创建、启动、审批、查询
type Orchestrator struct {
	apps      dao.ApplicationDao
	pipelines dao.PipelineDao
	policy    *model.StagePolicy
	committer *committer
	gate      *ApprovalGate
	sequencer *Sequencer
	now       func() time.Time
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewOrchestrator(apps dao.ApplicationDao, pipelines dao.PipelineDao, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Policy == nil {
		policy := model.DefaultStagePolicy()
		opts.Policy = &policy
	}
	if opts.Runner == nil {
		opts.Runner = NewSimulatedRunner(0, 0, 1)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &committer{
		pipelines: pipelines,
		locks:     newKeyedMutex(),
		publisher: opts.Publisher,
		logger:    opts.Logger,
	}
	gate := &ApprovalGate{now: opts.Now}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		apps:      apps,
		pipelines: pipelines,
		policy:    opts.Policy,
		committer: c,
		gate:      gate,
		sequencer: &Sequencer{
			committer:    c,
			apps:         apps,
			policy:       opts.Policy,
			gate:         gate,
			runner:       opts.Runner,
			stageTimeout: opts.StageTimeout,
			now:          opts.Now,
			logger:       opts.Logger,
		},
		now:    opts.Now,
		logger: opts.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (o *Orchestrator) Policy() *model.StagePolicy {
	return o.policy
}

// CreatePipeline stores a new pending pipeline instantiated from the stage template.
func (o *Orchestrator) CreatePipeline(ctx context.Context, applicationID, environment, triggeredBy string) (*model.Pipeline, error) {
	env, err := model.ParseEnvironment(environment)
	if err != nil {
		return nil, err
	}
	triggeredBy = strings.TrimSpace(triggeredBy)
	if triggeredBy == "" {
		return nil, common.NewErrNof(common.REQUEST_INVALID, "triggered_by is required")
	}

	app, err := o.apps.GetApplicationByID(ctx, applicationID)
	if err != nil {
		if common.IsErrNo(err, common.APPLICATION_NOT_EXISTS) {
			return nil, common.NewErrNof(common.UNKNOWN_APPLICATION, "%s", applicationID)
		}
		return nil, err
	}

	p := &model.Pipeline{
		ID:              uuid.NewString(),
		ApplicationID:   app.ID,
		ApplicationName: app.Name,
		Environment:     env,
		TriggeredBy:     triggeredBy,
		Status:          model.PipelinePending,
		Stages:          o.policy.NewStages(),
		Approvals:       []model.ApprovalDecision{},
		CreatedAt:       o.now(),
	}
	if err := o.pipelines.Create(ctx, p); err != nil {
		// deleted between the lookup and the insert
		if common.IsErrNo(err, common.APPLICATION_NOT_EXISTS) {
			return nil, common.NewErrNof(common.UNKNOWN_APPLICATION, "%s", applicationID)
		}
		return nil, err
	}
	o.logger.Info("pipeline created",
		zap.String("pipeline_id", p.ID), zap.String("application", app.Name), zap.String("environment", string(env)))
	if o.committer.publisher != nil {
		if err := o.committer.publisher.Publish(ctx, statusUpdate(p, "")); err != nil {
			o.logger.Warn("publish pipeline update failed", zap.String("pipeline_id", p.ID), zap.Error(err))
		}
	}
	return p, nil
}

// StartPipeline moves a pending pipeline to running and hands it to the
// sequencer in the background.
func (o *Orchestrator) StartPipeline(ctx context.Context, id string) (*model.Pipeline, error) {
	if err := o.reserve(); err != nil {
		return nil, err
	}
	p, err := o.committer.commit(ctx, id, func(p *model.Pipeline) error {
		if p.Status != model.PipelinePending {
			return common.NewErrNof(common.NOT_PENDING, "status is %s", p.Status)
		}
		return p.TransitionTo(model.PipelineRunning)
	})
	if err != nil {
		o.wg.Done()
		return nil, err
	}
	o.launch(id)
	return p, nil
}

// SubmitApproval records a decision for the gate the pipeline is waiting at.
func (o *Orchestrator) SubmitApproval(ctx context.Context, id string, approved bool, approver, comment string) (*model.Pipeline, error) {
	return o.SubmitStageApproval(ctx, id, "", approved, approver, comment)
}

// SubmitStageApproval is SubmitApproval for a named gate. A stage that already
// carries a decision fails AlreadyDecided even when the pipeline has moved on
// to a later gate.
func (o *Orchestrator) SubmitStageApproval(ctx context.Context, id, stage string, approved bool, approver, comment string) (*model.Pipeline, error) {
	if err := o.reserve(); err != nil {
		return nil, err
	}
	p, err := o.committer.commit(ctx, id, func(p *model.Pipeline) error {
		return o.gate.decide(p, stage, approved, approver, comment)
	})
	if err != nil {
		o.wg.Done()
		return nil, err
	}
	o.logger.Info("approval decision recorded",
		zap.String("pipeline_id", id), zap.String("stage", p.LatestDecision().Stage),
		zap.Bool("approved", approved), zap.String("approver", approver))
	if approved {
		o.launch(id)
	} else {
		o.wg.Done()
	}
	return p, nil
}

func (o *Orchestrator) GetPipeline(ctx context.Context, id string) (*model.Pipeline, error) {
	return o.pipelines.GetPipelineByID(ctx, id)
}

func (o *Orchestrator) ListPipelines(ctx context.Context, filter dao.PipelineFilter) ([]*model.Pipeline, error) {
	return o.pipelines.ListPipelines(ctx, filter)
}

func (o *Orchestrator) PendingApprovals(ctx context.Context) ([]*model.Pipeline, error) {
	return o.pipelines.ListPipelines(ctx, dao.PipelineFilter{Status: model.PipelineWaitingApproval})
}

// RecoverInFlight resumes pipelines left running by a previous process. A stage
// caught mid run fails the pipeline; a pipeline between stages is re-dispatched.
func (o *Orchestrator) RecoverInFlight(ctx context.Context) (int, error) {
	running, err := o.pipelines.ListPipelines(ctx, dao.PipelineFilter{Status: model.PipelineRunning})
	if err != nil {
		return 0, err
	}
	recovered := 0
	for _, p := range running {
		if err := o.reserve(); err != nil {
			return recovered, err
		}
		interrupted := false
		_, err := o.committer.commit(ctx, p.ID, func(p *model.Pipeline) error {
			if p.Status != model.PipelineRunning {
				return errHalt
			}
			idx := p.RunningStage()
			if idx < 0 {
				return nil
			}
			interrupted = true
			now := o.now()
			stage := &p.Stages[idx]
			stage.Status = model.StageFailed
			stage.CompletedAt = &now
			if stage.StartedAt != nil {
				duration := int(math.Round(now.Sub(*stage.StartedAt).Seconds()))
				stage.DurationSeconds = &duration
			}
			stage.Logs = append(stage.Logs, fmt.Sprintf("stage %s interrupted by restart", stage.Name))
			if err := p.TransitionTo(model.PipelineFailed); err != nil {
				return err
			}
			p.Finish(now)
			return nil
		})
		if errors.Is(err, errHalt) {
			o.wg.Done()
			continue
		}
		if err != nil {
			o.wg.Done()
			return recovered, err
		}
		recovered++
		if interrupted {
			o.wg.Done()
			o.logger.Warn("interrupted stage failed on recovery", zap.String("pipeline_id", p.ID))
			continue
		}
		o.launch(p.ID)
	}
	if recovered > 0 {
		o.logger.Info("recovered in-flight pipelines", zap.Int("count", recovered))
	}
	return recovered, nil
}

// reserve claims an execution slot before a transition commits. A committed
// transition is then always followed by launch, never by a refusal.
func (o *Orchestrator) reserve() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return common.NewErrNof(common.SERVICE_ERR, "%v", errShuttingDown)
	}
	o.wg.Add(1)
	return nil
}

// launch runs the sequencer on a slot taken by reserve.
func (o *Orchestrator) launch(id string) {
	go func() {
		defer o.wg.Done()
		if err := o.sequencer.Run(o.ctx, id); err != nil && !errors.Is(err, context.Canceled) {
			o.logger.Error("pipeline execution stopped", zap.String("pipeline_id", id), zap.Error(err))
		}
	}()
}

// Wait blocks until every dispatched pipeline has finished or parked.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Shutdown stops accepting work and waits for in-flight stages to finish.
// Runs still going when ctx expires are cancelled and stay running in the
// store until RecoverInFlight sees them.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		o.cancel()
		return nil
	case <-ctx.Done():
		o.cancel()
		<-done
		return ctx.Err()
	}
}
