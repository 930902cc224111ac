package scheduler

import (
	"context"
	"sync"
	"time"

	"shipyard/internal/server/dao"
	"shipyard/internal/server/model"
	"shipyard/pkg/queue"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ReminderSink receives one reminder per overdue pipeline.
type ReminderSink interface {
	Remind(ctx context.Context, r queue.ApprovalReminder) error
}

// ReminderService 定时扫描等待审批过久的流水线并再次提醒
type ReminderService struct {
	pipelines dao.PipelineDao
	sink      ReminderSink
	spec      string
	after     time.Duration
	now       func() time.Time
	logger    *zap.Logger

	mu    sync.Mutex
	cron  *cron.Cron
	jobID cron.EntryID
}

func NewReminderService(pipelines dao.PipelineDao, sink ReminderSink, spec string, after time.Duration, logger *zap.Logger) *ReminderService {
	return &ReminderService{
		pipelines: pipelines,
		sink:      sink,
		spec:      spec,
		after:     after,
		now:       time.Now,
		logger:    logger,
	}
}

func (s *ReminderService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	id, err := c.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("approval reminder scan failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	s.cron = c
	s.jobID = id
	s.logger.Info("approval reminders scheduled", zap.String("spec", s.spec), zap.Duration("after", s.after))
	return nil
}

// Stop waits for a scan in progress to finish.
func (s *ReminderService) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// RunOnce sends reminders for every pipeline waiting longer than the threshold.
func (s *ReminderService) RunOnce(ctx context.Context) (int, error) {
	now := s.now()
	overdue, err := s.pipelines.ListPipelines(ctx, dao.PipelineFilter{
		Status:        model.PipelineWaitingApproval,
		UpdatedBefore: now.Add(-s.after),
	})
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, p := range overdue {
		stage := ""
		if idx := p.NextStage(); idx >= 0 {
			stage = p.Stages[idx].Name
		}
		err := s.sink.Remind(ctx, queue.ApprovalReminder{
			PipelineID:      p.ID,
			ApplicationID:   p.ApplicationID,
			ApplicationName: p.ApplicationName,
			Environment:     string(p.Environment),
			Stage:           stage,
			WaitingFor:      now.Sub(p.UpdatedAt).Truncate(time.Second),
		})
		if err != nil {
			s.logger.Warn("approval reminder failed", zap.String("pipeline_id", p.ID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}
