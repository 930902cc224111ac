package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"shipyard/internal/common"
	"shipyard/internal/server/model"
	"shipyard/pkg/queue"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type ApplicationLookup interface {
	GetApplicationByID(ctx context.Context, id string) (*model.Application, error)
}

// Notifier 消费状态变更任务并发送邮件：
// 等待审批时通知资源负责人，结束时通知应用的通知列表
type Notifier struct {
	apps      ApplicationLookup
	mailer    Mailer
	dashboard string // 邮件中的链接前缀，可为空
	logger    *zap.Logger
}

func New(apps ApplicationLookup, mailer Mailer, dashboardURL string, logger *zap.Logger) *Notifier {
	return &Notifier{apps: apps, mailer: mailer, dashboard: strings.TrimRight(dashboardURL, "/"), logger: logger}
}

// Register wires the task handlers into an asynq mux.
func (n *Notifier) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(queue.PIPELINE_STATUS_UPDATE, n.HandleStatusUpdate)
	mux.HandleFunc(queue.APPROVAL_REMINDER, n.HandleApprovalReminder)
}

func (n *Notifier) HandleStatusUpdate(ctx context.Context, t *asynq.Task) error {
	var u queue.StatusUpdate
	if err := json.Unmarshal(t.Payload(), &u); err != nil {
		return fmt.Errorf("decode status update: %v: %w", err, asynq.SkipRetry)
	}

	switch model.PipelineStatus(u.Status) {
	case model.PipelineWaitingApproval:
		app, err := n.application(ctx, u.ApplicationID)
		if err != nil || app == nil {
			return err
		}
		subject := fmt.Sprintf("[shipyard] approval required: %s to %s", u.ApplicationName, u.Environment)
		body := fmt.Sprintf("Pipeline %s for %s (triggered by %s) is waiting for approval before deploying to %s.\n%s",
			u.PipelineID, u.ApplicationName, u.TriggeredBy, u.Environment, n.link(u.PipelineID))
		return n.send(ctx, []string{app.ResourceManagerEmail}, subject, body)

	case model.PipelineSuccess, model.PipelineFailed:
		app, err := n.application(ctx, u.ApplicationID)
		if err != nil || app == nil {
			return err
		}
		subject := fmt.Sprintf("[shipyard] %s %s on %s", u.ApplicationName, u.Status, u.Environment)
		body := fmt.Sprintf("Pipeline %s for %s finished with status %s.\n%s",
			u.PipelineID, u.ApplicationName, u.Status, n.link(u.PipelineID))
		return n.send(ctx, app.NotificationEmails, subject, body)
	}
	return nil
}

func (n *Notifier) HandleApprovalReminder(ctx context.Context, t *asynq.Task) error {
	var r queue.ApprovalReminder
	if err := json.Unmarshal(t.Payload(), &r); err != nil {
		return fmt.Errorf("decode approval reminder: %v: %w", err, asynq.SkipRetry)
	}
	app, err := n.application(ctx, r.ApplicationID)
	if err != nil || app == nil {
		return err
	}
	subject := fmt.Sprintf("[shipyard] reminder: %s still waiting for approval", r.ApplicationName)
	body := fmt.Sprintf("Pipeline %s has been waiting %s for approval of stage %s on %s.\n%s",
		r.PipelineID, r.WaitingFor, r.Stage, r.Environment, n.link(r.PipelineID))
	return n.send(ctx, []string{app.ResourceManagerEmail}, subject, body)
}

// application returns nil, nil when the application is gone so the task is dropped.
func (n *Notifier) application(ctx context.Context, id string) (*model.Application, error) {
	app, err := n.apps.GetApplicationByID(ctx, id)
	if err != nil {
		if common.IsErrNo(err, common.APPLICATION_NOT_EXISTS) {
			n.logger.Warn("notification for unknown application dropped", zap.String("application_id", id))
			return nil, nil
		}
		return nil, err
	}
	return app, nil
}

func (n *Notifier) send(ctx context.Context, to []string, subject, body string) error {
	recipients := make([]string, 0, len(to))
	for _, addr := range to {
		if addr = strings.TrimSpace(addr); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	if len(recipients) == 0 {
		return nil
	}
	if err := n.mailer.Send(ctx, recipients, subject, body); err != nil {
		return err
	}
	n.logger.Info("notification sent", zap.Strings("to", recipients), zap.String("subject", subject))
	return nil
}

func (n *Notifier) link(pipelineID string) string {
	if n.dashboard == "" {
		return ""
	}
	return n.dashboard + "/pipelines/" + pipelineID
}
