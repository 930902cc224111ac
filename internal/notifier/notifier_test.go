package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"shipyard/internal/common"
	"shipyard/internal/server/model"
	"shipyard/pkg/queue"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sent struct {
	to      []string
	subject string
	body    string
}

type fakeMailer struct {
	mails []sent
	err   error
}

func (f *fakeMailer) Send(_ context.Context, to []string, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.mails = append(f.mails, sent{to: to, subject: subject, body: body})
	return nil
}

type fakeApps map[string]*model.Application

func (f fakeApps) GetApplicationByID(_ context.Context, id string) (*model.Application, error) {
	if app, ok := f[id]; ok {
		return app, nil
	}
	return nil, common.NewErrNo(common.APPLICATION_NOT_EXISTS)
}

func newNotifier(m Mailer) *Notifier {
	apps := fakeApps{"app-1": {
		ID:                   "app-1",
		Name:                 "billing",
		ResourceManagerEmail: "rm@example.com",
		NotificationEmails:   []string{"team@example.com", " "},
	}}
	return New(apps, m, "https://ci.example.com/", zap.NewNop())
}

func task(t *testing.T, typ string, payload any) *asynq.Task {
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(typ, data)
}

func TestWaitingApprovalMailsResourceManager(t *testing.T) {
	m := &fakeMailer{}
	n := newNotifier(m)
	err := n.HandleStatusUpdate(context.Background(), task(t, queue.PIPELINE_STATUS_UPDATE, queue.StatusUpdate{
		PipelineID: "p1", ApplicationID: "app-1", ApplicationName: "billing",
		Environment: "production", PreviousStatus: "running", Status: "waiting_approval", TriggeredBy: "alice",
	}))
	require.NoError(t, err)
	require.Len(t, m.mails, 1)
	assert.Equal(t, []string{"rm@example.com"}, m.mails[0].to)
	assert.Contains(t, m.mails[0].subject, "approval required")
	assert.Contains(t, m.mails[0].body, "https://ci.example.com/pipelines/p1")
}

func TestTerminalStatusMailsNotificationList(t *testing.T) {
	m := &fakeMailer{}
	n := newNotifier(m)
	ctx := context.Background()

	require.NoError(t, n.HandleStatusUpdate(ctx, task(t, queue.PIPELINE_STATUS_UPDATE, queue.StatusUpdate{
		PipelineID: "p1", ApplicationID: "app-1", PreviousStatus: "running", Status: "failed",
	})))
	require.Len(t, m.mails, 1)
	assert.Equal(t, []string{"team@example.com"}, m.mails[0].to)

	// running is not worth a mail
	require.NoError(t, n.HandleStatusUpdate(ctx, task(t, queue.PIPELINE_STATUS_UPDATE, queue.StatusUpdate{
		PipelineID: "p1", ApplicationID: "app-1", PreviousStatus: "pending", Status: "running",
	})))
	assert.Len(t, m.mails, 1)
}

func TestUnknownApplicationIsDropped(t *testing.T) {
	m := &fakeMailer{}
	n := newNotifier(m)
	err := n.HandleStatusUpdate(context.Background(), task(t, queue.PIPELINE_STATUS_UPDATE, queue.StatusUpdate{
		PipelineID: "p1", ApplicationID: "ghost", Status: "success",
	}))
	assert.NoError(t, err)
	assert.Empty(t, m.mails)
}

func TestBadPayloadSkipsRetry(t *testing.T) {
	n := newNotifier(&fakeMailer{})
	err := n.HandleStatusUpdate(context.Background(), asynq.NewTask(queue.PIPELINE_STATUS_UPDATE, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	err = n.HandleApprovalReminder(context.Background(), asynq.NewTask(queue.APPROVAL_REMINDER, []byte("nope")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestMailerErrorIsReturnedForRetry(t *testing.T) {
	n := newNotifier(&fakeMailer{err: errors.New("smtp down")})
	err := n.HandleApprovalReminder(context.Background(), task(t, queue.APPROVAL_REMINDER, queue.ApprovalReminder{
		PipelineID: "p1", ApplicationID: "app-1", Stage: "deploy",
	}))
	assert.EqualError(t, err, "smtp down")
}

func TestReminderMailsResourceManager(t *testing.T) {
	m := &fakeMailer{}
	n := newNotifier(m)
	require.NoError(t, n.HandleApprovalReminder(context.Background(), task(t, queue.APPROVAL_REMINDER, queue.ApprovalReminder{
		PipelineID: "p1", ApplicationID: "app-1", ApplicationName: "billing", Stage: "deploy", Environment: "production",
	})))
	require.Len(t, m.mails, 1)
	assert.Equal(t, []string{"rm@example.com"}, m.mails[0].to)
	assert.Contains(t, m.mails[0].body, "stage deploy")
}

func TestSMTPMailer(t *testing.T) {
	disabled := NewSMTPMailer("", 587, "", "", "ci@example.com")
	assert.False(t, disabled.Enabled())
	assert.Error(t, disabled.Send(context.Background(), []string{"a@example.com"}, "s", "b"))

	m := NewSMTPMailer("smtp.example.com", 2525, "user", "pw", "ci@example.com")
	var gotAddr string
	var gotMsg []byte
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = msg
		assert.NotNil(t, a)
		assert.Equal(t, "ci@example.com", from)
		return nil
	}

	require.NoError(t, m.Send(context.Background(), []string{"a@example.com", "b@example.com"}, "hello", "body text"))
	assert.Equal(t, "smtp.example.com:2525", gotAddr)
	msg := string(gotMsg)
	assert.True(t, strings.HasPrefix(msg, "From: ci@example.com\r\n"))
	assert.Contains(t, msg, "To: a@example.com, b@example.com\r\n")
	assert.Contains(t, msg, "Subject: hello\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nbody text"))

	assert.Error(t, m.Send(context.Background(), []string{"not-an-address"}, "s", "b"))
}
