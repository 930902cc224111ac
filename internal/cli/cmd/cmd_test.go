package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"shipyard/internal/cli/client"
	"shipyard/internal/common"
	"shipyard/internal/server/middleware"
	"shipyard/internal/server/model"
	"shipyard/pkg/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []recordedRequest
	routes   map[string]func(body []byte) (int, common.Response)
}

func newFakeAPI(t *testing.T) *fakeAPI {
	f := &fakeAPI{routes: map[string]func([]byte) (int, common.Response){}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: body})
		handle, ok := f.routes[r.Method+" "+r.URL.Path]
		f.mu.Unlock()

		status, resp := http.StatusNotFound, common.Response{Code: common.PIPELINE_NOT_EXISTS, Message: "pipeline not exists"}
		if ok {
			status, resp = handle(body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	client.SetServerURL(srv.URL)
	client.SaveToken("")
	return f
}

func (f *fakeAPI) on(method, path string, status int, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = func([]byte) (int, common.Response) {
		return status, common.Response{Code: common.SUCCESS, Message: "success", Data: data}
	}
}

func (f *fakeAPI) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func run(t *testing.T, args ...string) (string, error) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTriggerAndStart(t *testing.T) {
	f := newFakeAPI(t)
	created := model.Pipeline{ID: "p1", ApplicationName: "billing", Environment: model.EnvProduction, Status: model.PipelinePending}
	f.on(http.MethodPost, "/api/pipelines", http.StatusOK, created)
	running := created
	running.Status = model.PipelineRunning
	f.on(http.MethodPost, "/api/pipelines/p1/simulate", http.StatusAccepted, running)

	out, err := run(t, "trigger", "--app", "app-1", "--env", "production", "--by", "alice", "--start")
	require.NoError(t, err)
	assert.Contains(t, out, "Created pipeline p1 for billing (production)")
	assert.Contains(t, out, "Pipeline p1 is running")

	f.mu.Lock()
	first := f.requests[0]
	f.mu.Unlock()
	var req api.TriggerRequest
	require.NoError(t, json.Unmarshal(first.Body, &req))
	assert.Equal(t, api.TriggerRequest{ApplicationID: "app-1", Environment: "production", TriggeredBy: "alice"}, req)
	assert.Equal(t, "/api/pipelines/p1/simulate", f.last().Path)
}

func TestApproveReject(t *testing.T) {
	f := newFakeAPI(t)
	f.on(http.MethodPost, "/api/pipelines/p1/approve", http.StatusAccepted, model.Pipeline{ID: "p1", Status: model.PipelineFailed})

	out, err := run(t, "approve", "--id", "p1", "--by", "bob", "--reject", "--comment", "no", "--stage", "deploy")
	require.NoError(t, err)
	assert.Contains(t, out, "Rejected pipeline p1, now failed")

	var req api.ApprovalRequest
	require.NoError(t, json.Unmarshal(f.last().Body, &req))
	require.NotNil(t, req.Approved)
	assert.False(t, *req.Approved)
	assert.Equal(t, "bob", req.ApprovedBy)
	assert.Equal(t, "no", req.Comment)
	assert.Equal(t, "deploy", req.Stage)
}

func TestServerErrorsSurface(t *testing.T) {
	f := newFakeAPI(t)
	f.routes["POST /api/pipelines/p1/approve"] = func([]byte) (int, common.Response) {
		return http.StatusConflict, common.Response{Code: common.ALREADY_DECIDED, Message: "approval already decided"}
	}

	_, err := run(t, "approve", "--id", "p1", "--by", "bob")
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, common.ALREADY_DECIDED, apiErr.Code)
	assert.Equal(t, http.StatusConflict, apiErr.Status)

	_, err = run(t, "start", "--id", "missing")
	assert.ErrorContains(t, err, "pipeline not exists")
}

func TestListFilters(t *testing.T) {
	f := newFakeAPI(t)
	stages := model.DefaultStagePolicy().NewStages()
	stages[0].Status = model.StageRunning
	f.on(http.MethodGet, "/api/pipelines", http.StatusOK, []model.Pipeline{{
		ID: "p1", ApplicationName: "billing", Environment: model.EnvDev, Status: model.PipelineRunning,
		Stages: stages, TriggeredBy: "alice", CreatedAt: time.Now(),
	}})

	out, err := run(t, "list", "--status", "running", "--env", "dev")
	require.NoError(t, err)
	assert.Equal(t, "environment=dev&status=running", f.last().Query)
	assert.Contains(t, out, "billing")
	assert.Contains(t, out, "checkout")

	f.on(http.MethodGet, "/api/pipelines/pending-approvals", http.StatusOK, []model.Pipeline{})
	_, err = run(t, "list", "--pending")
	require.NoError(t, err)
	assert.Equal(t, "/api/pipelines/pending-approvals", f.last().Path)

	f.on(http.MethodGet, "/api/pipelines/p1", http.StatusOK, model.Pipeline{ID: "p1", Status: model.PipelineSuccess})
	out, err = run(t, "list", "--id", "p1")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "success"`)
}

func TestAppsCreateFromManifest(t *testing.T) {
	f := newFakeAPI(t)
	f.on(http.MethodPost, "/api/applications", http.StatusOK, model.Application{ID: "app-9", Name: "ledger"})

	manifest := filepath.Join(t.TempDir(), "ledger.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(`
name: ledger
tech_stack: [java]
build_tool: gradle
deployment_type: vm
cloud_provider: on-premise
cicd_tool: jenkins
repository_url: https://git.example.com/ledger.git
resource_manager_email: rm@example.com
security_checks: [trivy]
`), 0o644))

	out, err := run(t, "apps", "create", "-f", manifest)
	require.NoError(t, err)
	assert.Contains(t, out, "Onboarded ledger with ID app-9")

	var req api.CreateApplicationRequest
	require.NoError(t, json.Unmarshal(f.last().Body, &req))
	assert.Equal(t, []string{"java"}, req.TechStack)
	assert.Equal(t, []string{"trivy"}, req.SecurityChecks)
	assert.Equal(t, "on-premise", req.CloudProvider)

	_, err = ParseManifest([]byte("description: nameless"))
	assert.Error(t, err)
}

func TestStatsOutput(t *testing.T) {
	f := newFakeAPI(t)
	f.on(http.MethodGet, "/api/dashboard/stats", http.StatusOK, api.DashboardStats{
		TotalApplications: 3, TotalPipelines: 10, SuccessRate: 67, PipelinesToday: 2, PendingApprovals: 1,
	})
	out, err := run(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Success rate:      67%")
	assert.Contains(t, out, "Pending approvals: 1")
}

func TestTokenCommand(t *testing.T) {
	newFakeAPI(t)
	out, err := run(t, "token", "--subject", "alice", "--key", "secret", "--ttl", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, "token for alice")

	lines := bytes.Split(bytes.TrimSpace([]byte(out)), []byte("\n"))
	claims, err := middleware.ParseJWT(string(lines[len(lines)-1]), "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)

	t.Setenv("JWT_KEY", "")
	_, err = run(t, "token", "--subject", "alice")
	assert.Error(t, err)
}

func TestExampleManifestParses(t *testing.T) {
	content, err := os.ReadFile(filepath.Join("..", "..", "..", "config", "app.example.yaml"))
	require.NoError(t, err)
	req, err := ParseManifest(content)
	require.NoError(t, err)
	assert.Equal(t, "billing-service", req.Name)
	assert.Equal(t, []string{"billing-team@example.com"}, req.NotificationEmails)
}
