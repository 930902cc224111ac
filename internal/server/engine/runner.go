package engine

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"sync"
	"time"

	"shipyard/internal/server/model"
)

// StageRunner performs the work behind one stage. Swapping the runner is how
// real build and deploy adapters plug in without touching the state machine.
type StageRunner interface {
	Run(ctx context.Context, req StageRequest) (StageResult, error)
}

type StageRequest struct {
	PipelineID  string
	Environment model.Environment
	Stage       string
	Index       int
	Application *model.Application // nil when the application row is gone
}

type StageResult struct {
	Success         bool
	DurationSeconds int
	Logs            []string
}

// StageRunnerFunc adapts a function to StageRunner.
type StageRunnerFunc func(ctx context.Context, req StageRequest) (StageResult, error)

func (f StageRunnerFunc) Run(ctx context.Context, req StageRequest) (StageResult, error) {
	return f(ctx, req)
}

const (
	minSimulatedSeconds = 5
	maxSimulatedSeconds = 30
)

// SimulatedRunner stands in for real execution. Durations are derived from the
// pipeline and stage names so the same pipeline always reports the same numbers.
type SimulatedRunner struct {
	Delay       time.Duration   // wall clock time spent per stage
	FailStages  map[string]bool // stages that always fail
	FailureRate float64         // 0..1 chance for any other stage to fail

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimulatedRunner(delay time.Duration, failureRate float64, seed int64) *SimulatedRunner {
	return &SimulatedRunner{
		Delay:       delay,
		FailStages:  map[string]bool{},
		FailureRate: failureRate,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

func (r *SimulatedRunner) Run(ctx context.Context, req StageRequest) (StageResult, error) {
	if r.Delay > 0 {
		timer := time.NewTimer(r.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return StageResult{}, ctx.Err()
		case <-timer.C:
		}
	}

	failed := r.FailStages[req.Stage] || r.roll()
	logs := stageLogs(req)
	if failed {
		logs = append(logs, fmt.Sprintf("%s failed", req.Stage))
	} else {
		logs = append(logs, fmt.Sprintf("%s completed", req.Stage))
	}
	return StageResult{
		Success:         !failed,
		DurationSeconds: SimulatedDuration(req.PipelineID, req.Stage),
		Logs:            logs,
	}, nil
}

func (r *SimulatedRunner) roll() bool {
	if r.FailureRate <= 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return r.rng.Float64() < r.FailureRate
}

// SimulatedDuration maps (pipeline, stage) onto [5, 30] seconds.
func SimulatedDuration(pipelineID, stage string) int {
	h := fnv.New32a()
	h.Write([]byte(pipelineID))
	h.Write([]byte{0})
	h.Write([]byte(stage))
	span := uint32(maxSimulatedSeconds - minSimulatedSeconds + 1)
	return minSimulatedSeconds + int(h.Sum32()%span)
}

func stageLogs(req StageRequest) []string {
	app := req.Application
	if app == nil {
		return []string{fmt.Sprintf("running %s", req.Stage)}
	}
	logs := []string{fmt.Sprintf("running %s for %s", req.Stage, app.Name)}
	switch req.Stage {
	case "checkout":
		logs = append(logs, fmt.Sprintf("cloning %s@%s", app.RepositoryURL, app.Branch))
	case "build":
		logs = append(logs, fmt.Sprintf("building with %s", app.BuildTool))
	case "test":
		logs = append(logs, fmt.Sprintf("running %s test suite", app.BuildTool))
	case "security_scan":
		// 只记录所选的安全检查，不据此改变结果
		if len(app.SecurityChecks) == 0 {
			logs = append(logs, "no security checks selected")
		} else {
			logs = append(logs, "selected security checks: "+strings.Join(app.SecurityChecks, ", "))
		}
	case "deploy":
		logs = append(logs, fmt.Sprintf("deploying to %s via %s on %s", req.Environment, app.DeploymentType, app.CloudProvider))
	}
	return logs
}
