package engine

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"shipyard/internal/server/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedDurationIsStableAndBounded(t *testing.T) {
	for _, stage := range []string{"checkout", "build", "test", "security_scan", "deploy"} {
		d := SimulatedDuration("p-1", stage)
		assert.GreaterOrEqual(t, d, minSimulatedSeconds)
		assert.LessOrEqual(t, d, maxSimulatedSeconds)
		assert.Equal(t, d, SimulatedDuration("p-1", stage))
	}
}

func TestSimulatedRunnerLogsSecurityChecks(t *testing.T) {
	app := &model.Application{Name: "billing", SecurityChecks: []string{"trivy", "cycode"}}
	r := NewSimulatedRunner(0, 0, 1)

	res, err := r.Run(context.Background(), StageRequest{PipelineID: "p-1", Stage: "security_scan", Application: app})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, strings.Join(res.Logs, "\n"), "trivy, cycode")
}

func TestSimulatedRunnerFailures(t *testing.T) {
	r := NewSimulatedRunner(0, 0, 1)
	r.FailStages["build"] = true
	res, err := r.Run(context.Background(), StageRequest{PipelineID: "p-1", Stage: "build"})
	require.NoError(t, err)
	assert.False(t, res.Success)

	always := NewSimulatedRunner(0, 1, 1)
	res, err = always.Run(context.Background(), StageRequest{PipelineID: "p-1", Stage: "test"})
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestSimulatedRunnerHonoursContext(t *testing.T) {
	r := NewSimulatedRunner(time.Minute, 0, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := r.Run(ctx, StageRequest{PipelineID: "p-1", Stage: "build"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	k := newKeyedMutex()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  = map[string]int{}
		maxSeen = map[string]int{}
	)
	for i := 0; i < 40; i++ {
		key := []string{"a", "b"}[i%2]
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(key)
			mu.Lock()
			inside[key]++
			if inside[key] > maxSeen[key] {
				maxSeen[key] = inside[key]
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside[key]--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, map[string]int{"a": 1, "b": 1}, maxSeen)
	assert.Zero(t, k.size())
}
