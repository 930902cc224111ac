package model

import (
	"os"
	"path/filepath"
	"testing"

	"shipyard/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultStagePolicy(t *testing.T) {
	policy := DefaultStagePolicy()
	require.NoError(t, policy.Validate())
	assert.Equal(t, []string{"checkout", "build", "test", "security_scan", "deploy"}, policy.Stages)

	assert.True(t, policy.RequiresApproval(EnvProduction, "deploy"))
	assert.False(t, policy.RequiresApproval(EnvProduction, "build"))
	assert.False(t, policy.RequiresApproval(EnvDev, "deploy"))
	assert.False(t, policy.RequiresApproval(EnvUAT, "deploy"))

	stages := policy.NewStages()
	require.Len(t, stages, 5)
	for _, stage := range stages {
		assert.Equal(t, StagePending, stage.Status)
	}
}

func TestParseStagePolicy(t *testing.T) {
	policy, err := ParseStagePolicy(`
stages: [checkout, build, integration, deploy]
gates:
  uat: [deploy]
  production: [integration, deploy]
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"checkout", "build", "integration", "deploy"}, policy.Stages)
	assert.True(t, policy.RequiresApproval(EnvUAT, "deploy"))
	assert.True(t, policy.RequiresApproval(EnvProduction, "integration"))
	assert.False(t, policy.RequiresApproval(EnvDev, "deploy"))
}

func TestParseStagePolicyRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"empty template":  "stages: []",
		"duplicate stage": "stages: [build, build]",
		"unknown gate":    "stages: [build]\ngates:\n  production: [deploy]",
		"unknown env":     "stages: [build]\ngates:\n  staging: [build]",
		"not yaml":        "stages: [build",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseStagePolicy(content)
			assert.True(t, common.IsErrNo(err, common.POLICY_INVALID), "got %v", err)
		})
	}
}

func TestLoadStagePolicy(t *testing.T) {
	policy, err := LoadStagePolicy("")
	require.NoError(t, err)
	assert.Len(t, policy.Stages, 5)

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stages: [build, deploy]\ngates:\n  production: [deploy]\n"), 0o644))
	policy, err = LoadStagePolicy(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"build", "deploy"}, policy.Stages)

	_, err = LoadStagePolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestShippedPolicyMatchesDefault(t *testing.T) {
	policy, err := LoadStagePolicy(filepath.Join("..", "..", "..", "config", "policy.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultStagePolicy(), *policy)
}
