package model

import (
	"os"

	"shipyard/internal/common"

	"gopkg.in/yaml.v3"
)

// StagePolicy is the canonical stage template plus the table of stages that
// need a human decision per environment.
type StagePolicy struct {
	Stages []string                 `yaml:"stages"`
	Gates  map[Environment][]string `yaml:"gates"`
}

func DefaultStagePolicy() StagePolicy {
	return StagePolicy{
		Stages: []string{"checkout", "build", "test", "security_scan", "deploy"},
		Gates: map[Environment][]string{
			EnvProduction: {"deploy"},
		},
	}
}

func ParseStagePolicy(yamlContent string) (*StagePolicy, error) {
	var policy StagePolicy
	if err := yaml.Unmarshal([]byte(yamlContent), &policy); err != nil {
		return nil, common.NewErrNof(common.POLICY_INVALID, "%v", err)
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &policy, nil
}

// LoadStagePolicy reads a policy file; an empty path yields the default policy.
func LoadStagePolicy(path string) (*StagePolicy, error) {
	if path == "" {
		policy := DefaultStagePolicy()
		return &policy, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseStagePolicy(string(content))
}

func (p StagePolicy) Validate() error {
	if len(p.Stages) == 0 {
		return common.NewErrNof(common.POLICY_INVALID, "no stages")
	}
	known := make(map[string]bool, len(p.Stages))
	for _, name := range p.Stages {
		if name == "" {
			return common.NewErrNof(common.POLICY_INVALID, "empty stage name")
		}
		if known[name] {
			return common.NewErrNof(common.POLICY_INVALID, "duplicate stage %q", name)
		}
		known[name] = true
	}
	for env, gated := range p.Gates {
		if _, err := ParseEnvironment(string(env)); err != nil || env == "" {
			return common.NewErrNof(common.POLICY_INVALID, "unknown environment %q", env)
		}
		for _, name := range gated {
			if !known[name] {
				return common.NewErrNof(common.POLICY_INVALID, "gate on unknown stage %q", name)
			}
		}
	}
	return nil
}

func (p StagePolicy) RequiresApproval(env Environment, stage string) bool {
	for _, name := range p.Gates[env] {
		if name == stage {
			return true
		}
	}
	return false
}

// NewStages instantiates the template for a fresh pipeline.
func (p StagePolicy) NewStages() []Stage {
	stages := make([]Stage, len(p.Stages))
	for i, name := range p.Stages {
		stages[i] = Stage{Name: name, Status: StagePending, Logs: []string{}}
	}
	return stages
}
