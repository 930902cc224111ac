package model

import (
	"fmt"
	"time"

	"shipyard/internal/common"
)

type Environment string

const (
	EnvDev        Environment = "dev"
	EnvUAT        Environment = "uat"
	EnvProduction Environment = "production"
)

func ParseEnvironment(s string) (Environment, error) {
	switch env := Environment(s); env {
	case EnvDev, EnvUAT, EnvProduction:
		return env, nil
	case "":
		return EnvDev, nil
	}
	return "", common.NewErrNof(common.ENVIRONMENT_INVALID, "%q", s)
}

type PipelineStatus string

const (
	PipelinePending         PipelineStatus = "pending"
	PipelineRunning         PipelineStatus = "running"
	PipelineWaitingApproval PipelineStatus = "waiting_approval"
	PipelineSuccess         PipelineStatus = "success"
	PipelineFailed          PipelineStatus = "failed"
)

func (s PipelineStatus) Terminal() bool {
	return s == PipelineSuccess || s == PipelineFailed
}

func (s PipelineStatus) Valid() bool {
	switch s {
	case PipelinePending, PipelineRunning, PipelineWaitingApproval, PipelineSuccess, PipelineFailed:
		return true
	}
	return false
}

// legal pipeline transitions, keyed by the current status
var transitions = map[PipelineStatus][]PipelineStatus{
	PipelinePending:         {PipelineRunning},
	PipelineRunning:         {PipelineWaitingApproval, PipelineSuccess, PipelineFailed},
	PipelineWaitingApproval: {PipelineRunning, PipelineFailed},
}

func CanTransition(from, to PipelineStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type StageStatus string

const (
	StagePending StageStatus = "pending"
	StageRunning StageStatus = "running"
	StageSuccess StageStatus = "success"
	StageFailed  StageStatus = "failed"
)

type Stage struct {
	Name            string      `json:"name"`
	Status          StageStatus `json:"status"`
	StartedAt       *time.Time  `json:"started_at,omitempty"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty"`
	DurationSeconds *int        `json:"duration_seconds,omitempty"`
	Logs            []string    `json:"logs"`
}

// ApprovalDecision is the single answer recorded for one gated stage.
type ApprovalDecision struct {
	Stage     string    `json:"stage"`
	Approved  bool      `json:"approved"`
	Approver  string    `json:"approved_by"`
	Comment   string    `json:"comment,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}

type Pipeline struct {
	ID                   string             `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ApplicationID        string             `gorm:"type:varchar(36);not null;index" json:"application_id"`
	ApplicationName      string             `gorm:"type:varchar(255)" json:"application_name"`
	Environment          Environment        `gorm:"type:varchar(20);not null;index" json:"environment"`
	TriggeredBy          string             `gorm:"type:varchar(255);not null" json:"triggered_by"`
	Status               PipelineStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	Stages               []Stage            `gorm:"serializer:json;type:text" json:"stages"`
	Approvals            []ApprovalDecision `gorm:"serializer:json;type:text" json:"approvals"`
	Revision             int                `gorm:"not null;default:0" json:"-"`
	CreatedAt            time.Time          `gorm:"index" json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
	CompletedAt          *time.Time         `json:"completed_at,omitempty"`
	TotalDurationSeconds *int               `json:"total_duration_seconds,omitempty"`
}

func (Pipeline) TableName() string { return "pipelines" }

// TransitionTo moves the cached status, rejecting anything the state machine
// does not allow.
func (p *Pipeline) TransitionTo(to PipelineStatus) error {
	if !CanTransition(p.Status, to) {
		return common.NewErrNof(common.STATE_CONFLICT, "%s -> %s", p.Status, to)
	}
	p.Status = to
	return nil
}

// NextStage returns the index of the first stage not yet started, or -1.
func (p *Pipeline) NextStage() int {
	for i := range p.Stages {
		if p.Stages[i].Status == StagePending {
			return i
		}
	}
	return -1
}

// RunningStage returns the index of the running stage, or -1.
func (p *Pipeline) RunningStage() int {
	for i := range p.Stages {
		if p.Stages[i].Status == StageRunning {
			return i
		}
	}
	return -1
}

func (p *Pipeline) Decision(stage string) *ApprovalDecision {
	for i := range p.Approvals {
		if p.Approvals[i].Stage == stage {
			return &p.Approvals[i]
		}
	}
	return nil
}

func (p *Pipeline) Approved(stage string) bool {
	d := p.Decision(stage)
	return d != nil && d.Approved
}

// LatestDecision is the most recent approval decision, if any.
func (p *Pipeline) LatestDecision() *ApprovalDecision {
	if len(p.Approvals) == 0 {
		return nil
	}
	return &p.Approvals[len(p.Approvals)-1]
}

// Finish stamps completion data once the pipeline reaches a terminal status.
func (p *Pipeline) Finish(now time.Time) {
	p.CompletedAt = &now
	total := 0
	for _, stage := range p.Stages {
		if stage.DurationSeconds != nil {
			total += *stage.DurationSeconds
		}
	}
	p.TotalDurationSeconds = &total
}

// StageNames lists the template in order.
func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.Stages))
	for i, stage := range p.Stages {
		names[i] = stage.Name
	}
	return names
}

// Clone deep copies the pipeline so callers can mutate without aliasing.
func (p *Pipeline) Clone() *Pipeline {
	c := *p
	c.Stages = make([]Stage, len(p.Stages))
	for i, stage := range p.Stages {
		c.Stages[i] = stage
		c.Stages[i].Logs = append([]string(nil), stage.Logs...)
	}
	c.Approvals = append([]ApprovalDecision(nil), p.Approvals...)
	return &c
}

func (p *Pipeline) String() string {
	return fmt.Sprintf("pipeline %s (%s/%s, %s)", p.ID, p.ApplicationName, p.Environment, p.Status)
}
