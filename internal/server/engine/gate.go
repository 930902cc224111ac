package engine

import (
	"fmt"
	"strings"
	"time"

	"shipyard/internal/common"
	"shipyard/internal/server/model"
)

// ApprovalGate suspends a pipeline in front of a gated stage and records the
// one decision each gate accepts.
type ApprovalGate struct {
	now func() time.Time
}

// requestDecision parks the pipeline before stage idx.
func (g *ApprovalGate) requestDecision(p *model.Pipeline, idx int) error {
	if err := p.TransitionTo(model.PipelineWaitingApproval); err != nil {
		return err
	}
	stage := &p.Stages[idx]
	stage.Logs = append(stage.Logs, fmt.Sprintf("waiting for approval before %s to %s", stage.Name, p.Environment))
	return nil
}

// decide applies a decision to the gate the pipeline is parked at. A pipeline
// that already resolved a gate and is no longer waiting reports ALREADY_DECIDED
// so that a double submit is visible to the caller. When the caller names the
// gate, a decided gate reports ALREADY_DECIDED wherever the pipeline is now.
func (g *ApprovalGate) decide(p *model.Pipeline, gate string, approved bool, approver, comment string) error {
	approver = strings.TrimSpace(approver)
	if approver == "" {
		return common.NewErrNof(common.REQUEST_INVALID, "approver is required")
	}
	gate = strings.TrimSpace(gate)
	if gate != "" {
		if d := p.Decision(gate); d != nil {
			return common.NewErrNof(common.ALREADY_DECIDED, "%s by %s", d.Stage, d.Approver)
		}
	}

	if p.Status != model.PipelineWaitingApproval {
		if len(p.Approvals) > 0 {
			return common.NewErrNof(common.ALREADY_DECIDED, "%s by %s", p.LatestDecision().Stage, p.LatestDecision().Approver)
		}
		return common.NewErrNof(common.NOT_AWAITING_APPROVAL, "status is %s", p.Status)
	}

	idx := p.NextStage()
	if idx < 0 {
		return common.NewErrNof(common.STATE_CONFLICT, "waiting for approval without a pending stage")
	}
	stage := &p.Stages[idx]
	if gate != "" && gate != stage.Name {
		return common.NewErrNof(common.NOT_AWAITING_APPROVAL, "waiting at %s, not %s", stage.Name, gate)
	}
	if d := p.Decision(stage.Name); d != nil {
		return common.NewErrNof(common.ALREADY_DECIDED, "%s by %s", d.Stage, d.Approver)
	}

	now := g.now()
	p.Approvals = append(p.Approvals, model.ApprovalDecision{
		Stage:     stage.Name,
		Approved:  approved,
		Approver:  approver,
		Comment:   comment,
		DecidedAt: now,
	})

	if approved {
		stage.Logs = append(stage.Logs, fmt.Sprintf("approved by %s", approver))
		return p.TransitionTo(model.PipelineRunning)
	}
	stage.Logs = append(stage.Logs, fmt.Sprintf("rejected by %s", approver))
	if err := p.TransitionTo(model.PipelineFailed); err != nil {
		return err
	}
	p.Finish(now)
	return nil
}
