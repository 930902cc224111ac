package queue

import "time"

const PIPELINE_STATUS_UPDATE = "pipeline:status:update"
const APPROVAL_REMINDER = "pipeline:approval:reminder"

// StatusUpdate is published after every committed pipeline transition.
type StatusUpdate struct {
	PipelineID      string    `json:"pipeline_id"`
	ApplicationID   string    `json:"application_id"`
	ApplicationName string    `json:"application_name"`
	Environment     string    `json:"environment"`
	Status          string    `json:"status"` // pending/running/waiting_approval/success/failed
	PreviousStatus  string    `json:"previous_status,omitempty"`
	Stage           string    `json:"stage,omitempty"`
	StageStatus     string    `json:"stage_status,omitempty"`
	TriggeredBy     string    `json:"triggered_by"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// StatusChanged reports whether the pipeline status moved, as opposed to a
// stage only update.
func (u StatusUpdate) StatusChanged() bool {
	return u.PreviousStatus != "" && u.PreviousStatus != u.Status
}

// ApprovalReminder re-notifies approvers about a pipeline left waiting.
type ApprovalReminder struct {
	PipelineID      string        `json:"pipeline_id"`
	ApplicationID   string        `json:"application_id"`
	ApplicationName string        `json:"application_name"`
	Environment     string        `json:"environment"`
	Stage           string        `json:"stage"`
	WaitingFor      time.Duration `json:"waiting_for"`
}
