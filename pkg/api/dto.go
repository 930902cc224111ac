// pkg/api/dto.go
package api

// CreateApplicationRequest 应用接入请求，CLI 也可以从 yaml 清单读取
type CreateApplicationRequest struct {
	Name                 string   `json:"name" yaml:"name" binding:"required"`
	Description          string   `json:"description" yaml:"description"`
	TechStack            []string `json:"tech_stack" yaml:"tech_stack" binding:"required"`
	BuildTool            string   `json:"build_tool" yaml:"build_tool" binding:"required"`
	DeploymentType       string   `json:"deployment_type" yaml:"deployment_type" binding:"required"`
	CloudProvider        string   `json:"cloud_provider" yaml:"cloud_provider" binding:"required"`
	CICDTool             string   `json:"cicd_tool" yaml:"cicd_tool" binding:"required"`
	RepositoryURL        string   `json:"repository_url" yaml:"repository_url" binding:"required"`
	Branch               string   `json:"branch,omitempty" yaml:"branch"`
	SecurityChecks       []string `json:"security_checks,omitempty" yaml:"security_checks"`
	NotificationEmails   []string `json:"notification_emails,omitempty" yaml:"notification_emails"`
	ResourceManagerEmail string   `json:"resource_manager_email" yaml:"resource_manager_email" binding:"required"`
}

type TriggerRequest struct {
	ApplicationID string `json:"application_id" binding:"required"`
	Environment   string `json:"environment"` // dev/uat/production，默认 dev
	TriggeredBy   string `json:"triggered_by"` // 为空时使用token主体
}

// ApprovalRequest uses a pointer so that an explicit false is distinguishable
// from a missing field.
type ApprovalRequest struct {
	Approved   *bool  `json:"approved" binding:"required"`
	ApprovedBy string `json:"approved_by"`
	Comment    string `json:"comment,omitempty"`
	Stage      string `json:"stage,omitempty"` // 指定审批的关卡，为空时取当前等待的关卡
}

// WebhookPayload 由外部 git 托管平台推送，按应用名触发流水线
type WebhookPayload struct {
	Application string `json:"application" binding:"required"`
	Environment string `json:"environment"`
	TriggeredBy string `json:"triggered_by"`
	AutoStart   bool   `json:"auto_start"`
}

type DashboardStats struct {
	TotalApplications int64 `json:"total_applications"`
	TotalPipelines    int   `json:"total_pipelines"`
	SuccessRate       int   `json:"success_rate"`
	PipelinesToday    int   `json:"pipelines_today"`
	PendingApprovals  int   `json:"pending_approvals"`
}
