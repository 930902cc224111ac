package model

import (
	"time"
)

type TechStack string

const (
	TechNodeJS  TechStack = "nodejs"
	TechPython  TechStack = "python"
	TechJava    TechStack = "java"
	TechDotnet  TechStack = "dotnet"
	TechReact   TechStack = "react"
	TechAngular TechStack = "angular"
	TechVue     TechStack = "vue"
)

type BuildTool string

const (
	BuildMaven  BuildTool = "maven"
	BuildGradle BuildTool = "gradle"
	BuildNpm    BuildTool = "npm"
	BuildYarn   BuildTool = "yarn"
	BuildPip    BuildTool = "pip"
)

type DeploymentType string

const (
	DeployKubernetes DeploymentType = "kubernetes"
	DeployDocker     DeploymentType = "docker"
	DeployVM         DeploymentType = "vm"
	DeployServerless DeploymentType = "serverless"
)

type CloudProvider string

const (
	CloudAWS       CloudProvider = "aws"
	CloudAzure     CloudProvider = "azure"
	CloudGCP       CloudProvider = "gcp"
	CloudOnPremise CloudProvider = "on-premise"
)

type CICDTool string

const (
	CICDJenkins       CICDTool = "jenkins"
	CICDGithubActions CICDTool = "github_actions"
	CICDGitlabCI      CICDTool = "gitlab_ci"
)

const DefaultBranch = "main"

// DefaultSecurityChecks is what onboarding selects when the caller sends none.
var DefaultSecurityChecks = []string{"sonarqube", "trivy", "cycode"}

// Application is an onboarded project. The engine only reads it.
type Application struct {
	ID                   string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name                 string         `gorm:"type:varchar(255);not null;uniqueIndex" json:"name" validate:"required,max=255"`
	Description          string         `gorm:"type:text" json:"description"`
	TechStack            []TechStack    `gorm:"serializer:json;type:text" json:"tech_stack" validate:"required,min=1,dive,oneof=nodejs python java dotnet react angular vue"`
	BuildTool            BuildTool      `gorm:"type:varchar(20);not null" json:"build_tool" validate:"required,oneof=maven gradle npm yarn pip"`
	DeploymentType       DeploymentType `gorm:"type:varchar(20);not null" json:"deployment_type" validate:"required,oneof=kubernetes docker vm serverless"`
	CloudProvider        CloudProvider  `gorm:"type:varchar(20);not null" json:"cloud_provider" validate:"required,oneof=aws azure gcp on-premise"`
	CICDTool             CICDTool       `gorm:"column:cicd_tool;type:varchar(20);not null" json:"cicd_tool" validate:"required,oneof=jenkins github_actions gitlab_ci"`
	RepositoryURL        string         `gorm:"type:varchar(512);not null" json:"repository_url" validate:"required,git_url"`
	Branch               string         `gorm:"type:varchar(255);not null" json:"branch" validate:"required"`
	SecurityChecks       []string       `gorm:"serializer:json;type:text" json:"security_checks" validate:"dive,required"`
	NotificationEmails   []string       `gorm:"serializer:json;type:text" json:"notification_emails" validate:"dive,email"`
	ResourceManagerEmail string         `gorm:"type:varchar(255);not null" json:"resource_manager_email" validate:"required,email"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

func (Application) TableName() string { return "applications" }

// ApplyDefaults fills the optional onboarding fields.
func (a *Application) ApplyDefaults() {
	if a.Branch == "" {
		a.Branch = DefaultBranch
	}
	if a.SecurityChecks == nil {
		a.SecurityChecks = append([]string(nil), DefaultSecurityChecks...)
	}
	if a.NotificationEmails == nil {
		a.NotificationEmails = []string{}
	}
}
