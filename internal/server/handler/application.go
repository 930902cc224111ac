package handler

import (
	"shipyard/internal/common"
	"shipyard/internal/server/model"
	"shipyard/pkg/api"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (h *Handler) CreateApplication(c *gin.Context) {
	var req api.CreateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, common.NewErrNof(common.REQUEST_INVALID, "%v", err))
		return
	}

	app := applicationFromRequest(req)
	app.ID = uuid.NewString()
	app.ApplyDefaults()
	if err := model.ValidateApplication(app); err != nil {
		common.Error(c, err)
		return
	}
	if err := h.apps.Create(c, app); err != nil {
		common.Error(c, err)
		return
	}
	h.logger.Info("application onboarded", zap.String("application_id", app.ID), zap.String("name", app.Name))
	common.Success(c, app)
}

func (h *Handler) ListApplications(c *gin.Context) {
	apps, err := h.apps.ListApplications(c)
	if err != nil {
		common.Error(c, err)
		return
	}
	common.Success(c, apps)
}

func (h *Handler) GetApplication(c *gin.Context) {
	app, err := h.apps.GetApplicationByID(c, c.Param("id"))
	if err != nil {
		common.Error(c, err)
		return
	}
	common.Success(c, app)
}

func (h *Handler) DeleteApplication(c *gin.Context) {
	if err := h.apps.Delete(c, c.Param("id")); err != nil {
		common.Error(c, err)
		return
	}
	common.Success(c, nil)
}

func applicationFromRequest(req api.CreateApplicationRequest) *model.Application {
	stack := make([]model.TechStack, len(req.TechStack))
	for i, s := range req.TechStack {
		stack[i] = model.TechStack(s)
	}
	return &model.Application{
		Name:                 req.Name,
		Description:          req.Description,
		TechStack:            stack,
		BuildTool:            model.BuildTool(req.BuildTool),
		DeploymentType:       model.DeploymentType(req.DeploymentType),
		CloudProvider:        model.CloudProvider(req.CloudProvider),
		CICDTool:             model.CICDTool(req.CICDTool),
		RepositoryURL:        req.RepositoryURL,
		Branch:               req.Branch,
		SecurityChecks:       req.SecurityChecks,
		NotificationEmails:   req.NotificationEmails,
		ResourceManagerEmail: req.ResourceManagerEmail,
	}
}
