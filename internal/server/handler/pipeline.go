package handler

import (
	"shipyard/internal/common"
	"shipyard/internal/server/dao"
	"shipyard/internal/server/model"
	"shipyard/pkg/api"

	"github.com/gin-gonic/gin"
)

func (h *Handler) CreatePipeline(c *gin.Context) {
	var req api.TriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, common.NewErrNof(common.REQUEST_INVALID, "%v", err))
		return
	}
	pipeline, err := h.orchestrator.CreatePipeline(c, req.ApplicationID, req.Environment, actor(c, req.TriggeredBy))
	if err != nil {
		common.Error(c, err)
		return
	}
	common.Success(c, pipeline)
}

func (h *Handler) ListPipelines(c *gin.Context) {
	filter := dao.PipelineFilter{ApplicationID: c.Query("application_id")}
	if s := c.Query("status"); s != "" {
		status := model.PipelineStatus(s)
		if !status.Valid() {
			common.Error(c, common.NewErrNof(common.REQUEST_INVALID, "unknown status %q", s))
			return
		}
		filter.Status = status
	}
	if e := c.Query("environment"); e != "" {
		env, err := model.ParseEnvironment(e)
		if err != nil {
			common.Error(c, err)
			return
		}
		filter.Environment = env
	}

	pipelines, err := h.orchestrator.ListPipelines(c, filter)
	if err != nil {
		common.Error(c, err)
		return
	}
	common.Success(c, pipelines)
}

func (h *Handler) PendingApprovals(c *gin.Context) {
	pipelines, err := h.orchestrator.PendingApprovals(c)
	if err != nil {
		common.Error(c, err)
		return
	}
	common.Success(c, pipelines)
}

func (h *Handler) GetPipeline(c *gin.Context) {
	pipeline, err := h.orchestrator.GetPipeline(c, c.Param("id"))
	if err != nil {
		common.Error(c, err)
		return
	}
	common.Success(c, pipeline)
}

// SimulatePipeline starts execution; stages continue after the response.
func (h *Handler) SimulatePipeline(c *gin.Context) {
	pipeline, err := h.orchestrator.StartPipeline(c, c.Param("id"))
	if err != nil {
		common.Error(c, err)
		return
	}
	common.Accepted(c, pipeline)
}

func (h *Handler) ApprovePipeline(c *gin.Context) {
	var req api.ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, common.NewErrNof(common.REQUEST_INVALID, "%v", err))
		return
	}
	pipeline, err := h.orchestrator.SubmitStageApproval(c, c.Param("id"), req.Stage, *req.Approved, actor(c, req.ApprovedBy), req.Comment)
	if err != nil {
		common.Error(c, err)
		return
	}
	common.Accepted(c, pipeline)
}

func (h *Handler) DashboardStats(c *gin.Context) {
	s, err := h.stats.Dashboard(c)
	if err != nil {
		common.Error(c, err)
		return
	}
	common.Success(c, s)
}

// Events streams status updates over a websocket, optionally for one pipeline.
func (h *Handler) Events(c *gin.Context) {
	h.hub.Serve(c.Writer, c.Request, c.Query("pipeline_id"))
}
