package handler

import (
	"net/http"
	"time"

	"shipyard/internal/common"
	"shipyard/internal/server/metrics"
	"shipyard/internal/server/middleware"

	"github.com/gin-gonic/gin"
)

func NewRouter(h *Handler, conf common.Config) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(h.logger), middleware.RequestLogger(h.logger), metrics.Middleware(), middleware.CORS(conf.CORSOrigins))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.POST("/webhook", h.Webhook)

	apiGroup := r.Group("/api")
	apiGroup.Use(middleware.JWTAuthMiddleware(conf.JWTKey, conf.JWTExpire))
	{
		apiGroup.POST("/applications", h.CreateApplication)
		apiGroup.GET("/applications", h.ListApplications)
		apiGroup.GET("/applications/:id", h.GetApplication)
		apiGroup.DELETE("/applications/:id", h.DeleteApplication)

		apiGroup.POST("/pipelines", h.CreatePipeline)
		apiGroup.GET("/pipelines", h.ListPipelines)
		apiGroup.GET("/pipelines/pending-approvals", h.PendingApprovals)
		apiGroup.GET("/pipelines/:id", h.GetPipeline)
		apiGroup.POST("/pipelines/:id/simulate", h.SimulatePipeline)
		apiGroup.POST("/pipelines/:id/approve", h.ApprovePipeline)

		apiGroup.GET("/dashboard/stats", h.DashboardStats)
		apiGroup.GET("/events", h.Events)
	}
	return r
}
