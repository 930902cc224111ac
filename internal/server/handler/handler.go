package handler

import (
	"shipyard/internal/server/dao"
	"shipyard/internal/server/engine"
	"shipyard/internal/server/events"
	"shipyard/internal/server/middleware"
	"shipyard/internal/server/stats"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	apps          dao.ApplicationDao
	orchestrator  *engine.Orchestrator
	stats         *stats.Aggregator
	hub           *events.Hub
	webhookSecret string
	logger        *zap.Logger
}

type Deps struct {
	Apps          dao.ApplicationDao
	Orchestrator  *engine.Orchestrator
	Stats         *stats.Aggregator
	Hub           *events.Hub
	WebhookSecret string
	Logger        *zap.Logger
}

func New(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Handler{
		apps:          d.Apps,
		orchestrator:  d.Orchestrator,
		stats:         d.Stats,
		hub:           d.Hub,
		webhookSecret: d.WebhookSecret,
		logger:        d.Logger,
	}
}

// actor prefers the explicit name from the request body, then the token subject.
func actor(c *gin.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if subject, ok := c.Get(middleware.ContextSubject); ok {
		if s, ok := subject.(string); ok {
			return s
		}
	}
	return ""
}
