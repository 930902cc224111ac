package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"shipyard/pkg/queue"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipyard_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shipyard_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Pipelines
	pipelineTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipyard_pipeline_transitions_total",
			Help: "Pipeline status transitions by environment and target status",
		},
		[]string{"environment", "status"},
	)

	stageResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipyard_stage_results_total",
			Help: "Stage status changes by stage name",
		},
		[]string{"stage", "status"},
	)

	approvalDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipyard_approval_decisions_total",
			Help: "Approval gate decisions by environment",
		},
		[]string{"environment", "decision"},
	)

	pipelinesWaitingApproval = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shipyard_pipelines_waiting_approval",
			Help: "Pipelines currently parked at an approval gate",
		},
	)
)

// Publisher turns committed pipeline updates into counters.
type Publisher struct{}

func NewPublisher() *Publisher { return &Publisher{} }

func (Publisher) Publish(_ context.Context, u queue.StatusUpdate) error {
	if u.Stage != "" {
		stageResultsTotal.WithLabelValues(u.Stage, u.StageStatus).Inc()
	}
	if !u.StatusChanged() && u.PreviousStatus != "" {
		return nil
	}
	pipelineTransitionsTotal.WithLabelValues(u.Environment, u.Status).Inc()

	if u.Status == "waiting_approval" {
		pipelinesWaitingApproval.Inc()
	}
	if u.PreviousStatus == "waiting_approval" {
		pipelinesWaitingApproval.Dec()
		decision := "approved"
		if u.Status == "failed" {
			decision = "rejected"
		}
		approvalDecisionsTotal.WithLabelValues(u.Environment, decision).Inc()
	}
	return nil
}

// SetWaitingApproval seeds the gauge from the store at startup.
func SetWaitingApproval(n int) {
	pipelinesWaitingApproval.Set(float64(n))
}

// Middleware records request count and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
