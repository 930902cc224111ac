package stats

import (
	"context"
	"math"
	"time"

	"shipyard/internal/server/dao"
	"shipyard/internal/server/model"
	"shipyard/pkg/api"
)

// Aggregator derives dashboard numbers from the stores on every call.
type Aggregator struct {
	apps      dao.ApplicationDao
	pipelines dao.PipelineDao
	now       func() time.Time
}

func NewAggregator(apps dao.ApplicationDao, pipelines dao.PipelineDao, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{apps: apps, pipelines: pipelines, now: now}
}

func (a *Aggregator) Dashboard(ctx context.Context) (api.DashboardStats, error) {
	apps, err := a.apps.Count(ctx)
	if err != nil {
		return api.DashboardStats{}, err
	}
	pipelines, err := a.pipelines.ListPipelines(ctx, dao.PipelineFilter{})
	if err != nil {
		return api.DashboardStats{}, err
	}
	return Summarize(apps, pipelines, a.now()), nil
}

// Summarize reduces one pipeline snapshot. "Today" is the calendar day of now
// in now's location.
func Summarize(totalApps int64, pipelines []*model.Pipeline, now time.Time) api.DashboardStats {
	year, month, day := now.Date()
	startOfDay := time.Date(year, month, day, 0, 0, 0, 0, now.Location())

	stats := api.DashboardStats{
		TotalApplications: totalApps,
		TotalPipelines:    len(pipelines),
	}
	var succeeded, failed int
	for _, p := range pipelines {
		switch p.Status {
		case model.PipelineSuccess:
			succeeded++
		case model.PipelineFailed:
			failed++
		case model.PipelineWaitingApproval:
			stats.PendingApprovals++
		}
		if !p.CreatedAt.In(now.Location()).Before(startOfDay) {
			stats.PipelinesToday++
		}
	}
	stats.SuccessRate = SuccessRate(succeeded, failed)
	return stats
}

// SuccessRate is the rounded percentage of successful terminal pipelines, 0
// when nothing has finished yet.
func SuccessRate(succeeded, failed int) int {
	terminal := succeeded + failed
	if terminal == 0 {
		return 0
	}
	return int(math.Round(100 * float64(succeeded) / float64(terminal)))
}
