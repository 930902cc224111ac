package dao

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"shipyard/internal/common"
	"shipyard/internal/server/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := OpenDB(common.Config{
		DBDriver: "sqlite",
		DBPath:   fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newApplication(name string) *model.Application {
	app := &model.Application{
		ID:                   uuid.NewString(),
		Name:                 name,
		TechStack:            []model.TechStack{model.TechPython},
		BuildTool:            model.BuildPip,
		DeploymentType:       model.DeployDocker,
		CloudProvider:        model.CloudGCP,
		CICDTool:             model.CICDGithubActions,
		RepositoryURL:        "https://github.com/example/" + name,
		ResourceManagerEmail: "rm@example.com",
	}
	app.ApplyDefaults()
	return app
}

// newStore returns both DAOs over a fresh database holding applications
// app-1 and app-2.
func newStore(t *testing.T) (ApplicationDao, PipelineDao) {
	db := setupTestDB(t)
	apps := NewApplicationDao(db)
	for _, id := range []string{"app-1", "app-2"} {
		app := newApplication("svc-" + id)
		app.ID = id
		require.NoError(t, apps.Create(context.Background(), app))
	}
	return apps, NewPipelineDao(db)
}

func newPipeline(appID string, created time.Time) *model.Pipeline {
	return &model.Pipeline{
		ID:            uuid.NewString(),
		ApplicationID: appID,
		Environment:   model.EnvDev,
		TriggeredBy:   "alice",
		Status:        model.PipelinePending,
		Stages:        model.DefaultStagePolicy().NewStages(),
		CreatedAt:     created,
	}
}

func TestApplicationCreateAndGet(t *testing.T) {
	ctx := context.Background()
	apps := NewApplicationDao(setupTestDB(t))

	app := newApplication("billing")
	require.NoError(t, apps.Create(ctx, app))

	got, err := apps.GetApplicationByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "billing", got.Name)
	assert.Equal(t, []string{"sonarqube", "trivy", "cycode"}, got.SecurityChecks)
	assert.Equal(t, []model.TechStack{model.TechPython}, got.TechStack)

	_, err = apps.GetApplicationByID(ctx, uuid.NewString())
	assert.True(t, common.IsErrNo(err, common.APPLICATION_NOT_EXISTS))

	byName, err := apps.GetApplicationByName(ctx, "billing")
	require.NoError(t, err)
	assert.Equal(t, app.ID, byName.ID)
	_, err = apps.GetApplicationByName(ctx, "nope")
	assert.True(t, common.IsErrNo(err, common.APPLICATION_NOT_EXISTS))
}

func TestApplicationNameIsUnique(t *testing.T) {
	ctx := context.Background()
	apps := NewApplicationDao(setupTestDB(t))

	require.NoError(t, apps.Create(ctx, newApplication("billing")))
	err := apps.Create(ctx, newApplication("billing"))
	assert.True(t, common.IsErrNo(err, common.APPLICATION_EXISTS))

	count, err := apps.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestApplicationDeleteRefusedWhileReferenced(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	apps := NewApplicationDao(db)
	pipelines := NewPipelineDao(db)

	app := newApplication("billing")
	require.NoError(t, apps.Create(ctx, app))
	require.NoError(t, pipelines.Create(ctx, newPipeline(app.ID, time.Now())))

	err := apps.Delete(ctx, app.ID)
	assert.True(t, common.IsErrNo(err, common.APPLICATION_IN_USE))

	lonely := newApplication("lonely")
	require.NoError(t, apps.Create(ctx, lonely))
	require.NoError(t, apps.Delete(ctx, lonely.ID))
	assert.True(t, common.IsErrNo(apps.Delete(ctx, lonely.ID), common.APPLICATION_NOT_EXISTS))
}

func TestPipelineRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, pipelines := newStore(t)

	p := newPipeline("app-1", time.Now())
	require.NoError(t, pipelines.Create(ctx, p))

	got, err := pipelines.GetPipelineByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.StageNames(), got.StageNames())
	assert.Equal(t, model.PipelinePending, got.Status)

	_, err = pipelines.GetPipelineByID(ctx, "missing")
	assert.True(t, common.IsErrNo(err, common.PIPELINE_NOT_EXISTS))
}

func TestPipelineUpdate(t *testing.T) {
	ctx := context.Background()
	_, pipelines := newStore(t)

	p := newPipeline("app-1", time.Now())
	require.NoError(t, pipelines.Create(ctx, p))

	updated, err := pipelines.Update(ctx, p.ID, func(p *model.Pipeline) error {
		p.Stages[0].Status = model.StageRunning
		return p.TransitionTo(model.PipelineRunning)
	})
	require.NoError(t, err)
	assert.Equal(t, model.PipelineRunning, updated.Status)
	assert.Equal(t, 1, updated.Revision)

	got, err := pipelines.GetPipelineByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageRunning, got.Stages[0].Status)
}

func TestPipelineUpdateFailureLeavesRowUntouched(t *testing.T) {
	ctx := context.Background()
	_, pipelines := newStore(t)

	p := newPipeline("app-1", time.Now())
	require.NoError(t, pipelines.Create(ctx, p))

	_, err := pipelines.Update(ctx, p.ID, func(p *model.Pipeline) error {
		p.Stages[0].Status = model.StageFailed
		return p.TransitionTo(model.PipelineSuccess)
	})
	assert.True(t, common.IsErrNo(err, common.STATE_CONFLICT))

	got, err := pipelines.GetPipelineByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PipelinePending, got.Status)
	assert.Equal(t, model.StagePending, got.Stages[0].Status)
	assert.Equal(t, 0, got.Revision)
}

func TestPipelineUpdateRejectsTemplateChange(t *testing.T) {
	ctx := context.Background()
	_, pipelines := newStore(t)

	p := newPipeline("app-1", time.Now())
	require.NoError(t, pipelines.Create(ctx, p))

	_, err := pipelines.Update(ctx, p.ID, func(p *model.Pipeline) error {
		p.Stages = p.Stages[1:]
		return nil
	})
	assert.True(t, common.IsErrNo(err, common.STATE_CONFLICT))

	_, err = pipelines.Update(ctx, p.ID, func(p *model.Pipeline) error {
		p.Stages[0].Name = "clone"
		return nil
	})
	assert.True(t, common.IsErrNo(err, common.STATE_CONFLICT))

	_, err = pipelines.Update(ctx, "missing", func(p *model.Pipeline) error { return nil })
	assert.True(t, common.IsErrNo(err, common.PIPELINE_NOT_EXISTS))
}

func TestPipelineConcurrentUpdatesAreNotLost(t *testing.T) {
	ctx := context.Background()
	_, pipelines := newStore(t)

	p := newPipeline("app-1", time.Now())
	require.NoError(t, pipelines.Create(ctx, p))

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := pipelines.Update(ctx, p.ID, func(p *model.Pipeline) error {
				p.Stages[0].Logs = append(p.Stages[0].Logs, fmt.Sprintf("writer %d", i))
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := pipelines.GetPipelineByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, got.Stages[0].Logs, writers)
	assert.Equal(t, writers, got.Revision)
}

func TestListPipelinesNewestFirstWithFilters(t *testing.T) {
	ctx := context.Background()
	_, pipelines := newStore(t)

	base := time.Now().Add(-time.Hour)
	older := newPipeline("app-1", base)
	newer := newPipeline("app-1", base.Add(10*time.Minute))
	other := newPipeline("app-2", base.Add(20*time.Minute))
	other.Environment = model.EnvProduction
	other.Status = model.PipelineWaitingApproval
	for _, p := range []*model.Pipeline{older, newer, other} {
		require.NoError(t, pipelines.Create(ctx, p))
	}

	all, err := pipelines.ListPipelines(ctx, PipelineFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{other.ID, newer.ID, older.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	byApp, err := pipelines.ListPipelines(ctx, PipelineFilter{ApplicationID: "app-1"})
	require.NoError(t, err)
	assert.Len(t, byApp, 2)

	waiting, err := pipelines.ListPipelines(ctx, PipelineFilter{Status: model.PipelineWaitingApproval})
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	assert.Equal(t, other.ID, waiting[0].ID)

	prod, err := pipelines.ListPipelines(ctx, PipelineFilter{Environment: model.EnvProduction})
	require.NoError(t, err)
	assert.Len(t, prod, 1)
}

func TestPipelineCreateRequiresApplication(t *testing.T) {
	ctx := context.Background()
	_, pipelines := newStore(t)

	p := newPipeline("ghost", time.Now())
	err := pipelines.Create(ctx, p)
	assert.True(t, common.IsErrNo(err, common.APPLICATION_NOT_EXISTS))

	_, err = pipelines.GetPipelineByID(ctx, p.ID)
	assert.True(t, common.IsErrNo(err, common.PIPELINE_NOT_EXISTS))
}

func TestCreateAndDeleteNeverOrphanPipelines(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	apps := NewApplicationDao(db)
	pipelines := NewPipelineDao(db)

	for i := 0; i < 20; i++ {
		app := newApplication(fmt.Sprintf("racy-%d", i))
		require.NoError(t, apps.Create(ctx, app))
		p := newPipeline(app.ID, time.Now())

		var wg sync.WaitGroup
		var createErr, deleteErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			createErr = pipelines.Create(ctx, p)
		}()
		go func() {
			defer wg.Done()
			deleteErr = apps.Delete(ctx, app.ID)
		}()
		wg.Wait()

		_, appErr := apps.GetApplicationByID(ctx, app.ID)
		if createErr == nil {
			// the pipeline won: the application must still be there
			require.NoError(t, appErr)
			assert.True(t, common.IsErrNo(deleteErr, common.APPLICATION_IN_USE))
		} else {
			assert.True(t, common.IsErrNo(createErr, common.APPLICATION_NOT_EXISTS))
			assert.NoError(t, deleteErr)
			assert.True(t, common.IsErrNo(appErr, common.APPLICATION_NOT_EXISTS))
		}
	}
}
