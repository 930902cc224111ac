package dao

import (
	"context"
	"errors"
	"slices"
	"time"

	"shipyard/internal/common"
	"shipyard/internal/server/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxUpdateAttempts bounds the compare-and-swap retries of Update.
const maxUpdateAttempts = 5

var errRevisionConflict = errors.New("pipeline revision changed concurrently")

// PipelineFilter narrows ListPipelines. Zero fields match everything.
type PipelineFilter struct {
	ApplicationID string
	Status        model.PipelineStatus
	Environment   model.Environment
	UpdatedBefore time.Time
}

type PipelineDao interface {
	// Create inserts a pipeline whose application exists at commit time.
	Create(ctx context.Context, pipeline *model.Pipeline) error
	GetPipelineByID(ctx context.Context, id string) (*model.Pipeline, error)
	// Update applies mutate to the current row atomically. Nothing is written
	// when mutate returns an error.
	Update(ctx context.Context, id string, mutate func(p *model.Pipeline) error) (*model.Pipeline, error)
	// ListPipelines returns a snapshot ordered newest first.
	ListPipelines(ctx context.Context, filter PipelineFilter) ([]*model.Pipeline, error)
}

type pipelineDAO struct {
	db *gorm.DB
}

func NewPipelineDao(db *gorm.DB) PipelineDao {
	return &pipelineDAO{db: db}
}

func (d *pipelineDAO) Create(ctx context.Context, pipeline *model.Pipeline) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 共享锁挡住并发的应用删除，删除方先加排他锁再统计引用
		var app model.Application
		err := tx.Clauses(clause.Locking{Strength: "SHARE"}).Select("id").
			Where("id = ?", pipeline.ApplicationID).Take(&app).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.NewErrNo(common.APPLICATION_NOT_EXISTS)
			}
			return err
		}
		return tx.Create(pipeline).Error
	})
}

func (d *pipelineDAO) GetPipelineByID(ctx context.Context, id string) (*model.Pipeline, error) {
	var pipeline model.Pipeline
	err := d.db.WithContext(ctx).Where("id = ?", id).Take(&pipeline).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewErrNo(common.PIPELINE_NOT_EXISTS)
		}
		return nil, err
	}
	return &pipeline, nil
}

func (d *pipelineDAO) Update(ctx context.Context, id string, mutate func(p *model.Pipeline) error) (*model.Pipeline, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		var updated *model.Pipeline
		err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var pipeline model.Pipeline
			if err := tx.Where("id = ?", id).Take(&pipeline).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return common.NewErrNo(common.PIPELINE_NOT_EXISTS)
				}
				return err
			}

			revision := pipeline.Revision
			template := pipeline.StageNames()
			if err := mutate(&pipeline); err != nil {
				return err
			}
			if !slices.Equal(template, pipeline.StageNames()) {
				return common.NewErrNof(common.STATE_CONFLICT, "stage template is immutable")
			}

			pipeline.ID = id
			pipeline.Revision = revision + 1
			result := tx.Model(&pipeline).Where("revision = ?", revision).Select("*").Updates(&pipeline)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return errRevisionConflict
			}
			updated = &pipeline
			return nil
		})
		if errors.Is(err, errRevisionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, errRevisionConflict
}

func (d *pipelineDAO) ListPipelines(ctx context.Context, filter PipelineFilter) ([]*model.Pipeline, error) {
	query := d.db.WithContext(ctx).Model(&model.Pipeline{})
	if filter.ApplicationID != "" {
		query = query.Where("application_id = ?", filter.ApplicationID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Environment != "" {
		query = query.Where("environment = ?", filter.Environment)
	}
	if !filter.UpdatedBefore.IsZero() {
		query = query.Where("updated_at < ?", filter.UpdatedBefore)
	}

	var pipelines []*model.Pipeline
	if err := query.Order("created_at DESC").Order("id DESC").Find(&pipelines).Error; err != nil {
		return nil, err
	}
	return pipelines, nil
}
