package dao

import (
	"context"
	"errors"

	"shipyard/internal/common"
	"shipyard/internal/server/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ApplicationDao interface {
	// create application, name must be unique
	Create(ctx context.Context, app *model.Application) error
	GetApplicationByID(ctx context.Context, id string) (*model.Application, error)
	GetApplicationByName(ctx context.Context, name string) (*model.Application, error)
	ListApplications(ctx context.Context) ([]*model.Application, error)
	Count(ctx context.Context) (int64, error)
	// delete application that no pipeline references
	Delete(ctx context.Context, id string) error
}

type applicationDAO struct {
	db *gorm.DB
}

func NewApplicationDao(db *gorm.DB) ApplicationDao {
	return &applicationDAO{db: db}
}

func (d *applicationDAO) Create(ctx context.Context, app *model.Application) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&model.Application{}).Where("name = ?", app.Name).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return common.NewErrNo(common.APPLICATION_EXISTS)
		}
		if err := tx.Create(app).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return common.NewErrNo(common.APPLICATION_EXISTS)
			}
			return err
		}
		return nil
	})
}

func (d *applicationDAO) GetApplicationByID(ctx context.Context, id string) (*model.Application, error) {
	var app model.Application
	err := d.db.WithContext(ctx).Where("id = ?", id).Take(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewErrNo(common.APPLICATION_NOT_EXISTS)
		}
		return nil, err
	}
	return &app, nil
}

func (d *applicationDAO) GetApplicationByName(ctx context.Context, name string) (*model.Application, error) {
	var app model.Application
	err := d.db.WithContext(ctx).Where("name = ?", name).Take(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewErrNo(common.APPLICATION_NOT_EXISTS)
		}
		return nil, err
	}
	return &app, nil
}

func (d *applicationDAO) ListApplications(ctx context.Context) ([]*model.Application, error) {
	var apps []*model.Application
	if err := d.db.WithContext(ctx).Order("created_at DESC").Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

func (d *applicationDAO) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := d.db.WithContext(ctx).Model(&model.Application{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (d *applicationDAO) Delete(ctx context.Context, id string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var app model.Application
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").Where("id = ?", id).Take(&app).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.NewErrNo(common.APPLICATION_NOT_EXISTS)
			}
			return err
		}

		var refs int64
		if err := tx.Model(&model.Pipeline{}).Where("application_id = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return common.NewErrNo(common.APPLICATION_IN_USE)
		}
		result := tx.Where("id = ?", id).Delete(&model.Application{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return common.NewErrNo(common.APPLICATION_NOT_EXISTS)
		}
		return nil
	})
}
