// Package mysql 提供了模拟批次仓储接口的 GORM 实现（MySQL，开发与测试环境使用 SQLite）。
package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/creditpool/internal/poolsim/domain"
	"github.com/wyfcoding/creditpool/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultPathBatchSize = 500

// runRepositoryImpl 模拟批次仓储实现
type runRepositoryImpl struct {
	db        *gorm.DB
	batchSize int
}

// NewRunRepository 创建模拟批次仓储实例，batchSize 为路径结果的批量写入大小
func NewRunRepository(gdb *gorm.DB, batchSize int) domain.RunRepository {
	if batchSize <= 0 {
		batchSize = defaultPathBatchSize
	}
	return &runRepositoryImpl{db: gdb, batchSize: batchSize}
}

// AutoMigrate 创建或更新表结构
func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&SimulationRunModel{}, &PathResultModel{}, &SamplePathModel{})
}

func (r *runRepositoryImpl) Save(ctx context.Context, run *domain.SimulationRun) error {
	m, err := toRunModel(run)
	if err != nil {
		return err
	}
	if m.ID != 0 {
		err = r.db.WithContext(ctx).Save(m).Error
	} else {
		err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}},
			UpdateAll: true,
		}).Create(m).Error
	}
	if err != nil {
		return err
	}
	if run.ID == 0 {
		run.ID = m.ID
		run.CreatedAt = m.CreatedAt
	}
	run.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *runRepositoryImpl) Get(ctx context.Context, runID string) (*domain.SimulationRun, error) {
	var m SimulationRunModel
	if err := r.db.WithContext(ctx).Where("run_id = ?", runID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
		}
		return nil, err
	}
	return toRun(&m)
}

func (r *runRepositoryImpl) FindCompleted(ctx context.Context, fingerprint string) (*domain.SimulationRun, error) {
	var m SimulationRunModel
	err := r.db.WithContext(ctx).
		Where("fingerprint = ? AND status = ?", fingerprint, string(domain.RunStatusCompleted)).
		Order("id DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRunNotFound
		}
		return nil, err
	}
	return toRun(&m)
}

func (r *runRepositoryImpl) List(ctx context.Context, offset, limit int) ([]*domain.SimulationRun, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&SimulationRunModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []SimulationRunModel
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}

	runs := make([]*domain.SimulationRun, 0, len(models))
	for i := range models {
		run, err := toRun(&models[i])
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	return runs, total, nil
}

// SavePathResults 覆盖写入批次的路径结果
func (r *runRepositoryImpl) SavePathResults(ctx context.Context, runID string, results []domain.PathResult) error {
	models := make([]PathResultModel, len(results))
	for i, res := range results {
		m, err := toPathResultModel(runID, res)
		if err != nil {
			return err
		}
		models[i] = m
	}

	return db.WithTx(ctx, r.db, func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", runID).Delete(&PathResultModel{}).Error; err != nil {
			return err
		}
		if len(models) == 0 {
			return nil
		}
		return db.BatchInsert(ctx, tx, &models, r.batchSize)
	})
}

func (r *runRepositoryImpl) ListPathResults(ctx context.Context, runID string) ([]domain.PathResult, error) {
	var models []PathResultModel
	if err := r.db.WithContext(ctx).Where("run_id = ?", runID).Order("path_id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.PathResult, 0, len(models))
	for i := range models {
		res, err := toPathResult(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// SaveSamples 覆盖写入批次的样本路径
func (r *runRepositoryImpl) SaveSamples(ctx context.Context, runID string, samples []*domain.Path) error {
	models := make([]SamplePathModel, len(samples))
	for i, p := range samples {
		m, err := toSamplePathModel(runID, p)
		if err != nil {
			return err
		}
		models[i] = m
	}

	return db.WithTx(ctx, r.db, func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", runID).Delete(&SamplePathModel{}).Error; err != nil {
			return err
		}
		if len(models) == 0 {
			return nil
		}
		return db.BatchInsert(ctx, tx, &models, r.batchSize)
	})
}

func (r *runRepositoryImpl) ListSamples(ctx context.Context, runID string) ([]*domain.Path, error) {
	var models []SamplePathModel
	if err := r.db.WithContext(ctx).Where("run_id = ?", runID).Order("path_id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Path, 0, len(models))
	for i := range models {
		p, err := toSamplePath(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
