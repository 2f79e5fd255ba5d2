package store

import (
	"context"

	"github.com/hyperwake/hyperwake/internal/store/model"
	"gorm.io/gorm"
)

// PoolRepository persists Pool rows.
type PoolRepository struct{ db *gorm.DB }

func NewPoolRepository(db *gorm.DB) *PoolRepository { return &PoolRepository{db: db} }

func (r *PoolRepository) Create(ctx context.Context, p *model.Pool) error {
	err := r.db.WithContext(ctx).Create(p).Error
	return wrapConflict(err, "pool "+p.Name+" already exists")
}

func (r *PoolRepository) GetByID(ctx context.Context, id string) (*model.Pool, error) {
	var p model.Pool
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PoolRepository) GetByName(ctx context.Context, name string) (*model.Pool, error) {
	var p model.Pool
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PoolRepository) List(ctx context.Context) ([]*model.Pool, error) {
	var pools []*model.Pool
	if err := r.db.WithContext(ctx).Order("created_at").Find(&pools).Error; err != nil {
		return nil, err
	}
	return pools, nil
}

func (r *PoolRepository) Update(ctx context.Context, p *model.Pool) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *PoolRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.Pool{}, "id = ?", id).Error
}
