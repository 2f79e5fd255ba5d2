package store

import (
	"context"

	"github.com/hyperwake/hyperwake/internal/store/model"
	"gorm.io/gorm"
)

// TemplateRepository persists Template rows.
type TemplateRepository struct{ db *gorm.DB }

func NewTemplateRepository(db *gorm.DB) *TemplateRepository { return &TemplateRepository{db: db} }

func (r *TemplateRepository) Create(ctx context.Context, t *model.Template) error {
	err := r.db.WithContext(ctx).Create(t).Error
	return wrapConflict(err, "template "+t.Name+" already exists")
}

func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*model.Template, error) {
	var t model.Template
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TemplateRepository) GetByName(ctx context.Context, name string) (*model.Template, error) {
	var t model.Template
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TemplateRepository) List(ctx context.Context) ([]*model.Template, error) {
	var templates []*model.Template
	if err := r.db.WithContext(ctx).Order("created_at").Find(&templates).Error; err != nil {
		return nil, err
	}
	return templates, nil
}

// Delete removes a template. Callers must first confirm no pool
// references it (spec.md §3's Template lifecycle invariant).
func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.Template{}, "id = ?", id).Error
}
