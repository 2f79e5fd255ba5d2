package store

import (
	"context"
	"time"

	"github.com/hyperwake/hyperwake/internal/store/model"
	"gorm.io/gorm"
)

// LeaseRepository persists Lease rows. A lease row existing is the sole
// truth for "this VM is on loan" (spec.md §3); release deletes the row
// outright rather than soft-deleting it, so existence and openness
// never diverge.
type LeaseRepository struct{ db *gorm.DB }

func NewLeaseRepository(db *gorm.DB) *LeaseRepository { return &LeaseRepository{db: db} }

func (r *LeaseRepository) Create(ctx context.Context, l *model.Lease) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *LeaseRepository) GetByID(ctx context.Context, id string) (*model.Lease, error) {
	var l model.Lease
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *LeaseRepository) GetByVMID(ctx context.Context, vmID string) (*model.Lease, error) {
	var l model.Lease
	if err := r.db.WithContext(ctx).Where("vm_id = ?", vmID).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// DeleteByVMID releases the lease for vmID. Deleting zero rows is not an
// error: release is idempotent per spec.md §4.3 ("releasing an
// already-released or unknown vm_name is not an error").
func (r *LeaseRepository) DeleteByVMID(ctx context.Context, vmID string) error {
	return r.db.WithContext(ctx).Delete(&model.Lease{}, "vm_id = ?", vmID).Error
}

// ListExpired returns leases whose deadline has passed as of asOf. The
// reconciler does not call it, so lease deadlines are not enforced.
func (r *LeaseRepository) ListExpired(ctx context.Context, asOf time.Time) ([]*model.Lease, error) {
	var leases []*model.Lease
	if err := r.db.WithContext(ctx).Where("deadline IS NOT NULL AND deadline < ?", asOf).Find(&leases).Error; err != nil {
		return nil, err
	}
	return leases, nil
}
