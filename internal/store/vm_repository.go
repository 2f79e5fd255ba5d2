package store

import (
	"context"

	"github.com/hyperwake/hyperwake/internal/store/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLite has no "SELECT ... FOR UPDATE" syntax, so clause.Locking is not
// usable here. Row-level exclusivity for the acquire path instead comes
// from Repository.New's single-connection pool (SetMaxOpenConns(1)):
// only one transaction can hold the connection at a time, so the select
// and the lease-commit inside it are already serialized against every
// other acquire in the process.

// VMRepository persists VM rows.
type VMRepository struct{ db *gorm.DB }

func NewVMRepository(db *gorm.DB) *VMRepository { return &VMRepository{db: db} }

func (r *VMRepository) Create(ctx context.Context, v *model.VM) error {
	err := r.db.WithContext(ctx).Create(v).Error
	return wrapConflict(err, "vm "+v.Name+" already exists")
}

func (r *VMRepository) GetByID(ctx context.Context, id string) (*model.VM, error) {
	var v model.VM
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VMRepository) GetByName(ctx context.Context, name string) (*model.VM, error) {
	var v model.VM
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VMRepository) ListByPool(ctx context.Context, poolID string) ([]*model.VM, error) {
	var vms []*model.VM
	if err := r.db.WithContext(ctx).Where("pool_id = ?", poolID).Order("name").Find(&vms).Error; err != nil {
		return nil, err
	}
	return vms, nil
}

func (r *VMRepository) List(ctx context.Context) ([]*model.VM, error) {
	var vms []*model.VM
	if err := r.db.WithContext(ctx).Order("name").Find(&vms).Error; err != nil {
		return nil, err
	}
	return vms, nil
}

func (r *VMRepository) Update(ctx context.Context, v *model.VM) error {
	return r.db.WithContext(ctx).Save(v).Error
}

func (r *VMRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.VM{}, "id = ?", id).Error
}

// SelectForAcquire implements spec.md §4.2 acquire step 1 under a
// row-level lock: any VM of poolID that is Saved and unleased, least-
// recently-resumed first. Must be called inside a transaction (tx is
// the transaction's *gorm.DB, from Repository.Transaction) so the lock
// is held until the caller commits the lease assignment.
func (r *VMRepository) SelectForAcquire(ctx context.Context, tx *gorm.DB, poolID string) (*model.VM, error) {
	var v model.VM
	err := tx.WithContext(ctx).
		Where("pool_id = ? AND state = ? AND current_lease_id = ''", poolID, "Saved").
		Order("last_resumed_at ASC NULLS FIRST, created_at ASC").
		First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Upsert inserts v or, when a row with the same id exists, overwrites
// every column (spec.md §4.5's "upsert semantics for reconciliation").
// The reconciler itself writes through Update, not Upsert.
func (r *VMRepository) Upsert(ctx context.Context, v *model.VM) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(v).Error
}
