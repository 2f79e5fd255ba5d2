package model

import "time"

// Lease is the leases table: a transient, exclusive claim on a VM. Rows
// are deleted on release, not soft-deleted — spec.md's lease invariant
// ("exactly one open lease row references that VM") is simplest to
// enforce when "open" and "exists" are the same thing.
type Lease struct {
	ID         string     `gorm:"primaryKey;type:text;column:id"                         json:"id"`
	VMID       string     `gorm:"type:text;not null;uniqueIndex:idx_leases_vm_id_unique;column:vm_id" json:"vm_id"`
	PoolID     string     `gorm:"type:text;not null;index:idx_leases_pool_id;column:pool_id" json:"pool_id"`
	AcquiredAt time.Time  `gorm:"type:datetime;not null;column:acquired_at"              json:"acquired_at"`
	Deadline   *time.Time `gorm:"type:datetime;column:deadline"                          json:"deadline"`
}

func (Lease) TableName() string { return "leases" }
