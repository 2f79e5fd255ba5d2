package model

import "time"

// VM is the vms table: the central managed entity. Its State column is
// the store's half of the lifecycle controller's state machine — the
// controller validates transitions before writing here.
type VM struct {
	ID               string    `gorm:"primaryKey;type:text;column:id"                        json:"id"`
	Name             string    `gorm:"type:text;not null;uniqueIndex:idx_vms_name_unique;column:name" json:"name"`
	PoolID           string    `gorm:"type:text;not null;index:idx_vms_pool_id;column:pool_id" json:"pool_id"`
	TemplateID       string    `gorm:"type:text;not null;column:template_id"                 json:"template_id"`
	State            string    `gorm:"type:text;not null;index:idx_vms_state;column:state"   json:"state"`
	ErrorMessage     string    `gorm:"type:text;column:error_message"                        json:"error_message"`
	DiffDiskPath     string    `gorm:"type:text;not null;column:diff_disk_path"              json:"diff_disk_path"`
	VMRSPath         string    `gorm:"type:text;column:vmrs_path"                            json:"vmrs_path"`
	CheckpointName   string    `gorm:"type:text;column:checkpoint_name"                      json:"checkpoint_name"`
	IPAddress        string    `gorm:"type:text;column:ip_address"                           json:"ip_address"`
	CurrentLeaseID   string    `gorm:"type:text;index:idx_vms_lease_id;column:current_lease_id" json:"current_lease_id"`
	ResumeCount      int       `gorm:"type:integer;not null;column:resume_count"             json:"resume_count"`
	QuarantineReason string    `gorm:"type:text;column:quarantine_reason"                    json:"quarantine_reason"`
	LastResumedAt    *time.Time `gorm:"type:datetime;column:last_resumed_at"                 json:"last_resumed_at"`
	CreatedAt        time.Time `gorm:"type:datetime;not null;column:created_at"              json:"created_at"`
	UpdatedAt        time.Time `gorm:"type:datetime;not null;column:updated_at"              json:"updated_at"`
}

func (VM) TableName() string { return "vms" }
