package model

import "time"

// Template is the templates table: a registered golden image and its
// default resource parameters. Immutable once created.
type Template struct {
	ID         string    `gorm:"primaryKey;type:text;column:id"                           json:"id"`
	Name       string    `gorm:"type:text;not null;uniqueIndex:idx_templates_name_unique;column:name" json:"name"`
	VHDXPath   string    `gorm:"type:text;not null;column:vhdx_path"                      json:"vhdx_path"`
	MemoryMB   uint64    `gorm:"type:integer;not null;column:memory_mb"                   json:"memory_mb"`
	CPUCount   uint32    `gorm:"type:integer;not null;column:cpu_count"                   json:"cpu_count"`
	GPUEnabled bool      `gorm:"type:integer;not null;column:gpu_enabled"                 json:"gpu_enabled"`
	CreatedAt  time.Time `gorm:"type:datetime;not null;column:created_at"                 json:"created_at"`
}

func (Template) TableName() string { return "templates" }
