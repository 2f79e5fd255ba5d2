package model

import "time"

// Pool is the pools table: a named collection of VMs cloned from one
// template.
type Pool struct {
	ID                    string    `gorm:"primaryKey;type:text;column:id"                           json:"id"`
	Name                  string    `gorm:"type:text;not null;uniqueIndex:idx_pools_name_unique;column:name" json:"name"`
	TemplateID            string    `gorm:"type:text;not null;index:idx_pools_template_id;column:template_id" json:"template_id"`
	DesiredCount          int       `gorm:"type:integer;not null;column:desired_count"               json:"desired_count"`
	WarmCount             int       `gorm:"type:integer;not null;column:warm_count"                  json:"warm_count"`
	PerHostCap            int       `gorm:"type:integer;not null;column:per_host_cap"                json:"per_host_cap"`
	DefaultResetOnRelease bool      `gorm:"type:integer;not null;column:default_reset_on_release"    json:"default_reset_on_release"`
	CreatedAt             time.Time `gorm:"type:datetime;not null;column:created_at"                 json:"created_at"`
}

func (Pool) TableName() string { return "pools" }
