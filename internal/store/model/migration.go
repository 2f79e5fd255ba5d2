package model

// SchemaMigration records the schema version applied to this database,
// per spec.md §4.5's "schema versioned in-database" requirement.
type SchemaMigration struct {
	Version int `gorm:"primaryKey;column:version" json:"version"`
}

func (SchemaMigration) TableName() string { return "schema_migrations" }

// CurrentSchemaVersion is bumped whenever AutoMigrate alone is not
// sufficient to carry an existing database forward (a column rename, a
// backfill). Repository.New checks this on startup.
const CurrentSchemaVersion = 1
