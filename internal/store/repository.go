// Package store is the durable, transactional record of templates,
// pools, VMs, and leases, per spec.md §4.5. It wraps gorm over
// modernc.org/sqlite (pure Go, no cgo) the way
// internal/jvp/repository/repository.go wraps gorm over the same
// driver. SQLite has no portable row-lock syntax, so the acquire path's
// exclusivity instead comes from a single-connection pool: only one
// transaction can hold the database at a time, which is sufficient
// given spec.md §4.5's single-writer requirement.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperwake/hyperwake/internal/store/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Repository owns the single *gorm.DB connection backing the store.
type Repository struct {
	db *gorm.DB
}

// New opens (creating if absent) the sqlite database at dbPath, runs the
// schema migration, and returns a ready Repository.
func New(dbPath string) (*Repository, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite only tolerates one writer at a time; the store's
	// concurrency model (§5) relies on this single connection to
	// serialize transactions, not on row locks or parallel writers.
	sqlDB.SetMaxOpenConns(1)

	db, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        dbPath,
		Conn:       sqlDB,
	}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open gorm database: %w", err)
	}

	if err := db.AutoMigrate(
		&model.Template{},
		&model.Pool{},
		&model.VM{},
		&model.Lease{},
		&model.SchemaMigration{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := ensureSchemaVersion(db); err != nil {
		return nil, fmt.Errorf("schema version: %w", err)
	}
	if err := createIndexes(db); err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}

	return &Repository{db: db}, nil
}

func ensureSchemaVersion(db *gorm.DB) error {
	var row model.SchemaMigration
	err := db.First(&row).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		return db.Create(&model.SchemaMigration{Version: model.CurrentSchemaVersion}).Error
	case err != nil:
		return err
	case row.Version != model.CurrentSchemaVersion:
		return fmt.Errorf("database schema version %d does not match binary version %d; run a migration before upgrading", row.Version, model.CurrentSchemaVersion)
	default:
		return nil
	}
}

func createIndexes(db *gorm.DB) error {
	// Enforce "at most one active lease per VM" (spec.md §3) at the
	// storage layer, not just in application logic.
	return db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_leases_vm_unique
		ON leases(vm_id)
	`).Error
}

// DB returns the underlying *gorm.DB, for repositories constructed on
// top of this Repository.
func (r *Repository) DB() *gorm.DB { return r.db }

// WithContext returns a *gorm.DB bound to ctx.
func (r *Repository) WithContext(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// Transaction runs fn inside a transaction, rolling back on any returned
// error. Acquire's select-and-lease step goes through this; release and
// provision write through the per-table repositories without one.
func (r *Repository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// Close releases the underlying connection.
func (r *Repository) Close() error {
	if r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
