package store

import (
	"strings"

	"github.com/hyperwake/hyperwake/internal/apierror"
)

// isUniqueConstraintErr reports whether err is a SQLite unique-index
// violation. modernc.org/sqlite surfaces these as plain errors whose
// message contains SQLite's own "UNIQUE constraint failed" text; gorm's
// dialector-level error translation targets the cgo sqlite3 driver name,
// not the pure-Go one this store registers under, so it is not relied on.
func isUniqueConstraintErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// wrapConflict maps a unique-constraint violation to apierror.ErrConflict
// (spec.md §8: "Creating a template/pool/VM with a duplicate name
// returns Conflict"), leaving any other error untouched.
func wrapConflict(err error, message string) error {
	if isUniqueConstraintErr(err) {
		return apierror.WrapError(apierror.ErrConflict, message, err)
	}
	return err
}
