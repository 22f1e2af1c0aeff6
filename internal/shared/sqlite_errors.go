// Package shared provides helpers used by more than one storage backend.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import "strings"

// sqliteConflictMarkers are the fragments modernc.org/sqlite puts in errors
// raised while another connection holds the write lock.
var sqliteConflictMarkers = []string{"SQLITE_BUSY", "database is locked", "SQLITE_LOCKED"}

// IsSQLiteConflictError reports whether err is a SQLite lock contention
// error worth retrying.
func IsSQLiteConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, m := range sqliteConflictMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
