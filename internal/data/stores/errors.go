package stores

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// IsCorruptionError returns true if the error indicates database corruption.
func IsCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB:
			return true
		}
	}

	msg := err.Error()
	return strings.Contains(msg, "database disk image is malformed") ||
		strings.Contains(msg, "file is not a database")
}

// RecoverFromCorruption moves a corrupt database at path aside, together with
// its WAL and SHM companions, so the next open starts from an empty file.
func RecoverFromCorruption(path string) (string, error) {
	backup := fmt.Sprintf("%s.corrupt.%s", path, time.Now().Format("20060102-150405"))

	if err := os.Rename(path, backup); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to back up corrupted database: %w", err)
	}

	// Stale WAL/SHM files must not be paired with the fresh database.
	for _, suffix := range []string{"-wal", "-shm"} {
		companion := path + suffix
		if _, err := os.Stat(companion); err != nil {
			continue
		}
		if err := os.Rename(companion, backup+suffix); err != nil {
			if rmErr := os.Remove(companion); rmErr != nil {
				return "", fmt.Errorf("failed to move or remove %s: %w", companion, err)
			}
		}
	}

	return backup, nil
}
