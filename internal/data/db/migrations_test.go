package db

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "workboard.db"), DefaultOpenOptions(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func openRawConn(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "raw.db")
	conn, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", dbPath))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestMigrateUp_FreshDB(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	applied, err := appliedVersions(ctx, database.Conn())
	require.NoError(t, err)

	migrations, err := loadMigrations()
	require.NoError(t, err)
	require.Len(t, applied, len(migrations))
	for _, m := range migrations {
		assert.True(t, applied[m.Version], "version %d should be applied", m.Version)
	}

	_, err = database.Conn().ExecContext(ctx, "SELECT 1 FROM worker_events LIMIT 0")
	require.NoError(t, err, "worker_events table should exist")
}

func TestMigrateUp_Idempotent(t *testing.T) {
	database := openTestDB(t)

	err := migrateUp(context.Background(), database.Conn(), zerolog.Nop())
	assert.NoError(t, err, "second migrateUp should be idempotent")
}

func TestMigrateUp_PartiallyApplied(t *testing.T) {
	conn := openRawConn(t)
	ctx := context.Background()

	migrations, err := loadMigrations()
	require.NoError(t, err)
	require.NoError(t, ensureMigrationsTable(ctx, conn))
	require.NoError(t, applyMigration(ctx, conn, migrations[0]))

	require.NoError(t, migrateUp(ctx, conn, zerolog.Nop()))

	applied, err := appliedVersions(ctx, conn)
	require.NoError(t, err)
	assert.Len(t, applied, len(migrations))
}

func TestMigrateDown(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	conn := database.Conn()

	_, err := conn.ExecContext(ctx, `
		INSERT INTO worker_events (id, worker, kind, created_at)
		VALUES ('evt-1', 'alice', 'report', 1)
	`)
	require.NoError(t, err)

	// Revert the lookup index only.
	require.NoError(t, migrateDown(ctx, conn, 1, zerolog.Nop()))

	var indexes int
	err = conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_worker_events_worker_created'",
	).Scan(&indexes)
	require.NoError(t, err)
	assert.Zero(t, indexes)

	var count int
	err = conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM worker_events").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "event row should be preserved")

	require.NoError(t, migrateDown(ctx, conn, 1, zerolog.Nop()))
	_, err = conn.ExecContext(ctx, "SELECT 1 FROM worker_events LIMIT 0")
	require.Error(t, err, "worker_events should not exist after reverting everything")
}

func TestMigrateDown_InvalidN(t *testing.T) {
	conn := openRawConn(t)
	ctx := context.Background()

	require.Error(t, migrateDown(ctx, conn, 0, zerolog.Nop()), "n=0 should fail")
	require.Error(t, migrateDown(ctx, conn, -1, zerolog.Nop()), "n=-1 should fail")
}

func TestMigrateDown_TooMany(t *testing.T) {
	database := openTestDB(t)

	migrations, err := loadMigrations()
	require.NoError(t, err)

	err = migrateDown(context.Background(), database.Conn(), len(migrations)+1, zerolog.Nop())
	assert.Error(t, err, "requesting more down migrations than applied should fail")
}

func TestWithTx(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	err := database.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO worker_events (id, worker, kind, created_at) VALUES ('a', 'w', 'report', 1)")
		require.NoError(t, err)
		return fmt.Errorf("abort")
	})
	require.EqualError(t, err, "abort")

	var count int
	require.NoError(t, database.Conn().QueryRowContext(ctx, "SELECT COUNT(*) FROM worker_events").Scan(&count))
	assert.Zero(t, count, "rolled back insert should not persist")
}

func TestLoadMigrations_Valid(t *testing.T) {
	migrations, err := loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	for i := 1; i < len(migrations); i++ {
		assert.Greater(t, migrations[i].Version, migrations[i-1].Version)
	}

	for _, m := range migrations {
		assert.NotEmpty(t, m.UpSQL, "migration %d up SQL", m.Version)
		assert.NotEmpty(t, m.DownSQL, "migration %d down SQL", m.Version)
		assert.NotEmpty(t, m.Name, "migration %d name", m.Version)
	}
}

func TestParseFilename(t *testing.T) {
	tests := []struct {
		filename      string
		wantVersion   int
		wantName      string
		wantDirection string
		wantErr       bool
	}{
		{"0001_worker_events.up.sql", 1, "worker_events", "up", false},
		{"0001_worker_events.down.sql", 1, "worker_events", "down", false},
		{"0100_big_version.down.sql", 100, "big_version", "down", false},
		{"bad.sql", 0, "", "", true},
		{"0001_initial.sql", 0, "", "", true},
		{"0000_zero.up.sql", 0, "", "", true},
		{"abc_notnumber.up.sql", 0, "", "", true},
		{"0001_.up.sql", 0, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, direction, err := parseFilename(tt.filename)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, version)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantDirection, direction)
		})
	}
}
