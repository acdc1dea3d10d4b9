package syncengine

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"
)

func TestSQLiteAuditLogRecordsRows(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()

	audit, err := NewSQLiteAuditLog(ctx, db)
	require.NoError(t, err)

	local, err := time.Parse(time.RFC3339, "2026-01-01T00:00:00Z")
	require.NoError(t, err)
	remote, err := time.Parse(time.RFC3339, "2026-01-02T00:00:00Z")
	require.NoError(t, err)

	require.NoError(t, audit.RecordLWW(ctx, "cycle-1", "Item", "1", "u1", "candidate", local, remote))

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lww_audit`).Scan(&count))
	require.Equal(t, 1, count)
}
