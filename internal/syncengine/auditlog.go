package syncengine

import (
	"context"
	"database/sql"
	"time"

	"github.com/tonimelisma/docsync/internal/docerr"
)

// SQLiteAuditLog is the optional LWW audit-log supplement: a write-only
// table recording which side won each LWW comparison during a sync cycle,
// for diagnostics only. Never consulted by Engine itself, so it cannot
// influence reconciliation.
type SQLiteAuditLog struct {
	db *sql.DB
}

// NewSQLiteAuditLog creates the lww_audit table (if absent) on db and
// returns a logger writing to it.
func NewSQLiteAuditLog(ctx context.Context, db *sql.DB) (*SQLiteAuditLog, error) {
	const ddl = `
CREATE TABLE IF NOT EXISTS lww_audit (
	cycle_id    TEXT NOT NULL,
	doc_type    TEXT NOT NULL,
	id          TEXT NOT NULL,
	user_id     TEXT NOT NULL,
	winner      TEXT NOT NULL,
	local_ts    TEXT,
	remote_ts   TEXT,
	recorded_at TEXT NOT NULL
)`

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, docerr.Wrap(docerr.Storage, "syncengine.NewSQLiteAuditLog", "creating lww_audit table", err)
	}

	return &SQLiteAuditLog{db: db}, nil
}

// RecordLWW implements AuditLogger.
func (a *SQLiteAuditLog) RecordLWW(ctx context.Context, cycleID, docType, id, userID, winner string, localTS, remoteTS time.Time) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO lww_audit (cycle_id, doc_type, id, user_id, winner, local_ts, remote_ts, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		cycleID, docType, id, userID, winner,
		formatOrNull(localTS), formatOrNull(remoteTS), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return docerr.Wrap(docerr.Storage, "syncengine.RecordLWW", "inserting audit row", err)
	}

	return nil
}

func formatOrNull(t time.Time) any {
	if t.IsZero() {
		return nil
	}

	return t.UTC().Format(time.RFC3339Nano)
}

var _ AuditLogger = (*SQLiteAuditLog)(nil)
