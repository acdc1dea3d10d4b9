// Package localstore implements the local embedded document store (C2):
// a crash-safe SQLite-backed documents table plus a pending-change index,
// scoped by document type.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite" // pure Go SQLite driver, registers as "sqlite"

	"github.com/tonimelisma/docsync/internal/docerr"
	"github.com/tonimelisma/docsync/internal/docstore"
)

const walJournalSizeLimit = 67108864 // 64 MiB

// Store implements docstore.Store over a single SQLite database file,
// scoped to one document type (kind). Multiple Stores may share one
// underlying *sql.DB via Open, one per document type.
type Store struct {
	db     *sql.DB
	kind   string
	logger *slog.Logger

	getStmt               *sql.Stmt
	upsertDocStmt          *sql.Stmt
	insertPendingStmt      *sql.Stmt
	removePendingStmt      *sql.Stmt
	getByUserStmt          *sql.Stmt
	getAllStmt             *sql.Stmt
	getPendingStmt         *sql.Stmt
	getPendingForUserStmt  *sql.Stmt
}

// Open opens (or creates) the SQLite database at dbPath, applies pragmas
// and migrations, and returns a raw handle from which per-type Stores are
// constructed via New. Use ":memory:" for tests.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*sql.DB, error) {
	logger.Info("opening local document database", "path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, docerr.Wrap(docerr.Storage, "localstore.Open", "opening sqlite database", err)
	}

	if err := setPragmas(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	if err := ensureUserIDColumn(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func setPragmas(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	pragmas := []struct {
		sql  string
		desc string
	}{
		{"PRAGMA journal_mode = WAL", "WAL mode"},
		{"PRAGMA synchronous = FULL", "synchronous FULL"},
		{"PRAGMA foreign_keys = ON", "foreign keys"},
		{fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit), "journal size limit"},
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p.sql); err != nil {
			return docerr.Wrap(docerr.Storage, "localstore.setPragmas", "setting "+p.desc, err)
		}

		logger.Debug("pragma set", "pragma", p.desc)
	}

	return nil
}

// New builds a Store scoped to one document kind over an already-opened
// database (see Open). kind is the document type this store serves, used
// as the Type fallback for payloads that omit it (B3).
func New(ctx context.Context, db *sql.DB, kind string, logger *slog.Logger) (*Store, error) {
	s := &Store{db: db, kind: kind, logger: logger}

	stmts := []struct {
		dst  **sql.Stmt
		sql  string
		name string
	}{
		{&s.getStmt, `SELECT payload FROM documents WHERE id = ? AND type = ? AND user_id = ?`, "get"},
		{&s.upsertDocStmt, `INSERT INTO documents (id, type, user_id, last_modified, payload)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id, type) DO UPDATE SET
				user_id = excluded.user_id,
				last_modified = excluded.last_modified,
				payload = excluded.payload`, "upsertDoc"},
		{&s.insertPendingStmt, `INSERT OR IGNORE INTO pending_changes (id, type) VALUES (?, ?)`, "insertPending"},
		{&s.removePendingStmt, `DELETE FROM pending_changes WHERE id = ? AND type = ?`, "removePending"},
		{&s.getByUserStmt, `SELECT payload FROM documents WHERE type = ? AND (
				json_extract(payload, '$.user_id') = ? OR
				json_extract(payload, '$.userId') = ? OR
				json_extract(payload, '$.UserId') = ? OR
				json_extract(payload, '$.UserID') = ?
			)`, "getByUser"},
		{&s.getAllStmt, `SELECT payload FROM documents WHERE type = ?`, "getAll"},
		{&s.getPendingStmt, `SELECT d.payload FROM documents d
			JOIN pending_changes p ON p.id = d.id AND p.type = d.type
			WHERE d.type = ?`, "getPending"},
		{&s.getPendingForUserStmt, `SELECT d.payload FROM documents d
			JOIN pending_changes p ON p.id = d.id AND p.type = d.type
			WHERE d.type = ? AND (
				json_extract(d.payload, '$.user_id') = ? OR
				json_extract(d.payload, '$.userId') = ? OR
				json_extract(d.payload, '$.UserId') = ? OR
				json_extract(d.payload, '$.UserID') = ?
			)`, "getPendingForUser"},
	}

	for _, def := range stmts {
		stmt, err := db.PrepareContext(ctx, def.sql)
		if err != nil {
			return nil, docerr.Wrap(docerr.Storage, "localstore.New", "preparing "+def.name+" statement", err)
		}

		*def.dst = stmt
	}

	return s, nil
}

// Get is a point lookup scoped to userID. Returns (nil, nil) if absent.
func (s *Store) Get(ctx context.Context, id, userID string) (*docstore.Record, error) {
	if err := docstore.RequireUserID(userID, "localstore.Get"); err != nil {
		return nil, err
	}

	var raw []byte

	err := s.getStmt.QueryRowContext(ctx, id, s.kind, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // NotFound is represented as (nil, nil), per contract
	}

	if err != nil {
		return nil, docerr.Wrap(docerr.Storage, "localstore.Get", "querying document", err)
	}

	return docstore.Extract(raw, s.kind)
}

// GetByUser scans every document of this store's kind owned by userID.
func (s *Store) GetByUser(ctx context.Context, userID string) ([]*docstore.Record, error) {
	if err := docstore.RequireUserID(userID, "localstore.GetByUser"); err != nil {
		return nil, err
	}

	rows, err := s.getByUserStmt.QueryContext(ctx, s.kind, userID, userID, userID, userID)
	if err != nil {
		return nil, docerr.Wrap(docerr.Storage, "localstore.GetByUser", "querying documents", err)
	}
	defer rows.Close()

	return s.scanRecords(rows, "localstore.GetByUser")
}

// GetAll scans every document of this store's kind.
func (s *Store) GetAll(ctx context.Context) ([]*docstore.Record, error) {
	rows, err := s.getAllStmt.QueryContext(ctx, s.kind)
	if err != nil {
		return nil, docerr.Wrap(docerr.Storage, "localstore.GetAll", "querying documents", err)
	}
	defer rows.Close()

	return s.scanRecords(rows, "localstore.GetAll")
}

// Upsert writes the document's payload and last_modified and, unless
// opts.MarkPending is false, marks it pending for push (I3).
func (s *Store) Upsert(ctx context.Context, rec *docstore.Record, opts docstore.UpsertOptions) error {
	if err := docstore.Validate(rec, "localstore.Upsert"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return docerr.Wrap(docerr.Storage, "localstore.Upsert", "beginning transaction", err)
	}

	if err := s.upsertOne(ctx, tx, rec, opts); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return docerr.Wrap(docerr.Storage, "localstore.Upsert", "committing transaction", err)
	}

	return nil
}

// UpsertBulk wraps per-document writes in one transaction (§4.2
// "Bulk upserts wrap per-document writes in one transaction").
func (s *Store) UpsertBulk(ctx context.Context, recs []*docstore.Record, opts docstore.UpsertOptions) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return docerr.Wrap(docerr.Storage, "localstore.UpsertBulk", "beginning transaction", err)
	}

	for _, rec := range recs {
		if err := docstore.Validate(rec, "localstore.UpsertBulk"); err != nil {
			_ = tx.Rollback()
			return err
		}

		if err := s.upsertOne(ctx, tx, rec, opts); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return docerr.Wrap(docerr.Storage, "localstore.UpsertBulk", "committing transaction", err)
	}

	return nil
}

// upsertOne writes the document row and, if requested, the pending-change
// row within the same transaction, so a crash between the two writes
// cannot violate I3/I4.
func (s *Store) upsertOne(ctx context.Context, tx *sql.Tx, rec *docstore.Record, opts docstore.UpsertOptions) error {
	lastModified := rec.LastModified.UTC().Format("2006-01-02T15:04:05.000000000Z")

	if _, err := tx.StmtContext(ctx, s.upsertDocStmt).ExecContext(
		ctx, rec.ID, s.kind, rec.UserID, lastModified, []byte(rec.Raw),
	); err != nil {
		return docerr.Wrap(docerr.Storage, "localstore.upsertOne", "writing document", err)
	}

	if opts.MarkPending {
		if _, err := tx.StmtContext(ctx, s.insertPendingStmt).ExecContext(ctx, rec.ID, s.kind); err != nil {
			return docerr.Wrap(docerr.Storage, "localstore.upsertOne", "marking pending", err)
		}
	}

	return nil
}

// GetPending returns documents with a pending-change row.
func (s *Store) GetPending(ctx context.Context) ([]*docstore.Record, error) {
	rows, err := s.getPendingStmt.QueryContext(ctx, s.kind)
	if err != nil {
		return nil, docerr.Wrap(docerr.Storage, "localstore.GetPending", "querying pending documents", err)
	}
	defer rows.Close()

	return s.scanRecords(rows, "localstore.GetPending")
}

// GetPendingForUser is GetPending scoped to an owner.
func (s *Store) GetPendingForUser(ctx context.Context, userID string) ([]*docstore.Record, error) {
	if err := docstore.RequireUserID(userID, "localstore.GetPendingForUser"); err != nil {
		return nil, err
	}

	rows, err := s.getPendingForUserStmt.QueryContext(ctx, s.kind, userID, userID, userID, userID)
	if err != nil {
		return nil, docerr.Wrap(docerr.Storage, "localstore.GetPendingForUser", "querying pending documents", err)
	}
	defer rows.Close()

	return s.scanRecords(rows, "localstore.GetPendingForUser")
}

// RemovePending clears the pending-change row for id. Absent rows are
// silently tolerated.
func (s *Store) RemovePending(ctx context.Context, id string) error {
	if _, err := s.removePendingStmt.ExecContext(ctx, id, s.kind); err != nil {
		return docerr.Wrap(docerr.Storage, "localstore.RemovePending", "removing pending row", err)
	}

	return nil
}

func (s *Store) scanRecords(rows *sql.Rows, op string) ([]*docstore.Record, error) {
	var recs []*docstore.Record

	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, docerr.Wrap(docerr.Storage, op, "scanning row", err)
		}

		rec, err := docstore.Extract(json.RawMessage(raw), s.kind)
		if err != nil {
			s.logger.Warn("skipping document with unparseable payload", "type", s.kind, "error", err)
			continue
		}

		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, docerr.Wrap(docerr.Storage, op, "reading rows", err)
	}

	return recs, nil
}

// Close closes all prepared statements for this store. The underlying
// *sql.DB is shared across per-kind stores and is closed separately by the
// caller that opened it.
func (s *Store) Close() error {
	stmts := []*sql.Stmt{
		s.getStmt, s.upsertDocStmt, s.insertPendingStmt, s.removePendingStmt,
		s.getByUserStmt, s.getAllStmt, s.getPendingStmt, s.getPendingForUserStmt,
	}

	for _, stmt := range stmts {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				return docerr.Wrap(docerr.Storage, "localstore.Close", "closing statement", err)
			}
		}
	}

	return nil
}

// Compile-time interface check.
var _ docstore.Store = (*Store)(nil)
