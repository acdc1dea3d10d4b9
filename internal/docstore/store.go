package docstore

import "context"

// UpsertOptions controls upsert behavior. MarkPending defaults to true at
// the call sites that matter (local store); remote adapters ignore it
// entirely since pending-change tracking is a local-only concern.
type UpsertOptions struct {
	// MarkPending, when true (the default local-store behavior), inserts a
	// pending-change row alongside the document write. The pull phase sets
	// this false so pulled updates never reappear as pending work (I4).
	MarkPending bool
}

// DefaultUpsertOptions is what application-initiated writes use.
var DefaultUpsertOptions = UpsertOptions{MarkPending: true}

// PullUpsertOptions is what the sync engine's pull phase uses.
var PullUpsertOptions = UpsertOptions{MarkPending: false}

// Store is the contract shared by the local store (C2) and every remote
// store adapter (C3), per spec §4.1. Pending-change operations are
// meaningful only for local stores; remote adapters implement them as
// no-ops returning an empty slice.
type Store interface {
	// Get is a point lookup scoped to userID. Returns (nil, nil) if absent
	// — NotFound is never an error at this boundary.
	Get(ctx context.Context, id, userID string) (*Record, error)

	// GetByUser scans every document of this store's kind owned by userID.
	GetByUser(ctx context.Context, userID string) ([]*Record, error)

	// GetAll scans every document of this store's kind, used by
	// diagnostics and the initial-pull emptiness check.
	GetAll(ctx context.Context) ([]*Record, error)

	// Upsert inserts or replaces a document keyed by its id.
	Upsert(ctx context.Context, rec *Record, opts UpsertOptions) error

	// UpsertBulk is the batched form of Upsert: atomic per document, not
	// required to be atomic across documents (§4.1, §4.3).
	UpsertBulk(ctx context.Context, recs []*Record, opts UpsertOptions) error

	// GetPending returns documents with a pending-change row. Remote
	// adapters always return an empty slice.
	GetPending(ctx context.Context) ([]*Record, error)

	// GetPendingForUser is GetPending scoped to an owner.
	GetPendingForUser(ctx context.Context, userID string) ([]*Record, error)

	// RemovePending clears the pending-change row for id. Absent rows are
	// silently tolerated. No-op on remote adapters.
	RemovePending(ctx context.Context, id string) error
}
