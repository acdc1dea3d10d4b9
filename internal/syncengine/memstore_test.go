package syncengine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/tonimelisma/docsync/internal/docstore"
)

// memStore is an in-memory docstore.Store double used by engine tests.
// isLocal controls whether pending-change operations are meaningful
// (local-store behavior) or no-ops (remote-adapter behavior), per spec
// §4.1/§4.3.
type memStore struct {
	mu      sync.Mutex
	kind    string
	isLocal bool
	docs    map[string]*docstore.Record // keyed by id
	pending map[string]bool
}

func newMemStore(kind string, isLocal bool) *memStore {
	return &memStore{kind: kind, isLocal: isLocal, docs: map[string]*docstore.Record{}, pending: map[string]bool{}}
}

func clone(r *docstore.Record) *docstore.Record {
	cp := *r
	return &cp
}

func (m *memStore) Get(ctx context.Context, id, userID string) (*docstore.Record, error) {
	if err := docstore.RequireUserID(userID, "memstore.Get"); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.docs[id]
	if !ok || rec.UserID != userID {
		return nil, nil
	}

	return clone(rec), nil
}

func (m *memStore) GetByUser(ctx context.Context, userID string) ([]*docstore.Record, error) {
	if err := docstore.RequireUserID(userID, "memstore.GetByUser"); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*docstore.Record

	for _, rec := range m.docs {
		if rec.UserID == userID {
			out = append(out, clone(rec))
		}
	}

	return out, nil
}

func (m *memStore) GetAll(ctx context.Context) ([]*docstore.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*docstore.Record
	for _, rec := range m.docs {
		out = append(out, clone(rec))
	}

	return out, nil
}

func (m *memStore) Upsert(ctx context.Context, rec *docstore.Record, opts docstore.UpsertOptions) error {
	return m.UpsertBulk(ctx, []*docstore.Record{rec}, opts)
}

func (m *memStore) UpsertBulk(ctx context.Context, recs []*docstore.Record, opts docstore.UpsertOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range recs {
		if err := docstore.Validate(rec, "memstore.Upsert"); err != nil {
			return err
		}

		m.docs[rec.ID] = clone(rec)

		if m.isLocal {
			markPending := opts.MarkPending
			if !markPending {
				delete(m.pending, rec.ID)
			} else {
				m.pending[rec.ID] = true
			}
		}
	}

	return nil
}

func (m *memStore) GetPending(ctx context.Context) ([]*docstore.Record, error) {
	if !m.isLocal {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*docstore.Record

	for id := range m.pending {
		if rec, ok := m.docs[id]; ok {
			out = append(out, clone(rec))
		}
	}

	return out, nil
}

func (m *memStore) GetPendingForUser(ctx context.Context, userID string) ([]*docstore.Record, error) {
	if !m.isLocal {
		return nil, nil
	}

	all, err := m.GetPending(ctx)
	if err != nil {
		return nil, err
	}

	var out []*docstore.Record

	for _, rec := range all {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}

	return out, nil
}

func (m *memStore) RemovePending(ctx context.Context, id string) error {
	if !m.isLocal {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.pending, id)

	return nil
}

func (m *memStore) hasPending(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.pending[id]
}

// put is a test helper that bypasses Upsert validation to directly seed a
// document (and, for local stores, mark it pending), mirroring "the
// application upserted this document at time T".
func (m *memStore) put(id, userID string, lastModified time.Time, content string, pending bool) *docstore.Record {
	raw, _ := json.Marshal(map[string]any{
		"id": id, "user_id": userID, "type": m.kind,
		"last_modified": lastModified.UTC().Format(time.RFC3339Nano),
		"content":       content,
	})

	rec := &docstore.Record{
		ID: id, UserID: userID, Type: m.kind,
		LastModified: lastModified.UTC(), HasTimestamp: true, Raw: raw,
	}

	m.mu.Lock()
	m.docs[id] = rec
	if m.isLocal && pending {
		m.pending[id] = true
	}
	m.mu.Unlock()

	return rec
}

func contentOf(rec *docstore.Record) string {
	if rec == nil {
		return ""
	}

	var fields map[string]any
	if err := json.Unmarshal(rec.Raw, &fields); err != nil {
		return ""
	}

	v, _ := fields["content"].(string)

	return v
}

var _ docstore.Store = (*memStore)(nil)
