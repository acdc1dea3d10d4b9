// Package docstore defines the document contract (C1) shared by the local
// store and every remote store adapter: a uniform envelope around an
// opaque, byte-faithful payload plus the handful of fields the sync engine
// needs to reason about identity, ownership, and recency.
package docstore

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/tonimelisma/docsync/internal/docerr"
)

// Record is a synchronized document: the scoping fields extracted from the
// payload, plus the payload itself preserved verbatim. Raw is never
// re-marshaled from the extracted fields — only read, so that a point read
// returns exactly the bytes a previous upsert accepted (modulo a remote
// adapter's partition_key insertion, see WithPartitionKey), per I6.
type Record struct {
	ID           string
	UserID       string
	Type         string
	LastModified time.Time
	HasTimestamp bool
	IsDeleted    bool
	Raw          json.RawMessage
}

// PartitionKey derives the remote routing key for a (user, type) pair.
func PartitionKey(userID, typ string) string {
	return userID + ":" + typ
}

// PartitionKey returns this record's own partition key.
func (r *Record) PartitionKey() string {
	return PartitionKey(r.UserID, r.Type)
}

// Extract decodes a raw JSON payload and populates id, user_id, type, and
// last_modified, tolerating both camelCase and PascalCase property names
// (spec §4.2's dual-case requirement, kept for backward-compatible stores
// per the design note in §9 against standardizing casing outright).
// kindName is used as the Type fallback when the payload carries none
// (B3: "type absent is treated as type == kind_name").
func Extract(raw json.RawMessage, kindName string) (*Record, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, docerr.Wrap(docerr.InvalidArgument, "docstore.Extract", "decoding payload", err)
	}

	rec := &Record{Raw: raw}

	id, _ := lookupString(fields, "id", "Id", "ID")
	rec.ID = id

	userID, _ := lookupString(fields, "user_id", "userId", "UserId", "UserID")
	rec.UserID = userID

	typ, ok := lookupString(fields, "type", "Type")
	if !ok || typ == "" {
		typ = kindName
	}

	rec.Type = typ

	if deleted, ok := lookupBool(fields, "is_deleted", "isDeleted", "IsDeleted"); ok {
		rec.IsDeleted = deleted
	}

	if ts, ok := lookupTime(fields, "last_modified", "lastModified", "LastModified"); ok {
		rec.LastModified = ts
		rec.HasTimestamp = true
	}

	return rec, nil
}

// WithPartitionKey returns a copy of raw with the partitionKey field set
// to key, inserting it if absent. Every other field's value is carried over
// with its bytes unchanged apart from insignificant whitespace; the object
// is re-encoded with its keys in sorted order, so the original key order
// and formatting are not kept.
func WithPartitionKey(raw json.RawMessage, key string) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, docerr.Wrap(docerr.InvalidArgument, "docstore.WithPartitionKey", "decoding payload", err)
	}

	if fields == nil {
		fields = map[string]json.RawMessage{}
	}

	keyJSON, err := json.Marshal(key)
	if err != nil {
		return nil, docerr.Wrap(docerr.Storage, "docstore.WithPartitionKey", "encoding partition key", err)
	}

	fields["partitionKey"] = keyJSON

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(fields); err != nil {
		return nil, docerr.Wrap(docerr.Storage, "docstore.WithPartitionKey", "re-encoding payload", err)
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func lookupString(fields map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}

	return "", false
}

func lookupBool(fields map[string]any, keys ...string) (bool, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			if b, ok := v.(bool); ok {
				return b, true
			}
		}
	}

	return false, false
}

func lookupTime(fields map[string]any, keys ...string) (time.Time, bool) {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok {
			continue
		}

		switch val := v.(type) {
		case string:
			if t, err := time.Parse(time.RFC3339Nano, val); err == nil {
				return t.UTC(), true
			}
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				return t.UTC(), true
			}
		case float64:
			// Milliseconds since epoch, the common wire form for numeric timestamps.
			return time.UnixMilli(int64(val)).UTC(), true
		}
	}

	return time.Time{}, false
}

// Validate enforces the malformed-document rules of §7's InvalidArgument
// kind: id, user_id, and last_modified must all be present.
func Validate(r *Record, op string) error {
	if r.UserID == "" {
		return docerr.New(docerr.InvalidArgument, op, "document missing user_id")
	}

	if r.ID == "" {
		return docerr.New(docerr.InvalidArgument, op, "document missing id")
	}

	if !r.HasTimestamp {
		return docerr.New(docerr.InvalidArgument, op, "document missing last_modified")
	}

	return nil
}

// RequireUserID is the B1 boundary check every store operation performs
// before touching storage: empty user_id fails with InvalidArgument.
func RequireUserID(userID, op string) error {
	if userID == "" {
		return docerr.New(docerr.InvalidArgument, op, "user_id must not be empty")
	}

	return nil
}
