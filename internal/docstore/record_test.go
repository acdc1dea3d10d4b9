package docstore_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/docsync/internal/docerr"
	"github.com/tonimelisma/docsync/internal/docstore"
)

func TestExtractCamelCase(t *testing.T) {
	raw := json.RawMessage(`{"id":"1","userId":"u1","type":"Item","lastModified":"2024-01-02T03:04:05Z","content":"A"}`)

	rec, err := docstore.Extract(raw, "Item")
	require.NoError(t, err)
	assert.Equal(t, "1", rec.ID)
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, "Item", rec.Type)
	assert.True(t, rec.HasTimestamp)
	assert.Equal(t, raw, rec.Raw)
}

func TestExtractPascalCase(t *testing.T) {
	raw := json.RawMessage(`{"Id":"2","UserId":"u1","Type":"Order","LastModified":"2024-01-02T03:04:05Z"}`)

	rec, err := docstore.Extract(raw, "Order")
	require.NoError(t, err)
	assert.Equal(t, "2", rec.ID)
	assert.Equal(t, "u1", rec.UserID)
}

func TestExtractTypeDefaultsToKindName(t *testing.T) {
	raw := json.RawMessage(`{"id":"3","userId":"u1"}`)

	rec, err := docstore.Extract(raw, "Item")
	require.NoError(t, err)
	assert.Equal(t, "Item", rec.Type)
	assert.False(t, rec.HasTimestamp)
}

func TestExtractMalformedPayload(t *testing.T) {
	_, err := docstore.Extract(json.RawMessage(`not json`), "Item")
	require.Error(t, err)
	assert.True(t, docerr.Is(err, docerr.InvalidArgument))
}

func TestWithPartitionKeyInsertsAndPreservesBytes(t *testing.T) {
	raw := json.RawMessage(`{"id":"1","userId":"u1","type":"Item","content":"A"}`)

	out, err := docstore.WithPartitionKey(raw, "u1:Item")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "u1:Item", decoded["partitionKey"])
	assert.Equal(t, "A", decoded["content"])
	assert.Equal(t, "1", decoded["id"])
}

func TestPartitionKeyFormat(t *testing.T) {
	assert.Equal(t, "u1:Item", docstore.PartitionKey("u1", "Item"))
}

func TestValidateRejectsMissingFields(t *testing.T) {
	err := docstore.Validate(&docstore.Record{}, "test.op")
	require.Error(t, err)
	assert.True(t, docerr.Is(err, docerr.InvalidArgument))
}

func TestRequireUserID(t *testing.T) {
	require.Error(t, docstore.RequireUserID("", "test.op"))
	require.NoError(t, docstore.RequireUserID("u1", "test.op"))
}
