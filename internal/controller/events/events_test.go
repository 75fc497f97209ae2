package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_FileRegistered(t *testing.T) {
	payload := []byte(`{
		"file_id": "f1",
		"size": 1000000000,
		"checksum": "abc",
		"secret_id": "s1",
		"storage_locator": {"alias": "test", "object_id": "o1"},
		"created_time": "2024-01-01T00:00:00Z"
	}`)

	var ev FileRegistered
	require.NoError(t, Decode(payload, &ev))

	m := ev.ToModel()
	assert.Equal(t, "f1", m.FileID)
	assert.Equal(t, "test", m.StorageAlias)
	assert.Equal(t, "o1", m.ObjectID)
	assert.Equal(t, int64(1000000000), m.DecryptedSize)
	assert.Equal(t, "abc", m.DecryptedSHA256)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), m.CreationDate)
	assert.Nil(t, m.LastAccessed)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		v       any
	}{
		{name: "not json", payload: `{`, v: &FileRef{}},
		{name: "missing file id", payload: `{}`, v: &FileRef{}},
		{name: "missing secret", payload: `{"file_id":"f1","storage_locator":{"alias":"a","object_id":"o"},"created_time":"2024-01-01T00:00:00Z"}`, v: &FileRegistered{}},
		{name: "missing locator", payload: `{"file_id":"f1","secret_id":"s","created_time":"2024-01-01T00:00:00Z"}`, v: &FileRegistered{}},
		{name: "negative size", payload: `{"file_id":"f1","secret_id":"s","size":-1,"checksum":"abc","storage_locator":{"alias":"a","object_id":"o"},"created_time":"2024-01-01T00:00:00Z"}`, v: &FileRegistered{}},
		{name: "missing checksum", payload: `{"file_id":"f1","secret_id":"s","size":1,"storage_locator":{"alias":"a","object_id":"o"},"created_time":"2024-01-01T00:00:00Z"}`, v: &FileRegistered{}},
		{name: "missing created", payload: `{"file_id":"f1","secret_id":"s","checksum":"abc","storage_locator":{"alias":"a","object_id":"o"}}`, v: &FileRegistered{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, Decode([]byte(tt.payload), tt.v), ErrInvalidPayload)
		})
	}
}

func TestDecode_WithoutValidator(t *testing.T) {
	var ev StagingRequested
	require.NoError(t, Decode([]byte(`{"file_id":"f1","size":5}`), &ev))
	assert.Equal(t, int64(5), ev.Size)
}

func TestStagingRequested_WireNames(t *testing.T) {
	b, err := json.Marshal(StagingRequested{FileID: "f1", Size: 5})
	require.NoError(t, err)
	assert.JSONEq(t, `{"file_id":"f1","size":5}`, string(b))
}
