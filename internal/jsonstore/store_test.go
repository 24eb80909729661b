package jsonstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavel-fokin/lan-share/internal/files"
)

func TestLoadMissingDocument(t *testing.T) {
	s := NewStore(t.TempDir())

	doc := s.Load(context.Background())
	assert.NotNil(t, doc)
	assert.Empty(t, doc)
}

func TestLoadCorruptDocument(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"garbage", "{not json"},
		{"null", "null"},
		{"array", "[1,2,3]"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(tt.content), 0644))

			doc := NewStore(dir).Load(context.Background())
			assert.NotNil(t, doc)
			assert.Empty(t, doc)
		})
	}
}

func TestSaveReplacesDocument(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	ctx := context.Background()
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	require.NoError(t, s.Save(ctx, files.Document{
		"a.txt": {DeviceID: "dev1", UploadedAt: at},
		"b.txt": {DeviceName: "Phone", UploadedAt: at},
	}))
	require.NoError(t, s.Save(ctx, files.Document{
		"b.txt": {DeviceName: "Phone", UploadedAt: at},
	}))

	doc := s.Load(ctx)
	assert.Equal(t, files.Document{"b.txt": {DeviceName: "Phone", UploadedAt: at}}, doc)

	_, err := os.Stat(filepath.Join(dir, FileName+".tmp"))
	assert.True(t, os.IsNotExist(err), "temp file is renamed away")
}

func TestLoadNullDeviceFields(t *testing.T) {
	dir := t.TempDir()
	raw := `{"a.txt": {"deviceId": null, "deviceName": "Laptop", "uploadedAt": "2026-01-02T03:04:05.000Z"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(raw), 0644))

	doc := NewStore(dir).Load(context.Background())
	require.Contains(t, doc, "a.txt")
	assert.Equal(t, "", doc["a.txt"].DeviceID)
	assert.Equal(t, "Laptop", doc["a.txt"].DeviceName)
	assert.True(t, doc["a.txt"].UploadedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
}

func TestSaveWritesJSONObject(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	require.NoError(t, s.Save(context.Background(), nil))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	var v map[string]any
	require.NoError(t, json.Unmarshal(data, &v))
	assert.Empty(t, v)
}

func TestSaveFailure(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing"))

	err := s.Save(context.Background(), files.Document{"a.txt": {DeviceID: "dev1"}})
	assert.Error(t, err)
}

// Two writers loading the same snapshot lose one update: the store itself
// does not serialize read-modify-write cycles.
func TestConcurrentWritersLastSaveWins(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	first, second := NewStore(dir), NewStore(dir)

	docA := first.Load(ctx)
	docB := second.Load(ctx)

	docA["a.txt"] = files.Record{DeviceID: "dev1"}
	docB["b.txt"] = files.Record{DeviceID: "dev2"}
	require.NoError(t, first.Save(ctx, docA))
	require.NoError(t, second.Save(ctx, docB))

	doc := NewStore(dir).Load(ctx)
	assert.NotContains(t, doc, "a.txt")
	assert.Contains(t, doc, "b.txt")
}

func TestReservedNames(t *testing.T) {
	assert.Contains(t, NewStore(t.TempDir()).ReservedNames(), ".meta.json")
}
