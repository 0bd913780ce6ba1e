package database

import (
	"bytes"
	"compress/gzip"
	"path/filepath"
	"testing"
	"time"

	"go-media-download/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPutGetRoundTrip(t *testing.T) {
	db := openTestDB(t)

	key := []byte("k1")
	value := []byte("some history payload that should compress and come back intact")

	require.NoError(t, db.Put(key, value))
	assert.True(t, db.Has(key))

	got, err := db.Get(key)
	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func TestGetMissingKey(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Get([]byte("nope"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	db := openTestDB(t)
	key := []byte("gone")
	require.NoError(t, db.Put(key, []byte("v")))
	require.NoError(t, db.Delete(key))
	assert.False(t, db.Has(key))
	assert.ErrorIs(t, db.Delete(key), ErrNotFound)
}

func TestValuesStoredCompressed(t *testing.T) {
	db := openTestDB(t)
	key := []byte("compressed")
	value := bytes.Repeat([]byte("abcdefgh"), 512)

	require.NoError(t, db.Put(key, value))

	// Read through the raw bitcask handle: the stored bytes carry the gzip
	// magic header, not the plaintext.
	raw, err := db.db.Get(key)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, gzipMagicBytes), "value not stored gzipped")
	assert.Less(t, len(raw), len(value))
}

func TestGetToleratesUncompressedValues(t *testing.T) {
	db := openTestDB(t)
	key := []byte("plain")
	// Bypass Put's compression, as an older database would have.
	require.NoError(t, db.db.Put(key, []byte("plain value")))

	got, err := db.Get(key)
	require.NoError(t, err)
	assert.Equal(t, []byte("plain value"), got)
}

func TestCompressGzipRoundTrip(t *testing.T) {
	in := []byte("round trip me")
	compressed, err := compressGzip(in, gzip.BestCompression)
	require.NoError(t, err)

	out, err := decompressIfGzipped(compressed)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestHistoryEntryLifecycle(t *testing.T) {
	db := openTestDB(t)

	ok := models.HistoryEntry{
		JobID:        1,
		URL:          "https://example.com/a",
		Title:        "First",
		QualityLabel: "1080p",
		FilePath:     "/media/First.mp4",
		FileSize:     123456,
		Status:       models.StatusDownloaded,
		FinishedAt:   time.Now().Add(-time.Hour),
	}
	failed := models.HistoryEntry{
		JobID:        2,
		URL:          "https://example.com/b",
		Status:       models.StatusError,
		ErrorDetails: "yt-dlp process failed",
		FinishedAt:   time.Now(),
	}

	require.NoError(t, db.PutHistoryEntry(ok))
	require.NoError(t, db.PutHistoryEntry(failed))

	entries, err := db.ListHistory()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byURL := map[string]models.HistoryEntry{}
	for _, e := range entries {
		byURL[e.URL] = e
	}
	assert.Equal(t, "First", byURL["https://example.com/a"].Title)
	assert.Equal(t, models.StatusError, byURL["https://example.com/b"].Status)

	got, err := db.HasDownloaded("https://example.com/a")
	require.NoError(t, err)
	assert.True(t, got)

	// A failed attempt does not count as downloaded.
	got, err = db.HasDownloaded("https://example.com/b")
	require.NoError(t, err)
	assert.False(t, got)

	got, err = db.HasDownloaded("https://example.com/unknown")
	require.NoError(t, err)
	assert.False(t, got)
}
