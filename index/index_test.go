package index

import (
	"path/filepath"
	"testing"
	"time"

	"go-media-download/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexAndSearch(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "test.bleve")

	idx, err := OpenOrCreateIndex(indexPath)
	require.NoError(t, err)
	defer idx.Close()

	entry := models.HistoryEntry{
		JobID:        1,
		URL:          "https://example.com/watch?v=abc",
		Title:        "Conference Talk on Distributed Systems",
		Uploader:     "confchannel",
		QualityLabel: "1080p",
		FilePath:     "/media/Conference Talk on Distributed Systems.mp4",
		FileSize:     1 << 30,
		Status:       models.StatusDownloaded,
		FinishedAt:   time.Now(),
	}
	require.NoError(t, IndexItem(idx, FromHistoryEntry(entry)))

	other := models.HistoryEntry{
		JobID:        2,
		URL:          "https://example.com/watch?v=xyz",
		Title:        "Cooking Pasta",
		Uploader:     "foodchannel",
		QualityLabel: "720p",
		Status:       models.StatusDownloaded,
		FinishedAt:   time.Now(),
	}
	require.NoError(t, IndexItem(idx, FromHistoryEntry(other)))

	results, err := SearchIndex(idx, "distributed")
	require.NoError(t, err)
	require.EqualValues(t, 1, results.Total)
	assert.Equal(t, entry.HistoryKey(), results.Hits[0].ID)

	results, err = SearchIndex(idx, "+uploader:foodchannel")
	require.NoError(t, err)
	require.EqualValues(t, 1, results.Total)
	assert.Equal(t, other.HistoryKey(), results.Hits[0].ID)

	results, err = SearchIndex(idx, "nonexistent")
	require.NoError(t, err)
	assert.EqualValues(t, 0, results.Total)
}

func TestOpenOrCreateIndexReopens(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "reopen.bleve")

	idx, err := OpenOrCreateIndex(indexPath)
	require.NoError(t, err)
	require.NoError(t, IndexItem(idx, Item{ID: "one", Title: "persisted across reopen"}))
	require.NoError(t, idx.Close())

	idx, err = OpenOrCreateIndex(indexPath)
	require.NoError(t, err)
	defer idx.Close()

	results, err := SearchIndex(idx, "persisted")
	require.NoError(t, err)
	assert.EqualValues(t, 1, results.Total)
}

func TestFromHistoryEntry(t *testing.T) {
	now := time.Now()
	e := models.HistoryEntry{
		JobID:        7,
		URL:          "https://example.com/v",
		Title:        "T",
		Uploader:     "U",
		QualityLabel: "480p",
		FilePath:     "/media/T.mp4",
		FileSize:     42,
		Blake3:       "deadbeef",
		Status:       models.StatusDownloaded,
		FinishedAt:   now,
	}

	item := FromHistoryEntry(e)
	assert.Equal(t, e.HistoryKey(), item.ID)
	assert.Equal(t, "T", item.Title)
	assert.Equal(t, "480p", item.Quality)
	assert.Equal(t, float64(42), item.FileSize)
	assert.Equal(t, now, item.DownloadedAt)
}
