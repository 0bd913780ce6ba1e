// Package index maintains a full-text search index over the download
// history, so past downloads can be found by title, uploader, or URL.
package index

import (
	"os"
	"time"

	"go-media-download/internal/models"

	"github.com/blevesearch/bleve/v2"
	log "github.com/sirupsen/logrus"
)

const defaultIndexPath = "media-downloader.bleve"

// Item is one indexed download record. All fields are searchable by their
// lowercase JSON tag names (e.g., query '+uploader:someone' or '+quality:1080p').
type Item struct {
	ID           string    `json:"id"`                     // History key of the download
	URL          string    `json:"url"`                    // Subject URL
	Title        string    `json:"title"`                  // Display title
	Uploader     string    `json:"uploader,omitempty"`     // Channel or account name
	Quality      string    `json:"quality,omitempty"`      // Ladder label, e.g. "1080p"
	FilePath     string    `json:"filePath,omitempty"`     // Where the file landed
	FileSize     float64   `json:"fileSize,omitempty"`     // Bytes
	Blake3       string    `json:"blake3,omitempty"`       // Output checksum
	Status       string    `json:"status"`                 // Downloaded or Error
	DownloadedAt time.Time `json:"downloadedAt,omitempty"` // When the job finished
}

// FromHistoryEntry maps a persisted history record onto an indexable item.
func FromHistoryEntry(e models.HistoryEntry) Item {
	return Item{
		ID:           e.HistoryKey(),
		URL:          e.URL,
		Title:        e.Title,
		Uploader:     e.Uploader,
		Quality:      e.QualityLabel,
		FilePath:     e.FilePath,
		FileSize:     float64(e.FileSize),
		Blake3:       e.Blake3,
		Status:       e.Status,
		DownloadedAt: e.FinishedAt,
	}
}

// OpenOrCreateIndex opens an existing Bleve index or creates a new one if it
// doesn't exist.
func OpenOrCreateIndex(indexPath string) (bleve.Index, error) {
	if indexPath == "" {
		indexPath = defaultIndexPath
	}

	idx, err := bleve.Open(indexPath)
	if err == bleve.ErrorIndexPathDoesNotExist {
		log.Infof("Creating new search index at: %s", indexPath)
		mapping := bleve.NewIndexMapping()
		idx, err = bleve.New(indexPath, mapping)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else {
		log.Debugf("Opened existing search index at: %s", indexPath)
	}
	return idx, nil
}

// IndexItem adds or updates an item in the index.
func IndexItem(idx bleve.Index, item Item) error {
	return idx.Index(item.ID, item)
}

// SearchIndex performs a query-string search against the index.
func SearchIndex(idx bleve.Index, query string) (*bleve.SearchResult, error) {
	searchQuery := bleve.NewQueryStringQuery(query)
	searchRequest := bleve.NewSearchRequest(searchQuery)
	searchRequest.Fields = []string{"*"}
	return idx.Search(searchRequest)
}

// DeleteIndex removes the index directory. Use with caution!
func DeleteIndex(indexPath string) error {
	if indexPath == "" {
		indexPath = defaultIndexPath
	}
	log.Warnf("Deleting search index at: %s", indexPath)
	return os.RemoveAll(indexPath)
}
