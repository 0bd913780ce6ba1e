package cmd

import (
	"fmt"

	"go-media-download/index"

	"github.com/blevesearch/bleve/v2"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// searchCmd queries the download-history search index.
var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the download history index",
	Long: `Searches the Bleve index built during downloads. Supports the Bleve
query-string syntax, e.g. '+uploader:someone +quality:1080p' or plain words
matched against titles.`,
	Args: cobra.ExactArgs(1),
	Run:  runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	query := args[0]

	// Open, not OpenOrCreateIndex: searching must not create an empty index.
	bleveIndex, err := bleve.Open(globalConfig.BleveIndexPath)
	if err != nil {
		if err == bleve.ErrorIndexPathDoesNotExist {
			log.Fatalf("Search index not found at %s. Download something first to create it.", globalConfig.BleveIndexPath)
		}
		log.WithError(err).Fatalf("Failed to open search index at %s", globalConfig.BleveIndexPath)
	}
	defer func() {
		if err := bleveIndex.Close(); err != nil {
			log.WithError(err).Error("Error closing search index")
		}
	}()

	searchResults, err := index.SearchIndex(bleveIndex, query)
	if err != nil {
		log.WithError(err).Fatal("Search failed")
	}

	log.Debugf("Search finished. Hits: %d, Total: %d, Took: %s",
		len(searchResults.Hits), searchResults.Total, searchResults.Took)

	if searchResults.Total == 0 {
		fmt.Println("No results found matching your query.")
		return
	}

	fmt.Println("--- Search Results ---")
	for i, hit := range searchResults.Hits {
		fmt.Printf("[%d] ID: %s (Score: %.2f)\n", i+1, hit.ID, hit.Score)
		for field, value := range hit.Fields {
			fmt.Printf("  %s: %v\n", field, value)
		}
		fmt.Println("---")
	}
}
