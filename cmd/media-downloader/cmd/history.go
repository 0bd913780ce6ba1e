package cmd

import (
	"fmt"
	"sort"

	"go-media-download/internal/database"
	"go-media-download/internal/helpers"
	"go-media-download/internal/models"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// failedOnlyFlag limits the history listing to failed downloads
var failedOnlyFlag bool

// historyCmd lists the persisted download history.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded downloads",
	Long:  `Lists every download recorded in the history database, newest first.`,
	Run:   runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().BoolVar(&failedOnlyFlag, "failed", false, "Show only failed downloads")
}

func runHistory(cmd *cobra.Command, args []string) {
	db, err := database.Open(globalConfig.DatabasePath)
	if err != nil {
		log.WithError(err).Fatal("Failed to open history database")
	}
	defer db.Close()

	entries, err := db.ListHistory()
	if err != nil {
		log.WithError(err).Fatal("Failed to read history")
	}

	if failedOnlyFlag {
		filtered := entries[:0]
		for _, e := range entries {
			if e.Status == models.StatusError {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	if len(entries) == 0 {
		fmt.Println("No downloads recorded.")
		return
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].FinishedAt.After(entries[j].FinishedAt)
	})

	for _, e := range entries {
		when := e.FinishedAt.Format("2006-01-02 15:04")
		switch e.Status {
		case models.StatusDownloaded:
			size := ""
			if e.FileSize > 0 {
				size = " " + helpers.BytesToSize(uint64(e.FileSize))
			}
			fmt.Printf("%s  %-10s %s%s\n    %s -> %s\n", when, e.Status, e.Title, size, e.URL, e.FilePath)
		default:
			fmt.Printf("%s  %-10s %s\n    %s\n", when, e.Status, e.ErrorDetails, e.URL)
		}
	}
}
