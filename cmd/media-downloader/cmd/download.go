package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"go-media-download/index"
	"go-media-download/internal/database"
	"go-media-download/internal/executor"
	"go-media-download/internal/helpers"
	"go-media-download/internal/metadata"
	"go-media-download/internal/models"
	"go-media-download/internal/quality"
	"go-media-download/internal/queue"

	"github.com/blevesearch/bleve/v2"
	"github.com/gosuri/uilive"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// downloadCmd fetches one or more subject URLs through the download queue.
var downloadCmd = &cobra.Command{
	Use:   "download [urls...]",
	Short: "Download media from one or more URLs",
	Long: `Resolves each URL's available stream variants into a quality ladder,
picks an entry (best by default, or per --height / --best-native), and fetches
it through a bounded-concurrency download queue. Finished downloads are
recorded in the history database and search index.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().IntP("concurrency", "c", queue.DefaultConcurrency, "Number of concurrent downloads")
	downloadCmd.Flags().Int("height", 0, "Pick the ladder entry with exactly this pixel height (0 = best available)")
	downloadCmd.Flags().Bool("best-native", false, "Pick the best entry that needs no audio merge step")
	downloadCmd.Flags().Bool("skip-downloaded", false, "Skip URLs already downloaded successfully")

	// Bind flags to Viper
	viper.BindPFlag("download.concurrency", downloadCmd.Flags().Lookup("concurrency"))
	viper.BindPFlag("download.height", downloadCmd.Flags().Lookup("height"))
	viper.BindPFlag("download.best_native", downloadCmd.Flags().Lookup("best-native"))
	viper.BindPFlag("download.skip_downloaded", downloadCmd.Flags().Lookup("skip-downloaded"))
}

// downloadSettings resolves the download command's effective settings through
// viper: an explicitly set flag wins, otherwise the config value applies.
func downloadSettings(cfg models.Config) (concurrency, height int, bestNative, skipDownloaded bool) {
	viper.SetDefault("download.concurrency", cfg.Concurrency)
	return viper.GetInt("download.concurrency"),
		viper.GetInt("download.height"),
		viper.GetBool("download.best_native"),
		viper.GetBool("download.skip_downloaded")
}

// selectorFor maps the quality settings onto a ladder selector. Nil means
// best overall.
func selectorFor(height int, bestNative bool) queue.QualitySelector {
	switch {
	case height > 0:
		return func(l quality.Ladder) (models.Quality, bool) { return l.ByHeight(height) }
	case bestNative:
		return func(l quality.Ladder) (models.Quality, bool) { return l.BestNative() }
	default:
		return nil
	}
}

func runDownload(cmd *cobra.Command, args []string) {
	if globalConfig.SavePath == "" {
		globalConfig.SavePath = "."
	}
	if ok := helpers.CheckAndMakeDir(globalConfig.SavePath); !ok {
		log.Fatalf("Cannot use save path %s", globalConfig.SavePath)
	}

	concurrency, height, bestNative, skipDownloaded := downloadSettings(globalConfig)

	db, err := database.Open(globalConfig.DatabasePath)
	if err != nil {
		log.WithError(err).Fatal("Failed to open history database")
	}
	defer db.Close()

	bleveIndex, err := index.OpenOrCreateIndex(globalConfig.BleveIndexPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to open search index")
	}
	defer bleveIndex.Close()

	resolver := metadata.NewYtdlpResolver(globalConfig.YtdlpPath,
		time.Duration(globalConfig.MetadataTimeoutSec)*time.Second)
	runner := executor.New(globalConfig.YtdlpPath, globalConfig.FfmpegPath)

	// One live line per in-flight download, re-rendered on every progress tick.
	writer := uilive.New()
	writer.Start()
	defer writer.Stop()

	var progressMu sync.Mutex
	progress := make(map[int64]string) // jobID -> rendered line
	render := func() {
		progressMu.Lock()
		ids := make([]int64, 0, len(progress))
		for id := range progress {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		var b strings.Builder
		for _, id := range ids {
			b.WriteString(progress[id])
			b.WriteByte('\n')
		}
		progressMu.Unlock()
		fmt.Fprint(writer, b.String())
	}

	done := make(chan queue.Summary, 1)
	var scheduler *queue.Scheduler
	events := queue.Events{
		OnProgress: func(url string, jobID int64, pct float64) {
			progressMu.Lock()
			progress[jobID] = fmt.Sprintf("[%d] %5.1f%% %s", jobID, pct, url)
			progressMu.Unlock()
			render()
		},
		OnComplete: func(url string, jobID int64, path string) {
			progressMu.Lock()
			delete(progress, jobID)
			progressMu.Unlock()
			render()
			if job, ok := scheduler.Job(jobID); ok {
				recordOutcome(db, bleveIndex, job)
			}
		},
		OnError: func(url string, jobID int64, err error) {
			progressMu.Lock()
			delete(progress, jobID)
			progressMu.Unlock()
			render()
			log.WithError(err).Errorf("Download failed for %s", url)
			if job, ok := scheduler.Job(jobID); ok {
				recordOutcome(db, bleveIndex, job)
			}
		},
		OnQueueComplete: func(s queue.Summary) {
			done <- s
		},
	}

	scheduler, err = queue.New(resolver, runner, globalConfig.SavePath, concurrency, events)
	if err != nil {
		log.WithError(err).Fatal("Failed to create download queue")
	}

	selector := selectorFor(height, bestNative)
	submitted := 0
	for _, url := range args {
		if skipDownloaded {
			already, err := db.HasDownloaded(url)
			if err != nil {
				log.WithError(err).Warnf("History check failed for %s, downloading anyway", url)
			} else if already {
				log.Infof("Skipping %s: already downloaded", url)
				continue
			}
		}

		jobID, err := scheduler.Submit(context.Background(), url, selector)
		if err != nil {
			log.WithError(err).Errorf("Failed to queue %s", url)
			continue
		}
		log.Debugf("Submitted %s as job %d", url, jobID)
		submitted++
	}

	if submitted == 0 {
		log.Warn("Nothing to download.")
		return
	}

	// A drain can fire while later URLs are still being submitted; keep
	// waiting until the queue is genuinely empty.
	var summary queue.Summary
	for {
		summary = <-done
		st := scheduler.Status()
		if st.Pending == 0 && st.Running == 0 {
			break
		}
	}
	fmt.Printf("Done: %d completed, %d failed.\n", summary.Completed, summary.Failed)
	if summary.Failed > 0 {
		os.Exit(1)
	}
}

// newHistoryEntry maps a finished job onto its persisted history record,
// carrying the resolved title, uploader and quality label into the entry.
func newHistoryEntry(job models.Job) models.HistoryEntry {
	entry := models.HistoryEntry{
		JobID:        job.ID,
		URL:          job.URL,
		Title:        job.Title,
		Uploader:     job.Uploader,
		QualityLabel: job.Quality.Label,
		FinishedAt:   job.FinishedAt,
	}
	if job.State == models.JobStateFailed {
		entry.Status = models.StatusError
		entry.ErrorDetails = job.Error
	} else {
		entry.Status = models.StatusDownloaded
		entry.FilePath = job.OutputPath
	}
	return entry
}

// recordOutcome persists one finished job to the history database and, for
// successful downloads, the search index. Recording failures are logged but
// never abort the run; the file on disk is the primary artifact.
func recordOutcome(db *database.DB, bleveIndex bleve.Index, job models.Job) {
	entry := newHistoryEntry(job)

	if entry.Status == models.StatusDownloaded {
		if fi, err := os.Stat(entry.FilePath); err == nil {
			entry.FileSize = fi.Size()
		}
		if sum, err := helpers.HashFileBlake3(entry.FilePath); err == nil {
			entry.Blake3 = sum
		} else {
			log.WithError(err).Warnf("Could not hash %s", entry.FilePath)
		}
	}

	if err := db.PutHistoryEntry(entry); err != nil {
		log.WithError(err).Warnf("Failed to record history for %s", entry.URL)
		return
	}
	if entry.Status == models.StatusDownloaded {
		if err := index.IndexItem(bleveIndex, index.FromHistoryEntry(entry)); err != nil {
			log.WithError(err).Warnf("Failed to index history entry for %s", entry.URL)
		}
	}
}
