package cmd

import (
	"context"
	"fmt"
	"time"

	"go-media-download/internal/helpers"
	"go-media-download/internal/metadata"
	"go-media-download/internal/quality"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// formatsCmd resolves a URL's stream listing and prints its quality ladder.
var formatsCmd = &cobra.Command{
	Use:   "formats [url]",
	Short: "Show the resolved quality ladder for a URL",
	Long: `Resolves the URL's available stream variants and prints the
deduplicated quality ladder, highest first, marking which entries need a
separate audio merge.`,
	Args: cobra.ExactArgs(1),
	Run:  runFormats,
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}

func runFormats(cmd *cobra.Command, args []string) {
	url := args[0]
	resolver := metadata.NewYtdlpResolver(globalConfig.YtdlpPath,
		time.Duration(globalConfig.MetadataTimeoutSec)*time.Second)

	info, err := resolver.Resolve(context.Background(), url)
	if err != nil {
		log.WithError(err).Fatalf("Failed to resolve metadata for %s", url)
	}

	ladder := quality.Resolve(info.Variants)
	if len(ladder) == 0 {
		fmt.Printf("%s\nNo video qualities available (%d raw variants).\n", info.Title, len(info.Variants))
		return
	}

	fmt.Printf("%s (uploader: %s)\n", info.Title, info.Uploader)
	for _, q := range ladder {
		line := fmt.Sprintf("  %-6s format %-8s %-5s", q.Label, q.PrimaryVariantID, q.Container)
		if q.FrameRate > 0 {
			line += fmt.Sprintf(" %gfps", q.FrameRate)
		}
		if q.FileSizeBytes > 0 {
			line += " " + helpers.BytesToSize(uint64(q.FileSizeBytes))
		}
		if q.NeedsAudioMerge {
			line += fmt.Sprintf(" (+audio %s, merge)", q.BestAudioVariantID)
		} else if !q.IsNativelyCombined {
			line += " (video only)"
		}
		fmt.Println(line)
	}
}
