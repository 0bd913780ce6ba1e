package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-media-download/internal/config"
	"go-media-download/internal/models"
)

// cfgFile holds the path to the config file specified by the user
var cfgFile string

// savePathFlag holds the value of the --save-path flag
var savePathFlag string

// ytdlpPathFlag holds the value of the --ytdlp-path flag
var ytdlpPathFlag string

// ffmpegPathFlag holds the value of the --ffmpeg-path flag
var ffmpegPathFlag string

// Logging flags, consumed by initLogging
var logLevel string
var logFormat string

// globalConfig holds the loaded configuration
var globalConfig models.Config

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "media-downloader",
	Short: "A bulk media downloader built on yt-dlp",
	Long: `Media Downloader resolves stream listings into quality ladders and
fetches media through a bounded-concurrency download queue driven by yt-dlp.`,
	PersistentPreRunE: loadGlobalConfig, // Load config before any command runs
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags that apply to all commands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.toml", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&savePathFlag, "save-path", "", "Directory to save downloads (overrides config)")
	rootCmd.PersistentFlags().StringVar(&ytdlpPathFlag, "ytdlp-path", "", "Path to the yt-dlp binary (overrides config)")
	rootCmd.PersistentFlags().StringVar(&ffmpegPathFlag, "ffmpeg-path", "", "Path to ffmpeg for merge steps (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Logging format (text, json)")

	// Hook to configure logging before any command runs
	cobra.OnInitialize(initLogging)
}

// initLogging configures logrus based on persistent flags
func initLogging() {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.WithError(err).Warnf("Invalid log level '%s', using default 'info'", logLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	switch logFormat {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		log.Warnf("Invalid log format '%s', using default 'text'", logFormat)
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// loadGlobalConfig attempts to load the configuration and applies flag
// overrides. Commands check the fields they need from globalConfig.
func loadGlobalConfig(cmd *cobra.Command, args []string) error {
	var err error
	globalConfig, err = config.LoadConfig(cfgFile)
	if err != nil {
		// Not fatal here; commands that require specific config values fail
		// later with a clearer message.
		log.WithError(err).Warnf("Failed to load configuration from %s", cfgFile)
	}

	if cmd.Flags().Changed("save-path") {
		if savePathFlag != "" {
			globalConfig.SavePath = savePathFlag
			log.Debugf("Overriding SavePath based on --save-path flag: %s", savePathFlag)
		} else {
			log.Warn("--save-path flag provided but value is empty, ignoring.")
		}
	}

	if cmd.Flags().Changed("ytdlp-path") && ytdlpPathFlag != "" {
		globalConfig.YtdlpPath = ytdlpPathFlag
		log.Debugf("Overriding YtdlpPath based on --ytdlp-path flag: %s", ytdlpPathFlag)
	}

	if cmd.Flags().Changed("ffmpeg-path") && ffmpegPathFlag != "" {
		globalConfig.FfmpegPath = ffmpegPathFlag
		log.Debugf("Overriding FfmpegPath based on --ffmpeg-path flag: %s", ffmpegPathFlag)
	}

	return nil
}
