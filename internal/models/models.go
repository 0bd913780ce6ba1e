package models

import (
	"fmt"
	"time"
)

// CodecNone is the sentinel yt-dlp reports when a stream carries no video or
// no audio track.
const CodecNone = "none"

// Job lifecycle states managed by the queue scheduler.
type JobState string

const (
	JobStatePending   JobState = "Pending"
	JobStateRunning   JobState = "Running"
	JobStateCompleted JobState = "Completed"
	JobStateFailed    JobState = "Failed"
	JobStateCancelled JobState = "Cancelled"
)

// String returns the string representation of the state.
func (s JobState) String() string {
	return string(s)
}

// IsTerminal reports whether the job can no longer change state.
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed || s == JobStateCancelled
}

// History entry statuses persisted to the database.
const (
	StatusDownloaded = "Downloaded"
	StatusError      = "Error"
)

type (
	Config struct {
		// Paths
		SavePath       string `toml:"SavePath"`
		DatabasePath   string `toml:"DatabasePath"`
		BleveIndexPath string `toml:"BleveIndexPath"`

		// External tools
		YtdlpPath  string `toml:"YtdlpPath"`
		FfmpegPath string `toml:"FfmpegPath"`

		// Downloader behavior
		Concurrency        int `toml:"Concurrency"`
		MetadataTimeoutSec int `toml:"MetadataTimeoutSec"`

		// Logging
		LogLevel  string `toml:"LogLevel"`
		LogFormat string `toml:"LogFormat"`
	}

	// StreamVariant is one row of yt-dlp's raw format listing for a subject.
	// Field names follow the -J output so the metadata resolver can unmarshal
	// format objects directly.
	StreamVariant struct {
		ID         string  `json:"format_id"`
		Height     int     `json:"height"` // 0 when unknown or audio-only
		VideoCodec string  `json:"vcodec"` // "none" or "" when absent
		AudioCodec string  `json:"acodec"` // "none" or "" when absent
		Bitrate    float64 `json:"tbr"`    // total bitrate, kbit/s
		Container  string  `json:"ext"`
		FileSize   int64   `json:"filesize"`
		FrameRate  float64 `json:"fps"`
	}

	// MediaInfo is the resolved metadata for one subject URL.
	MediaInfo struct {
		URL       string
		Title     string
		Uploader  string
		Duration  float64 // seconds
		Thumbnail string
		Variants  []StreamVariant
	}

	// Quality is one entry of a resolved quality ladder. Immutable once built.
	Quality struct {
		Label              string
		Height             int
		PrimaryVariantID   string
		Container          string
		FileSizeBytes      int64
		FrameRate          float64
		IsNativelyCombined bool
		NeedsAudioMerge    bool
		BestAudioVariantID string // set only when NeedsAudioMerge
	}

	// Job is one queued or running fetch request, owned by the scheduler.
	Job struct {
		ID             int64
		URL            string
		Title          string
		Uploader       string
		Quality        Quality
		State          JobState
		DestinationDir string
		OutputPath     string
		Error          string
		SubmittedAt    time.Time
		FinishedAt     time.Time
	}

	// HistoryEntry is the persisted record of a finished download.
	HistoryEntry struct {
		JobID        int64     `json:"jobId"`
		URL          string    `json:"url"`
		Title        string    `json:"title"`
		Uploader     string    `json:"uploader,omitempty"`
		QualityLabel string    `json:"qualityLabel"`
		FilePath     string    `json:"filePath,omitempty"`
		FileSize     int64     `json:"fileSize,omitempty"`
		Blake3       string    `json:"blake3,omitempty"`
		Status       string    `json:"status"`
		ErrorDetails string    `json:"errorDetails,omitempty"`
		FinishedAt   time.Time `json:"finishedAt"`
	}
)

// HasVideo reports whether the variant carries a video track.
func (v StreamVariant) HasVideo() bool {
	return v.VideoCodec != "" && v.VideoCodec != CodecNone
}

// HasAudio reports whether the variant carries an audio track.
func (v StreamVariant) HasAudio() bool {
	return v.AudioCodec != "" && v.AudioCodec != CodecNone
}

// IsAudioOnly reports whether the variant is an audio-only stream.
func (v StreamVariant) IsAudioOnly() bool {
	return !v.HasVideo() && v.HasAudio()
}

// QualityLabel formats a pixel height as a ladder label, e.g. "1080p".
func QualityLabel(height int) string {
	return fmt.Sprintf("%dp", height)
}

// HistoryKey is the database key for a history entry. Job ids restart at one
// each run, so the finish timestamp keeps keys unique across runs.
func (e HistoryEntry) HistoryKey() string {
	return fmt.Sprintf("dl_%d_%s", e.FinishedAt.UnixNano(), e.URL)
}
