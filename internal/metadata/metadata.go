// Package metadata resolves subject URLs to titles and raw stream listings by
// invoking yt-dlp in JSON dump mode.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go-media-download/internal/models"

	log "github.com/sirupsen/logrus"
)

// Resolution error taxonomy. Callers should match with errors.Is; the error
// text carries the underlying tool output and is not contractually stable.
var (
	ErrNotFound       = errors.New("subject not found")
	ErrUnavailable    = errors.New("subject unavailable")
	ErrToolMissing    = errors.New("yt-dlp binary not found")
	ErrParseFailure   = errors.New("metadata parse failure")
	ErrNetworkFailure = errors.New("network failure")
)

// DefaultTimeout bounds a single metadata fetch.
const DefaultTimeout = 45 * time.Second

// Resolver resolves a subject URL to its metadata and raw variant listing.
type Resolver interface {
	Resolve(ctx context.Context, url string) (*models.MediaInfo, error)
}

// YtdlpResolver resolves metadata by running `yt-dlp -J`.
type YtdlpResolver struct {
	binPath string
	timeout time.Duration
}

// NewYtdlpResolver creates a resolver for the given yt-dlp binary path.
// An empty path falls back to "yt-dlp" on PATH.
func NewYtdlpResolver(binPath string, timeout time.Duration) *YtdlpResolver {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &YtdlpResolver{binPath: binPath, timeout: timeout}
}

// ytdlpInfo mirrors the subset of `yt-dlp -J` output this system consumes.
// Optional numeric fields are pointers because yt-dlp emits null for them.
type ytdlpInfo struct {
	Title     string        `json:"title"`
	Uploader  string        `json:"uploader"`
	Duration  float64       `json:"duration"`
	Thumbnail string        `json:"thumbnail"`
	Formats   []ytdlpFormat `json:"formats"`
}

type ytdlpFormat struct {
	FormatID string   `json:"format_id"`
	Height   *int     `json:"height"`
	VCodec   string   `json:"vcodec"`
	ACodec   string   `json:"acodec"`
	TBR      *float64 `json:"tbr"`
	ABR      *float64 `json:"abr"`
	Ext      string   `json:"ext"`
	Filesize *int64   `json:"filesize"`
	FPS      *float64 `json:"fps"`
}

// Resolve runs yt-dlp in JSON dump mode and maps its format list to
// StreamVariants. Failures are classified into the package error taxonomy.
func (r *YtdlpResolver) Resolve(ctx context.Context, url string) (*models.MediaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	log.Debugf("Resolving metadata for %s via %s", url, r.binPath)
	cmd := exec.CommandContext(ctx, r.binPath, "-J", "--no-warnings", "--no-playlist", "--skip-download", url)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, classifyRunError(ctx, err, stderr.String())
	}

	info, err := ParseInfoJSON(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	info.URL = url
	log.Debugf("Resolved %q: %d variants", info.Title, len(info.Variants))
	return info, nil
}

// ParseInfoJSON converts a `yt-dlp -J` document into MediaInfo. Exposed so
// callers holding a pre-fetched dump (tests, caches) can reuse the mapping.
func ParseInfoJSON(data []byte) (*models.MediaInfo, error) {
	var raw ytdlpInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decoding yt-dlp JSON: %v", ErrParseFailure, err)
	}
	if raw.Title == "" && len(raw.Formats) == 0 {
		return nil, fmt.Errorf("%w: yt-dlp JSON carries no title or formats", ErrParseFailure)
	}

	variants := make([]models.StreamVariant, 0, len(raw.Formats))
	for _, f := range raw.Formats {
		v := models.StreamVariant{
			ID:         f.FormatID,
			VideoCodec: normalizeCodec(f.VCodec),
			AudioCodec: normalizeCodec(f.ACodec),
			Container:  f.Ext,
		}
		if f.Height != nil {
			v.Height = *f.Height
		}
		// tbr covers the whole stream; abr is the audio-only fallback.
		if f.TBR != nil {
			v.Bitrate = *f.TBR
		} else if f.ABR != nil {
			v.Bitrate = *f.ABR
		}
		if f.Filesize != nil {
			v.FileSize = *f.Filesize
		}
		if f.FPS != nil {
			v.FrameRate = *f.FPS
		}
		variants = append(variants, v)
	}

	return &models.MediaInfo{
		Title:     raw.Title,
		Uploader:  raw.Uploader,
		Duration:  raw.Duration,
		Thumbnail: raw.Thumbnail,
		Variants:  variants,
	}, nil
}

// normalizeCodec maps the absent-codec spellings yt-dlp uses ("none", empty)
// to the single sentinel the data model expects.
func normalizeCodec(codec string) string {
	if codec == "" {
		return models.CodecNone
	}
	return codec
}

// classifyRunError maps a yt-dlp invocation failure onto the error taxonomy.
func classifyRunError(ctx context.Context, err error, stderr string) error {
	stderr = strings.TrimSpace(stderr)

	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrToolMissing, err)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: metadata fetch timed out: %v", ErrNetworkFailure, ctx.Err())
	}

	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "404") || strings.Contains(lower, "does not exist") ||
		strings.Contains(lower, "unsupported url") || strings.Contains(lower, "is not a valid url"):
		return fmt.Errorf("%w: %s", ErrNotFound, stderr)
	case strings.Contains(lower, "unavailable") || strings.Contains(lower, "private video") ||
		strings.Contains(lower, "removed"):
		return fmt.Errorf("%w: %s", ErrUnavailable, stderr)
	case strings.Contains(lower, "unable to download") || strings.Contains(lower, "timed out") ||
		strings.Contains(lower, "temporary failure") || strings.Contains(lower, "connection"):
		return fmt.Errorf("%w: %s", ErrNetworkFailure, stderr)
	default:
		return fmt.Errorf("%w: yt-dlp failed: %v: %s", ErrUnavailable, err, stderr)
	}
}
