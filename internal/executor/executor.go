// Package executor spawns and supervises the external yt-dlp process for one
// fetch. It interprets only two things from the tool: a percentage pattern on
// stdout for progress, and the exit classification (success, failure, binary
// missing) for the terminal outcome.
package executor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrToolMissing means the yt-dlp binary could not be found. Fatal for
	// the job; never retried internally.
	ErrToolMissing = errors.New("yt-dlp binary not found")
	// ErrProcessFailure means yt-dlp exited non-zero.
	ErrProcessFailure = errors.New("yt-dlp process failed")
)

// DefaultMergeFormat is the container yt-dlp is asked to merge into when a
// video-only and audio-only pair is downloaded.
const DefaultMergeFormat = "mp4"

// percentRe matches yt-dlp's "[download]  42.3% of ..." progress lines.
var percentRe = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)

// Request describes one fetch: what to download, which formats, and where.
type Request struct {
	URL            string
	FormatSelector string
	OutputTemplate string // yt-dlp -o value; extension left to the tool via %(ext)s
}

// Ytdlp runs yt-dlp as a child process. The ffmpeg location is explicit
// configuration scoped to this value, not process-global state.
type Ytdlp struct {
	binPath     string
	ffmpegPath  string
	mergeFormat string
}

// New creates an executor for the given tool paths. Empty binPath falls back
// to "yt-dlp" on PATH; empty ffmpegPath lets yt-dlp find ffmpeg itself.
func New(binPath, ffmpegPath string) *Ytdlp {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	return &Ytdlp{binPath: binPath, ffmpegPath: ffmpegPath, mergeFormat: DefaultMergeFormat}
}

// Args builds the yt-dlp argument list for a request.
func (y *Ytdlp) Args(req Request) []string {
	args := []string{
		"--newline",
		"--no-playlist",
		"--no-warnings",
		"-f", req.FormatSelector,
		"-o", req.OutputTemplate,
		"--merge-output-format", y.mergeFormat,
	}
	if y.ffmpegPath != "" {
		args = append(args, "--ffmpeg-location", y.ffmpegPath)
	}
	return append(args, req.URL)
}

// Run spawns yt-dlp and blocks until the process exits or ctx is cancelled.
// Each stdout line carrying a percentage is reported through onProgress.
// Cancelling ctx terminates the process; Run then returns ctx's error.
func (y *Ytdlp) Run(ctx context.Context, req Request, onProgress func(percent float64)) error {
	args := y.Args(req)
	log.Debugf("Spawning %s %s", y.binPath, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, y.binPath, args...)
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("setup stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w: %v", ErrToolMissing, err)
		}
		return fmt.Errorf("%w: starting yt-dlp: %v", ErrProcessFailure, err)
	}

	scanLines(stdoutPipe, func(line string) {
		if onProgress == nil {
			return
		}
		if pct, ok := ParsePercent(line); ok {
			onProgress(pct)
		}
	})

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v: %s", ErrProcessFailure, err, tail(stderr.String(), 2048))
	}
	return nil
}

// ParsePercent extracts a progress percentage from one yt-dlp output line.
// The tool's reporting is noisy (merge phases restart at low percentages), so
// values are advisory and clamped to [0, 100] rather than forced monotonic.
func ParsePercent(line string) (float64, bool) {
	m := percentRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct, true
}

// scanLines feeds each stdout line to fn, splitting on both \n and \r since
// yt-dlp rewrites progress lines with carriage returns on some terminals.
func scanLines(r io.Reader, fn func(line string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(splitByNewlineOrCR)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			fn(line)
		}
	}
}

func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// tail keeps the last max bytes of captured tool output for error messages.
func tail(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
