// Package downloader owns the per-job download task: a small state machine
// around one external yt-dlp invocation for one (subject, quality) pair.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go-media-download/internal/executor"
	"go-media-download/internal/helpers"
	"go-media-download/internal/models"

	log "github.com/sirupsen/logrus"
)

// ErrAlreadyStarted is returned when Start is called on a task that has left
// the Idle state. The call has no side effect.
var ErrAlreadyStarted = errors.New("download task already started")

// Task states. A task moves Idle -> Running -> {Completed, Failed, Cancelled}.
type State string

const (
	StateIdle      State = "Idle"
	StateRunning   State = "Running"
	StateCompleted State = "Completed"
	StateFailed    State = "Failed"
	StateCancelled State = "Cancelled"
)

// IsTerminal reports whether the state is final.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Runner abstracts the external fetch process (implemented by executor.Ytdlp,
// faked in tests).
type Runner interface {
	Run(ctx context.Context, req executor.Request, onProgress func(percent float64)) error
}

// Callbacks receive task events. Progress fires zero or more times while
// Running; exactly one of OnCompleted/OnFailed fires per terminal outcome,
// and neither fires after cancellation even if the process later reports
// success. Nil members are skipped.
type Callbacks struct {
	OnProgress  func(percent float64)
	OnCompleted func(finalPath string)
	OnFailed    func(err error)
}

// knownExtensions are the containers yt-dlp plausibly finalizes to, probed in
// preference order when resolving the completed file path.
var knownExtensions = []string{".mp4", ".mkv", ".webm"}

// defaultExtension is the bounded-merge fallback reported when no probe hits.
const defaultExtension = ".mp4"

// Task drives one fetch for one subject at one quality.
type Task struct {
	mu     sync.Mutex
	state  State
	cancel context.CancelFunc

	runner    Runner
	url       string
	title     string
	quality   models.Quality
	destDir   string
	callbacks Callbacks

	// Completion-path probe tuning; overridable in tests.
	probeWindow   time.Duration
	probeInterval time.Duration
}

// NewTask builds an Idle task. Nothing runs until Start.
func NewTask(runner Runner, url, title string, q models.Quality, destDir string, cb Callbacks) *Task {
	return &Task{
		state:         StateIdle,
		runner:        runner,
		url:           url,
		title:         title,
		quality:       q,
		destDir:       destDir,
		callbacks:     cb,
		probeWindow:   2 * time.Second,
		probeInterval: 100 * time.Millisecond,
	}
}

// State returns the current state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Start transitions Idle -> Running and spawns the fetch. A second call, or a
// call after cancellation, fails with ErrAlreadyStarted and changes nothing.
func (t *Task) Start() error {
	t.mu.Lock()
	if t.state != StateIdle {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	t.state = StateRunning
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.mu.Unlock()

	go t.run(ctx)
	return nil
}

// Cancel requests termination of the underlying process and marks the task
// Cancelled immediately, without waiting for the process to exit. A late
// success or failure signal from the process is discarded. No-op once
// terminal.
func (t *Task) Cancel() {
	t.mu.Lock()
	if t.state.IsTerminal() {
		t.mu.Unlock()
		return
	}
	t.state = StateCancelled
	cancel := t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	log.Debugf("Cancelled download of %s", t.url)
}

func (t *Task) run(ctx context.Context) {
	base := t.outputBase()
	req := executor.Request{
		URL:            t.url,
		FormatSelector: FormatSelector(t.quality),
		OutputTemplate: filepath.Join(t.destDir, base+".%(ext)s"),
	}
	log.Debugf("Starting download of %s (%s) with selector %q", t.url, t.quality.Label, req.FormatSelector)

	err := t.runner.Run(ctx, req, func(pct float64) {
		t.mu.Lock()
		running := t.state == StateRunning
		cb := t.callbacks.OnProgress
		t.mu.Unlock()
		if running && cb != nil {
			cb(pct)
		}
	})

	t.mu.Lock()
	if t.state == StateCancelled {
		// Terminal already; discard whatever the process reported.
		t.mu.Unlock()
		return
	}
	if err != nil {
		t.state = StateFailed
		cb := t.callbacks.OnFailed
		t.mu.Unlock()
		log.WithError(err).Errorf("Download of %s failed", t.url)
		if cb != nil {
			cb(err)
		}
		return
	}
	t.mu.Unlock()

	// The tool finalizes the extension only at the very end; probe for it
	// outside the lock since this can take up to the probe window.
	finalPath := t.resolveFinalPath(base)

	t.mu.Lock()
	if t.state == StateCancelled {
		t.mu.Unlock()
		return
	}
	t.state = StateCompleted
	cb := t.callbacks.OnCompleted
	t.mu.Unlock()

	log.Infof("Download of %s completed: %s", t.url, finalPath)
	if cb != nil {
		cb(finalPath)
	}
}

// outputBase is the destination filename without extension, derived from the
// subject's display title with unsafe characters substituted.
func (t *Task) outputBase() string {
	return helpers.SanitizeFilename(t.title)
}

// resolveFinalPath probes the known container extensions against the expected
// base path. If none exists within the probe window it degrades to the
// default merge extension. This is a soft heuristic: the returned path is the
// best available guess, not a guarantee.
func (t *Task) resolveFinalPath(base string) string {
	deadline := time.Now().Add(t.probeWindow)
	for {
		for _, ext := range knownExtensions {
			candidate := filepath.Join(t.destDir, base+ext)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
		if time.Now().After(deadline) {
			break
		}
		time.Sleep(t.probeInterval)
	}
	fallback := filepath.Join(t.destDir, base+defaultExtension)
	log.Debugf("No finalized output found for %s within %v, assuming %s", base, t.probeWindow, fallback)
	return fallback
}

// FormatSelector builds the yt-dlp format-selection expression for a ladder
// entry. Three cases:
//   - natively combined: the chosen variant already carries audio, request it
//     directly;
//   - merge required: pair the video-only variant with the best audio variant,
//     falling back to a height-bounded bestvideo+bestaudio combination if that
//     exact pair is no longer offered;
//   - neither: the subject has no audio anywhere, bound "best" by height.
func FormatSelector(q models.Quality) string {
	switch {
	case q.IsNativelyCombined:
		return q.PrimaryVariantID
	case q.NeedsAudioMerge:
		return fmt.Sprintf("%s+%s/bestvideo[height<=%d]+bestaudio/best[height<=%d]",
			q.PrimaryVariantID, q.BestAudioVariantID, q.Height, q.Height)
	default:
		return fmt.Sprintf("best[height<=%d]", q.Height)
	}
}
