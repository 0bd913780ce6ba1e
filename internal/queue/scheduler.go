// Package queue schedules download jobs: an unbounded FIFO pending list
// feeding a bounded set of concurrently running download tasks.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go-media-download/internal/downloader"
	"go-media-download/internal/metadata"
	"go-media-download/internal/models"
	"go-media-download/internal/quality"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrInvalidConcurrency is returned at construction for limits <= 0.
	// Invalid limits fail fast; they are never clamped.
	ErrInvalidConcurrency = errors.New("concurrency limit must be a positive integer")
	// ErrMetadataUnresolved wraps a resolver failure during submission.
	ErrMetadataUnresolved = errors.New("metadata could not be resolved")
	// ErrNoUsableQuality means the resolved ladder was empty or the caller's
	// selector declined every entry.
	ErrNoUsableQuality = errors.New("no usable quality for subject")
)

// DefaultConcurrency is the limit used when a caller leaves it unspecified.
const DefaultConcurrency = 3

// QualitySelector picks one ladder entry for a submitted subject. Returning
// false rejects the submission.
type QualitySelector func(ladder quality.Ladder) (models.Quality, bool)

// Summary is the payload of the queue-complete event: totals accumulated
// since the scheduler was created.
type Summary struct {
	Completed int
	Failed    int
}

// Status is a point-in-time snapshot of scheduler state.
type Status struct {
	Pending   int
	Running   int
	Completed int
	Failed    int
	Paused    bool
}

// Events receive scheduler-level notifications, tagged with the subject URL
// and job id. OnQueueComplete fires exactly once per drain: the moment both
// the pending list and the running set become empty after activity. Nil
// members are skipped. Callbacks are invoked outside the scheduler lock but
// from task goroutines; they must not block for long.
type Events struct {
	OnProgress      func(url string, jobID int64, percent float64)
	OnComplete      func(url string, jobID int64, path string)
	OnError         func(url string, jobID int64, err error)
	OnQueueComplete func(Summary)
}

type runningJob struct {
	job  *models.Job
	task *downloader.Task
}

// Scheduler owns the pending list, the running set, and the completed/failed
// history. All mutable state is guarded by one mutex; event callbacks fire
// outside it.
type Scheduler struct {
	resolver metadata.Resolver
	runner   downloader.Runner
	destDir  string
	limit    int
	events   Events

	mu        sync.Mutex
	paused    bool
	active    bool // activity since the last drain signal
	nextID    int64
	pending   []*models.Job
	running   map[int64]*runningJob
	completed []*models.Job
	failed    []*models.Job
	infoCache map[string]*models.MediaInfo
}

// New creates a scheduler with the given concurrency limit. Limits <= 0 are a
// configuration error; callers wanting the default pass DefaultConcurrency.
func New(resolver metadata.Resolver, runner downloader.Runner, destDir string, limit int, events Events) (*Scheduler, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidConcurrency, limit)
	}
	return &Scheduler{
		resolver:  resolver,
		runner:    runner,
		destDir:   destDir,
		limit:     limit,
		events:    events,
		running:   make(map[int64]*runningJob),
		infoCache: make(map[string]*models.MediaInfo),
	}, nil
}

// Submit resolves the subject's metadata (once per URL; later submissions
// reuse it), picks a quality via selector (nil means best overall), appends a
// Pending job and triggers admission. It never blocks on the job running;
// the only suspension point is the metadata resolution itself.
func (s *Scheduler) Submit(ctx context.Context, url string, selector QualitySelector) (int64, error) {
	info, err := s.resolveInfo(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMetadataUnresolved, err)
	}

	ladder := quality.Resolve(info.Variants)
	var q models.Quality
	var ok bool
	if selector != nil {
		q, ok = selector(ladder)
	} else {
		q, ok = ladder.Best()
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoUsableQuality, url)
	}

	s.mu.Lock()
	s.nextID++
	job := &models.Job{
		ID:             s.nextID,
		URL:            url,
		Title:          info.Title,
		Uploader:       info.Uploader,
		Quality:        q,
		State:          models.JobStatePending,
		DestinationDir: s.destDir,
		SubmittedAt:    time.Now(),
	}
	s.pending = append(s.pending, job)
	s.active = true
	s.admitLocked()
	s.mu.Unlock()

	log.Infof("Queued job %d: %s at %s", job.ID, url, q.Label)
	return job.ID, nil
}

// resolveInfo returns cached metadata for the URL or asks the resolver.
func (s *Scheduler) resolveInfo(ctx context.Context, url string) (*models.MediaInfo, error) {
	s.mu.Lock()
	info, ok := s.infoCache[url]
	s.mu.Unlock()
	if ok {
		return info, nil
	}

	info, err := s.resolver.Resolve(ctx, url)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.infoCache[url] = info
	s.mu.Unlock()
	return info, nil
}

// Cancel removes a Pending job or cancels a Running one. It reports whether
// the job existed in either set; terminal or unknown ids return false.
func (s *Scheduler) Cancel(jobID int64) bool {
	s.mu.Lock()

	for i, job := range s.pending {
		if job.ID != jobID {
			continue
		}
		s.pending = append(s.pending[:i], s.pending[i+1:]...)
		drained := s.drainCheckLocked()
		s.mu.Unlock()
		log.Infof("Removed pending job %d", jobID)
		s.emitDrain(drained)
		return true
	}

	if rj, ok := s.running[jobID]; ok {
		rj.job.State = models.JobStateCancelled
		rj.job.FinishedAt = time.Now()
		delete(s.running, jobID)
		s.admitLocked()
		drained := s.drainCheckLocked()
		s.mu.Unlock()
		rj.task.Cancel()
		log.Infof("Cancelled running job %d", jobID)
		s.emitDrain(drained)
		return true
	}

	s.mu.Unlock()
	return false
}

// Pause stops new admissions. Jobs already running continue to completion.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	log.Debug("Queue paused")
}

// Resume re-enables and immediately re-triggers admission.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	s.paused = false
	s.admitLocked()
	s.mu.Unlock()
	log.Debug("Queue resumed")
}

// Clear empties the pending list and cancels every running job. Historical
// completed/failed records are kept.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	s.pending = nil
	cancelled := make([]*runningJob, 0, len(s.running))
	for _, rj := range s.running {
		rj.job.State = models.JobStateCancelled
		rj.job.FinishedAt = time.Now()
		cancelled = append(cancelled, rj)
	}
	s.running = make(map[int64]*runningJob)
	drained := s.drainCheckLocked()
	s.mu.Unlock()

	for _, rj := range cancelled {
		rj.task.Cancel()
	}
	log.Infof("Queue cleared: %d running jobs cancelled", len(cancelled))
	s.emitDrain(drained)
}

// Job returns a copy of the job with the given id, looked up across the
// pending, running, and finished sets. Cancelled jobs are dropped from all
// sets and report false.
func (s *Scheduler) Job(jobID int64) (models.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rj, ok := s.running[jobID]; ok {
		return *rj.job, true
	}
	for _, job := range s.pending {
		if job.ID == jobID {
			return *job, true
		}
	}
	for _, job := range s.completed {
		if job.ID == jobID {
			return *job, true
		}
	}
	for _, job := range s.failed {
		if job.ID == jobID {
			return *job, true
		}
	}
	return models.Job{}, false
}

// Status returns a snapshot. It never blocks on running work.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Pending:   len(s.pending),
		Running:   len(s.running),
		Completed: len(s.completed),
		Failed:    len(s.failed),
		Paused:    s.paused,
	}
}

// admitLocked pops pending heads into the running set while capacity allows.
// Strict FIFO, idempotent, safe to call redundantly. Caller holds s.mu.
func (s *Scheduler) admitLocked() {
	for !s.paused && len(s.running) < s.limit && len(s.pending) > 0 {
		job := s.pending[0]
		s.pending = s.pending[1:]
		job.State = models.JobStateRunning

		task := downloader.NewTask(s.runner, job.URL, job.Title, job.Quality, job.DestinationDir, downloader.Callbacks{
			OnProgress: func(pct float64) {
				s.onProgress(job, pct)
			},
			OnCompleted: func(path string) {
				s.onTerminal(job, path, nil)
			},
			OnFailed: func(err error) {
				s.onTerminal(job, "", err)
			},
		})
		s.running[job.ID] = &runningJob{job: job, task: task}

		if err := task.Start(); err != nil {
			// Freshly built tasks cannot be started twice; treat as defensive
			// failure bookkeeping.
			delete(s.running, job.ID)
			job.State = models.JobStateFailed
			job.Error = err.Error()
			s.failed = append(s.failed, job)
			log.WithError(err).Errorf("Failed to start task for job %d", job.ID)
			continue
		}
		log.Debugf("Admitted job %d (%s), running %d/%d", job.ID, job.URL, len(s.running), s.limit)
	}
}

// onProgress forwards task progress, tagged with subject and job id. Events
// for jobs no longer in the running set (cancelled, cleared) are dropped.
func (s *Scheduler) onProgress(job *models.Job, pct float64) {
	s.mu.Lock()
	_, present := s.running[job.ID]
	s.mu.Unlock()
	if present && s.events.OnProgress != nil {
		s.events.OnProgress(job.URL, job.ID, pct)
	}
}

// onTerminal records one job's completion or failure, re-evaluates admission
// and emits the aggregate events.
func (s *Scheduler) onTerminal(job *models.Job, path string, taskErr error) {
	s.mu.Lock()
	if _, present := s.running[job.ID]; !present {
		// Cancelled or cleared while the signal was in flight; discard.
		s.mu.Unlock()
		return
	}
	delete(s.running, job.ID)
	job.FinishedAt = time.Now()
	if taskErr != nil {
		job.State = models.JobStateFailed
		job.Error = taskErr.Error()
		s.failed = append(s.failed, job)
	} else {
		job.State = models.JobStateCompleted
		job.OutputPath = path
		s.completed = append(s.completed, job)
	}
	s.admitLocked()
	drained := s.drainCheckLocked()
	s.mu.Unlock()

	if taskErr != nil {
		if s.events.OnError != nil {
			s.events.OnError(job.URL, job.ID, taskErr)
		}
	} else if s.events.OnComplete != nil {
		s.events.OnComplete(job.URL, job.ID, path)
	}
	s.emitDrain(drained)
}

// drainCheckLocked reports whether the queue just drained: pending and
// running both empty after activity. It latches, so each maximal run of
// activity produces exactly one drain signal. Caller holds s.mu.
func (s *Scheduler) drainCheckLocked() bool {
	if s.active && len(s.pending) == 0 && len(s.running) == 0 {
		s.active = false
		return true
	}
	return false
}

// emitDrain fires the queue-complete event with the accumulated totals.
func (s *Scheduler) emitDrain(drained bool) {
	if !drained {
		return
	}
	s.mu.Lock()
	summary := Summary{Completed: len(s.completed), Failed: len(s.failed)}
	s.mu.Unlock()
	log.Infof("Queue drained: %d completed, %d failed", summary.Completed, summary.Failed)
	if s.events.OnQueueComplete != nil {
		s.events.OnQueueComplete(summary)
	}
}
