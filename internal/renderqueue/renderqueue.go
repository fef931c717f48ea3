// Package renderqueue runs render requests asynchronously through a bounded
// queue and a fixed worker pool.
//
// HTTP handlers enqueue and return immediately; workers drive the pipeline's
// render operation under a per-job timeout derived from configuration rather
// than from the originating request, so a client disconnect never kills an
// in-flight render.
package renderqueue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"gifshelf/internal/config"
	"gifshelf/internal/logging"
	"gifshelf/internal/pipeline"
)

// Status is a render job's lifecycle state.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

var (
	// ErrQueueFull is returned when the bounded queue cannot accept more work.
	ErrQueueFull = errors.New("render queue full")
	// ErrStopped is returned when enqueueing after shutdown began.
	ErrStopped = errors.New("render queue stopped")
)

// Job is a point-in-time snapshot of one render request.
type Job struct {
	ImageID    string    `json:"imageId"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Artifact   string    `json:"artifact,omitempty"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
	StartedAt  time.Time `json:"startedAt,omitzero"`
	FinishedAt time.Time `json:"finishedAt,omitzero"`
}

// Queue owns the worker pool. Job state is kept per image ID; a new enqueue
// for an image whose previous job finished replaces that record.
type Queue struct {
	pipeline *pipeline.Pipeline
	logger   *slog.Logger

	workers int
	timeout time.Duration
	work    chan string

	mu      sync.Mutex
	jobs    map[string]*Job
	stopped bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a queue from the renderer configuration. Start must be
// called before Enqueue does anything useful.
func New(p *pipeline.Pipeline, cfg config.Renderer, logger *slog.Logger) *Queue {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	size := cfg.QueueSize
	if size < 1 {
		size = 1
	}
	return &Queue{
		pipeline: p,
		logger:   logging.WithComponent(logger, "renderqueue"),
		workers:  workers,
		timeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
		work:     make(chan string, size),
		jobs:     make(map[string]*Job),
	}
}

// Start launches the worker pool.
func (q *Queue) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	q.logger.Info("render workers started", logging.Int("workers", q.workers))
}

// Stop drains nothing: queued jobs not yet picked up are abandoned, running
// jobs are cancelled through their contexts. Safe to call once.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.mu.Unlock()

	if q.cancel != nil {
		q.cancel()
	}
	close(q.work)
	q.wg.Wait()
	q.logger.Info("render workers stopped")
}

// Enqueue submits a render request for an image. A request for an image that
// is already queued or running returns the existing job unchanged, so
// repeated clicks collapse into one render.
func (q *Queue) Enqueue(imageID string) (Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return Job{}, ErrStopped
	}
	if existing, ok := q.jobs[imageID]; ok {
		if existing.Status == StatusQueued || existing.Status == StatusRunning {
			return *existing, nil
		}
	}

	job := &Job{
		ImageID:    imageID,
		Status:     StatusQueued,
		EnqueuedAt: time.Now().UTC(),
	}
	select {
	case q.work <- imageID:
		q.jobs[imageID] = job
		return *job, nil
	default:
		return Job{}, ErrQueueFull
	}
}

// Lookup returns the latest job snapshot for an image.
func (q *Queue) Lookup(imageID string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[imageID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for imageID := range q.work {
		if ctx.Err() != nil {
			q.transition(imageID, func(job *Job) {
				job.Status = StatusFailed
				job.Error = "shutdown before render started"
				job.FinishedAt = time.Now().UTC()
			})
			continue
		}
		q.run(ctx, imageID)
	}
}

func (q *Queue) run(ctx context.Context, imageID string) {
	q.transition(imageID, func(job *Job) {
		job.Status = StatusRunning
		job.StartedAt = time.Now().UTC()
	})

	jobCtx := ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	image, err := q.pipeline.Render(jobCtx, imageID)
	q.transition(imageID, func(job *Job) {
		job.FinishedAt = time.Now().UTC()
		if err != nil {
			job.Status = StatusFailed
			job.Error = err.Error()
			return
		}
		job.Status = StatusDone
		if image.GIFFile != nil {
			job.Artifact = *image.GIFFile
		}
	})
	if err != nil {
		q.logger.Error("render job failed",
			logging.String("image_id", imageID), logging.Error(err))
	}
}

func (q *Queue) transition(imageID string, fn func(*Job)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job, ok := q.jobs[imageID]; ok {
		fn(job)
	}
}
