package downloader

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	errs "smdl/pkg/errors"
	"smdl/pkg/logger"
	"smdl/pkg/retry"
	"smdl/pkg/smugmug"
)

// DefaultWorkers is the number of concurrent downloads per album
const DefaultWorkers = 8

// DefaultTimeout bounds a single in-flight job once it has started
const DefaultTimeout = 30 * time.Minute

// Job is one media entry to mirror into Dir
type Job struct {
	Album smugmug.Album
	Entry smugmug.MediaEntry
	Dir   string
}

// Status is the outcome of a job
type Status int

const (
	StatusDownloaded Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDownloaded:
		return "downloaded"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is reported once per submitted job that a worker picked up
type Result struct {
	Job      Job
	Status   Status
	Path     string
	Bytes    int64
	Err      error
	Duration time.Duration
}

// Resolver turns a media entry into a download URL
type Resolver interface {
	Resolve(ctx context.Context, entry smugmug.MediaEntry) (string, error)
}

// Opener streams the body behind a download URL
type Opener interface {
	Open(ctx context.Context, url string) (io.ReadCloser, int64, error)
}

// Store places downloaded bytes in the local mirror
type Store interface {
	Destination(albumDir, fileName string) (string, error)
	Exists(path string) bool
	Save(ctx context.Context, path string, r io.Reader) (int64, error)
}

// PoolConfig tunes a WorkerPool
type PoolConfig struct {
	Workers int
	// Policy retries a failed transfer; nil means a single attempt
	Policy *retry.Policy
	// Timeout bounds each job after it leaves the queue
	Timeout time.Duration
}

// WorkerPool runs downloads for one album on a fixed set of workers
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context

	mu     sync.Mutex
	closed bool

	policy   *retry.Policy
	timeout  time.Duration
	resolver Resolver
	opener   Opener
	store    Store
	logger   logger.Logger
}

// NewWorkerPool creates a pool. Call Start before submitting jobs.
func NewWorkerPool(cfg PoolConfig, resolver Resolver, opener Opener, store Store, log logger.Logger) *WorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	policy := cfg.Policy
	if policy == nil {
		policy = retry.DefaultPolicy().WithMaxAttempts(1)
	}

	return &WorkerPool{
		numWorkers:  cfg.Workers,
		jobQueue:    make(chan Job, cfg.Workers*2),
		resultQueue: make(chan Result, cfg.Workers),
		ctx:         context.Background(),
		policy:      policy,
		timeout:     cfg.Timeout,
		resolver:    resolver,
		opener:      opener,
		store:       store,
		logger:      logger.OrDefault(log).WithField("component", "downloader"),
	}
}

// Start launches the workers. Once ctx is done, queued jobs are dropped
// without being processed; jobs already running finish normally.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.ctx = ctx
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Submit queues a job. It blocks while the queue is full and fails once
// the pool is closed or its context is done.
func (wp *WorkerPool) Submit(job Job) error {
	wp.mu.Lock()
	closed := wp.closed
	wp.mu.Unlock()
	if closed {
		return fmt.Errorf("worker pool is closed")
	}

	select {
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	default:
	}

	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	}
}

// Close stops accepting jobs, waits for the workers and closes Results.
// It must be called from the goroutine that submits.
func (wp *WorkerPool) Close() {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	wp.mu.Unlock()

	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
}

// Results delivers one Result per processed job. It must be drained.
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		if wp.ctx.Err() != nil {
			// Drain so Close never blocks on a full queue
			continue
		}
		wp.resultQueue <- wp.process(job, id)
	}
}

func (wp *WorkerPool) process(job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}
	log := wp.logger.WithFields(map[string]interface{}{
		"worker_id": workerID,
		"album":     job.Album.Name,
		"file":      job.Entry.FileName,
	})

	finish := func(status Status, err error) Result {
		result.Status = status
		result.Err = err
		result.Duration = time.Since(start)
		logger.LogDownload(log, job.Album.Name, job.Entry.FileName, status.String(), result.Bytes, err)
		return result
	}

	dest, err := wp.store.Destination(job.Dir, job.Entry.FileName)
	if err != nil {
		return finish(StatusFailed, err)
	}
	result.Path = dest

	if wp.store.Exists(dest) {
		return finish(StatusSkipped, nil)
	}

	// A started job is not interrupted by the stop signal
	ctx, cancel := context.WithTimeout(context.WithoutCancel(wp.ctx), wp.timeout)
	defer cancel()

	url, err := wp.resolver.Resolve(ctx, job.Entry)
	if err != nil {
		return finish(StatusFailed, err)
	}

	n, err := retry.DoWithResult(ctx, wp.policy, func(ctx context.Context, attempt int) (int64, error) {
		if attempt > 1 {
			log.DebugWithFields("Retrying transfer", map[string]interface{}{"attempt": attempt})
		}
		body, _, err := wp.opener.Open(ctx, url)
		if err != nil {
			return 0, err
		}
		defer body.Close()
		return wp.store.Save(ctx, dest, body)
	})
	result.Bytes = n
	if err != nil {
		return finish(StatusFailed, errs.Wrap(errs.ErrorTypeDownload, err, "download %s", job.Entry.FileName).WithPath(url))
	}
	return finish(StatusDownloaded, nil)
}
