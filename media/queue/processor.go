package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/leeforge/instafit/errors"
	"github.com/leeforge/instafit/logging"
	"github.com/leeforge/instafit/media/processor"
)

var (
	ErrQueueFull = errors.New("job queue is full")
	ErrStopped   = errors.New("processor is shutting down")
)

// AsyncProcessor runs pipeline jobs on a fixed set of worker goroutines.
type AsyncProcessor struct {
	workerCount int
	jobQueue    chan ProcessingJob
	pipeline    *processor.ProcessingPipeline
	logger      logging.Logger
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc

	mu        sync.RWMutex
	stopped   bool
	startOnce sync.Once
}

// ProcessingJob is one queued run.
type ProcessingJob struct {
	Seq uint64
	// SourceID identifies the upload in logs.
	SourceID string
	Job      *processor.Job
	// Load supplies the decoded source when Job.Source is nil. Without it the
	// pipeline decodes Job.Blob itself.
	Load func() (*processor.Source, error)
	// Superseded reports whether a newer run made this one pointless. Checked
	// right before the job starts.
	Superseded func() bool
	Callback   func(result JobResult)
}

// JobResult is handed to the job's callback exactly once.
type JobResult struct {
	Seq      uint64
	Job      *processor.Job
	Error    error
	Skipped  bool
	Duration time.Duration
}

// Success reports whether the job produced an image.
func (r JobResult) Success() bool {
	return r.Error == nil && !r.Skipped && r.Job != nil && r.Job.Result != nil
}

func NewAsyncProcessor(workerCount, queueSize int, pipeline *processor.ProcessingPipeline, logger logging.Logger) *AsyncProcessor {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = logging.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &AsyncProcessor{
		workerCount: workerCount,
		jobQueue:    make(chan ProcessingJob, queueSize),
		pipeline:    pipeline,
		logger:      logger.Named("queue"),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (p *AsyncProcessor) Start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.workerCount; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
	})
}

// worker drains the queue until it is closed, so every accepted job gets its callback.
func (p *AsyncProcessor) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		p.processJob(id, job)
	}
}

func (p *AsyncProcessor) processJob(worker int, job ProcessingJob) {
	result := JobResult{Seq: job.Seq, Job: job.Job}
	start := time.Now()

	switch {
	case p.ctx.Err() != nil:
		result.Error = ErrStopped
	case job.Superseded != nil && job.Superseded():
		result.Skipped = true
	case job.Job == nil:
		result.Error = apperrors.NewInternal("job without pipeline input")
	default:
		ctx := logging.ToContext(p.ctx, logging.ForRun(p.logger, job.Seq, job.SourceID))
		result.Error = apperrors.Safely(func() error {
			if job.Job.Source == nil && job.Load != nil {
				src, err := job.Load()
				if err != nil {
					return err
				}
				job.Job.Source = src
			}
			return p.pipeline.Process(ctx, job.Job)
		})
	}
	result.Duration = time.Since(start)

	logging.ForRun(p.logger, job.Seq, job.SourceID).Debug("job finished",
		zap.Int("worker", worker),
		zap.Bool("skipped", result.Skipped),
		zap.Duration("took", result.Duration),
		zap.Error(result.Error),
	)

	if job.Callback != nil {
		job.Callback(result)
	}
}

// Submit queues job without blocking.
func (p *AsyncProcessor) Submit(job ProcessingJob) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrStopped
	}
	select {
	case p.jobQueue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// SubmitContext queues job, waiting for room until ctx ends or the processor stops.
func (p *AsyncProcessor) SubmitContext(ctx context.Context, job ProcessingJob) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrStopped
	}
	select {
	case p.jobQueue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrStopped
	}
}

// Stop rejects new jobs and waits for the workers to finish what is queued.
// Jobs still queued are completed with ErrStopped.
func (p *AsyncProcessor) Stop(timeout time.Duration) error {
	p.cancel()

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.jobQueue)
	p.mu.Unlock()

	// Workers never started: settle the queue here.
	p.startOnce.Do(func() {
		p.wg.Add(1)
		go p.worker(-1)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("timeout waiting for jobs to complete")
	}
}

// GetQueueSize returns the number of jobs waiting for a worker.
func (p *AsyncProcessor) GetQueueSize() int {
	return len(p.jobQueue)
}
