package optimizer

import (
	"go.uber.org/zap"

	apperrors "github.com/leeforge/instafit/errors"
	"github.com/leeforge/instafit/events"
	"github.com/leeforge/instafit/logging"
	"github.com/leeforge/instafit/media/processor"
	"github.com/leeforge/instafit/media/queue"
)

// startRunLocked issues the next sequence number for the loaded upload and
// marks the state as processing. The previous result stays visible until the
// run settles. o.mu must be held and o.st.upload must be set.
func (o *Optimizer) startRunLocked(rerun bool) queue.ProcessingJob {
	o.st.seq++
	seq := o.st.seq
	o.latest.Store(seq)

	if !o.st.processing {
		o.st.processing = true
		o.st.settled = make(chan struct{})
	}
	o.st.errMsg = ""
	o.st.errType = ""

	up := o.st.upload
	params := o.st.params
	// Params are validated by the setters.
	target, _ := processor.LookupTarget(params.Format)

	return queue.ProcessingJob{
		Seq:      seq,
		SourceID: up.id,
		Job: &processor.Job{
			Blob:       up.blob,
			Target:     target,
			FitMode:    params.FitMode,
			Background: params.Background,
		},
		Load: func() (*processor.Source, error) {
			return o.loadSource(up)
		},
		Superseded: func() bool {
			return o.latest.Load() != seq
		},
		Callback: func(result queue.JobResult) {
			o.complete(result, rerun)
		},
	}
}

// dispatch hands job to the workers. It must be called without o.mu held
// because SubmitContext blocks while the queue is full.
func (o *Optimizer) dispatch(job queue.ProcessingJob, status Status) {
	logging.ForRun(o.logger, job.Seq, job.SourceID).Debug("run started",
		zap.String("format", job.Job.Target.Key),
		zap.String("fit_mode", string(job.Job.FitMode)),
		zap.String("background", job.Job.Background),
	)
	o.metrics.RunStarted(job.Job.Target.Key, string(job.Job.FitMode))
	o.publish(events.TopicRunStarted, job.Seq, status)

	if err := o.queue.SubmitContext(o.ctx, job); err != nil {
		job.Callback(queue.JobResult{
			Seq:   job.Seq,
			Job:   job.Job,
			Error: apperrors.WrapWithType(err, apperrors.ErrorTypeInternal, "run could not be queued"),
		})
	}
	o.metrics.QueueDepth(o.queue.GetQueueSize())
}

// complete applies a finished run. Only the run carrying the latest sequence
// number may touch the visible state; anything older is discarded.
func (o *Optimizer) complete(result queue.JobResult, rerun bool) {
	logger := logging.ForRun(o.logger, result.Seq, "")

	o.mu.Lock()
	if o.closed || result.Seq != o.st.seq {
		latest := o.st.seq
		o.mu.Unlock()

		if result.Skipped {
			o.metrics.RunSkipped()
		} else {
			o.metrics.RunDiscarded()
		}
		logger.Debug("stale run discarded", zap.Uint64("latest_seq", latest), zap.Bool("skipped", result.Skipped))
		o.publish(events.TopicRunDiscarded, result.Seq, nil)
		return
	}

	o.st.processing = false
	close(o.st.settled)

	topic := events.TopicRunCompleted
	if result.Success() {
		img := result.Job.Result
		img.Seq = result.Seq
		o.st.result = img
		// The error was cleared when the run started; anything set since
		// then is a newer rejection and stays visible.
	} else {
		err := result.Error
		if err == nil {
			err = apperrors.NewInternal("run finished without an image")
		}
		// A failed run leaves no result so the preview never disagrees with
		// the selected params.
		o.st.result = nil
		o.st.errMsg = o.msgs.runFailed(err, rerun)
		o.st.errType = apperrors.TypeOf(err)
		topic = events.TopicRunFailed
	}
	status := o.statusLocked()
	o.mu.Unlock()

	if topic == events.TopicRunCompleted {
		o.metrics.RunCompleted(status.Result.Engine, result.Duration, status.Result.Size)
		logger.Info("run completed",
			zap.Int("bytes", status.Result.Size),
			zap.Duration("took", result.Duration),
		)
	} else {
		o.metrics.RunFailed(status.ErrorType)
		logger.Warn("run failed", zap.String("error", apperrors.Format(result.Error)), zap.Bool("rerun", rerun))
	}
	o.publish(topic, result.Seq, status)
}

// loadSource returns the decoded upload, decoding it at most once at a time.
// With caching enabled the decode is kept until the upload is replaced.
func (o *Optimizer) loadSource(up *upload) (*processor.Source, error) {
	caching := o.settings.Pipeline.CacheDecoded
	if caching {
		o.mu.Lock()
		var cached *processor.Source
		if o.st.upload == up {
			cached = o.st.source
		}
		o.mu.Unlock()

		o.metrics.DecodeCacheLookup(cached != nil)
		if cached != nil {
			return cached, nil
		}
	}

	v, err, _ := o.decodes.Do(up.id, func() (any, error) {
		src, err := o.pipeline.Decode(up.blob)
		if err != nil {
			return nil, err
		}
		if caching {
			o.mu.Lock()
			if o.st.upload == up {
				o.st.source = src
			}
			o.mu.Unlock()
		}
		return src, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*processor.Source), nil
}
