package metrics

import (
	"time"
)

// Series names recorded by the optimizer.
const (
	RunsStarted     = "runs_started_total"
	RunsCompleted   = "runs_completed_total"
	RunsFailed      = "runs_failed_total"
	RunsDiscarded   = "runs_discarded_total"
	RunsSkipped     = "runs_skipped_total"
	RenderDuration  = "render_duration_seconds"
	UploadsAccepted = "uploads_accepted_total"
	UploadsRejected = "uploads_rejected_total"
	DecodeCache     = "decode_cache_requests_total"
	OutputBytes     = "output_bytes"
	QueueDepth      = "queue_depth"
)

// RunRecorder records optimizer runs into a Collector.
type RunRecorder struct {
	collector *Collector
}

func NewRunRecorder(collector *Collector) *RunRecorder {
	if collector == nil {
		collector = NewCollector()
	}
	return &RunRecorder{collector: collector}
}

func (r *RunRecorder) Collector() *Collector {
	return r.collector
}

func (r *RunRecorder) RunStarted(format, fitMode string) {
	r.collector.IncCounter(RunsStarted, map[string]string{"format": format, "fit_mode": fitMode})
}

// RunCompleted records a run whose result was published.
func (r *RunRecorder) RunCompleted(engine string, took time.Duration, size int) {
	labels := map[string]string{"engine": engine}
	r.collector.IncCounter(RunsCompleted, labels)
	r.collector.ObserveHistogram(RenderDuration, took.Seconds(), labels)
	r.collector.SetGauge(OutputBytes, float64(size), nil)
}

// RunFailed records a run whose failure was published, labelled by error type.
func (r *RunRecorder) RunFailed(errType string) {
	r.collector.IncCounter(RunsFailed, map[string]string{"type": errType})
}

// RunDiscarded records a completion that arrived after a newer run was issued.
func (r *RunRecorder) RunDiscarded() {
	r.collector.IncCounter(RunsDiscarded, nil)
}

// RunSkipped records a queued run that never started because it was already stale.
func (r *RunRecorder) RunSkipped() {
	r.collector.IncCounter(RunsSkipped, nil)
}

func (r *RunRecorder) UploadAccepted() {
	r.collector.IncCounter(UploadsAccepted, nil)
}

func (r *RunRecorder) UploadRejected(reason string) {
	r.collector.IncCounter(UploadsRejected, map[string]string{"reason": reason})
}

// DecodeCacheLookup records whether a run reused an already decoded source.
func (r *RunRecorder) DecodeCacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	r.collector.IncCounter(DecodeCache, map[string]string{"outcome": outcome})
}

func (r *RunRecorder) QueueDepth(n int) {
	r.collector.SetGauge(QueueDepth, float64(n), nil)
}
