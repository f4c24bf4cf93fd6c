package optimizer

import (
	"time"

	"github.com/leeforge/instafit/events"
	"github.com/leeforge/instafit/logging"
	"github.com/leeforge/instafit/media/storage"
	"github.com/leeforge/instafit/metrics"
)

// Option customizes an Optimizer.
type Option func(*Optimizer)

// WithLogger replaces the logger built from Settings.Logging.
func WithLogger(logger logging.Logger) Option {
	return func(o *Optimizer) {
		o.logger = logger
	}
}

// WithClock sets the time source used for download filenames.
func WithClock(now func() time.Time) Option {
	return func(o *Optimizer) {
		o.now = now
	}
}

// WithBus publishes state transitions on bus. The caller keeps ownership and
// must close it after the optimizer.
func WithBus(bus events.Bus) Option {
	return func(o *Optimizer) {
		o.bus = bus
	}
}

// WithMetrics records runs into recorder.
func WithMetrics(recorder *metrics.RunRecorder) Option {
	return func(o *Optimizer) {
		o.metrics = recorder
	}
}

// WithDownloadSink sets where SaveDownload writes. Without it a local
// provider rooted at Settings.Download.Dir is created on first use.
func WithDownloadSink(sink storage.Provider) Option {
	return func(o *Optimizer) {
		o.sink = sink
	}
}
