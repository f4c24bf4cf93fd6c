// Package optimizer re-renders an uploaded image into fixed social-media
// canvases and keeps the latest result ready for preview and download.
package optimizer

import (
	"bytes"
	"context"
	"mime"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/leeforge/instafit/config"
	apperrors "github.com/leeforge/instafit/errors"
	"github.com/leeforge/instafit/events"
	"github.com/leeforge/instafit/logging"
	"github.com/leeforge/instafit/media/fit"
	"github.com/leeforge/instafit/media/processor"
	"github.com/leeforge/instafit/media/queue"
	"github.com/leeforge/instafit/media/storage"
	"github.com/leeforge/instafit/metrics"
)

const (
	eventBufferSize = 64
	publishTimeout  = time.Second
	stopTimeout     = 30 * time.Second
)

type upload struct {
	id   string
	blob processor.Blob
	kind string
	size int64
}

// state is everything a UI collaborator can observe. It is guarded by
// Optimizer.mu because run completions arrive on worker goroutines.
type state struct {
	upload *upload
	// source caches the decoded upload between runs.
	source     *processor.Source
	params     Params
	processing bool
	// settled is closed when the latest run finishes; replaced whenever
	// processing goes from false to true.
	settled chan struct{}
	result  *processor.ProcessedImage
	errMsg  string
	errType apperrors.ErrorType
	// seq is the latest issued run sequence. Completions carrying any other
	// value are stale.
	seq uint64
}

// Optimizer owns one upload and re-renders it whenever the format, fit mode
// or background color changes. Only the latest requested run can change the
// visible result.
type Optimizer struct {
	settings config.Settings

	mu     sync.Mutex
	st     state
	latest atomic.Uint64
	closed bool

	pipeline *processor.ProcessingPipeline
	queue    *queue.AsyncProcessor
	decodes  singleflight.Group
	msgs     *messages

	bus     events.Bus
	ownsBus bool
	metrics *metrics.RunRecorder

	sink     storage.Provider
	sinkOnce sync.Once
	sinkErr  error

	logger logging.Logger
	now    func() time.Time
	ctx    context.Context
	cancel context.CancelFunc
}

// New builds an Optimizer from settings and starts its workers.
func New(settings config.Settings, opts ...Option) (*Optimizer, error) {
	if err := settings.Validate(); err != nil {
		return nil, apperrors.WrapWithType(err, apperrors.ErrorTypeInvalidArgument, "invalid settings")
	}

	params, err := resolveParams(settings.Defaults)
	if err != nil {
		return nil, err
	}
	msgs, err := newMessages(settings.Locale)
	if err != nil {
		return nil, apperrors.WrapWithType(err, apperrors.ErrorTypeInternal, "message catalog")
	}

	o := &Optimizer{
		settings: settings,
		st: state{
			params: params,
		},
		msgs: msgs,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = logging.NewFactory(settings.Logging).GetLogger("instafit")
	}
	base := o.logger
	o.logger = base.Named("optimizer")
	if o.metrics == nil {
		o.metrics = metrics.NewRunRecorder(nil)
	}

	o.pipeline, err = processor.NewProcessingPipeline(pipelineConfig(settings.Render), base)
	if err != nil {
		return nil, apperrors.NewInvalidArgument("render.engine", settings.Render.Engine, err.Error())
	}

	if o.bus == nil {
		o.bus = events.NewBus(eventBufferSize, base)
		o.ownsBus = true
	}

	o.ctx, o.cancel = context.WithCancel(context.Background())
	o.queue = queue.NewAsyncProcessor(settings.Pipeline.Workers, settings.Pipeline.QueueSize, o.pipeline, base)
	o.queue.Start()

	o.logger.Info("optimizer ready",
		zap.String("engine", o.pipeline.Engine().Name()),
		zap.Int("workers", settings.Pipeline.Workers),
		zap.Bool("cache_decoded", settings.Pipeline.CacheDecoded),
		zap.String("locale", settings.Locale),
	)
	return o, nil
}

// NewFromConfig loads Settings from config files and builds an Optimizer.
// With cfg.WatchAble set, later edits of the watched file are applied
// through Reload.
func NewFromConfig(cfg config.ConfigOptions, opts ...Option) (*Optimizer, error) {
	if !cfg.WatchAble {
		settings, err := config.Load(cfg)
		if err != nil {
			return nil, err
		}
		return New(settings, opts...)
	}

	var current atomic.Pointer[Optimizer]
	settings, err := config.Watch(cfg, func(s config.Settings, err error) {
		o := current.Load()
		if o == nil {
			return
		}
		if err == nil {
			err = o.Reload(s)
		}
		if err != nil {
			o.logger.Warn("config reload rejected", zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}

	o, err := New(settings, opts...)
	if err != nil {
		return nil, err
	}
	current.Store(o)
	return o, nil
}

func resolveParams(d config.DefaultsSettings) (Params, error) {
	target, err := processor.LookupTarget(d.Format)
	if err != nil {
		return Params{}, apperrors.NewInvalidArgument("defaults.format", d.Format, err.Error())
	}
	mode, err := fit.ParseMode(d.FitMode)
	if err != nil {
		return Params{}, apperrors.NewInvalidArgument("defaults.fit-mode", d.FitMode, err.Error())
	}
	background, err := processor.NormalizeColor(d.Background)
	if err != nil {
		return Params{}, apperrors.NewInvalidArgument("defaults.background", d.Background, err.Error())
	}
	return Params{Format: target.Key, FitMode: mode, Background: background}, nil
}

func pipelineConfig(r config.RenderSettings) processor.PipelineConfig {
	return processor.PipelineConfig{
		Engine:     r.Engine,
		MaxPixels:  r.MaxSourcePixels,
		AutoOrient: r.AutoOrient,
	}
}

// Reload applies the reloadable part of settings: locale, render options and
// defaults. Defaults replace the current params only while no upload is
// loaded. Worker, queue and download settings need a new Optimizer.
func (o *Optimizer) Reload(settings config.Settings) error {
	if err := settings.Validate(); err != nil {
		return apperrors.WrapWithType(err, apperrors.ErrorTypeInvalidArgument, "invalid settings")
	}
	params, err := resolveParams(settings.Defaults)
	if err != nil {
		return err
	}
	msgs, err := newMessages(settings.Locale)
	if err != nil {
		return apperrors.WrapWithType(err, apperrors.ErrorTypeInternal, "message catalog")
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return apperrors.NewNotReady("optimizer is closed")
	}
	if err := o.pipeline.Reconfigure(pipelineConfig(settings.Render)); err != nil {
		o.mu.Unlock()
		return apperrors.NewInvalidArgument("render.engine", settings.Render.Engine, err.Error())
	}
	if settings.Render.MaxSourcePixels != o.settings.Render.MaxSourcePixels ||
		settings.Render.AutoOrient != o.settings.Render.AutoOrient {
		o.st.source = nil
	}
	o.settings.Defaults = settings.Defaults
	o.settings.Render = settings.Render
	o.settings.Locale = settings.Locale
	o.msgs = msgs

	changed := o.st.upload == nil && o.st.params != params
	if changed {
		o.st.params = params
	}
	status := o.statusLocked()
	o.mu.Unlock()

	o.logger.Info("settings reloaded",
		zap.String("engine", settings.Render.Engine),
		zap.String("locale", settings.Locale),
	)
	if changed {
		o.publish(events.TopicParamsChanged, status.Seq, status)
	}
	return nil
}

// Formats lists the selectable target canvases with names in the configured
// locale.
func (o *Optimizer) Formats() []processor.Target {
	o.mu.Lock()
	msgs := o.msgs
	o.mu.Unlock()

	targets := processor.Targets()
	for i := range targets {
		targets[i].Name = msgs.targetName(targets[i])
	}
	return targets
}

// Metrics returns the collector runs are recorded into.
func (o *Optimizer) Metrics() *metrics.Collector {
	return o.metrics.Collector()
}

// SubmitImage validates an upload and, when accepted, replaces the current
// source and starts a run. The declared kind must be image/* and the size at
// most processor.MaxUploadBytes; the larger of byteSize and len(data) counts.
// A rejected upload only sets the error message.
func (o *Optimizer) SubmitImage(data []byte, declaredKind string, byteSize int64) error {
	size := max(byteSize, int64(len(data)))
	return o.submit(processor.BytesBlob(bytes.Clone(data)), declaredKind, size, func() (*mimetype.MIME, error) {
		return mimetype.Detect(data), nil
	})
}

// SubmitFile is SubmitImage for an upload already stored on disk. The file is
// read on every decode, so it must stay in place until the upload is replaced
// or reset.
func (o *Optimizer) SubmitFile(path, declaredKind string) error {
	info, err := os.Stat(path)
	if err != nil {
		return apperrors.NewInvalidArgument("path", path, err.Error())
	}
	if !info.Mode().IsRegular() {
		return apperrors.NewInvalidArgument("path", path, "not a regular file")
	}
	return o.submit(processor.FileBlob(path), declaredKind, info.Size(), func() (*mimetype.MIME, error) {
		return mimetype.DetectFile(path)
	})
}

func (o *Optimizer) submit(blob processor.Blob, declaredKind string, size int64, detect func() (*mimetype.MIME, error)) error {
	var rejected *apperrors.AppError
	switch {
	case !isImageKind(declaredKind):
		rejected = apperrors.NewInvalidInputKind(declaredKind)
	case size > processor.MaxUploadBytes:
		rejected = apperrors.NewInputTooLarge(size, processor.MaxUploadBytes)
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return apperrors.NewNotReady("optimizer is closed")
	}

	if rejected != nil {
		if rejected.Type == apperrors.ErrorTypeInvalidInputKind {
			o.st.errMsg = o.msgs.invalidKind()
		} else {
			o.st.errMsg = o.msgs.tooLarge(processor.MaxUploadBytes)
		}
		o.st.errType = rejected.Type
		status := o.statusLocked()
		o.mu.Unlock()

		o.metrics.UploadRejected(string(rejected.Type))
		o.logger.Info("upload rejected", zap.String("reason", apperrors.Format(rejected)))
		o.publish(events.TopicUploadRejected, status.Seq, status)
		return rejected
	}

	up := &upload{
		id:   uuid.NewString(),
		blob: blob,
		kind: declaredKind,
		size: size,
	}
	o.st.upload = up
	o.st.source = nil
	job := o.startRunLocked(false)
	status := o.statusLocked()
	o.mu.Unlock()

	if detected, err := detect(); err == nil && !strings.HasPrefix(detected.String(), "image/") {
		o.logger.Warn("upload content does not look like an image",
			zap.String("source_id", up.id),
			zap.String("declared", declaredKind),
			zap.String("detected", detected.String()),
		)
	}
	o.metrics.UploadAccepted()
	o.logger.Info("upload accepted", zap.String("source_id", up.id), zap.Int64("size", size))
	o.publish(events.TopicUploadAccepted, status.Seq, status)
	o.dispatch(job, status)
	return nil
}

func isImageKind(kind string) bool {
	mediaType, _, err := mime.ParseMediaType(kind)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "image/") && len(mediaType) > len("image/")
}

// SetTargetFormat selects square, vertical or story.
func (o *Optimizer) SetTargetFormat(key string) error {
	target, err := processor.LookupTarget(key)
	if err != nil {
		return apperrors.NewInvalidArgument("format", key, err.Error())
	}
	return o.updateParams(func(p *Params) bool {
		if p.Format == target.Key {
			return false
		}
		p.Format = target.Key
		return true
	})
}

// SetFitMode selects cover or contain.
func (o *Optimizer) SetFitMode(mode string) error {
	m, err := fit.ParseMode(mode)
	if err != nil {
		return apperrors.NewInvalidArgument("fit_mode", mode, err.Error())
	}
	return o.updateParams(func(p *Params) bool {
		if p.FitMode == m {
			return false
		}
		p.FitMode = m
		return true
	})
}

// SetBackgroundColor accepts any notation processor.ParseColor understands.
// Notations of the same color count as no change.
func (o *Optimizer) SetBackgroundColor(value string) error {
	normalized, err := processor.NormalizeColor(value)
	if err != nil {
		return apperrors.NewInvalidArgument("background", value, err.Error())
	}
	return o.updateParams(func(p *Params) bool {
		if p.Background == normalized {
			return false
		}
		p.Background = normalized
		return true
	})
}

// updateParams applies change and re-runs when it reports a difference and a
// source is loaded.
func (o *Optimizer) updateParams(change func(*Params) bool) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return apperrors.NewNotReady("optimizer is closed")
	}
	if !change(&o.st.params) {
		o.mu.Unlock()
		return nil
	}

	var job *queue.ProcessingJob
	if o.st.upload != nil {
		j := o.startRunLocked(true)
		job = &j
	}
	status := o.statusLocked()
	o.mu.Unlock()

	o.logger.Debug("params changed",
		zap.String("format", status.Params.Format),
		zap.String("fit_mode", string(status.Params.FitMode)),
		zap.String("background", status.Params.Background),
	)
	o.publish(events.TopicParamsChanged, status.Seq, status)
	if job != nil {
		o.dispatch(*job, status)
	}
	return nil
}

// Reset forgets the upload, result and error and settles any pending run.
// It consumes a sequence number so in-flight runs complete as stale.
// Selected params are kept.
func (o *Optimizer) Reset() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	if o.st.upload != nil {
		o.decodes.Forget(o.st.upload.id)
	}
	o.st.upload = nil
	o.st.source = nil
	o.st.result = nil
	o.st.errMsg = ""
	o.st.errType = ""
	o.st.seq++
	o.latest.Store(o.st.seq)
	if o.st.processing {
		o.st.processing = false
		close(o.st.settled)
	}
	status := o.statusLocked()
	o.mu.Unlock()

	o.logger.Info("state reset", zap.Uint64("run_seq", status.Seq))
	o.publish(events.TopicReset, status.Seq, status)
}

// Status returns a snapshot of the current state. The Result it points to is
// shared and must not be modified.
func (o *Optimizer) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.statusLocked()
}

func (o *Optimizer) statusLocked() Status {
	s := Status{
		Processing: o.st.processing,
		Result:     o.st.result,
		Error:      o.st.errMsg,
		ErrorType:  string(o.st.errType),
		Params:     o.st.params,
		Seq:        o.st.seq,
		HasSource:  o.st.upload != nil,
	}
	if o.st.upload != nil {
		s.SourceID = o.st.upload.id
	}
	return s
}

// Await blocks until no run is pending or ctx ends.
func (o *Optimizer) Await(ctx context.Context) (Status, error) {
	for {
		o.mu.Lock()
		if !o.st.processing {
			s := o.statusLocked()
			o.mu.Unlock()
			return s, nil
		}
		settled := o.st.settled
		o.mu.Unlock()

		select {
		case <-settled:
		case <-ctx.Done():
			return o.Status(), ctx.Err()
		}
	}
}

// Subscribe registers handler for every state transition.
func (o *Optimizer) Subscribe(handler events.Handler) events.Subscription {
	return o.bus.Subscribe(events.Wildcard, handler)
}

// Close stops the workers and settles any pending run. Runs still queued
// complete as stale.
func (o *Optimizer) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	if o.st.processing {
		o.st.processing = false
		close(o.st.settled)
	}
	o.mu.Unlock()

	o.cancel()
	err := o.queue.Stop(stopTimeout)
	if o.ownsBus {
		err = multierr.Append(err, o.bus.Close())
	}
	_ = o.logger.Sync()
	return err
}

func (o *Optimizer) publish(topic string, seq uint64, data any) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err := o.bus.Publish(ctx, events.Event{
		Name:   topic,
		Data:   data,
		Source: "optimizer",
		Seq:    seq,
	})
	if err != nil {
		o.logger.Warn("event not delivered", zap.String("event", topic), zap.Uint64("run_seq", seq), zap.Error(err))
	}
}
