package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/leeforge/instafit/errors"
	"github.com/leeforge/instafit/logging"
	"github.com/leeforge/instafit/media/fit"
)

// PipelineConfig configures a ProcessingPipeline.
type PipelineConfig struct {
	Engine     string
	MaxPixels  int
	AutoOrient bool
}

// Job carries one render through the pipeline. Steps fill Source, Rect and
// Result in that order; a Job with Source already set skips decoding.
type Job struct {
	Blob       Blob
	Source     *Source
	Target     Target
	FitMode    fit.Mode
	Background string

	Rect   fit.DrawRect
	Result *ProcessedImage
}

// ProcessingStep is one stage of the pipeline.
type ProcessingStep interface {
	Name() string
	Process(ctx context.Context, job *Job) error
}

// DecodeStep decodes Job.Blob unless a Source is already attached.
type DecodeStep struct {
	opts DecodeOptions
}

// FitStep computes the draw rect.
type FitStep struct{}

// RenderStep rasterizes and encodes.
type RenderStep struct {
	engine Engine
}

// ProcessingPipeline runs decode, fit and render for a Job.
type ProcessingPipeline struct {
	mu     sync.RWMutex
	steps  []ProcessingStep
	decode DecodeOptions
	engine Engine
	logger logging.Logger
}

func NewProcessingPipeline(cfg PipelineConfig, logger logging.Logger) (*ProcessingPipeline, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	p := &ProcessingPipeline{logger: logger.Named("pipeline")}
	if err := p.Reconfigure(cfg); err != nil {
		return nil, err
	}
	return p, nil
}

// Reconfigure swaps the engine and decode options. Jobs already past the
// step lookup finish with the previous ones.
func (p *ProcessingPipeline) Reconfigure(cfg PipelineConfig) error {
	engine, err := NewEngine(cfg.Engine)
	if err != nil {
		return err
	}
	decode := DecodeOptions{MaxPixels: cfg.MaxPixels, AutoOrient: cfg.AutoOrient}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = []ProcessingStep{
		DecodeStep{opts: decode},
		FitStep{},
		RenderStep{engine: engine},
	}
	p.decode = decode
	p.engine = engine
	return nil
}

// Engine returns the engine used by the render step.
func (p *ProcessingPipeline) Engine() Engine {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.engine
}

// Decode decodes blob with the pipeline's decode options.
func (p *ProcessingPipeline) Decode(blob Blob) (*Source, error) {
	p.mu.RLock()
	opts := p.decode
	p.mu.RUnlock()

	start := time.Now()
	src, err := Decode(blob, opts)
	if err != nil {
		p.logger.Debug("decode failed", zap.Error(err))
		return nil, err
	}
	p.logger.Debug("decoded source",
		zap.String("format", src.Format),
		zap.Int("width", src.Width),
		zap.Int("height", src.Height),
		zap.Duration("took", time.Since(start)),
	)
	return src, nil
}

// Process runs every step in order and stops at the first failure. The
// returned error keeps the AppError type of the failing step. A logger stored
// in ctx replaces the pipeline's own for the duration of the job.
func (p *ProcessingPipeline) Process(ctx context.Context, job *Job) error {
	if job == nil {
		return apperrors.NewInternal("nil job")
	}

	p.mu.RLock()
	steps := p.steps
	p.mu.RUnlock()

	logger := logging.FromContextOr(ctx, p.logger)
	for _, step := range steps {
		start := time.Now()
		if err := step.Process(ctx, job); err != nil {
			logger.Debug("step failed", zap.String("step", step.Name()), zap.Error(err))
			return apperrors.Wrap(err, fmt.Sprintf("%s step failed", step.Name()))
		}
		logger.Debug("step finished", zap.String("step", step.Name()), zap.Duration("took", time.Since(start)))
	}
	return nil
}

func (s DecodeStep) Name() string { return "decode" }

func (s DecodeStep) Process(ctx context.Context, job *Job) error {
	if job.Source != nil {
		return nil
	}
	src, err := Decode(job.Blob, s.opts)
	if err != nil {
		return err
	}
	job.Source = src
	return nil
}

func (s FitStep) Name() string { return "fit" }

func (s FitStep) Process(ctx context.Context, job *Job) error {
	rect, err := fit.ComputeDrawRect(job.Source.Width, job.Source.Height, job.Target.Width, job.Target.Height, job.FitMode)
	if err != nil {
		return apperrors.NewRenderFailure("could not place source", err).
			WithDetail("target", job.Target.Key).
			WithDetail("fit_mode", string(job.FitMode))
	}
	job.Rect = rect
	return nil
}

func (s RenderStep) Name() string { return "render" }

func (s RenderStep) Process(ctx context.Context, job *Job) error {
	bg, err := ParseColor(job.Background)
	if err != nil {
		return apperrors.NewRenderFailure("invalid background", err).WithDetail("background", job.Background)
	}

	out, err := Render(ctx, job.Source, job.Target, job.Rect, bg, s.engine)
	if err != nil {
		return err
	}
	out.FitMode = job.FitMode
	out.Background = job.Background
	job.Result = out
	return nil
}
