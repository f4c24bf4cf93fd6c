package queue

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/leeforge/instafit/errors"
	"github.com/leeforge/instafit/logging"
	"github.com/leeforge/instafit/media/fit"
	"github.com/leeforge/instafit/media/processor"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xaa
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestProcessor(t *testing.T, workers, size int) *AsyncProcessor {
	t.Helper()
	pipeline, err := processor.NewProcessingPipeline(processor.PipelineConfig{Engine: processor.EngineLanczos}, logging.Nop())
	require.NoError(t, err)
	p := NewAsyncProcessor(workers, size, pipeline, logging.Nop())
	t.Cleanup(func() { _ = p.Stop(5 * time.Second) })
	return p
}

func squareJob(blob processor.Blob) *processor.Job {
	return &processor.Job{Blob: blob, Target: processor.Square, FitMode: fit.Cover, Background: "#ffffff"}
}

func TestAsyncProcessor_RunsJobs(t *testing.T) {
	p := newTestProcessor(t, 2, 4)
	p.Start()

	data := processor.BytesBlob(testPNG(t, 40, 20))
	results := make(chan JobResult, 3)
	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, p.Submit(ProcessingJob{
			Seq:      seq,
			Job:      squareJob(data),
			Callback: func(r JobResult) { results <- r },
		}))
	}

	seen := map[uint64]bool{}
	for i := 0; i < 3; i++ {
		select {
		case r := <-results:
			require.NoError(t, r.Error)
			assert.True(t, r.Success())
			assert.Equal(t, 1080, r.Job.Result.Width)
			seen[r.Seq] = true
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for results")
		}
	}
	assert.Len(t, seen, 3)
}

func TestAsyncProcessor_UsesLoader(t *testing.T) {
	p := newTestProcessor(t, 1, 1)
	p.Start()

	src, err := processor.Decode(processor.BytesBlob(testPNG(t, 8, 8)), processor.DecodeOptions{})
	require.NoError(t, err)

	var loads atomic.Int32
	done := make(chan JobResult, 1)
	require.NoError(t, p.Submit(ProcessingJob{
		Seq: 1,
		Job: squareJob(nil),
		Load: func() (*processor.Source, error) {
			loads.Add(1)
			return src, nil
		},
		Callback: func(r JobResult) { done <- r },
	}))

	r := <-done
	require.NoError(t, r.Error)
	assert.Equal(t, int32(1), loads.Load())
	assert.Same(t, src, r.Job.Source)
}

func TestAsyncProcessor_SkipsSupersededJobs(t *testing.T) {
	p := newTestProcessor(t, 1, 2)
	p.Start()

	done := make(chan JobResult, 1)
	var loaded atomic.Bool
	require.NoError(t, p.Submit(ProcessingJob{
		Seq:        1,
		Job:        squareJob(nil),
		Load: func() (*processor.Source, error) {
			loaded.Store(true)
			return nil, errors.New("unreachable")
		},
		Superseded: func() bool { return true },
		Callback:   func(r JobResult) { done <- r },
	}))

	r := <-done
	assert.True(t, r.Skipped)
	assert.NoError(t, r.Error)
	assert.False(t, r.Success())
	assert.False(t, loaded.Load())
}

func TestAsyncProcessor_ReportsFailures(t *testing.T) {
	p := newTestProcessor(t, 1, 2)
	p.Start()

	done := make(chan JobResult, 2)
	require.NoError(t, p.Submit(ProcessingJob{
		Seq:      1,
		Job:      squareJob(processor.BytesBlob("not an image")),
		Callback: func(r JobResult) { done <- r },
	}))
	require.NoError(t, p.Submit(ProcessingJob{
		Seq:      2,
		Job:      squareJob(nil),
		Load:     func() (*processor.Source, error) { panic("loader blew up") },
		Callback: func(r JobResult) { done <- r },
	}))

	first := <-done
	assert.ErrorIs(t, first.Error, apperrors.ErrDecodeFailure)

	second := <-done
	assert.True(t, apperrors.IsType(second.Error, apperrors.ErrorTypeInternal))
}

func TestAsyncProcessor_QueueFull(t *testing.T) {
	p := newTestProcessor(t, 1, 1)

	require.NoError(t, p.Submit(ProcessingJob{Seq: 1}))
	assert.ErrorIs(t, p.Submit(ProcessingJob{Seq: 2}), ErrQueueFull)
	assert.Equal(t, 1, p.GetQueueSize())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.SubmitContext(ctx, ProcessingJob{Seq: 3}), context.DeadlineExceeded)
}

func TestAsyncProcessor_StopSettlesQueuedJobs(t *testing.T) {
	p := newTestProcessor(t, 1, 4)

	var mu sync.Mutex
	var results []JobResult
	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, p.Submit(ProcessingJob{
			Seq: seq,
			Job: squareJob(processor.BytesBlob(testPNG(t, 4, 4))),
			Callback: func(r JobResult) {
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
			},
		}))
	}

	require.NoError(t, p.Stop(5*time.Second))
	require.NoError(t, p.Stop(time.Second), "second stop is a no-op")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 3)
	for _, r := range results {
		assert.ErrorIs(t, r.Error, ErrStopped)
	}

	assert.ErrorIs(t, p.Submit(ProcessingJob{Seq: 4}), ErrStopped)
	assert.ErrorIs(t, p.SubmitContext(context.Background(), ProcessingJob{Seq: 5}), ErrStopped)
}

