package optimizer

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"

	apperrors "github.com/leeforge/instafit/errors"
	"github.com/leeforge/instafit/events"
	"github.com/leeforge/instafit/media/processor"
	"github.com/leeforge/instafit/media/storage"
)

// Download is the current result packaged as a file.
type Download struct {
	Data        []byte
	Filename    string
	ContentType string
	Width       int
	Height      int
	Size        int
	Seq         uint64
}

// Download packages the current result. It fails with a not_ready error when
// nothing has been rendered for the current params.
func (o *Optimizer) Download() (Download, error) {
	o.mu.Lock()
	res := o.st.result
	o.mu.Unlock()

	if res == nil {
		return Download{}, apperrors.NewNotReady("no processed image to download")
	}
	return Download{
		Data:        bytes.Clone(res.Data),
		Filename:    fmt.Sprintf("instagram-%s-%d%s", res.Format, o.now().UnixMilli(), processor.FileExtension),
		ContentType: res.ContentType,
		Width:       res.Width,
		Height:      res.Height,
		Size:        res.Size,
		Seq:         res.Seq,
	}, nil
}

// SaveDownload writes the current result to the download sink.
func (o *Optimizer) SaveDownload(ctx context.Context) (storage.SaveOutput, error) {
	d, err := o.Download()
	if err != nil {
		return storage.SaveOutput{}, err
	}

	sink, err := o.downloadSink()
	if err == nil {
		var out storage.SaveOutput
		out, err = sink.Save(ctx, storage.SaveInput{
			File:        bytes.NewReader(d.Data),
			Filename:    d.Filename,
			ContentType: d.ContentType,
			Size:        int64(len(d.Data)),
		})
		if err == nil {
			o.logger.Info("download saved", zap.String("path", out.Path), zap.Int64("size", out.Size))
			return out, nil
		}
	}

	o.mu.Lock()
	o.st.errMsg = o.msgs.download()
	o.st.errType = apperrors.ErrorTypeInternal
	status := o.statusLocked()
	o.mu.Unlock()

	o.logger.Error("download failed", zap.String("filename", d.Filename), zap.Error(err))
	o.publish(events.TopicDownloadFailed, d.Seq, status)
	return storage.SaveOutput{}, apperrors.WrapWithType(err, apperrors.ErrorTypeInternal, "download could not be saved")
}

func (o *Optimizer) downloadSink() (storage.Provider, error) {
	o.sinkOnce.Do(func() {
		if o.sink != nil {
			return
		}
		o.sink, o.sinkErr = storage.NewLocalProvider(o.settings.Download.Dir, "")
	})
	return o.sink, o.sinkErr
}
