package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// rotatingFiles tracks every lumberjack writer handed out so CloseAllWriters can release them.
var (
	rotatingFiles   []*lumberjack.Logger
	rotatingFilesMu sync.Mutex
)

// newFileWriter returns a lumberjack writer for config, creating Director if needed.
func newFileWriter(config Config) *lumberjack.Logger {
	_ = os.MkdirAll(config.Director, 0o755)

	writer := &lumberjack.Logger{
		Filename:   filepath.Join(config.Director, config.FileName),
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
		LocalTime:  true,
	}

	rotatingFilesMu.Lock()
	rotatingFiles = append(rotatingFiles, writer)
	rotatingFilesMu.Unlock()

	return writer
}

// getWriteSyncer builds the sink for config. With neither terminal nor file
// output enabled, entries are discarded.
func getWriteSyncer(config Config) zapcore.WriteSyncer {
	var syncers []zapcore.WriteSyncer
	if config.LogInTerminal {
		syncers = append(syncers, zapcore.AddSync(os.Stdout))
	}
	if config.LogToFile {
		syncers = append(syncers, zapcore.AddSync(newFileWriter(config)))
	}

	switch len(syncers) {
	case 0:
		return zapcore.AddSync(io.Discard)
	case 1:
		return syncers[0]
	default:
		return zapcore.NewMultiWriteSyncer(syncers...)
	}
}

// CloseAllWriters closes every rotating file opened by NewLogger.
func CloseAllWriters() error {
	rotatingFilesMu.Lock()
	defer rotatingFilesMu.Unlock()

	var lastErr error
	for _, w := range rotatingFiles {
		if err := w.Close(); err != nil {
			lastErr = err
		}
	}
	rotatingFiles = nil
	return lastErr
}
