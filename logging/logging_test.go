package logging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Director != "logs" {
		t.Errorf("expected Director 'logs', got '%s'", cfg.Director)
	}
	if cfg.Level != "info" {
		t.Errorf("expected Level 'info', got '%s'", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("expected Format 'json', got '%s'", cfg.Format)
	}
	if !cfg.LogInTerminal {
		t.Error("expected LogInTerminal to be true")
	}
	if cfg.LogToFile {
		t.Error("expected LogToFile to be false")
	}
}

func TestConfigTransportLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"ERROR", zapcore.ErrorLevel},
		{"unknown", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := Config{Level: tt.level}
			if got := cfg.TransportLevel(); got != tt.expected {
				t.Errorf("TransportLevel() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNewLoggerWritesRotatingFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Director = t.TempDir()
	cfg.LogInTerminal = false
	cfg.LogToFile = true

	logger := NewLogger(cfg)
	logger.Info("render finished", zap.Int("width", 1080))
	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if err := CloseAllWriters(); err != nil {
		t.Fatalf("CloseAllWriters failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(cfg.Director, cfg.FileName))
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if len(data) == 0 {
		t.Error("log file is empty")
	}
}

func TestNewLoggerWithoutSinks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogInTerminal = false

	logger := NewLogger(cfg)
	logger.Warn("dropped")
	if err := logger.Sync(); err != nil {
		t.Errorf("Sync failed: %v", err)
	}
}

func TestLoggerChildren(t *testing.T) {
	logger := Nop()

	if logger.With(zap.String("component", "test")) == logger {
		t.Error("With should return a new logger instance")
	}
	if logger.Named("optimizer") == nil {
		t.Error("Named returned nil")
	}
	if logger.WithError(os.ErrNotExist) == nil {
		t.Error("WithError returned nil")
	}
}

func TestForRunAddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := FromZap(zap.New(core))

	ForRun(logger, 7, "src-1").Info("run started")
	ForRun(logger, 8, "").Info("run started")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	first := entries[0].ContextMap()
	if first["run_seq"] != uint64(7) {
		t.Errorf("run_seq = %v, want 7", first["run_seq"])
	}
	if first["source_id"] != "src-1" {
		t.Errorf("source_id = %v, want src-1", first["source_id"])
	}
	if _, ok := entries[1].ContextMap()["source_id"]; ok {
		t.Error("empty source id should not be logged")
	}
}

func TestFactory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogInTerminal = false

	factory := NewFactory(cfg)

	logger1 := factory.GetLogger("processor")
	logger2 := factory.GetLogger("processor")
	logger3 := factory.GetLogger("queue")

	if logger1.Zap() != logger2.Zap() {
		t.Error("GetLogger should return same logger for same name")
	}
	if logger1.Zap() == logger3.Zap() {
		t.Error("GetLogger should return different logger for different name")
	}
}

func TestContextLoggerStorage(t *testing.T) {
	logger := Nop()
	ctx := ToContext(context.Background(), logger)

	if FromContext(ctx).Zap() != logger.Zap() {
		t.Error("FromContext should return the stored logger")
	}
	if FromContext(context.Background()) == nil {
		t.Error("FromContext without a logger should fall back to Global")
	}

	fallback := Nop()
	if FromContextOr(ctx, fallback).Zap() != logger.Zap() {
		t.Error("FromContextOr should prefer the stored logger")
	}
	if FromContextOr(context.Background(), fallback).Zap() != fallback.Zap() {
		t.Error("FromContextOr should return the fallback")
	}
}

func TestSetGlobal(t *testing.T) {
	prev := Global()
	t.Cleanup(func() { SetGlobal(prev) })

	newLogger := Nop()
	SetGlobal(newLogger)

	if Global().Zap() != newLogger.Zap() {
		t.Error("SetGlobal should replace the global logger")
	}
}

func TestEncoder(t *testing.T) {
	cfg := DefaultConfig()

	cfg.Format = "json"
	if GetEncoder(cfg) == nil {
		t.Error("GetEncoder should return non-nil for json format")
	}

	cfg.Format = "console"
	if GetEncoder(cfg) == nil {
		t.Error("GetEncoder should return non-nil for console format")
	}
}
