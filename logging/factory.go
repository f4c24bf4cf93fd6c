package logging

import (
	"sync"
)

// Factory creates and caches named loggers that share one configuration.
type Factory struct {
	config  Config
	root    Logger
	once    sync.Once
	loggers sync.Map // map[string]Logger
}

// NewFactory creates a new Factory with the given config.
func NewFactory(config Config) *Factory {
	config.applyDefaults()
	return &Factory{
		config: config,
	}
}

// GetLogger returns a named logger, creating it if necessary. All loggers of
// a factory write through the same sink.
func (f *Factory) GetLogger(name string) Logger {
	if v, ok := f.loggers.Load(name); ok {
		return v.(Logger)
	}

	f.once.Do(func() {
		f.root = NewLogger(f.config)
	})

	actual, _ := f.loggers.LoadOrStore(name, f.root.Named(name))
	return actual.(Logger)
}

// Config returns a copy of the factory's configuration.
func (f *Factory) Config() Config {
	return f.config
}
