package config

import (
	"fmt"

	"github.com/creasty/defaults"
	"github.com/fsnotify/fsnotify"
	validatorV10 "github.com/go-playground/validator/v10"
	"github.com/leeforge/instafit/logging"
)

var validate = validatorV10.New()

// Settings is the complete runtime configuration of an optimizer.
type Settings struct {
	Defaults DefaultsSettings `mapstructure:"defaults" json:"defaults" yaml:"defaults"`
	Render   RenderSettings   `mapstructure:"render" json:"render" yaml:"render"`
	Pipeline PipelineSettings `mapstructure:"pipeline" json:"pipeline" yaml:"pipeline"`
	Download DownloadSettings `mapstructure:"download" json:"download" yaml:"download"`
	Locale   string           `mapstructure:"locale" json:"locale" yaml:"locale" default:"en" validate:"oneof=en es"`
	Logging  logging.Config   `mapstructure:"logging" json:"logging" yaml:"logging"`
}

// DefaultsSettings are the selections an optimizer starts with.
type DefaultsSettings struct {
	Format     string `mapstructure:"format" json:"format" yaml:"format" default:"square" validate:"oneof=square vertical story"`
	FitMode    string `mapstructure:"fit-mode" json:"fitMode" yaml:"fit-mode" default:"cover" validate:"oneof=cover contain"`
	Background string `mapstructure:"background" json:"background" yaml:"background" default:"#ffffff" validate:"required"`
}

type RenderSettings struct {
	// Engine selects the resampling implementation.
	Engine string `mapstructure:"engine" json:"engine" yaml:"engine" default:"lanczos" validate:"oneof=lanczos catmullrom nfnt"`
	// MaxSourcePixels rejects decoded sources above width*height.
	MaxSourcePixels int `mapstructure:"max-source-pixels" json:"maxSourcePixels" yaml:"max-source-pixels" default:"100000000" validate:"gt=0"`
	// AutoOrient applies EXIF orientation while decoding.
	AutoOrient bool `mapstructure:"auto-orient" json:"autoOrient" yaml:"auto-orient"`
}

type PipelineSettings struct {
	Workers      int  `mapstructure:"workers" json:"workers" yaml:"workers" default:"2" validate:"gte=1,lte=16"`
	QueueSize    int  `mapstructure:"queue-size" json:"queueSize" yaml:"queue-size" default:"16" validate:"gte=1"`
	CacheDecoded bool `mapstructure:"cache-decoded" json:"cacheDecoded" yaml:"cache-decoded"`
}

type DownloadSettings struct {
	Dir string `mapstructure:"dir" json:"dir" yaml:"dir" default:"downloads"`
}

// DefaultSettings returns Settings with every default applied. Boolean
// options that default to true are set here because struct-tag defaults
// cannot tell an explicit false from a missing key.
func DefaultSettings() Settings {
	s := Settings{
		Render:   RenderSettings{AutoOrient: true},
		Pipeline: PipelineSettings{CacheDecoded: true},
		Logging:  logging.DefaultConfig(),
	}
	if err := defaults.Set(&s); err != nil {
		panic(fmt.Sprintf("config: invalid default tags: %v", err))
	}
	return s
}

func (s Settings) Validate() error {
	return validate.Struct(s)
}

// Load reads Settings from the layered config files described by opts.
func Load(opts ...ConfigOptions) (Settings, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return Settings{}, err
	}

	s := DefaultSettings()
	if err := cfg.BindWithDefaults(&s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Watch loads Settings like Load and keeps watching the last config file.
// After every change onReload receives a freshly bound Settings, or the
// error that prevented binding. opts.OnChange, if set, still runs first.
func Watch(opts ConfigOptions, onReload func(Settings, error)) (Settings, error) {
	var cfg *Config
	next := opts.OnChange
	opts.WatchAble = true
	opts.OnChange = func(e fsnotify.Event) {
		if next != nil {
			next(e)
		}
		s := DefaultSettings()
		if err := cfg.BindWithDefaults(&s); err != nil {
			onReload(Settings{}, err)
			return
		}
		onReload(s, nil)
	}

	var err error
	cfg, err = NewConfig(opts)
	if err != nil {
		return Settings{}, err
	}

	live := DefaultSettings()
	if err := cfg.BindWithDefaults(&live); err != nil {
		return Settings{}, err
	}

	cfg.watchMutex.RLock()
	defer cfg.watchMutex.RUnlock()
	return live, nil
}
