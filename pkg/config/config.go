// Package config loads datalens settings from defaults, an optional yaml
// file, DATALENS_* environment variables and bound command-line flags.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-go-golems/datalens/pkg/logging"
	"github.com/go-go-golems/datalens/pkg/session"
	"github.com/go-go-golems/datalens/pkg/typing"
	"github.com/go-go-golems/datalens/pkg/watch"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const EnvPrefix = "DATALENS"

type Settings struct {
	BaseURL        string        `mapstructure:"base-url" yaml:"base-url"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	LogLevel       string        `mapstructure:"log-level" yaml:"log-level"`
	LogFormat      string        `mapstructure:"log-format" yaml:"log-format"`
	LogFile        string        `mapstructure:"log-file" yaml:"log-file"`
	WithCaller     bool          `mapstructure:"with-caller" yaml:"with-caller"`
	ChartsDir      string        `mapstructure:"charts-dir" yaml:"charts-dir"`
	NoticeDuration time.Duration `mapstructure:"notice-duration" yaml:"notice-duration"`
	Typing         TypingConfig  `mapstructure:"typing" yaml:"typing"`
	Upload         UploadConfig  `mapstructure:"upload" yaml:"upload"`
	Watch          WatchConfig   `mapstructure:"watch" yaml:"watch"`
}

type TypingConfig struct {
	BaseDelay     time.Duration `mapstructure:"base-delay" yaml:"base-delay"`
	SentencePause time.Duration `mapstructure:"sentence-pause" yaml:"sentence-pause"`
}

type UploadConfig struct {
	ProgressInterval time.Duration `mapstructure:"progress-interval" yaml:"progress-interval"`
	ProgressStep     float64       `mapstructure:"progress-step" yaml:"progress-step"`
	ClearDelay       time.Duration `mapstructure:"clear-delay" yaml:"clear-delay"`
}

type WatchConfig struct {
	Settle      time.Duration `mapstructure:"settle" yaml:"settle"`
	MaxFileSize int64         `mapstructure:"max-file-size" yaml:"max-file-size"`
	Exclude     []string      `mapstructure:"exclude" yaml:"exclude"`
}

// SetDefaults registers every key so that environment variables are picked
// up by Unmarshal even when no file mentions them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("base-url", "http://localhost:8000")
	v.SetDefault("timeout", 2*time.Minute)
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
	v.SetDefault("log-file", "")
	v.SetDefault("with-caller", false)
	v.SetDefault("charts-dir", "charts")
	v.SetDefault("notice-duration", 4*time.Second)
	v.SetDefault("typing.base-delay", 15*time.Millisecond)
	v.SetDefault("typing.sentence-pause", 150*time.Millisecond)
	v.SetDefault("upload.progress-interval", 200*time.Millisecond)
	v.SetDefault("upload.progress-step", 5.0)
	v.SetDefault("upload.clear-delay", time.Second)
	v.SetDefault("watch.settle", watch.DefaultSettle)
	v.SetDefault("watch.max-file-size", watch.DefaultMaxFileSize)
	v.SetDefault("watch.exclude", []string{})
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// DefaultFile is $HOME/.datalens/config.yaml.
func DefaultFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".datalens", "config.yaml")
}

// Load reads file into v and decodes the result. An explicitly named file
// must exist; the default file is optional.
func Load(v *viper.Viper, file string) (*Settings, error) {
	explicit := file != ""
	if !explicit {
		file = DefaultFile()
	}
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			missing := errors.As(err, &notFound) || os.IsNotExist(errors.Cause(err))
			if explicit || !missing {
				return nil, errors.Wrapf(err, "read config %s", file)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) Validate() error {
	if strings.TrimSpace(s.BaseURL) == "" {
		return errors.New("base-url must not be empty")
	}
	if s.Timeout <= 0 {
		return errors.Errorf("timeout must be positive, got %s", s.Timeout)
	}
	if s.Typing.BaseDelay < 0 || s.Typing.SentencePause < 0 {
		return errors.New("typing delays must not be negative")
	}
	if s.Upload.ProgressStep <= 0 || s.Upload.ProgressStep > 100 {
		return errors.Errorf("upload.progress-step must be in (0, 100], got %g", s.Upload.ProgressStep)
	}
	if s.Upload.ProgressInterval <= 0 {
		return errors.New("upload.progress-interval must be positive")
	}
	if f := strings.ToLower(s.LogFormat); f != "text" && f != "json" {
		return errors.Errorf("log-format must be text or json, got %q", s.LogFormat)
	}
	if s.Watch.MaxFileSize < 0 {
		return errors.New("watch.max-file-size must not be negative")
	}
	return nil
}

func (s *Settings) TypingPolicy() typing.Policy {
	p := typing.DefaultPolicy()
	p.BaseDelay = s.Typing.BaseDelay
	p.SentencePause = s.Typing.SentencePause
	return p
}

func (s *Settings) SessionSettings() session.Settings {
	return session.Settings{
		Typing:       s.TypingPolicy(),
		ProgressStep: s.Upload.ProgressStep,
	}
}

func (s *Settings) Logging() logging.Settings {
	var ls logging.Settings
	ls.LogLevel = s.LogLevel
	ls.LogFormat = strings.ToLower(s.LogFormat)
	ls.LogFile = s.LogFile
	ls.WithCaller = s.WithCaller
	return ls
}

func (s *Settings) WatchOptions() []watch.FilterOption {
	return []watch.FilterOption{
		watch.WithMaxFileSize(s.Watch.MaxFileSize),
		watch.WithExcludedNames(s.Watch.Exclude...),
	}
}
