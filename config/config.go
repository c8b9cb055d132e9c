// Package config loads quiz-timer settings from YAML, environment and flags via viper.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/lixenwraith/quiz-timer/constant"
	"github.com/lixenwraith/quiz-timer/countdown"
	"github.com/lixenwraith/quiz-timer/storage"
)

const (
	// EnvPrefix namespaces environment overrides, e.g. QUIZ_TIMER_QUIZ_MINUTES
	EnvPrefix = "QUIZ_TIMER"

	// FileName is the config file looked up in the home directory
	FileName = ".quiz-timer"

	// DataDir holds state and logs unless paths are configured
	DataDir = "~/.quiz-timer"
)

// Config is the full settings tree
type Config struct {
	Quiz    QuizConfig    `mapstructure:"quiz" yaml:"quiz"`
	Timer   TimerConfig   `mapstructure:"timer" yaml:"timer"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Audio   AudioConfig   `mapstructure:"audio" yaml:"audio"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

type QuizConfig struct {
	ID      string `mapstructure:"id" yaml:"id"`
	Minutes int    `mapstructure:"minutes" yaml:"minutes"`
}

type TimerConfig struct {
	Strategy   string        `mapstructure:"strategy" yaml:"strategy"`
	GraceDelay time.Duration `mapstructure:"grace_delay" yaml:"grace_delay"`
	BannerTTL  time.Duration `mapstructure:"banner_ttl" yaml:"banner_ttl"`
}

// MarshalYAML writes durations as "2s" rather than nanoseconds
func (t TimerConfig) MarshalYAML() (any, error) {
	return struct {
		Strategy   string `yaml:"strategy"`
		GraceDelay string `yaml:"grace_delay"`
		BannerTTL  string `yaml:"banner_ttl"`
	}{t.Strategy, t.GraceDelay.String(), t.BannerTTL.String()}, nil
}

type StorageConfig struct {
	// Backend is memory, file or sqlite
	Backend string `mapstructure:"backend" yaml:"backend"`
	// Path is the state file, empty picks one under DataDir
	Path string `mapstructure:"path" yaml:"path"`
}

type AudioConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		Quiz: QuizConfig{
			ID:      constant.DefaultQuizID,
			Minutes: constant.DefaultQuizMinutes,
		},
		Timer: TimerConfig{
			Strategy:   countdown.StrategyRecompute.String(),
			GraceDelay: constant.ExpiryGraceDelay,
			BannerTTL:  constant.BannerTTL,
		},
		Storage: StorageConfig{
			Backend: string(storage.KindFile),
		},
		Audio: AudioConfig{Enabled: true},
		Log: LogConfig{
			Level: logrus.InfoLevel.String(),
			File:  filepath.Join(DataDir, "quiz-timer.log"),
		},
	}
}

// SetDefaults registers every key with viper so env and flag bindings resolve
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("quiz.id", d.Quiz.ID)
	v.SetDefault("quiz.minutes", d.Quiz.Minutes)
	v.SetDefault("timer.strategy", d.Timer.Strategy)
	v.SetDefault("timer.grace_delay", d.Timer.GraceDelay)
	v.SetDefault("timer.banner_ttl", d.Timer.BannerTTL)
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("audio.enabled", d.Audio.Enabled)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
}

// NewViper returns a viper instance with defaults and QUIZ_TIMER_* env overrides
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Read loads the config file into v. An explicit path must exist;
// without one, $HOME/.quiz-timer.yaml is used when present.
func Read(v *viper.Viper, path string) error {
	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return errors.Wrapf(err, "expand config path %s", path)
		}
		v.SetConfigFile(expanded)
		return errors.Wrap(v.ReadInConfig(), "read config")
	}

	home, err := homedir.Dir()
	if err != nil {
		return errors.Wrap(err, "find home directory")
	}
	v.AddConfigPath(home)
	v.SetConfigName(FileName)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "read config")
	}
	return nil
}

// Load decodes v into a validated Config with paths expanded
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerations and ranges
func (c *Config) Validate() error {
	if c.Quiz.ID == "" {
		return errors.New("quiz.id must not be empty")
	}
	if c.Quiz.Minutes < 0 {
		return errors.Errorf("quiz.minutes must not be negative, got %d", c.Quiz.Minutes)
	}
	if _, err := c.Strategy(); err != nil {
		return errors.Wrap(err, "timer.strategy")
	}
	if c.Timer.GraceDelay < 0 || c.Timer.BannerTTL < 0 {
		return errors.New("timer delays must not be negative")
	}
	switch storage.Kind(c.Storage.Backend) {
	case storage.KindMemory, storage.KindFile, storage.KindSQLite:
	default:
		return errors.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	return nil
}

// Strategy returns the parsed timer strategy
func (c *Config) Strategy() (countdown.Strategy, error) {
	return countdown.ParseStrategy(c.Timer.Strategy)
}

// Duration returns the quiz length
func (c *Config) Duration() time.Duration {
	return countdown.Minutes(c.Quiz.Minutes)
}

// StatePath returns the storage path, defaulting by backend
func (c *Config) StatePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	name := "state.json"
	if storage.Kind(c.Storage.Backend) == storage.KindSQLite {
		name = "state.db"
	}
	path, err := homedir.Expand(filepath.Join(DataDir, name))
	if err != nil {
		return name
	}
	return path
}

func (c *Config) expandPaths() error {
	var err error
	if c.Storage.Path, err = homedir.Expand(c.Storage.Path); err != nil {
		return errors.Wrap(err, "storage.path")
	}
	if c.Log.File, err = homedir.Expand(c.Log.File); err != nil {
		return errors.Wrap(err, "log.file")
	}
	return nil
}

// Write saves cfg as YAML, refusing to replace an existing file unless overwrite is set
func Write(fs afero.Fs, path string, cfg *Config, overwrite bool) error {
	if !overwrite {
		exists, err := afero.Exists(fs, path)
		if err != nil {
			return errors.Wrapf(err, "stat %s", path)
		}
		if exists {
			return errors.Errorf("config file %s already exists", path)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	return errors.Wrapf(afero.WriteFile(fs, path, data, 0o644), "write %s", path)
}

// DefaultPath is $HOME/.quiz-timer.yaml
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", errors.Wrap(err, "find home directory")
	}
	return filepath.Join(home, FileName+".yaml"), nil
}
