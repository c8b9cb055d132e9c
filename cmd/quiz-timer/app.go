package main

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/lixenwraith/quiz-timer/config"
	"github.com/lixenwraith/quiz-timer/logs"
	"github.com/lixenwraith/quiz-timer/storage"
)

// app carries what every command shares, swapped out in tests
type app struct {
	v       *viper.Viper
	fs      afero.Fs
	cfgFile string
	now     func() time.Time
}

func newApp() *app {
	return &app{
		v:   config.NewViper(),
		fs:  afero.NewOsFs(),
		now: time.Now,
	}
}

func (a *app) readConfig() error {
	return config.Read(a.v, a.cfgFile)
}

func (a *app) config() (*config.Config, error) {
	return config.Load(a.v)
}

func (a *app) openStore(cfg *config.Config) (storage.Backend, error) {
	kind := storage.Kind(cfg.Storage.Backend)
	path := cfg.StatePath()
	if kind == storage.KindSQLite {
		if err := a.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrapf(err, "create %s", filepath.Dir(path))
		}
	}
	store, err := storage.Open(kind, path, a.fs)
	return store, errors.Wrapf(err, "open %s store", kind)
}

// openLogger appends to the configured log file, the closer is non-nil on success
func (a *app) openLogger(cfg *config.Config) (*logrus.Logger, io.Closer, error) {
	if cfg.Log.File == "" {
		return logs.Discard(), nopCloser{}, nil
	}
	if err := a.fs.MkdirAll(filepath.Dir(cfg.Log.File), 0o755); err != nil {
		return nil, nil, errors.Wrapf(err, "create %s", filepath.Dir(cfg.Log.File))
	}
	f, err := a.fs.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open log %s", cfg.Log.File)
	}
	logger, err := logs.NewFileLogger("quiz-timer", f, cfg.Log.Level)
	if err != nil {
		f.Close()
		return nil, nil, errors.Wrap(err, "log level")
	}
	return logger, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
