// Package logs builds logrus loggers that tag every entry with its owning component.
package logs

import (
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
)

// formatter adds the owner tag to each log entry.
type formatter struct {
	owner string
	lf    log.Formatter
}

// Format satisfies the log.Formatter interface.
func (f *formatter) Format(e *log.Entry) ([]byte, error) {
	e.Message = fmt.Sprintf("[%s] %s", f.owner, e.Message)
	return f.lf.Format(e)
}

// NewLogger returns a logger writing to stderr at info level.
func NewLogger(owner string) *log.Logger {
	logger := log.New()
	logger.SetFormatter(&formatter{
		owner: owner,
		lf: &log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.StampMilli,
		},
	})
	return logger
}

// NewFileLogger returns a logger writing to out at the named level ("debug", "info", ...).
// The terminal is owned by the display while a quiz runs, so the CLI logs to a file.
func NewFileLogger(owner string, out io.Writer, level string) (*log.Logger, error) {
	logger := NewLogger(owner)
	logger.SetOutput(out)

	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(lvl)
	return logger, nil
}

// Discard returns a logger that drops everything, used when the caller supplies none.
func Discard() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}
