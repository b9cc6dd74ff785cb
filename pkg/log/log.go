// Package log provides the logging backend shared by the erc20 client
// packages.
package log

import (
	"io"
	"io/ioutil"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/op/go-logging.v1"
)

const logFormat = "%{time:15:04:05.000} %{level:.4s} %{module}: %{message}"

// Backend is a log backend that hands out per-module loggers.
type Backend struct {
	logging.LeveledBackend

	w io.Writer
}

// GetLogger returns a logger for the given module name that writes to
// the backend.
func (b *Backend) GetLogger(module string) *logging.Logger {
	l := logging.MustGetLogger(module)
	l.SetBackend(b)
	return l
}

// Close closes the underlying log file, if any.
func (b *Backend) Close() error {
	if c, ok := b.w.(io.Closer); ok && b.w != os.Stderr {
		return c.Close()
	}
	return nil
}

// New creates a logging backend writing to f (stderr when empty) at the
// given level. A disabled backend discards everything.
// It returns the Backend and any error encountered.
func New(f string, level string, disable bool) (*Backend, error) {
	lvl, err := logging.LogLevel(strings.ToUpper(level))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}

	var w io.Writer
	switch {
	case disable:
		w = ioutil.Discard
	case f == "":
		w = os.Stderr
	default:
		const fileMode = 0600
		flags := os.O_CREATE | os.O_APPEND | os.O_WRONLY
		fd, err := os.OpenFile(f, flags, fileMode)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open log file")
		}
		w = fd
	}

	formatted := logging.NewBackendFormatter(
		logging.NewLogBackend(w, "", 0),
		logging.MustStringFormatter(logFormat),
	)
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(lvl, "")
	return &Backend{LeveledBackend: leveled, w: w}, nil
}

// NewNop returns a backend that discards all output, for tests.
func NewNop() *Backend {
	b, _ := New("", "ERROR", true)
	return b
}
