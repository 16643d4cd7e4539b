// Package logging hands out per-component logrus entries that share one
// process-wide configuration.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// Options controls how every component logger writes.
type Options struct {
	Level  string // logrus level name; empty means warn
	Format string // "text" (default) or "json"
	Output io.Writer
}

var (
	mu      sync.Mutex
	base    = newBase(Options{})
	loggers = make(map[string]*logrus.Entry)
)

func newBase(opts Options) *logrus.Logger {
	l := logrus.New()

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	l.SetOutput(out)

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.WarnLevel
	}
	l.SetLevel(level)

	switch opts.Format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			ForceColors:      isTerminal(out),
			DisableColors:    !isTerminal(out),
			DisableTimestamp: true,
		})
	}
	return l
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Configure replaces the shared configuration. Loggers handed out earlier
// pick it up as well.
func Configure(opts Options) {
	mu.Lock()
	defer mu.Unlock()

	next := newBase(opts)
	base.SetOutput(next.Out)
	base.SetLevel(next.GetLevel())
	base.SetFormatter(next.Formatter)
}

// NewLogger returns the cached entry for component, tagged with a
// "component" field.
func NewLogger(component string) *logrus.Entry {
	mu.Lock()
	defer mu.Unlock()

	if e, ok := loggers[component]; ok {
		return e
	}
	e := base.WithField("component", component)
	loggers[component] = e
	return e
}
