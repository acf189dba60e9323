// Package logging builds the logr.Logger shared by the CLI and the engine.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
)

// Level is a log threshold as named in the configuration file.
type Level string

// Supported levels. Warn and error hide Info lines and keep Error lines,
// since logr has no severity between the two.
const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// ParseLevel accepts a level name in any case.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return l, nil
	case "":
		return LevelInfo, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

// New returns a funcr logger writing to w. format is "text" or "json".
func New(level, format string, w io.Writer) (logr.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return logr.Discard(), err
	}

	opts := funcr.Options{LogTimestamp: true}
	if lvl == LevelDebug {
		opts.Verbosity = 1
	}

	var logger logr.Logger
	switch strings.ToLower(format) {
	case "", "text":
		logger = funcr.New(func(prefix, args string) {
			if prefix != "" {
				fmt.Fprintf(w, "%s: %s\n", prefix, args)
				return
			}
			fmt.Fprintln(w, args)
		}, opts)
	case "json":
		logger = funcr.NewJSON(func(obj string) {
			fmt.Fprintln(w, obj)
		}, opts)
	default:
		return logr.Discard(), fmt.Errorf("unknown log format %q", format)
	}

	if lvl == LevelWarn || lvl == LevelError {
		logger = logr.New(errorsOnly{logger.GetSink()})
	}
	return logger, nil
}

// errorsOnly drops every Info line.
type errorsOnly struct {
	logr.LogSink
}

func (s errorsOnly) Enabled(int) bool { return false }

func (s errorsOnly) WithValues(kv ...any) logr.LogSink {
	return errorsOnly{s.LogSink.WithValues(kv...)}
}

func (s errorsOnly) WithName(name string) logr.LogSink {
	return errorsOnly{s.LogSink.WithName(name)}
}
