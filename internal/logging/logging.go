// Package logging configures the logrus logger shared by the CLI and the
// executors.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// Options selects the verbosity and destination of the logger
type Options struct {
	Debug bool
	Quiet bool
	// File, when set, receives the log instead of Output, in plain format
	File   string
	Output io.Writer
}

// Level returns the level implied by opts. Debug wins over Quiet.
func (o Options) Level() logrus.Level {
	switch {
	case o.Debug:
		return logrus.DebugLevel
	case o.Quiet:
		return logrus.WarnLevel
	default:
		return logrus.InfoLevel
	}
}

// New builds a logger. The returned closer releases the log file, if any.
func New(opts Options) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()
	logger.SetLevel(opts.Level())

	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger.SetOutput(f)
		logger.SetFormatter(&PlainFormatter{})
		return logger, f, nil
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{
		ForceColors:      isTerminal(out),
		DisableColors:    !isTerminal(out),
		DisableTimestamp: true,
	})
	return logger, nopCloser{}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// PlainFormatter writes one line per entry: timestamp, level, sorted
// key=value fields, then the message
type PlainFormatter struct{}

// Format implements logrus.Formatter
func (f *PlainFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	parts := []string{
		entry.Time.UTC().Format(time.StampMilli),
		strings.ToUpper(entry.Level.String()),
	}

	if fields := formatFields(entry.Data); fields != "" {
		parts = append(parts, fields)
	}

	parts = append(parts, ":")
	parts = append(parts, entry.Message+"\n")
	return []byte(strings.Join(parts, " ")), nil
}

func formatFields(fields logrus.Fields) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]string, 0, len(keys))
	for _, key := range keys {
		result = append(result, fmt.Sprintf("%s=%v", key, fields[key]))
	}
	return strings.Join(result, " ")
}
