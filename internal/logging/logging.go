// Package logging builds the driver's structured logger: a text handler on
// stderr for operators plus a JSON handler writing a durable run log, fanned
// out via slog-multi the way the teacher pack's logging module does.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// Level is a dynamically adjustable log level shared by every handler this
// package builds; callers can lower or raise verbosity at runtime (e.g. from
// an admin endpoint) without rebuilding the logger.
var Level = new(slog.LevelVar)

// Options configures New.
type Options struct {
	// RunLogFile, if non-empty, receives a JSON-formatted copy of every log
	// record in addition to the text stream on Stderr.
	RunLogFile string
	// Level sets the initial verbosity. Defaults to slog.LevelInfo.
	Level slog.Level
}

// New builds the fanned-out logger and returns it along with a closer for
// the run log file, if one was opened.
func New(opts Options) (*slog.Logger, func() error, error) {
	Level.Set(opts.Level)

	var handlers []slog.Handler
	handlers = append(handlers, slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: Level}))

	closer := func() error { return nil }
	if opts.RunLogFile != "" {
		f, err := os.OpenFile(opts.RunLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: open run log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: Level}))
		closer = f.Close
	}

	logger := slog.New(&contextHandler{Handler: slogmulti.Fanout(handlers...)})
	return logger, closer, nil
}

// contextHandler lets future callers thread request/run-scoped attributes
// through context.Context without touching every call site; today it is a
// thin pass-through, matching the teacher's own Handler wrapper shape.
type contextHandler struct {
	slog.Handler
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.Handler.Handle(ctx, r)
}

// Discard returns a logger that drops everything, used by tests and by
// library-style callers that don't want driver logs on their own stderr.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
