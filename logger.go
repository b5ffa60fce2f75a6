package dpmm

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with sampler-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithShard adds a shard field to the logger.
func (l *Logger) WithShard(shard int) *Logger {
	return &Logger{
		Logger: l.Logger.With("shard", shard),
	}
}

// WithIteration adds an iteration field to the logger.
func (l *Logger) WithIteration(iter int) *Logger {
	return &Logger{
		Logger: l.Logger.With("iteration", iter),
	}
}

// LogSweep logs a completed (or failed) Gibbs sweep.
func (l *Logger) LogSweep(ctx context.Context, iter, nClusters int, final bool, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "sweep failed",
			"iteration", iter,
			"clusters", nClusters,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "sweep completed",
			"iteration", iter,
			"clusters", nClusters,
			"final", final,
			"elapsed", elapsed,
		)
	}
}

// LogSplits logs accepted split proposals.
func (l *Logger) LogSplits(ctx context.Context, iter int, clusters []int) {
	if len(clusters) == 0 {
		return
	}
	l.InfoContext(ctx, "clusters split",
		"iteration", iter,
		"count", len(clusters),
		"clusters", clusters,
	)
}

// LogMerges logs accepted merge proposals as (into, from) pairs.
func (l *Logger) LogMerges(ctx context.Context, iter int, pairs [][2]int) {
	if len(pairs) == 0 {
		return
	}
	l.InfoContext(ctx, "clusters merged",
		"iteration", iter,
		"count", len(pairs),
		"pairs", pairs,
	)
}

// LogCheckpoint logs a checkpoint save.
func (l *Logger) LogCheckpoint(ctx context.Context, iter int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "checkpoint failed",
			"iteration", iter,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "checkpoint saved",
			"iteration", iter,
		)
	}
}

// LogResume logs a chain restored from a checkpoint.
func (l *Logger) LogResume(ctx context.Context, iter, nClusters int) {
	l.InfoContext(ctx, "resumed from checkpoint",
		"iteration", iter,
		"clusters", nClusters,
	)
}
