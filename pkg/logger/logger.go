package logger

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/angelmondragon/storefront-backend/pkg/env"
)

// maxStackFrames caps the frames attached to error entries.
const maxStackFrames = 12

// Options configures the structured logger.
type Options struct {
	ServiceName string
	// Instance names this process (dyno, pod, host). Empty omits the field.
	Instance  string
	Level     zerolog.Level
	WarnStack bool
	Output    io.Writer
	// Format is "json" or "console". Empty reads LOG_FORMAT.
	Format string
}

// Logger is a zerolog wrapper whose fields travel with the request context.
type Logger struct {
	base      *zerolog.Logger
	warnStack bool
}

type ctxKey struct{}

func New(opts Options) *Logger {
	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}
	output := opts.Output
	if output == nil {
		output = os.Stdout
	}
	format := opts.Format
	if format == "" {
		format = env.Get("LOG_FORMAT", "json")
	}
	if format == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	builder := zerolog.New(output).With().Timestamp().Str("service", opts.ServiceName)
	if opts.Instance != "" {
		builder = builder.Str("instance", opts.Instance)
	}
	base := builder.Logger().Level(opts.Level)
	return &Logger{base: &base, warnStack: opts.WarnStack}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	base := zerolog.Nop()
	return &Logger{base: &base}
}

// ParseLevel falls back to info for blank or unknown values.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) fromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if entry, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok {
			return entry
		}
	}
	return l.base
}

func (l *Logger) with(ctx context.Context, build func(zerolog.Context) zerolog.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	entry := build(l.fromContext(ctx).With()).Logger()
	return context.WithValue(ctx, ctxKey{}, &entry)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Interface(key, value)
	})
}

// WithFields adds fields in key order so entries are stable across runs.
func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context {
		for _, key := range slices.Sorted(maps.Keys(fields)) {
			c = c.Interface(key, fields[key])
		}
		return c
	})
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.WithField(ctx, "request_id", requestID)
}

func (l *Logger) WithActor(ctx context.Context, actor string) context.Context {
	return l.WithField(ctx, "actor", actor)
}

func (l *Logger) WithOrderID(ctx context.Context, orderID string) context.Context {
	return l.WithField(ctx, "order_id", orderID)
}

func (l *Logger) WithProductID(ctx context.Context, productID string) context.Context {
	return l.WithField(ctx, "product_id", productID)
}

// WithJob tags entries written by a scheduled job.
func (l *Logger) WithJob(ctx context.Context, job string) context.Context {
	return l.WithFields(ctx, map[string]any{"job": job, "event": "cron.job"})
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	l.fromContext(ctx).Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.fromContext(ctx).Info().Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	event := l.fromContext(ctx).Warn()
	if l.warnStack {
		event = event.Strs("stack", callers())
	}
	event.Msg(msg)
}

func (l *Logger) Error(ctx context.Context, msg string, err error) {
	event := l.fromContext(ctx).Error()
	if err != nil {
		event = event.Err(err)
	}
	event.Strs("stack", callers()).Msg(msg)
}

// callers lists "func file:line" for the frames above the logger.
func callers() []string {
	pcs := make([]uintptr, maxStackFrames)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	out := make([]string, 0, n)
	for {
		frame, more := frames.Next()
		out = append(out, fmt.Sprintf("%s %s:%d", frame.Function, frame.File, frame.Line))
		if !more {
			break
		}
	}
	return out
}
