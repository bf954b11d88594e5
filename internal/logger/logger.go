// Package logger builds the process zerolog logger and carries per-request
// fields (request id, session, interaction) through context.Context.
package logger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level     string
	Console   bool
	Backend   string
	Component string
}

type ctxKey string

const (
	ctxReqIDKey    ctxKey = "request_id"
	ctxSession     ctxKey = "session"
	ctxComponent   ctxKey = "component"
	ctxInteraction ctxKey = "interaction"
)

// contextFields are copied onto every logger derived with FromContext, in
// this order.
var contextFields = []ctxKey{ctxReqIDKey, ctxSession, ctxInteraction, ctxComponent}

func withValue(ctx context.Context, k ctxKey, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, k, v)
}

// WithRequestID stores reqID, generating one when it is empty.
func WithRequestID(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		reqID = NewID()
	}
	return withValue(ctx, ctxReqIDKey, reqID)
}

func WithSession(ctx context.Context, id string) context.Context {
	return withValue(ctx, ctxSession, id)
}

// WithInteraction tags the context with the interaction kind (click, box, polygon).
func WithInteraction(ctx context.Context, kind string) context.Context {
	return withValue(ctx, ctxInteraction, kind)
}

func WithComponent(ctx context.Context, component string) context.Context {
	return withValue(ctx, ctxComponent, component)
}

// NewID returns 16 hex characters of randomness.
func NewID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// Build configures the zerolog globals and returns the root logger. Unknown
// levels fall back to info.
func Build(cfg Config, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "timestamp"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "msg"

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	zc := zerolog.New(out).With().Timestamp()
	if cfg.Backend != "" {
		zc = zc.Str("backend", cfg.Backend)
	}
	if cfg.Component != "" {
		zc = zc.Str("component", cfg.Component)
	}
	return zc.Logger()
}

// FromContext returns a child of parent with the context fields attached. A
// nil parent yields a discarding logger.
func FromContext(ctx context.Context, parent *zerolog.Logger) *zerolog.Logger {
	base := zerolog.New(io.Discard)
	if parent != nil {
		base = *parent
	}
	w := base.With()
	for _, k := range contextFields {
		if s, ok := ctx.Value(k).(string); ok && s != "" {
			w = w.Str(string(k), s)
		}
	}
	l := w.Logger()
	return &l
}
