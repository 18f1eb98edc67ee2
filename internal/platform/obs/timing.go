package obs

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

type ctxKey string

const (
	RequestIDKey ctxKey = "req_id"
	RunIDKey     ctxKey = "run_id"
)

// Return ctx carrying the search run id for log correlation.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// Return the key=value prefix identifying the request and run in ctx.
func Fields(ctx context.Context) string {
	var parts []string
	if reqID, _ := ctx.Value(RequestIDKey).(string); reqID != "" {
		parts = append(parts, "req_id="+reqID)
	}
	if runID, _ := ctx.Value(RunIDKey).(string); runID != "" {
		parts = append(parts, "run_id="+runID)
	}
	return strings.Join(parts, " ")
}

// Logf writes one key=value line prefixed with the ids carried by ctx.
func Logf(ctx context.Context, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if f := Fields(ctx); f != "" {
		msg = f + " " + msg
	}
	log.Print(msg)
}

// Time starts timing an operation; call the returned func with the
// operation's error when it finishes.
func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()

	return func(errp *error) {
		dur := time.Since(start)

		if errp != nil && *errp != nil {
			Logf(ctx, "op=%s dur=%dms err=%v", name, dur.Milliseconds(), *errp)
			return
		}
		Logf(ctx, "op=%s dur=%dms", name, dur.Milliseconds())
	}
}
