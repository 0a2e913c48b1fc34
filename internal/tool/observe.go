package tool

import (
	"context"
	"log/slog"
	"time"

	"activityplanner/internal/domain"
)

// Recorder receives one sample per finished invocation.
type Recorder interface {
	ObserveTool(tool, outcome string, elapsed time.Duration)
}

// Observed wraps an Invoker with logging and metrics so handlers stay free
// of both.
type Observed struct {
	next     Invoker
	logger   *slog.Logger
	recorder Recorder
}

func NewObserved(next Invoker, logger *slog.Logger, recorder Recorder) *Observed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observed{next: next, logger: logger, recorder: recorder}
}

func (o *Observed) Invoke(ctx context.Context, req domain.ToolRequest) domain.ToolResult {
	start := time.Now()
	res := o.next.Invoke(ctx, req)
	elapsed := time.Since(start)

	attrs := []any{"tool", req.Kind.String(), "duration", elapsed.Round(time.Millisecond)}
	if id := RequestID(ctx); id != "" {
		attrs = append(attrs, "request_id", id)
	}

	outcome := "success"
	if res.OK() {
		o.logger.Info("tool invoked", attrs...)
	} else {
		outcome = domain.FailureReason(res.Err)
		if outcome == "" {
			outcome = "call_failed"
		}
		o.logger.Warn("tool failed", append(attrs, "reason", outcome, "error", res.Text)...)
	}
	if o.recorder != nil {
		o.recorder.ObserveTool(req.Kind.String(), outcome, elapsed)
	}
	return res
}

type requestIDKey struct{}

// WithRequestID attaches a request id for log correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id set by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
