package model

import "context"

// ── Port interfaces ──
// These decouple the ingest loop from the concrete fan-out targets
// (Redis, WebSocket hub). Each target satisfies ResultSink.

// ResultSink receives the indicator view produced by every accepted append.
type ResultSink interface {
	Publish(ctx context.Context, result IndicatorResult) error
}

// ResultSinkFunc adapts a plain function to ResultSink.
type ResultSinkFunc func(ctx context.Context, result IndicatorResult) error

// Publish calls f.
func (f ResultSinkFunc) Publish(ctx context.Context, result IndicatorResult) error {
	return f(ctx, result)
}
