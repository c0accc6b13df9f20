package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds operation-scoped logging context
type LogContext struct {
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	Operation string    // Workflow name (index, upload, publish, download)
	FolderID  string    // Folder the operation acts on
	ShareID   string    // Share handle, when resolving a publication
	Provider  string    // NNTP provider name
	StartTime time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for the named workflow
func NewLogContext(operation string) *LogContext {
	return &LogContext{
		Operation: operation,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:   lc.TraceID,
		SpanID:    lc.SpanID,
		Operation: lc.Operation,
		FolderID:  lc.FolderID,
		ShareID:   lc.ShareID,
		Provider:  lc.Provider,
		StartTime: lc.StartTime,
	}
}

// WithFolder returns a copy with the folder ID set
func (lc *LogContext) WithFolder(folderID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.FolderID = folderID
	}
	return clone
}

// WithShare returns a copy with the share ID set
func (lc *LogContext) WithShare(shareID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.ShareID = shareID
	}
	return clone
}

// WithProvider returns a copy with the provider name set
func (lc *LogContext) WithProvider(name string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Provider = name
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
