package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.False(t, IsEnabled())
	assert.NoError(t, shutdown(context.Background()))
}

func TestDisabledSpansAreNoops(t *testing.T) {
	_, err := Init(context.Background(), Config{Enabled: false})
	require.NoError(t, err)

	ctx, span := StartSpan(context.Background(), SpanUploadRun)
	require.NotNil(t, span)

	// None of these may panic against a no-op span.
	SetAttributes(ctx, Operation("upload"), SegmentCount(4))
	AddEvent(ctx, "posted", Attempt(0))
	RecordError(ctx, assert.AnError)
	SetStatus(ctx, codes.Ok, "")
	span.End()

	assert.Empty(t, TraceID(ctx))
	assert.Empty(t, SpanID(ctx))
}

func TestRecordErrorNil(t *testing.T) {
	// Nil errors must not mark the span failed.
	ctx, span := StartSpan(context.Background(), SpanFetch)
	defer span.End()

	RecordError(ctx, nil)
}

func TestWorkflowSpanHelpers(t *testing.T) {
	ctx := context.Background()

	sctx, span := StartWorkflowSpan(ctx, SpanIndexRun, "op-1", "f-1", Version(3))
	require.NotNil(t, span)
	span.End()

	sctx, span = StartTransferSpan(sctx, SpanUploadPost, "primary", Response(240))
	require.NotNil(t, span)
	span.End()

	_, span = StartShareSpan(sctx, SpanPublish, "MRFE3BX25XTF5CH6FPP2PXDL")
	require.NotNil(t, span)
	span.End()
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "nntpvault", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.InDelta(t, 1.0, cfg.SampleRate, 0.001)
}

func TestInitProfilingDisabled(t *testing.T) {
	shutdown, err := InitProfiling(ProfilingConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.False(t, IsProfilingEnabled())
	assert.NoError(t, shutdown())
}

func TestParseProfileType(t *testing.T) {
	for _, valid := range []string{
		"cpu", "alloc_objects", "alloc_space", "inuse_objects",
		"inuse_space", "goroutines", "mutex_count", "mutex_duration",
		"block_count", "block_duration",
	} {
		_, err := parseProfileType(valid)
		assert.NoError(t, err, valid)
	}

	_, err := parseProfileType("heap")
	assert.Error(t, err)
}
