package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchTracer_NoopByDefault(t *testing.T) {
	require.NoError(t, Shutdown(context.Background()))

	called := false
	err := NewDispatchTracer("native").Trace(context.Background(), "group.create", func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)
}

func TestDispatchTracer_ExportsSpans(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer

	cfg := DefaultTracingConfig()
	cfg.Writer = &buf
	cfg.Sync = true
	require.NoError(t, Initialize(ctx, cfg))
	defer func() { _ = Shutdown(ctx) }()

	cause := errors.New("disk full")
	dt := NewDispatchTracer("passthru")

	err := dt.Trace(ctx, "dataset.write", func(context.Context) error { return cause })
	assert.ErrorIs(t, err, cause)
	require.NoError(t, dt.Trace(ctx, "dataset.read", func(context.Context) error { return nil }))

	out := buf.String()
	assert.Contains(t, out, "passthru.dataset.write")
	assert.Contains(t, out, "passthru.dataset.read")
	assert.Contains(t, out, "disk full")
}

func TestSpan_Attributes(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer

	cfg := DefaultTracingConfig()
	cfg.Writer = &buf
	cfg.Sync = true
	require.NoError(t, Initialize(ctx, cfg))
	defer func() { _ = Shutdown(ctx) }()

	_, span := NewSpan(ctx, "custom")
	span.SetAttribute("kind", "group")
	span.SetAttribute("count", 3)
	span.SetAttribute("size", int64(42))
	span.SetAttribute("native", true)
	span.SetAttribute("level", struct{ N int }{1})
	assert.GreaterOrEqual(t, int64(span.End(nil)), int64(0))

	assert.Contains(t, buf.String(), "custom")
	assert.Contains(t, buf.String(), "native")
}
