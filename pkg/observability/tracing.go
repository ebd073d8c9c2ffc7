package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span wraps one dispatch span
type Span struct {
	span       trace.Span
	startTime  time.Time
	attributes []attribute.KeyValue
}

// NewSpan starts a span named operationName
func NewSpan(ctx context.Context, operationName string) (context.Context, *Span) {
	ctx, span := GetTracer().Start(ctx, operationName)
	return ctx, &Span{
		span:      span,
		startTime: time.Now(),
	}
}

// SetAttribute adds an attribute to the span (batched until End)
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// End records err, if any, and ends the span. It returns the elapsed time.
func (s *Span) End(err error) time.Duration {
	if err != nil {
		s.span.SetStatus(codes.Error, err.Error())
		s.attributes = append(s.attributes, attribute.Bool("error", true))
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	s.span.End()
	return time.Since(s.startTime)
}

// DispatchTracer starts spans for callbacks routed to one connector
type DispatchTracer struct {
	connectorName string
}

// NewDispatchTracer creates a tracer for the named connector
func NewDispatchTracer(connectorName string) *DispatchTracer {
	return &DispatchTracer{connectorName: connectorName}
}

// Start begins a span named "<connector>.<operation>"
func (dt *DispatchTracer) Start(ctx context.Context, operation string) (context.Context, *Span) {
	ctx, span := NewSpan(ctx, dt.connectorName+"."+operation)
	span.SetAttribute("connector.name", dt.connectorName)
	span.SetAttribute("connector.operation", operation)
	return ctx, span
}

// Trace runs fn inside a dispatch span
func (dt *DispatchTracer) Trace(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	ctx, span := dt.Start(ctx, operation)
	err := fn(ctx)
	span.End(err)
	return err
}
