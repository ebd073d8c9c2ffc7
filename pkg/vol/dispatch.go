package vol

import (
	"context"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/ajitpratap0/hvol/pkg/logger"
	"github.com/ajitpratap0/hvol/pkg/metrics"
	"github.com/ajitpratap0/hvol/pkg/observability"
	"go.uber.org/zap"
)

func unsupported(cls *core.Class, what string) error {
	return errors.Newf(errors.ErrorTypeProtocol, "connector %s does not support %s operations", cls.Name, what).
		WithDetail("connector", cls.Name)
}

// trace runs one connector callback inside a span and records its outcome.
// A callback failure comes back as a dispatch error wrapping it.
func trace(ctx context.Context, cls *core.Class, op string, fn func(ctx context.Context) error) error {
	ctx = context.WithValue(ctx, logger.ConnectorKey, cls.Name)
	ctx = context.WithValue(ctx, logger.OperationKey, op)

	ctx, span := observability.NewDispatchTracer(cls.Name).Start(ctx, op)
	timer := metrics.NewTimer(cls.Name + "." + op)
	err := fn(ctx)
	metrics.ObserveDispatch(cls.Name, op, err, timer.Stop())
	span.End(err)
	if err != nil {
		logger.WithContext(ctx).Debug("connector callback failed", zap.Error(err))
	}
	return errors.Dispatch(err, cls.Name, op)
}

// call routes a callback to c with c active as the primary context
func (l *Library) call(ctx context.Context, c *Container, op string, fn func(ctx context.Context) error) error {
	return With(ctx, RolePrimary, c, func(ctx context.Context) error {
		ctx = context.WithValue(ctx, logger.ContainerKey, c.id.String())
		return trace(ctx, c.cls, op, fn)
	})
}
