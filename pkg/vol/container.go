package vol

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/ajitpratap0/hvol/pkg/ids"
	"github.com/ajitpratap0/hvol/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Container binds one connector to one open storage instance. It holds a
// reference on the connector and an owned copy of the connector info for as
// long as its count is positive.
type Container struct {
	lib    *Library
	id     uuid.UUID
	raw    any
	connID ids.ID
	cls    *core.Class
	info   any
	owned  bool
	count  atomic.Int64
	logger *zap.Logger
}

// NewContainer binds raw, a file returned by the connector registered under
// connID, to a new Container with a count of one. info is copied with the
// class's Info.Copy; the caller keeps ownership of its own value. A class
// without Info.Copy accepts no info.
func (l *Library) NewContainer(ctx context.Context, raw any, connID ids.ID, info any) (*Container, error) {
	if raw == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "container needs a storage instance")
	}
	cls, err := l.reg.Class(connID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeAllocation, "cannot create container")
	}
	if err := checkInfo(cls, info); err != nil {
		return nil, err
	}

	c := &Container{
		lib:    l,
		id:     uuid.New(),
		raw:    raw,
		connID: connID,
		cls:    cls,
	}
	if info != nil {
		if c.info, err = cls.Info.Copy(info); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeAllocation, "failed to copy connector info").
				WithDetail("connector", cls.Name)
		}
		c.owned = true
	}
	if _, err := l.reg.IncRef(connID); err != nil {
		err = errors.Wrap(err, errors.ErrorTypeAllocation, "cannot hold connector for container")
		return nil, errors.Cleanup(err, c.freeInfo())
	}
	c.count.Store(1)
	c.logger = l.logger.With(zap.Stringer("container", c.id), zap.String("connector", cls.Name))

	metrics.OpenContainers.WithLabelValues(cls.Name).Inc()
	c.logger.Debug("container created")
	return c, nil
}

// checkInfo rejects info the class has no way to copy
func checkInfo(cls *core.Class, info any) error {
	if info != nil && cls.Info.Copy == nil {
		return errors.Newf(errors.ErrorTypeValidation, "connector %s cannot copy connector info", cls.Name).
			WithDetail("info_type", fmt.Sprintf("%T", info))
	}
	return nil
}

// ID returns the container's instance id
func (c *Container) ID() uuid.UUID { return c.id }

// Raw returns the connector's file object
func (c *Container) Raw() any { return c.raw }

// Class returns the connector class the container routes to
func (c *Container) Class() *core.Class { return c.cls }

// ConnectorID returns the handle of the connector the container holds
func (c *Container) ConnectorID() ids.ID { return c.connID }

// Info returns the container's copy of the connector info
func (c *Container) Info() any { return c.info }

// Count returns the container's current count
func (c *Container) Count() int64 { return c.count.Load() }

// IncRef takes a reference on the container. A released container cannot be revived.
func (c *Container) IncRef() (int64, error) {
	for {
		n := c.count.Load()
		if n <= 0 {
			return 0, errors.New(errors.ErrorTypeProtocol, "container has already been released").
				WithDetail("container", c.id.String())
		}
		if c.count.CompareAndSwap(n, n+1) {
			return n + 1, nil
		}
	}
}

// DecRef drops a reference. The last one releases the connector and frees the info copy.
func (c *Container) DecRef(ctx context.Context) (int64, error) {
	for {
		n := c.count.Load()
		if n <= 0 {
			return 0, errors.New(errors.ErrorTypeProtocol, "container released more times than acquired").
				WithDetail("container", c.id.String())
		}
		if !c.count.CompareAndSwap(n, n-1) {
			continue
		}
		if n > 1 {
			return n - 1, nil
		}
		return 0, c.release(ctx)
	}
}

func (c *Container) release(ctx context.Context) error {
	metrics.OpenContainers.WithLabelValues(c.cls.Name).Dec()
	err := c.freeInfo()
	if _, derr := c.lib.reg.DecRef(ctx, c.connID); derr != nil {
		err = errors.Cleanup(err, derr)
	}
	if err != nil {
		c.logger.Warn("container released with errors", zap.Error(err))
		return err
	}
	c.logger.Debug("container released")
	return nil
}

func (c *Container) freeInfo() error {
	if !c.owned || c.cls.Info.Free == nil {
		return nil
	}
	c.owned = false
	if err := c.cls.Info.Free(c.info); err != nil {
		return errors.Dispatch(err, c.cls.Name, "info.free")
	}
	return nil
}

// transient returns a file object for c that is not registered and holds no count
func (c *Container) transient() *Object {
	return &Object{kind: core.KindFile, container: c}
}

// Get runs a file query against the container's storage instance
func (c *Container) Get(ctx context.Context, args *core.FileGetArgs) error {
	return c.lib.fileGet(ctx, c.transient(), args)
}

// Specific runs a file operation against the container's storage instance.
// req may be nil; otherwise it is bound to any asynchronous token the
// connector records.
func (c *Container) Specific(ctx context.Context, args *core.FileSpecificArgs, req *Request) error {
	return c.lib.fileSpecific(ctx, c.transient(), args, req)
}

// IsNative reports whether the connector at level is the base connector
func (c *Container) IsNative(ctx context.Context, level core.ConnLevel) (bool, error) {
	base, err := c.lib.reg.BaseClass()
	if err != nil {
		return false, err
	}
	cls, err := c.lib.classAt(ctx, c.cls, c.raw, level)
	if err != nil {
		return false, err
	}
	return core.CompareClasses(cls, base) == 0, nil
}

// classAt returns the class at level for obj, opened through cls
func (l *Library) classAt(ctx context.Context, cls *core.Class, obj any, level core.ConnLevel) (*core.Class, error) {
	if cls.Introspect == nil {
		return cls, nil
	}
	at, err := cls.Introspect.GetConnectorClass(ctx, obj, level)
	if err != nil {
		return nil, errors.Dispatch(err, cls.Name, "introspect.get_connector_class")
	}
	if at == nil {
		return nil, errors.Newf(errors.ErrorTypeProtocol, "connector %s reported no class", cls.Name)
	}
	return at, nil
}
