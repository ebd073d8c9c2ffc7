package vol

import (
	"context"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/ajitpratap0/hvol/pkg/ids"
	"go.uber.org/zap"
)

// wrap passes raw through the active primary context's wrap routine. Without
// an active context, or one with no wrap context, raw is returned unchanged.
func wrap(ctx context.Context, raw any, kind core.ObjectKind) (any, error) {
	f := activeFrame(ctx)
	if f == nil || f.wrapCtx == nil {
		return raw, nil
	}
	cls := f.container.cls
	if cls.Wrap.WrapObject == nil {
		return nil, errors.Newf(errors.ErrorTypeProtocol, "connector %s offers a wrap context but cannot wrap objects", cls.Name)
	}
	wrapped, err := cls.Wrap.WrapObject(raw, kind, f.wrapCtx)
	if err != nil {
		return nil, errors.Dispatch(err, cls.Name, "wrap.wrap_object")
	}
	return wrapped, nil
}

// register creates a handle for raw, an object a callback on c returned,
// under the container that actually owns it
func (l *Library) register(ctx context.Context, kind core.ObjectKind, raw any, c *Container) (ids.ID, error) {
	owner, err := l.resolve(ctx, c, raw, kind)
	if err != nil {
		return ids.Invalid, err
	}
	id, err := l.CreateObject(ctx, kind, raw, owner)
	if owner != c {
		// the object now holds the ephemeral container on its own
		if _, derr := owner.DecRef(ctx); derr != nil {
			err = errors.Cleanup(err, derr)
		}
	}
	return id, err
}

// wrapRegister wraps a terminal object surfaced by the connector at the
// bottom of the stack, then registers it
func (l *Library) wrapRegister(ctx context.Context, kind core.ObjectKind, raw any, c *Container) (ids.ID, error) {
	wrapped, err := wrap(ctx, raw, kind)
	if err != nil {
		return ids.Invalid, err
	}
	return l.register(ctx, kind, wrapped, c)
}

// resolve returns the container that owns raw. Only when the active
// container runs exactly the base connector is raw's file compared against
// the container's; a different file gets a new container with default info,
// returned with a count of one that the caller must drop.
func (l *Library) resolve(ctx context.Context, c *Container, raw any, kind core.ObjectKind) (*Container, error) {
	active := c
	if f := activeFrame(ctx); f != nil {
		active = f.container
	}
	base, err := l.reg.BaseClass()
	if err != nil {
		return nil, err
	}
	if core.CompareClasses(active.cls, base) != 0 {
		return c, nil
	}
	if active.cls.Object == nil || active.cls.File == nil {
		return c, nil
	}

	var owner any
	err = trace(ctx, active.cls, "object.get", func(ctx context.Context) error {
		args := &core.ObjectGetArgs{Op: core.ObjectGetFile}
		if err := active.cls.Object.Get(ctx, raw, core.Self(kind), args, nil); err != nil {
			return err
		}
		owner = args.File
		return nil
	})
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, errors.Newf(errors.ErrorTypeProtocol, "connector %s did not report the file owning a %s", active.cls.Name, kind)
	}

	same := &core.FileSpecificArgs{Op: core.FileIsEqual, Other: active.raw}
	err = trace(ctx, active.cls, "file.specific", func(ctx context.Context) error {
		return active.cls.File.Specific(ctx, owner, same, nil)
	})
	if err != nil {
		return nil, err
	}
	if same.Result {
		return c, nil
	}

	other, err := l.NewContainer(ctx, owner, active.connID, nil)
	if err != nil {
		return nil, err
	}
	other.logger.Debug("object resolved into another file", zap.Stringer("from", active.id), zap.Stringer("kind", kind))
	return other, nil
}

// Unwrap removes one level of connector wrapping from the object behind id
func (l *Library) Unwrap(ctx context.Context, id ids.ID) (any, error) {
	o, err := l.Object(id)
	if err != nil {
		return nil, err
	}
	cls := o.container.cls
	if cls.Wrap.UnwrapObject == nil {
		return o.Raw(), nil
	}
	raw, err := cls.Wrap.UnwrapObject(o.Raw())
	if err != nil {
		return nil, errors.Dispatch(err, cls.Name, "wrap.unwrap_object")
	}
	return raw, nil
}

// Terminal returns the object the terminal connector holds behind id
func (l *Library) Terminal(ctx context.Context, id ids.ID) (any, error) {
	o, err := l.Object(id)
	if err != nil {
		return nil, err
	}
	return terminalRaw(o.container.cls, o.Raw())
}

func terminalRaw(cls *core.Class, raw any) (any, error) {
	if cls.Wrap.GetObject == nil {
		return raw, nil
	}
	term, err := cls.Wrap.GetObject(raw)
	if err != nil {
		return nil, errors.Dispatch(err, cls.Name, "wrap.get_object")
	}
	return term, nil
}

// TerminalClass returns the class of the innermost connector behind id
func (l *Library) TerminalClass(ctx context.Context, id ids.ID) (*core.Class, error) {
	o, err := l.Object(id)
	if err != nil {
		return nil, err
	}
	return l.classAt(ctx, o.container.cls, o.Raw(), core.LevelTerminal)
}
