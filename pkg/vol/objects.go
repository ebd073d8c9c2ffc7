package vol

import (
	"context"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/ajitpratap0/hvol/pkg/ids"
	"go.uber.org/zap"
)

func objectOps(o *Object) (core.ObjectOps, error) {
	if o.container.cls.Object == nil {
		return nil, unsupported(o.container.cls, "object")
	}
	return o.container.cls.Object, nil
}

// ObjectOpen opens whatever object path names below the object behind loc.
// The handle's kind is ids.KindOf(id).
func (l *Library) ObjectOpen(ctx context.Context, loc ids.ID, path string) (ids.ID, error) {
	p, err := l.Object(loc)
	if err != nil {
		return ids.Invalid, err
	}
	ops, err := objectOps(p)
	if err != nil {
		return ids.Invalid, err
	}
	c := p.container

	id := ids.Invalid
	err = With(ctx, RolePrimary, c, func(ctx context.Context) error {
		var (
			raw  any
			kind core.ObjectKind
		)
		err := l.call(ctx, c, "object.open", func(ctx context.Context) error {
			var err error
			raw, kind, err = ops.Open(ctx, p.Raw(), core.ByPath(p.kind, path), nil)
			return err
		})
		if err != nil {
			return err
		}
		if !kind.Valid() || kind == core.KindFile {
			return errors.Newf(errors.ErrorTypeProtocol, "connector %s opened an object of kind %s", c.cls.Name, kind)
		}
		if id, err = l.register(ctx, kind, raw, c); err != nil {
			return errors.Cleanup(err, l.closeRaw(ctx, &Object{kind: kind, raw: raw, container: c}))
		}
		return nil
	})
	return id, err
}

// ObjectGet runs a kind-agnostic query on the object behind id
func (l *Library) ObjectGet(ctx context.Context, id ids.ID, args *core.ObjectGetArgs) error {
	o, err := l.Object(id)
	if err != nil {
		return err
	}
	ops, err := objectOps(o)
	if err != nil {
		return err
	}
	return l.call(ctx, o.container, "object.get", func(ctx context.Context) error {
		return ops.Get(ctx, o.Raw(), core.Self(o.kind), args, nil)
	})
}

// ObjectName returns the path of the object behind id within its file
func (l *Library) ObjectName(ctx context.Context, id ids.ID) (string, error) {
	args := &core.ObjectGetArgs{Op: core.ObjectGetName}
	if err := l.ObjectGet(ctx, id, args); err != nil {
		return "", err
	}
	return args.Name, nil
}

// ObjectExists reports whether path resolves to an object below the object behind loc
func (l *Library) ObjectExists(ctx context.Context, loc ids.ID, path string) (bool, error) {
	p, err := l.Object(loc)
	if err != nil {
		return false, err
	}
	ops, err := objectOps(p)
	if err != nil {
		return false, err
	}
	args := &core.ObjectSpecificArgs{Op: core.ObjectExists}
	err = l.call(ctx, p.container, "object.specific", func(ctx context.Context) error {
		return ops.Specific(ctx, p.Raw(), core.ByPath(p.kind, path), args, nil)
	})
	return args.Result, err
}

// ObjectCopy copies the object at srcName below src to dstName below dst.
// The source container is primary and source; the destination container is
// the destination context. Both must run the same connector.
func (l *Library) ObjectCopy(ctx context.Context, src ids.ID, srcName string, dst ids.ID, dstName string) error {
	so, err := l.Object(src)
	if err != nil {
		return err
	}
	do, err := l.Object(dst)
	if err != nil {
		return err
	}
	if err := requireSameClass(so.container, do.container, "object copy"); err != nil {
		return err
	}
	ops, err := objectOps(so)
	if err != nil {
		return err
	}

	return With(ctx, RoleSource, so.container, func(ctx context.Context) error {
		return With(ctx, RoleDestination, do.container, func(ctx context.Context) error {
			return l.call(ctx, so.container, "object.copy", func(ctx context.Context) error {
				return ops.Copy(ctx, so.Raw(), core.Self(so.kind), srcName, do.Raw(), core.Self(do.kind), dstName, nil)
			})
		})
	})
}

// ObjectVisit walks every object below the object behind loc, depth first in
// name order. Each object is handed to fn as an open handle that is closed
// once fn returns; fn takes its own reference with IncRef to keep it.
func (l *Library) ObjectVisit(ctx context.Context, loc ids.ID, fn func(name string, id ids.ID) (stop bool, err error)) error {
	if fn == nil {
		return errors.New(errors.ErrorTypeValidation, "object visit needs a callback")
	}
	p, err := l.Object(loc)
	if err != nil {
		return err
	}
	ops, err := objectOps(p)
	if err != nil {
		return err
	}
	c := p.container

	return l.call(ctx, c, "object.visit", func(ctx context.Context) error {
		args := &core.ObjectSpecificArgs{
			Op: core.ObjectVisit,
			Visit: func(name string, raw any, kind core.ObjectKind) (bool, error) {
				id, err := l.wrapRegister(ctx, kind, raw, c)
				if err != nil {
					return false, err
				}
				stop, err := fn(name, id)
				if cerr := l.CloseObject(ctx, id); cerr != nil {
					if err != nil {
						l.logger.Warn("failed to close visited object", zap.String("name", name), zap.Error(cerr))
					}
					err = errors.Cleanup(err, cerr)
				}
				return stop, err
			},
		}
		return ops.Specific(ctx, p.Raw(), core.Self(p.kind), args, nil)
	})
}
