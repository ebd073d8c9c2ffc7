package vol

import (
	"context"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/ajitpratap0/hvol/pkg/ids"
)

// location returns the object behind loc and the parameters addressing it
func (l *Library) location(loc ids.ID) (*Object, core.LocParams, error) {
	o, err := l.Object(loc)
	if err != nil {
		return nil, core.LocParams{}, err
	}
	return o, core.Self(o.kind), nil
}

// openChild routes fn to the container of the object behind loc and
// registers the object fn returns. If registration fails the object is
// closed again.
func (l *Library) openChild(ctx context.Context, loc ids.ID, kind core.ObjectKind, op string,
	fn func(ctx context.Context, parent *Object, lp core.LocParams) (any, error)) (ids.ID, error) {
	p, lp, err := l.location(loc)
	if err != nil {
		return ids.Invalid, err
	}
	c := p.container

	id := ids.Invalid
	err = With(ctx, RolePrimary, c, func(ctx context.Context) error {
		var raw any
		err := l.call(ctx, c, op, func(ctx context.Context) error {
			var err error
			raw, err = fn(ctx, p, lp)
			return err
		})
		if err != nil {
			return err
		}
		if raw == nil {
			return errors.Newf(errors.ErrorTypeProtocol, "connector %s returned no %s", c.cls.Name, kind)
		}
		if id, err = l.register(ctx, kind, raw, c); err != nil {
			return errors.Cleanup(err, l.closeRaw(ctx, &Object{kind: kind, raw: raw, container: c}))
		}
		return nil
	})
	return id, err
}

func groupOps(o *Object) (core.GroupOps, error) {
	if o.container.cls.Group == nil {
		return nil, unsupported(o.container.cls, "group")
	}
	return o.container.cls.Group, nil
}

// GroupCreate creates group name below the object behind loc
func (l *Library) GroupCreate(ctx context.Context, loc ids.ID, name string) (ids.ID, error) {
	return l.openChild(ctx, loc, core.KindGroup, "group.create", func(ctx context.Context, p *Object, lp core.LocParams) (any, error) {
		ops, err := groupOps(p)
		if err != nil {
			return nil, err
		}
		return ops.Create(ctx, p.Raw(), lp, name, nil)
	})
}

// GroupOpen opens group name below the object behind loc
func (l *Library) GroupOpen(ctx context.Context, loc ids.ID, name string) (ids.ID, error) {
	return l.openChild(ctx, loc, core.KindGroup, "group.open", func(ctx context.Context, p *Object, lp core.LocParams) (any, error) {
		ops, err := groupOps(p)
		if err != nil {
			return nil, err
		}
		return ops.Open(ctx, p.Raw(), lp, name, nil)
	})
}

// GroupGet runs a group query
func (l *Library) GroupGet(ctx context.Context, id ids.ID, args *core.GroupGetArgs) error {
	o, err := l.objectOfKind(id, core.KindGroup)
	if err != nil {
		return err
	}
	ops, err := groupOps(o)
	if err != nil {
		return err
	}
	return l.call(ctx, o.container, "group.get", func(ctx context.Context) error {
		return ops.Get(ctx, o.raw, args, nil)
	})
}

// GroupInfo returns the group's link count
func (l *Library) GroupInfo(ctx context.Context, id ids.ID) (core.GroupInfo, error) {
	args := &core.GroupGetArgs{Op: core.GroupGetInfo}
	if err := l.GroupGet(ctx, id, args); err != nil {
		return core.GroupInfo{}, err
	}
	return args.Info, nil
}

// GroupSpecific runs a group operation
func (l *Library) GroupSpecific(ctx context.Context, id ids.ID, args *core.GroupSpecificArgs) error {
	o, err := l.objectOfKind(id, core.KindGroup)
	if err != nil {
		return err
	}
	ops, err := groupOps(o)
	if err != nil {
		return err
	}
	return l.call(ctx, o.container, "group.specific", func(ctx context.Context) error {
		return ops.Specific(ctx, o.raw, args, nil)
	})
}

// GroupClose closes a group handle
func (l *Library) GroupClose(ctx context.Context, id ids.ID) error {
	if _, err := l.objectOfKind(id, core.KindGroup); err != nil {
		return err
	}
	return l.CloseObject(ctx, id)
}
