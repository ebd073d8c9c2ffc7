package vol

import (
	"context"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/ajitpratap0/hvol/pkg/ids"
)

func linkOps(o *Object) (core.LinkOps, error) {
	if o.container.cls.Link == nil {
		return nil, unsupported(o.container.cls, "link")
	}
	return o.container.cls.Link, nil
}

func (l *Library) linkCreate(ctx context.Context, args *core.LinkCreateArgs, loc ids.ID, name string) error {
	p, err := l.Object(loc)
	if err != nil {
		return err
	}
	ops, err := linkOps(p)
	if err != nil {
		return err
	}
	return l.call(ctx, p.container, "link.create", func(ctx context.Context) error {
		return ops.Create(ctx, args, p.Raw(), core.ByPath(p.kind, name), nil)
	})
}

// LinkCreateHard links name below the object behind loc to the object behind
// target. Both must be in files of the same connector.
func (l *Library) LinkCreateHard(ctx context.Context, target, loc ids.ID, name string) error {
	t, err := l.Object(target)
	if err != nil {
		return err
	}
	p, err := l.Object(loc)
	if err != nil {
		return err
	}
	if err := requireSameClass(t.container, p.container, "hard link"); err != nil {
		return err
	}
	args := &core.LinkCreateArgs{Type: core.LinkHard, Target: t.Raw(), TargetLoc: core.Self(t.kind)}
	return l.linkCreate(ctx, args, loc, name)
}

// LinkCreateSoft links name below the object behind loc to path
func (l *Library) LinkCreateSoft(ctx context.Context, path string, loc ids.ID, name string) error {
	return l.linkCreate(ctx, &core.LinkCreateArgs{Type: core.LinkSoft, Path: path}, loc, name)
}

// LinkCreateExternal links name below the object behind loc to objPath in file fileName
func (l *Library) LinkCreateExternal(ctx context.Context, fileName, objPath string, loc ids.ID, name string) error {
	args := &core.LinkCreateArgs{Type: core.LinkExternal, FileName: fileName, ObjPath: objPath}
	return l.linkCreate(ctx, args, loc, name)
}

// LinkGet runs a link query on link name below the object behind loc
func (l *Library) LinkGet(ctx context.Context, loc ids.ID, name string, args *core.LinkGetArgs) error {
	p, err := l.Object(loc)
	if err != nil {
		return err
	}
	ops, err := linkOps(p)
	if err != nil {
		return err
	}
	return l.call(ctx, p.container, "link.get", func(ctx context.Context) error {
		return ops.Get(ctx, p.Raw(), core.ByPath(p.kind, name), args, nil)
	})
}

// LinkInfo returns the type of link name and its value: the target path of a
// soft link, or "file:path" for an external one
func (l *Library) LinkInfo(ctx context.Context, loc ids.ID, name string) (core.LinkInfo, string, error) {
	info := &core.LinkGetArgs{Op: core.LinkGetInfo}
	if err := l.LinkGet(ctx, loc, name, info); err != nil {
		return core.LinkInfo{}, "", err
	}
	if info.Info.Type == core.LinkHard {
		return info.Info, "", nil
	}
	val := &core.LinkGetArgs{Op: core.LinkGetValue}
	if err := l.LinkGet(ctx, loc, name, val); err != nil {
		return core.LinkInfo{}, "", err
	}
	return info.Info, val.Value, nil
}

func (l *Library) linkSpecific(ctx context.Context, loc ids.ID, lp func(kind core.ObjectKind) core.LocParams, args *core.LinkSpecificArgs) error {
	p, err := l.Object(loc)
	if err != nil {
		return err
	}
	ops, err := linkOps(p)
	if err != nil {
		return err
	}
	return l.call(ctx, p.container, "link.specific", func(ctx context.Context) error {
		return ops.Specific(ctx, p.Raw(), lp(p.kind), args, nil)
	})
}

func byPath(name string) func(core.ObjectKind) core.LocParams {
	return func(kind core.ObjectKind) core.LocParams { return core.ByPath(kind, name) }
}

// LinkExists reports whether link name exists below the object behind loc
func (l *Library) LinkExists(ctx context.Context, loc ids.ID, name string) (bool, error) {
	args := &core.LinkSpecificArgs{Op: core.LinkExists}
	if err := l.linkSpecific(ctx, loc, byPath(name), args); err != nil {
		return false, err
	}
	return args.Exists, nil
}

// LinkDelete removes link name below the object behind loc
func (l *Library) LinkDelete(ctx context.Context, loc ids.ID, name string) error {
	return l.linkSpecific(ctx, loc, byPath(name), &core.LinkSpecificArgs{Op: core.LinkDelete})
}

// LinkIterate calls fn for each link of the group behind loc in name order
func (l *Library) LinkIterate(ctx context.Context, loc ids.ID, fn func(name string, info core.LinkInfo) (stop bool, err error)) error {
	if fn == nil {
		return errors.New(errors.ErrorTypeValidation, "link iteration needs a callback")
	}
	return l.linkSpecific(ctx, loc, core.Self, &core.LinkSpecificArgs{Op: core.LinkIterate, Iterate: fn})
}
