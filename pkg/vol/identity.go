package vol

import (
	"context"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/ajitpratap0/hvol/pkg/ids"
)

// IsSame reports whether two handles refer to the same entity. The terminal
// connector classes are compared first; the connector's equality callback
// only ever sees terminal objects of its own class.
func (l *Library) IsSame(ctx context.Context, a, b ids.ID) (bool, error) {
	oa, err := l.Object(a)
	if err != nil {
		return false, err
	}
	if a == b {
		return true, nil
	}
	ob, err := l.Object(b)
	if err != nil {
		return false, err
	}
	return l.sameObject(ctx, oa, ob)
}

// SameContainer reports whether two containers are bound to the same storage instance
func (l *Library) SameContainer(ctx context.Context, a, b *Container) (bool, error) {
	if a == b {
		return true, nil
	}
	return l.sameObject(ctx, a.transient(), b.transient())
}

func (l *Library) sameObject(ctx context.Context, a, b *Object) (bool, error) {
	ca, err := l.classAt(ctx, a.container.cls, a.Raw(), core.LevelTerminal)
	if err != nil {
		return false, err
	}
	cb, err := l.classAt(ctx, b.container.cls, b.Raw(), core.LevelTerminal)
	if err != nil {
		return false, err
	}
	if core.CompareClasses(ca, cb) != 0 {
		return false, nil
	}
	if (a.kind == core.KindFile) != (b.kind == core.KindFile) {
		return false, nil
	}

	ra, err := terminalRaw(a.container.cls, a.Raw())
	if err != nil {
		return false, err
	}
	rb, err := terminalRaw(b.container.cls, b.Raw())
	if err != nil {
		return false, err
	}

	if a.kind == core.KindFile {
		if ca.File == nil {
			return false, unsupported(ca, "file")
		}
		args := &core.FileSpecificArgs{Op: core.FileIsEqual, Other: rb}
		err := trace(ctx, ca, "file.specific", func(ctx context.Context) error {
			return ca.File.Specific(ctx, ra, args, nil)
		})
		return args.Result, err
	}

	if ca.Object == nil {
		return false, unsupported(ca, "object")
	}
	args := &core.ObjectSpecificArgs{Op: core.ObjectIsEqual, Other: rb}
	err = trace(ctx, ca, "object.specific", func(ctx context.Context) error {
		return ca.Object.Specific(ctx, ra, core.Self(a.kind), args, nil)
	})
	return args.Result, err
}

// IsNative reports whether the connector at level behind id is the base connector
func (l *Library) IsNative(ctx context.Context, id ids.ID, level core.ConnLevel) (bool, error) {
	o, err := l.Object(id)
	if err != nil {
		return false, err
	}
	base, err := l.reg.BaseClass()
	if err != nil {
		return false, err
	}
	cls, err := l.classAt(ctx, o.container.cls, o.Raw(), level)
	if err != nil {
		return false, err
	}
	return core.CompareClasses(cls, base) == 0, nil
}

// CompareConnectors orders the classes of two registered connectors
func (l *Library) CompareConnectors(a, b ids.ID) (int, error) {
	ca, err := l.reg.Class(a)
	if err != nil {
		return 0, err
	}
	cb, err := l.reg.Class(b)
	if err != nil {
		return 0, err
	}
	return core.CompareClasses(ca, cb), nil
}

// requireSameClass fails with a protocol error when two containers route to different connectors
func requireSameClass(a, b *Container, op string) error {
	if core.CompareClasses(a.cls, b.cls) == 0 {
		return nil
	}
	return errors.Newf(errors.ErrorTypeProtocol, "%s across connectors %s and %s", op, a.cls.Name, b.cls.Name).
		WithDetail("source", a.cls.Name).
		WithDetail("destination", b.cls.Name)
}
