package vol

import (
	"context"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/ajitpratap0/hvol/pkg/ids"
	"github.com/ajitpratap0/hvol/pkg/metrics"
	"go.uber.org/zap"
)

var objectKinds = []core.ObjectKind{
	core.KindFile,
	core.KindGroup,
	core.KindDatatype,
	core.KindDataset,
	core.KindMap,
	core.KindAttr,
}

// idKind maps an object kind to its handle kind
func idKind(k core.ObjectKind) ids.Kind {
	return ids.KindFile + ids.Kind(k-core.KindFile)
}

// objectKind maps a handle kind back; ok is false for non-object handles
func objectKind(k ids.Kind) (core.ObjectKind, bool) {
	ok := core.ObjectKind(k-ids.KindFile) + core.KindFile
	return ok, ok.Valid()
}

// Object binds one connector object to the Container it lives in. File
// objects carry no raw value of their own; the Container's storage instance
// stands in for it.
type Object struct {
	kind      core.ObjectKind
	raw       any
	container *Container
}

// Kind returns the object's kind
func (o *Object) Kind() core.ObjectKind { return o.kind }

// Container returns the owning Container
func (o *Object) Container() *Container { return o.container }

// Raw returns the connector object the handle routes to
func (o *Object) Raw() any {
	if o.kind == core.KindFile {
		return o.container.raw
	}
	return o.raw
}

// Datatype is what a named datatype handle resolves to in the handle table.
// The object handle sits inside it so type handles can carry more than the
// routing information.
type Datatype struct {
	obj *Object
}

// Object returns the object handle behind the type
func (d *Datatype) Object() *Object { return d.obj }

func newObject(kind core.ObjectKind, raw any, c *Container) (*Object, error) {
	if !kind.Valid() {
		return nil, errors.Newf(errors.ErrorTypeValidation, "unknown object kind %d", kind)
	}
	if c == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "object needs a container")
	}
	if kind == core.KindFile && raw != nil {
		return nil, errors.New(errors.ErrorTypeValidation, "file objects take their storage instance from the container")
	}
	if kind != core.KindFile && raw == nil {
		return nil, errors.Newf(errors.ErrorTypeValidation, "%s object needs a connector object", kind)
	}
	if _, err := c.IncRef(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeAllocation, "cannot hold container for object")
	}
	metrics.OpenObjects.WithLabelValues(kind.String()).Inc()
	return &Object{kind: kind, raw: raw, container: c}, nil
}

// destroy drops the object's hold on its container
func (o *Object) destroy(ctx context.Context) error {
	metrics.OpenObjects.WithLabelValues(o.kind.String()).Dec()
	_, err := o.container.DecRef(ctx)
	return err
}

// CreateObject registers a new handle for raw, a connector object of kind
// living in c. raw must be nil exactly when kind is core.KindFile. The
// handle holds one count on c until it is closed.
func (l *Library) CreateObject(ctx context.Context, kind core.ObjectKind, raw any, c *Container) (ids.ID, error) {
	o, err := newObject(kind, raw, c)
	if err != nil {
		return ids.Invalid, err
	}

	var entry any = o
	if kind == core.KindDatatype {
		entry = &Datatype{obj: o}
	}
	id, err := l.table.Register(idKind(kind), entry)
	if err != nil {
		err = errors.Wrap(err, errors.ErrorTypeAllocation, "failed to register object handle")
		return ids.Invalid, errors.Cleanup(err, o.destroy(ctx))
	}
	return id, nil
}

// Object returns the object behind id
func (l *Library) Object(id ids.ID) (*Object, error) {
	if _, ok := objectKind(ids.KindOf(id)); !ok {
		return nil, errors.Newf(errors.ErrorTypeValidation, "handle %s is not an object", id)
	}
	v, err := l.table.ObjectOf(id)
	if err != nil {
		return nil, err
	}
	return asObject(v)
}

func (l *Library) objectOfKind(id ids.ID, kind core.ObjectKind) (*Object, error) {
	o, err := l.Object(id)
	if err != nil {
		return nil, err
	}
	if o.kind != kind {
		return nil, errors.Newf(errors.ErrorTypeValidation, "handle %s is a %s, not a %s", id, o.kind, kind)
	}
	return o, nil
}

func asObject(v any) (*Object, error) {
	switch o := v.(type) {
	case *Object:
		return o, nil
	case *Datatype:
		return o.obj, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeInternal, "handle table holds a %T", v)
	}
}

// IncRef takes another reference on an object handle
func (l *Library) IncRef(id ids.ID) (int64, error) {
	if _, err := l.Object(id); err != nil {
		return 0, err
	}
	return l.table.IncRef(id)
}

// CloseObject drops one reference to an object handle. The last one runs the
// connector's close callback and then always releases the handle and its
// container count; a callback failure is still returned.
func (l *Library) CloseObject(ctx context.Context, id ids.ID) error {
	if _, ok := objectKind(ids.KindOf(id)); !ok {
		return errors.Newf(errors.ErrorTypeProtocol, "cannot close handle %s of unknown kind", id)
	}
	if _, err := l.table.DecRef(ctx, id); err != nil {
		return err
	}
	return nil
}

// freeObject runs when an object handle's count reaches zero
func (l *Library) freeObject(ctx context.Context, v any) error {
	o, err := asObject(v)
	if err != nil {
		return err
	}
	closeErr := l.closeRaw(ctx, o)
	if err := o.destroy(ctx); err != nil {
		if closeErr != nil {
			l.logger.Warn("failed to release container after close failure", zap.Error(err))
		}
		return errors.Cleanup(closeErr, err)
	}
	return closeErr
}

// closeRaw dispatches the kind's close callback
func (l *Library) closeRaw(ctx context.Context, o *Object) error {
	cls := o.container.cls
	op := o.kind.String() + ".close"

	var fn func(ctx context.Context) error
	switch o.kind {
	case core.KindFile:
		if cls.File != nil {
			fn = func(ctx context.Context) error { return cls.File.Close(ctx, o.Raw(), nil) }
		}
	case core.KindGroup:
		if cls.Group != nil {
			fn = func(ctx context.Context) error { return cls.Group.Close(ctx, o.raw, nil) }
		}
	case core.KindDatatype:
		if cls.Datatype != nil {
			fn = func(ctx context.Context) error { return cls.Datatype.Close(ctx, o.raw, nil) }
		}
	case core.KindDataset:
		if cls.Dataset != nil {
			fn = func(ctx context.Context) error { return cls.Dataset.Close(ctx, o.raw, nil) }
		}
	case core.KindMap:
		if cls.Map != nil {
			fn = func(ctx context.Context) error { return cls.Map.Close(ctx, o.raw, nil) }
		}
	case core.KindAttr:
		if cls.Attr != nil {
			fn = func(ctx context.Context) error { return cls.Attr.Close(ctx, o.raw, nil) }
		}
	default:
		return errors.Newf(errors.ErrorTypeProtocol, "cannot close an object of unknown kind %d", o.kind)
	}
	if fn == nil {
		return unsupported(cls, o.kind.String())
	}
	return l.call(ctx, o.container, op, fn)
}
