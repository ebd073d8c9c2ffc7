package passthru

import (
	"context"
	"sync/atomic"

	"github.com/ajitpratap0/hvol/pkg/compression"
	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/ajitpratap0/hvol/pkg/ids"
)

// underConn is the connector beneath, shared by every object opened through
// one file. The registry reference is released with the last object.
type underConn struct {
	reg  core.Registry
	id   ids.ID
	cls  *core.Class
	refs atomic.Int64
}

func (u *underConn) hold() *underConn {
	u.refs.Add(1)
	return u
}

func (u *underConn) drop(ctx context.Context) error {
	if u.refs.Add(-1) == 0 {
		return u.reg.Release(ctx, u.id)
	}
	return nil
}

// Object wraps an object of the connector beneath
type Object struct {
	under any
	kind  core.ObjectKind
	conn  *underConn
	codec compression.Compressor
}

// Under returns the wrapped object
func (o *Object) Under() any {
	return o.under
}

// Kind returns the kind of the wrapped object
func (o *Object) Kind() core.ObjectKind {
	return o.kind
}

func asObject(obj any) (*Object, error) {
	o, ok := obj.(*Object)
	if !ok || o == nil {
		return nil, errors.Newf(errors.ErrorTypeValidation, "expected a pass-through object, got %T", obj)
	}
	return o, nil
}

// child wraps an object the connector beneath returned for an operation on o
func (o *Object) child(under any, kind core.ObjectKind) *Object {
	return &Object{under: under, kind: kind, conn: o.conn.hold(), codec: o.codec}
}

// release drops o's hold on the connector beneath, keeping err first
func (o *Object) release(ctx context.Context, err error) error {
	return errors.Cleanup(err, o.conn.drop(ctx))
}

type wrapCtx struct {
	conn     *underConn
	underCtx any
	codec    compression.Compressor
}

func getObject(obj any) (any, error) {
	o, err := asObject(obj)
	if err != nil {
		return nil, err
	}
	if o.conn.cls.Wrap.GetObject == nil {
		return o.under, nil
	}
	return o.conn.cls.Wrap.GetObject(o.under)
}

func getWrapCtx(obj any) (any, error) {
	o, err := asObject(obj)
	if err != nil {
		return nil, err
	}
	w := &wrapCtx{codec: o.codec}
	if get := o.conn.cls.Wrap.GetWrapCtx; get != nil {
		if w.underCtx, err = get(o.under); err != nil {
			return nil, err
		}
	}
	w.conn = o.conn.hold()
	return w, nil
}

func wrapObject(obj any, kind core.ObjectKind, ctx any) (any, error) {
	w, ok := ctx.(*wrapCtx)
	if !ok || w == nil {
		return nil, errors.Newf(errors.ErrorTypeValidation, "expected a pass-through wrap context, got %T", ctx)
	}
	under := obj
	if wrap := w.conn.cls.Wrap.WrapObject; wrap != nil && w.underCtx != nil {
		var err error
		if under, err = wrap(obj, kind, w.underCtx); err != nil {
			return nil, err
		}
	}
	return &Object{under: under, kind: kind, conn: w.conn.hold(), codec: w.codec}, nil
}

func unwrapObject(obj any) (any, error) {
	o, err := asObject(obj)
	if err != nil {
		return nil, err
	}
	return o.under, nil
}

func freeWrapCtx(ctx any) error {
	w, ok := ctx.(*wrapCtx)
	if !ok || w == nil {
		return errors.Newf(errors.ErrorTypeValidation, "expected a pass-through wrap context, got %T", ctx)
	}
	var err error
	if free := w.conn.cls.Wrap.FreeWrapCtx; free != nil && w.underCtx != nil {
		err = free(w.underCtx)
	}
	return errors.Cleanup(err, w.conn.drop(context.Background()))
}

// encode compresses a payload on its way down
func (o *Object) encode(data []byte) ([]byte, error) {
	if o.codec == nil {
		return data, nil
	}
	out, err := compression.Frame(o.codec, data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to compress payload").
			WithDetail("algorithm", string(o.codec.Algorithm()))
	}
	return out, nil
}

// decode reverses encode. An empty payload was never written and stays empty.
func (o *Object) decode(data []byte) ([]byte, error) {
	if o.codec == nil || len(data) == 0 {
		return data, nil
	}
	out, err := compression.Unframe(data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to decompress payload")
	}
	return out, nil
}
