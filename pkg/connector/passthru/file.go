package passthru

import (
	"context"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/errors"
	"go.uber.org/zap"
)

func unsupported(cls *core.Class, what string) error {
	return errors.Newf(errors.ErrorTypeProtocol, "connector %s beneath does not support %s operations", cls.Name, what).
		WithDetail("connector", cls.Name)
}

// openUnder acquires the connector info names and parses its own info. The
// returned connection holds one reference.
func (c *connector) openUnder(ctx context.Context, info any) (*Info, *underConn, any, error) {
	pi, err := asInfo(info)
	if err != nil {
		return nil, nil, nil, err
	}
	id, cls, err := c.reg.Acquire(ctx, pi.selector())
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, errors.ErrorTypeConfig, "cannot reach the connector beneath").
			WithDetail("under", pi.selector().String())
	}
	conn := &underConn{reg: c.reg, id: id, cls: cls}
	conn.refs.Store(1)

	if cls.File == nil {
		return nil, nil, nil, errors.Cleanup(unsupported(cls, "file"), conn.drop(ctx))
	}
	var underInfo any
	if pi.UnderInfo != "" {
		if cls.Info.FromString == nil {
			err := errors.Newf(errors.ErrorTypeConfig, "connector %s cannot parse info strings", cls.Name)
			return nil, nil, nil, errors.Cleanup(err, conn.drop(ctx))
		}
		if underInfo, err = cls.Info.FromString(pi.UnderInfo); err != nil {
			return nil, nil, nil, errors.Cleanup(err, conn.drop(ctx))
		}
	}
	return pi, conn, underInfo, nil
}

func (c *connector) freeUnderInfo(cls *core.Class, info any) {
	if info == nil || cls.Info.Free == nil {
		return
	}
	if err := cls.Info.Free(info); err != nil {
		c.logger.Warn("failed to free info of the connector beneath", zap.String("under", cls.Name), zap.Error(err))
	}
}

type fileOps struct{ c *connector }

type fileOpenFunc func(ctx context.Context, name string, flags uint32, info any, req *core.Request) (any, error)

func (o fileOps) open(ctx context.Context, name string, flags uint32, info any, req *core.Request, create bool) (any, error) {
	pi, conn, underInfo, err := o.c.openUnder(ctx, info)
	if err != nil {
		return nil, err
	}
	codec, err := o.c.codecFor(pi)
	if err != nil {
		o.c.freeUnderInfo(conn.cls, underInfo)
		return nil, errors.Cleanup(err, conn.drop(ctx))
	}

	var fn fileOpenFunc = conn.cls.File.Open
	if create {
		fn = conn.cls.File.Create
	}
	raw, err := fn(ctx, name, flags, underInfo, req)
	o.c.freeUnderInfo(conn.cls, underInfo)
	if err != nil {
		return nil, errors.Cleanup(err, conn.drop(ctx))
	}

	o.c.logger.Debug("file opened through pass-through",
		zap.String("file", name),
		zap.String("under", conn.cls.Name),
		zap.Bool("compressed", codec != nil))
	return &Object{under: raw, kind: core.KindFile, conn: conn, codec: codec}, nil
}

func (o fileOps) Create(ctx context.Context, name string, flags uint32, info any, req *core.Request) (any, error) {
	return o.open(ctx, name, flags, info, req, true)
}

func (o fileOps) Open(ctx context.Context, name string, flags uint32, info any, req *core.Request) (any, error) {
	return o.open(ctx, name, flags, info, req, false)
}

func (o fileOps) Get(ctx context.Context, file any, args *core.FileGetArgs, req *core.Request) error {
	p, err := asObject(file)
	if err != nil {
		return err
	}
	return p.conn.cls.File.Get(ctx, p.under, args, req)
}

func (o fileOps) Specific(ctx context.Context, file any, args *core.FileSpecificArgs, req *core.Request) error {
	switch args.Op {
	case core.FileIsAccessible, core.FileDelete:
		_, conn, underInfo, err := o.c.openUnder(ctx, args.Info)
		if err != nil {
			return err
		}
		under := *args
		under.Info = underInfo
		err = conn.cls.File.Specific(ctx, nil, &under, req)
		o.c.freeUnderInfo(conn.cls, underInfo)
		args.Result = under.Result
		return errors.Cleanup(err, conn.drop(ctx))

	case core.FileIsEqual:
		p, err := asObject(file)
		if err != nil {
			return err
		}
		under := *args
		if other, ok := args.Other.(*Object); ok {
			under.Other = other.under
		}
		err = p.conn.cls.File.Specific(ctx, p.under, &under, req)
		args.Result = under.Result
		return err

	default:
		p, err := asObject(file)
		if err != nil {
			return err
		}
		return p.conn.cls.File.Specific(ctx, p.under, args, req)
	}
}

func (o fileOps) Close(ctx context.Context, file any, req *core.Request) error {
	p, err := asObject(file)
	if err != nil {
		return err
	}
	return p.release(ctx, p.conn.cls.File.Close(ctx, p.under, req))
}
