package passthru

import (
	"context"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
)

type linkOps struct{ c *connector }

func linksOf(obj any) (*Object, core.LinkOps, error) {
	p, err := asObject(obj)
	if err != nil {
		return nil, nil, err
	}
	if p.conn.cls.Link == nil {
		return nil, nil, unsupported(p.conn.cls, "link")
	}
	return p, p.conn.cls.Link, nil
}

func (linkOps) Create(ctx context.Context, args *core.LinkCreateArgs, obj any, loc core.LocParams, req *core.Request) error {
	p, ops, err := linksOf(obj)
	if err != nil {
		return err
	}
	under := *args
	if target, ok := args.Target.(*Object); ok {
		under.Target = target.under
	}
	return ops.Create(ctx, &under, p.under, loc, req)
}

func (linkOps) Get(ctx context.Context, obj any, loc core.LocParams, args *core.LinkGetArgs, req *core.Request) error {
	p, ops, err := linksOf(obj)
	if err != nil {
		return err
	}
	return ops.Get(ctx, p.under, loc, args, req)
}

func (linkOps) Specific(ctx context.Context, obj any, loc core.LocParams, args *core.LinkSpecificArgs, req *core.Request) error {
	p, ops, err := linksOf(obj)
	if err != nil {
		return err
	}
	return ops.Specific(ctx, p.under, loc, args, req)
}

type objectOps struct{ c *connector }

func objectsOf(obj any) (*Object, core.ObjectOps, error) {
	p, err := asObject(obj)
	if err != nil {
		return nil, nil, err
	}
	if p.conn.cls.Object == nil {
		return nil, nil, unsupported(p.conn.cls, "object")
	}
	return p, p.conn.cls.Object, nil
}

func (objectOps) Open(ctx context.Context, obj any, loc core.LocParams, req *core.Request) (any, core.ObjectKind, error) {
	p, ops, err := objectsOf(obj)
	if err != nil {
		return nil, 0, err
	}
	raw, kind, err := ops.Open(ctx, p.under, loc, req)
	if err != nil {
		return nil, 0, err
	}
	return p.child(raw, kind), kind, nil
}

func (objectOps) Copy(ctx context.Context, srcObj any, srcLoc core.LocParams, srcName string,
	dstObj any, dstLoc core.LocParams, dstName string, req *core.Request) error {
	src, ops, err := objectsOf(srcObj)
	if err != nil {
		return err
	}
	dst, err := asObject(dstObj)
	if err != nil {
		return err
	}
	return ops.Copy(ctx, src.under, srcLoc, srcName, dst.under, dstLoc, dstName, req)
}

// Get forwards the query. Objects it returns, such as the owning file, are
// the connector beneath's own.
func (objectOps) Get(ctx context.Context, obj any, loc core.LocParams, args *core.ObjectGetArgs, req *core.Request) error {
	p, ops, err := objectsOf(obj)
	if err != nil {
		return err
	}
	return ops.Get(ctx, p.under, loc, args, req)
}

// Specific forwards the operation. Visit callbacks receive the terminal
// objects of the connector beneath.
func (objectOps) Specific(ctx context.Context, obj any, loc core.LocParams, args *core.ObjectSpecificArgs, req *core.Request) error {
	p, ops, err := objectsOf(obj)
	if err != nil {
		return err
	}
	if args.Op != core.ObjectIsEqual {
		return ops.Specific(ctx, p.under, loc, args, req)
	}
	under := *args
	if other, ok := args.Other.(*Object); ok {
		under.Other = other.under
	}
	err = ops.Specific(ctx, p.under, loc, &under, req)
	args.Result = under.Result
	return err
}
