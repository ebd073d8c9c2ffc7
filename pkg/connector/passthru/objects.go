package passthru

import (
	"context"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
)

type groupOps struct{ c *connector }

func groupsOf(obj any) (*Object, core.GroupOps, error) {
	p, err := asObject(obj)
	if err != nil {
		return nil, nil, err
	}
	if p.conn.cls.Group == nil {
		return nil, nil, unsupported(p.conn.cls, "group")
	}
	return p, p.conn.cls.Group, nil
}

func (groupOps) Create(ctx context.Context, obj any, loc core.LocParams, name string, req *core.Request) (any, error) {
	p, ops, err := groupsOf(obj)
	if err != nil {
		return nil, err
	}
	raw, err := ops.Create(ctx, p.under, loc, name, req)
	if err != nil {
		return nil, err
	}
	return p.child(raw, core.KindGroup), nil
}

func (groupOps) Open(ctx context.Context, obj any, loc core.LocParams, name string, req *core.Request) (any, error) {
	p, ops, err := groupsOf(obj)
	if err != nil {
		return nil, err
	}
	raw, err := ops.Open(ctx, p.under, loc, name, req)
	if err != nil {
		return nil, err
	}
	return p.child(raw, core.KindGroup), nil
}

func (groupOps) Get(ctx context.Context, grp any, args *core.GroupGetArgs, req *core.Request) error {
	p, ops, err := groupsOf(grp)
	if err != nil {
		return err
	}
	return ops.Get(ctx, p.under, args, req)
}

func (groupOps) Specific(ctx context.Context, grp any, args *core.GroupSpecificArgs, req *core.Request) error {
	p, ops, err := groupsOf(grp)
	if err != nil {
		return err
	}
	return ops.Specific(ctx, p.under, args, req)
}

func (groupOps) Close(ctx context.Context, grp any, req *core.Request) error {
	p, ops, err := groupsOf(grp)
	if err != nil {
		return err
	}
	return p.release(ctx, ops.Close(ctx, p.under, req))
}

type datasetOps struct{ c *connector }

func datasetsOf(obj any) (*Object, core.DatasetOps, error) {
	p, err := asObject(obj)
	if err != nil {
		return nil, nil, err
	}
	if p.conn.cls.Dataset == nil {
		return nil, nil, unsupported(p.conn.cls, "dataset")
	}
	return p, p.conn.cls.Dataset, nil
}

func (datasetOps) Create(ctx context.Context, obj any, loc core.LocParams, name string, dtype string, req *core.Request) (any, error) {
	p, ops, err := datasetsOf(obj)
	if err != nil {
		return nil, err
	}
	raw, err := ops.Create(ctx, p.under, loc, name, dtype, req)
	if err != nil {
		return nil, err
	}
	return p.child(raw, core.KindDataset), nil
}

func (datasetOps) Open(ctx context.Context, obj any, loc core.LocParams, name string, req *core.Request) (any, error) {
	p, ops, err := datasetsOf(obj)
	if err != nil {
		return nil, err
	}
	raw, err := ops.Open(ctx, p.under, loc, name, req)
	if err != nil {
		return nil, err
	}
	return p.child(raw, core.KindDataset), nil
}

func (datasetOps) Read(ctx context.Context, dset any, req *core.Request) ([]byte, error) {
	p, ops, err := datasetsOf(dset)
	if err != nil {
		return nil, err
	}
	data, err := ops.Read(ctx, p.under, req)
	if err != nil {
		return nil, err
	}
	return p.decode(data)
}

func (datasetOps) Write(ctx context.Context, dset any, data []byte, req *core.Request) error {
	p, ops, err := datasetsOf(dset)
	if err != nil {
		return err
	}
	encoded, err := p.encode(data)
	if err != nil {
		return err
	}
	return ops.Write(ctx, p.under, encoded, req)
}

func (datasetOps) Get(ctx context.Context, dset any, args *core.DatasetGetArgs, req *core.Request) error {
	p, ops, err := datasetsOf(dset)
	if err != nil {
		return err
	}
	return ops.Get(ctx, p.under, args, req)
}

func (datasetOps) Specific(ctx context.Context, dset any, args *core.DatasetSpecificArgs, req *core.Request) error {
	p, ops, err := datasetsOf(dset)
	if err != nil {
		return err
	}
	return ops.Specific(ctx, p.under, args, req)
}

func (datasetOps) Close(ctx context.Context, dset any, req *core.Request) error {
	p, ops, err := datasetsOf(dset)
	if err != nil {
		return err
	}
	return p.release(ctx, ops.Close(ctx, p.under, req))
}

type datatypeOps struct{ c *connector }

func datatypesOf(obj any) (*Object, core.DatatypeOps, error) {
	p, err := asObject(obj)
	if err != nil {
		return nil, nil, err
	}
	if p.conn.cls.Datatype == nil {
		return nil, nil, unsupported(p.conn.cls, "datatype")
	}
	return p, p.conn.cls.Datatype, nil
}

func (datatypeOps) Commit(ctx context.Context, obj any, loc core.LocParams, name string, desc string, req *core.Request) (any, error) {
	p, ops, err := datatypesOf(obj)
	if err != nil {
		return nil, err
	}
	raw, err := ops.Commit(ctx, p.under, loc, name, desc, req)
	if err != nil {
		return nil, err
	}
	return p.child(raw, core.KindDatatype), nil
}

func (datatypeOps) Open(ctx context.Context, obj any, loc core.LocParams, name string, req *core.Request) (any, error) {
	p, ops, err := datatypesOf(obj)
	if err != nil {
		return nil, err
	}
	raw, err := ops.Open(ctx, p.under, loc, name, req)
	if err != nil {
		return nil, err
	}
	return p.child(raw, core.KindDatatype), nil
}

func (datatypeOps) Get(ctx context.Context, dtype any, args *core.DatatypeGetArgs, req *core.Request) error {
	p, ops, err := datatypesOf(dtype)
	if err != nil {
		return err
	}
	return ops.Get(ctx, p.under, args, req)
}

func (datatypeOps) Close(ctx context.Context, dtype any, req *core.Request) error {
	p, ops, err := datatypesOf(dtype)
	if err != nil {
		return err
	}
	return p.release(ctx, ops.Close(ctx, p.under, req))
}

type attrOps struct{ c *connector }

func attrsOf(obj any) (*Object, core.AttrOps, error) {
	p, err := asObject(obj)
	if err != nil {
		return nil, nil, err
	}
	if p.conn.cls.Attr == nil {
		return nil, nil, unsupported(p.conn.cls, "attribute")
	}
	return p, p.conn.cls.Attr, nil
}

func (attrOps) Create(ctx context.Context, obj any, loc core.LocParams, name string, req *core.Request) (any, error) {
	p, ops, err := attrsOf(obj)
	if err != nil {
		return nil, err
	}
	raw, err := ops.Create(ctx, p.under, loc, name, req)
	if err != nil {
		return nil, err
	}
	return p.child(raw, core.KindAttr), nil
}

func (attrOps) Open(ctx context.Context, obj any, loc core.LocParams, name string, req *core.Request) (any, error) {
	p, ops, err := attrsOf(obj)
	if err != nil {
		return nil, err
	}
	raw, err := ops.Open(ctx, p.under, loc, name, req)
	if err != nil {
		return nil, err
	}
	return p.child(raw, core.KindAttr), nil
}

func (attrOps) Read(ctx context.Context, attr any, req *core.Request) ([]byte, error) {
	p, ops, err := attrsOf(attr)
	if err != nil {
		return nil, err
	}
	data, err := ops.Read(ctx, p.under, req)
	if err != nil {
		return nil, err
	}
	return p.decode(data)
}

func (attrOps) Write(ctx context.Context, attr any, data []byte, req *core.Request) error {
	p, ops, err := attrsOf(attr)
	if err != nil {
		return err
	}
	encoded, err := p.encode(data)
	if err != nil {
		return err
	}
	return ops.Write(ctx, p.under, encoded, req)
}

func (attrOps) Get(ctx context.Context, attr any, args *core.AttrGetArgs, req *core.Request) error {
	p, ops, err := attrsOf(attr)
	if err != nil {
		return err
	}
	return ops.Get(ctx, p.under, args, req)
}

func (attrOps) Specific(ctx context.Context, obj any, loc core.LocParams, args *core.AttrSpecificArgs, req *core.Request) error {
	p, ops, err := attrsOf(obj)
	if err != nil {
		return err
	}
	return ops.Specific(ctx, p.under, loc, args, req)
}

func (attrOps) Close(ctx context.Context, attr any, req *core.Request) error {
	p, ops, err := attrsOf(attr)
	if err != nil {
		return err
	}
	return p.release(ctx, ops.Close(ctx, p.under, req))
}

type mapOps struct{ c *connector }

func mapsOf(obj any) (*Object, core.MapOps, error) {
	p, err := asObject(obj)
	if err != nil {
		return nil, nil, err
	}
	if p.conn.cls.Map == nil {
		return nil, nil, unsupported(p.conn.cls, "map")
	}
	return p, p.conn.cls.Map, nil
}

func (mapOps) Create(ctx context.Context, obj any, loc core.LocParams, name string, req *core.Request) (any, error) {
	p, ops, err := mapsOf(obj)
	if err != nil {
		return nil, err
	}
	raw, err := ops.Create(ctx, p.under, loc, name, req)
	if err != nil {
		return nil, err
	}
	return p.child(raw, core.KindMap), nil
}

func (mapOps) Open(ctx context.Context, obj any, loc core.LocParams, name string, req *core.Request) (any, error) {
	p, ops, err := mapsOf(obj)
	if err != nil {
		return nil, err
	}
	raw, err := ops.Open(ctx, p.under, loc, name, req)
	if err != nil {
		return nil, err
	}
	return p.child(raw, core.KindMap), nil
}

func (mapOps) Put(ctx context.Context, m any, key string, value []byte, req *core.Request) error {
	p, ops, err := mapsOf(m)
	if err != nil {
		return err
	}
	return ops.Put(ctx, p.under, key, value, req)
}

func (mapOps) Lookup(ctx context.Context, m any, key string, req *core.Request) ([]byte, bool, error) {
	p, ops, err := mapsOf(m)
	if err != nil {
		return nil, false, err
	}
	return ops.Lookup(ctx, p.under, key, req)
}

func (mapOps) Count(ctx context.Context, m any, req *core.Request) (int, error) {
	p, ops, err := mapsOf(m)
	if err != nil {
		return 0, err
	}
	return ops.Count(ctx, p.under, req)
}

func (mapOps) Close(ctx context.Context, m any, req *core.Request) error {
	p, ops, err := mapsOf(m)
	if err != nil {
		return err
	}
	return p.release(ctx, ops.Close(ctx, p.under, req))
}
