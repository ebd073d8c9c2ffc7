package vol

import (
	"context"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/ids"
)

func datasetOps(o *Object) (core.DatasetOps, error) {
	if o.container.cls.Dataset == nil {
		return nil, unsupported(o.container.cls, "dataset")
	}
	return o.container.cls.Dataset, nil
}

func (l *Library) dataset(id ids.ID) (*Object, core.DatasetOps, error) {
	o, err := l.objectOfKind(id, core.KindDataset)
	if err != nil {
		return nil, nil, err
	}
	ops, err := datasetOps(o)
	return o, ops, err
}

// DatasetCreate creates dataset name of element type dtype below the object behind loc
func (l *Library) DatasetCreate(ctx context.Context, loc ids.ID, name, dtype string) (ids.ID, error) {
	return l.openChild(ctx, loc, core.KindDataset, "dataset.create", func(ctx context.Context, p *Object, lp core.LocParams) (any, error) {
		ops, err := datasetOps(p)
		if err != nil {
			return nil, err
		}
		return ops.Create(ctx, p.Raw(), lp, name, dtype, nil)
	})
}

// DatasetOpen opens dataset name below the object behind loc
func (l *Library) DatasetOpen(ctx context.Context, loc ids.ID, name string) (ids.ID, error) {
	return l.openChild(ctx, loc, core.KindDataset, "dataset.open", func(ctx context.Context, p *Object, lp core.LocParams) (any, error) {
		ops, err := datasetOps(p)
		if err != nil {
			return nil, err
		}
		return ops.Open(ctx, p.Raw(), lp, name, nil)
	})
}

// DatasetRead returns the dataset's payload. With a non-nil req a connector
// may leave the read in flight; the payload is then nil.
func (l *Library) DatasetRead(ctx context.Context, id ids.ID, req *Request) ([]byte, error) {
	o, ops, err := l.dataset(id)
	if err != nil {
		return nil, err
	}
	out := req.out()
	var data []byte
	err = l.call(ctx, o.container, "dataset.read", func(ctx context.Context) error {
		var err error
		data, err = ops.Read(ctx, o.raw, out)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, req.bind(o.container, out)
}

// DatasetWrite replaces the dataset's payload
func (l *Library) DatasetWrite(ctx context.Context, id ids.ID, data []byte, req *Request) error {
	o, ops, err := l.dataset(id)
	if err != nil {
		return err
	}
	out := req.out()
	err = l.call(ctx, o.container, "dataset.write", func(ctx context.Context) error {
		return ops.Write(ctx, o.raw, data, out)
	})
	if err != nil {
		return err
	}
	return req.bind(o.container, out)
}

// DatasetGet runs a dataset query
func (l *Library) DatasetGet(ctx context.Context, id ids.ID, args *core.DatasetGetArgs) error {
	o, ops, err := l.dataset(id)
	if err != nil {
		return err
	}
	return l.call(ctx, o.container, "dataset.get", func(ctx context.Context) error {
		return ops.Get(ctx, o.raw, args, nil)
	})
}

// DatasetSpecific runs a dataset operation
func (l *Library) DatasetSpecific(ctx context.Context, id ids.ID, args *core.DatasetSpecificArgs) error {
	o, ops, err := l.dataset(id)
	if err != nil {
		return err
	}
	return l.call(ctx, o.container, "dataset.specific", func(ctx context.Context) error {
		return ops.Specific(ctx, o.raw, args, nil)
	})
}

// DatasetClose closes a dataset handle
func (l *Library) DatasetClose(ctx context.Context, id ids.ID) error {
	if _, err := l.objectOfKind(id, core.KindDataset); err != nil {
		return err
	}
	return l.CloseObject(ctx, id)
}

func datatypeOps(o *Object) (core.DatatypeOps, error) {
	if o.container.cls.Datatype == nil {
		return nil, unsupported(o.container.cls, "datatype")
	}
	return o.container.cls.Datatype, nil
}

// DatatypeCommit stores a named datatype with descriptor desc below the object behind loc
func (l *Library) DatatypeCommit(ctx context.Context, loc ids.ID, name, desc string) (ids.ID, error) {
	return l.openChild(ctx, loc, core.KindDatatype, "datatype.commit", func(ctx context.Context, p *Object, lp core.LocParams) (any, error) {
		ops, err := datatypeOps(p)
		if err != nil {
			return nil, err
		}
		return ops.Commit(ctx, p.Raw(), lp, name, desc, nil)
	})
}

// DatatypeOpen opens named datatype name below the object behind loc
func (l *Library) DatatypeOpen(ctx context.Context, loc ids.ID, name string) (ids.ID, error) {
	return l.openChild(ctx, loc, core.KindDatatype, "datatype.open", func(ctx context.Context, p *Object, lp core.LocParams) (any, error) {
		ops, err := datatypeOps(p)
		if err != nil {
			return nil, err
		}
		return ops.Open(ctx, p.Raw(), lp, name, nil)
	})
}

// DatatypeDescriptor returns a named datatype's descriptor
func (l *Library) DatatypeDescriptor(ctx context.Context, id ids.ID) (string, error) {
	o, err := l.objectOfKind(id, core.KindDatatype)
	if err != nil {
		return "", err
	}
	ops, err := datatypeOps(o)
	if err != nil {
		return "", err
	}
	args := &core.DatatypeGetArgs{Op: core.DatatypeGetDescriptor}
	err = l.call(ctx, o.container, "datatype.get", func(ctx context.Context) error {
		return ops.Get(ctx, o.raw, args, nil)
	})
	return args.Descriptor, err
}

// DatatypeClose closes a named datatype handle
func (l *Library) DatatypeClose(ctx context.Context, id ids.ID) error {
	if _, err := l.objectOfKind(id, core.KindDatatype); err != nil {
		return err
	}
	return l.CloseObject(ctx, id)
}
