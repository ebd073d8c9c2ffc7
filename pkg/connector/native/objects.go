package native

import (
	"context"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/errors"
)

func asNode(obj any, kind core.ObjectKind) (*Node, error) {
	n, ok := obj.(*Node)
	if !ok || n == nil {
		return nil, errors.Newf(errors.ErrorTypeValidation, "expected a native %s, got %T", kind, obj)
	}
	if n.Kind != kind {
		return nil, errors.Newf(errors.ErrorTypeValidation, "%s is a %s, not a %s", n.Path, n.Kind, kind)
	}
	return n, nil
}

// createNode links a new node of kind under name, relative to the located
// object. setup runs under the store lock before the node becomes visible.
func (c *connector) createNode(obj any, loc core.LocParams, name string, kind core.ObjectKind, setup func(*Node)) (*Node, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	r := c.store.resolver()
	start, err := r.locate(obj, loc)
	if err != nil {
		return nil, err
	}
	parent, base, err := r.parentFor(start, name)
	if err != nil {
		return nil, err
	}
	if _, exists := parent.links[base]; exists {
		return nil, errors.Newf(errors.ErrorTypeValidation, "%s already exists in %s", base, parent.Path).
			WithDetail("file", parent.file.Name)
	}
	n := parent.file.newNode(kind, joinPath(parent.Path, base))
	if setup != nil {
		setup(n)
	}
	parent.links[base] = &Link{Type: core.LinkHard, target: n}
	return n, nil
}

func (c *connector) openNode(obj any, loc core.LocParams, name string, kind core.ObjectKind) (*Node, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	r := c.store.resolver()
	start, err := r.locate(obj, loc)
	if err != nil {
		return nil, err
	}
	n, err := r.walk(start, name)
	if err != nil {
		return nil, err
	}
	if n.Kind != kind {
		return nil, errors.Newf(errors.ErrorTypeValidation, "%s is a %s, not a %s", n.Path, n.Kind, kind)
	}
	return n, nil
}

type groupOps struct{ c *connector }

func (o groupOps) Create(_ context.Context, obj any, loc core.LocParams, name string, _ *core.Request) (any, error) {
	return o.c.createNode(obj, loc, name, core.KindGroup, nil)
}

func (o groupOps) Open(_ context.Context, obj any, loc core.LocParams, name string, _ *core.Request) (any, error) {
	return o.c.openNode(obj, loc, name, core.KindGroup)
}

func (o groupOps) Get(_ context.Context, grp any, args *core.GroupGetArgs, _ *core.Request) error {
	n, err := asNode(grp, core.KindGroup)
	if err != nil {
		return err
	}
	o.c.store.mu.RLock()
	defer o.c.store.mu.RUnlock()

	switch args.Op {
	case core.GroupGetInfo:
		args.Info = core.GroupInfo{NumLinks: len(n.links)}
		return nil
	default:
		return errors.Newf(errors.ErrorTypeValidation, "unknown group get operation %d", args.Op)
	}
}

func (o groupOps) Specific(_ context.Context, grp any, args *core.GroupSpecificArgs, _ *core.Request) error {
	if _, err := asNode(grp, core.KindGroup); err != nil {
		return err
	}
	if args.Op != core.GroupFlush {
		return errors.Newf(errors.ErrorTypeValidation, "unknown group operation %d", args.Op)
	}
	return nil
}

func (o groupOps) Close(_ context.Context, grp any, _ *core.Request) error {
	_, err := asNode(grp, core.KindGroup)
	return err
}

type datasetOps struct{ c *connector }

func (o datasetOps) Create(_ context.Context, obj any, loc core.LocParams, name string, dtype string, _ *core.Request) (any, error) {
	if dtype == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "dataset type is empty")
	}
	return o.c.createNode(obj, loc, name, core.KindDataset, func(n *Node) { n.dtype = dtype })
}

func (o datasetOps) Open(_ context.Context, obj any, loc core.LocParams, name string, _ *core.Request) (any, error) {
	return o.c.openNode(obj, loc, name, core.KindDataset)
}

func (o datasetOps) Read(_ context.Context, dset any, _ *core.Request) ([]byte, error) {
	n, err := asNode(dset, core.KindDataset)
	if err != nil {
		return nil, err
	}
	o.c.store.mu.RLock()
	defer o.c.store.mu.RUnlock()
	return append([]byte(nil), n.data...), nil
}

func (o datasetOps) Write(_ context.Context, dset any, data []byte, _ *core.Request) error {
	n, err := asNode(dset, core.KindDataset)
	if err != nil {
		return err
	}
	o.c.store.mu.Lock()
	defer o.c.store.mu.Unlock()

	if n.file.Intent&core.FileReadWrite == 0 {
		return errors.Newf(errors.ErrorTypeFile, "file %s is open read-only", n.file.Name)
	}
	n.data = append([]byte(nil), data...)
	return nil
}

func (o datasetOps) Get(_ context.Context, dset any, args *core.DatasetGetArgs, _ *core.Request) error {
	n, err := asNode(dset, core.KindDataset)
	if err != nil {
		return err
	}
	o.c.store.mu.RLock()
	defer o.c.store.mu.RUnlock()

	switch args.Op {
	case core.DatasetGetType:
		args.Type = n.dtype
	case core.DatasetGetStorageSize:
		args.StorageSize = int64(len(n.data))
	default:
		return errors.Newf(errors.ErrorTypeValidation, "unknown dataset get operation %d", args.Op)
	}
	return nil
}

func (o datasetOps) Specific(_ context.Context, dset any, args *core.DatasetSpecificArgs, _ *core.Request) error {
	if _, err := asNode(dset, core.KindDataset); err != nil {
		return err
	}
	if args.Op != core.DatasetFlush {
		return errors.Newf(errors.ErrorTypeValidation, "unknown dataset operation %d", args.Op)
	}
	return nil
}

func (o datasetOps) Close(_ context.Context, dset any, _ *core.Request) error {
	_, err := asNode(dset, core.KindDataset)
	return err
}

type datatypeOps struct{ c *connector }

func (o datatypeOps) Commit(_ context.Context, obj any, loc core.LocParams, name string, desc string, _ *core.Request) (any, error) {
	if desc == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "datatype descriptor is empty")
	}
	return o.c.createNode(obj, loc, name, core.KindDatatype, func(n *Node) { n.descriptor = desc })
}

func (o datatypeOps) Open(_ context.Context, obj any, loc core.LocParams, name string, _ *core.Request) (any, error) {
	return o.c.openNode(obj, loc, name, core.KindDatatype)
}

func (o datatypeOps) Get(_ context.Context, dtype any, args *core.DatatypeGetArgs, _ *core.Request) error {
	n, err := asNode(dtype, core.KindDatatype)
	if err != nil {
		return err
	}
	if args.Op != core.DatatypeGetDescriptor {
		return errors.Newf(errors.ErrorTypeValidation, "unknown datatype get operation %d", args.Op)
	}
	args.Descriptor = n.descriptor
	return nil
}

func (o datatypeOps) Close(_ context.Context, dtype any, _ *core.Request) error {
	_, err := asNode(dtype, core.KindDatatype)
	return err
}

type mapOps struct{ c *connector }

func (o mapOps) Create(_ context.Context, obj any, loc core.LocParams, name string, _ *core.Request) (any, error) {
	return o.c.createNode(obj, loc, name, core.KindMap, nil)
}

func (o mapOps) Open(_ context.Context, obj any, loc core.LocParams, name string, _ *core.Request) (any, error) {
	return o.c.openNode(obj, loc, name, core.KindMap)
}

func (o mapOps) Put(_ context.Context, m any, key string, value []byte, _ *core.Request) error {
	n, err := asNode(m, core.KindMap)
	if err != nil {
		return err
	}
	o.c.store.mu.Lock()
	defer o.c.store.mu.Unlock()

	if n.file.Intent&core.FileReadWrite == 0 {
		return errors.Newf(errors.ErrorTypeFile, "file %s is open read-only", n.file.Name)
	}
	n.entries[key] = append([]byte(nil), value...)
	return nil
}

func (o mapOps) Lookup(_ context.Context, m any, key string, _ *core.Request) ([]byte, bool, error) {
	n, err := asNode(m, core.KindMap)
	if err != nil {
		return nil, false, err
	}
	o.c.store.mu.RLock()
	defer o.c.store.mu.RUnlock()

	v, ok := n.entries[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (o mapOps) Count(_ context.Context, m any, _ *core.Request) (int, error) {
	n, err := asNode(m, core.KindMap)
	if err != nil {
		return 0, err
	}
	o.c.store.mu.RLock()
	defer o.c.store.mu.RUnlock()
	return len(n.entries), nil
}

func (o mapOps) Close(_ context.Context, m any, _ *core.Request) error {
	_, err := asNode(m, core.KindMap)
	return err
}
