package vol

import (
	"context"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/ids"
)

func attrOps(o *Object) (core.AttrOps, error) {
	if o.container.cls.Attr == nil {
		return nil, unsupported(o.container.cls, "attribute")
	}
	return o.container.cls.Attr, nil
}

func (l *Library) attr(id ids.ID) (*Object, core.AttrOps, error) {
	o, err := l.objectOfKind(id, core.KindAttr)
	if err != nil {
		return nil, nil, err
	}
	ops, err := attrOps(o)
	return o, ops, err
}

// AttrCreate creates attribute name on the object behind loc
func (l *Library) AttrCreate(ctx context.Context, loc ids.ID, name string) (ids.ID, error) {
	return l.openChild(ctx, loc, core.KindAttr, "attr.create", func(ctx context.Context, p *Object, lp core.LocParams) (any, error) {
		ops, err := attrOps(p)
		if err != nil {
			return nil, err
		}
		return ops.Create(ctx, p.Raw(), lp, name, nil)
	})
}

// AttrOpen opens attribute name on the object behind loc
func (l *Library) AttrOpen(ctx context.Context, loc ids.ID, name string) (ids.ID, error) {
	return l.openChild(ctx, loc, core.KindAttr, "attr.open", func(ctx context.Context, p *Object, lp core.LocParams) (any, error) {
		ops, err := attrOps(p)
		if err != nil {
			return nil, err
		}
		return ops.Open(ctx, p.Raw(), lp, name, nil)
	})
}

// AttrRead returns the attribute's payload
func (l *Library) AttrRead(ctx context.Context, id ids.ID) ([]byte, error) {
	o, ops, err := l.attr(id)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = l.call(ctx, o.container, "attr.read", func(ctx context.Context) error {
		var err error
		data, err = ops.Read(ctx, o.raw, nil)
		return err
	})
	return data, err
}

// AttrWrite replaces the attribute's payload
func (l *Library) AttrWrite(ctx context.Context, id ids.ID, data []byte) error {
	o, ops, err := l.attr(id)
	if err != nil {
		return err
	}
	return l.call(ctx, o.container, "attr.write", func(ctx context.Context) error {
		return ops.Write(ctx, o.raw, data, nil)
	})
}

// AttrGet runs an attribute query
func (l *Library) AttrGet(ctx context.Context, id ids.ID, args *core.AttrGetArgs) error {
	o, ops, err := l.attr(id)
	if err != nil {
		return err
	}
	return l.call(ctx, o.container, "attr.get", func(ctx context.Context) error {
		return ops.Get(ctx, o.raw, args, nil)
	})
}

// AttrSpecific runs an attribute operation addressed through the object behind loc
func (l *Library) AttrSpecific(ctx context.Context, loc ids.ID, args *core.AttrSpecificArgs) error {
	p, lp, err := l.location(loc)
	if err != nil {
		return err
	}
	ops, err := attrOps(p)
	if err != nil {
		return err
	}
	return l.call(ctx, p.container, "attr.specific", func(ctx context.Context) error {
		return ops.Specific(ctx, p.Raw(), lp, args, nil)
	})
}

// AttrExists reports whether the object behind loc has attribute name
func (l *Library) AttrExists(ctx context.Context, loc ids.ID, name string) (bool, error) {
	args := &core.AttrSpecificArgs{Op: core.AttrExists, Name: name}
	if err := l.AttrSpecific(ctx, loc, args); err != nil {
		return false, err
	}
	return args.Exists, nil
}

// AttrDelete removes attribute name from the object behind loc
func (l *Library) AttrDelete(ctx context.Context, loc ids.ID, name string) error {
	return l.AttrSpecific(ctx, loc, &core.AttrSpecificArgs{Op: core.AttrDelete, Name: name})
}

// AttrIterate calls fn with each attribute name of the object behind loc in sorted order
func (l *Library) AttrIterate(ctx context.Context, loc ids.ID, fn func(name string) (stop bool, err error)) error {
	return l.AttrSpecific(ctx, loc, &core.AttrSpecificArgs{Op: core.AttrIterate, Iterate: fn})
}

// AttrClose closes an attribute handle
func (l *Library) AttrClose(ctx context.Context, id ids.ID) error {
	if _, err := l.objectOfKind(id, core.KindAttr); err != nil {
		return err
	}
	return l.CloseObject(ctx, id)
}

func mapOps(o *Object) (core.MapOps, error) {
	if o.container.cls.Map == nil {
		return nil, unsupported(o.container.cls, "map")
	}
	return o.container.cls.Map, nil
}

func (l *Library) kvmap(id ids.ID) (*Object, core.MapOps, error) {
	o, err := l.objectOfKind(id, core.KindMap)
	if err != nil {
		return nil, nil, err
	}
	ops, err := mapOps(o)
	return o, ops, err
}

// MapCreate creates map name below the object behind loc
func (l *Library) MapCreate(ctx context.Context, loc ids.ID, name string) (ids.ID, error) {
	return l.openChild(ctx, loc, core.KindMap, "map.create", func(ctx context.Context, p *Object, lp core.LocParams) (any, error) {
		ops, err := mapOps(p)
		if err != nil {
			return nil, err
		}
		return ops.Create(ctx, p.Raw(), lp, name, nil)
	})
}

// MapOpen opens map name below the object behind loc
func (l *Library) MapOpen(ctx context.Context, loc ids.ID, name string) (ids.ID, error) {
	return l.openChild(ctx, loc, core.KindMap, "map.open", func(ctx context.Context, p *Object, lp core.LocParams) (any, error) {
		ops, err := mapOps(p)
		if err != nil {
			return nil, err
		}
		return ops.Open(ctx, p.Raw(), lp, name, nil)
	})
}

// MapPut stores value under key
func (l *Library) MapPut(ctx context.Context, id ids.ID, key string, value []byte) error {
	o, ops, err := l.kvmap(id)
	if err != nil {
		return err
	}
	return l.call(ctx, o.container, "map.put", func(ctx context.Context) error {
		return ops.Put(ctx, o.raw, key, value, nil)
	})
}

// MapGet returns the value under key and whether it was present
func (l *Library) MapGet(ctx context.Context, id ids.ID, key string) ([]byte, bool, error) {
	o, ops, err := l.kvmap(id)
	if err != nil {
		return nil, false, err
	}
	var (
		value []byte
		found bool
	)
	err = l.call(ctx, o.container, "map.get", func(ctx context.Context) error {
		var err error
		value, found, err = ops.Lookup(ctx, o.raw, key, nil)
		return err
	})
	return value, found, err
}

// MapCount returns how many keys the map holds
func (l *Library) MapCount(ctx context.Context, id ids.ID) (int, error) {
	o, ops, err := l.kvmap(id)
	if err != nil {
		return 0, err
	}
	var n int
	err = l.call(ctx, o.container, "map.count", func(ctx context.Context) error {
		var err error
		n, err = ops.Count(ctx, o.raw, nil)
		return err
	})
	return n, err
}

// MapClose closes a map handle
func (l *Library) MapClose(ctx context.Context, id ids.ID) error {
	if _, err := l.objectOfKind(id, core.KindMap); err != nil {
		return err
	}
	return l.CloseObject(ctx, id)
}
