package native

import (
	"context"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/errors"
)

type attrOps struct{ c *connector }

func asAttr(obj any) (*Attr, error) {
	a, ok := obj.(*Attr)
	if !ok || a == nil {
		return nil, errors.Newf(errors.ErrorTypeValidation, "expected a native attribute, got %T", obj)
	}
	return a, nil
}

func (o attrOps) Create(_ context.Context, obj any, loc core.LocParams, name string, _ *core.Request) (any, error) {
	if name == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "attribute name is empty")
	}
	s := o.c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, err := s.resolver().locate(obj, loc)
	if err != nil {
		return nil, err
	}
	if _, exists := owner.attrs[name]; exists {
		return nil, errors.Newf(errors.ErrorTypeValidation, "attribute %s already exists on %s", name, owner.Path)
	}
	a := &Attr{Name: name, parent: owner}
	owner.attrs[name] = a
	return a, nil
}

func (o attrOps) Open(_ context.Context, obj any, loc core.LocParams, name string, _ *core.Request) (any, error) {
	s := o.c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, err := s.resolver().locate(obj, loc)
	if err != nil {
		return nil, err
	}
	a, ok := owner.attrs[name]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "attribute %s not found on %s", name, owner.Path)
	}
	return a, nil
}

func (o attrOps) Read(_ context.Context, attr any, _ *core.Request) ([]byte, error) {
	a, err := asAttr(attr)
	if err != nil {
		return nil, err
	}
	o.c.store.mu.RLock()
	defer o.c.store.mu.RUnlock()
	return append([]byte(nil), a.data...), nil
}

func (o attrOps) Write(_ context.Context, attr any, data []byte, _ *core.Request) error {
	a, err := asAttr(attr)
	if err != nil {
		return err
	}
	o.c.store.mu.Lock()
	defer o.c.store.mu.Unlock()

	if a.parent.file.Intent&core.FileReadWrite == 0 {
		return errors.Newf(errors.ErrorTypeFile, "file %s is open read-only", a.parent.file.Name)
	}
	a.data = append([]byte(nil), data...)
	return nil
}

func (o attrOps) Get(_ context.Context, attr any, args *core.AttrGetArgs, _ *core.Request) error {
	a, err := asAttr(attr)
	if err != nil {
		return err
	}
	o.c.store.mu.RLock()
	defer o.c.store.mu.RUnlock()

	switch args.Op {
	case core.AttrGetName:
		args.Name = a.Name
	case core.AttrGetStorageSize:
		args.StorageSize = int64(len(a.data))
	default:
		return errors.Newf(errors.ErrorTypeValidation, "unknown attribute get operation %d", args.Op)
	}
	return nil
}

func (o attrOps) Specific(_ context.Context, obj any, loc core.LocParams, args *core.AttrSpecificArgs, _ *core.Request) error {
	s := o.c.store
	switch args.Op {
	case core.AttrExists:
		s.mu.Lock()
		defer s.mu.Unlock()
		owner, err := s.resolver().locate(obj, loc)
		if err != nil {
			return err
		}
		_, args.Exists = owner.attrs[args.Name]
		return nil

	case core.AttrDelete:
		s.mu.Lock()
		defer s.mu.Unlock()
		owner, err := s.resolver().locate(obj, loc)
		if err != nil {
			return err
		}
		if _, ok := owner.attrs[args.Name]; !ok {
			return errors.Newf(errors.ErrorTypeNotFound, "attribute %s not found on %s", args.Name, owner.Path)
		}
		delete(owner.attrs, args.Name)
		return nil

	case core.AttrIterate:
		if args.Iterate == nil {
			return errors.New(errors.ErrorTypeValidation, "attribute iteration needs a callback")
		}
		s.mu.Lock()
		owner, err := s.resolver().locate(obj, loc)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		names := sortedKeys(owner.attrs)
		s.mu.Unlock()

		for _, name := range names {
			stop, err := args.Iterate(name)
			if err != nil || stop {
				return err
			}
		}
		return nil

	default:
		return errors.Newf(errors.ErrorTypeValidation, "unknown attribute operation %d", args.Op)
	}
}

func (o attrOps) Close(_ context.Context, attr any, _ *core.Request) error {
	_, err := asAttr(attr)
	return err
}
