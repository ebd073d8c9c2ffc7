package native

import (
	"context"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/google/uuid"
)

type objectOps struct{ c *connector }

func (o objectOps) Open(_ context.Context, obj any, loc core.LocParams, _ *core.Request) (any, core.ObjectKind, error) {
	s := o.c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.resolver().locate(obj, loc)
	if err != nil {
		return nil, 0, err
	}
	return n, n.Kind, nil
}

// Copy deep-copies the object at srcName into dstName. Source and
// destination may be in different files of the same store.
func (o objectOps) Copy(_ context.Context, srcObj any, srcLoc core.LocParams, srcName string,
	dstObj any, dstLoc core.LocParams, dstName string, _ *core.Request) error {
	s := o.c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.resolver()
	srcStart, err := r.locate(srcObj, srcLoc)
	if err != nil {
		return err
	}
	src, err := r.walk(srcStart, srcName)
	if err != nil {
		return err
	}
	if src == src.file.Root {
		return errors.New(errors.ErrorTypeValidation, "the root group cannot be copied")
	}

	dstStart, err := r.locate(dstObj, dstLoc)
	if err != nil {
		return err
	}
	parent, base, err := r.parentFor(dstStart, dstName)
	if err != nil {
		return err
	}
	if _, exists := parent.links[base]; exists {
		return errors.Newf(errors.ErrorTypeValidation, "%s already exists in %s", base, parent.Path)
	}
	if parent.file.Intent&core.FileReadWrite == 0 {
		return errors.Newf(errors.ErrorTypeFile, "file %s is open read-only", parent.file.Name)
	}

	c := copyNode(parent.file, src, joinPath(parent.Path, base), make(map[uuid.UUID]*Node))
	parent.links[base] = &Link{Type: core.LinkHard, target: c}
	return nil
}

func (o objectOps) Get(_ context.Context, obj any, loc core.LocParams, args *core.ObjectGetArgs, _ *core.Request) error {
	s := o.c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := obj.(*File); ok && loc.Type == core.LocBySelf {
		switch args.Op {
		case core.ObjectGetFile:
			args.File = f
		case core.ObjectGetName:
			args.Name = "/"
		case core.ObjectGetKind:
			args.Kind = core.KindFile
		default:
			return errors.Newf(errors.ErrorTypeValidation, "unknown object get operation %d", args.Op)
		}
		return nil
	}
	if a, ok := obj.(*Attr); ok && loc.Type == core.LocBySelf {
		switch args.Op {
		case core.ObjectGetFile:
			args.File = a.parent.file
		case core.ObjectGetName:
			args.Name = a.Name
		case core.ObjectGetKind:
			args.Kind = core.KindAttr
		default:
			return errors.Newf(errors.ErrorTypeValidation, "unknown object get operation %d", args.Op)
		}
		return nil
	}

	n, err := s.resolver().locate(obj, loc)
	if err != nil {
		return err
	}
	switch args.Op {
	case core.ObjectGetFile:
		args.File = n.file
	case core.ObjectGetName:
		args.Name = n.Path
	case core.ObjectGetKind:
		args.Kind = n.Kind
	default:
		return errors.Newf(errors.ErrorTypeValidation, "unknown object get operation %d", args.Op)
	}
	return nil
}

func (o objectOps) Specific(_ context.Context, obj any, loc core.LocParams, args *core.ObjectSpecificArgs, _ *core.Request) error {
	s := o.c.store
	switch args.Op {
	case core.ObjectIsEqual:
		args.Result = obj != nil && obj == args.Other
		return nil

	case core.ObjectExists:
		s.mu.Lock()
		defer s.mu.Unlock()
		_, err := s.resolver().locate(obj, loc)
		if errors.IsNotFound(err) {
			args.Result = false
			return nil
		}
		if err != nil {
			return err
		}
		args.Result = true
		return nil

	case core.ObjectVisit:
		if args.Visit == nil {
			return errors.New(errors.ErrorTypeValidation, "object visit needs a callback")
		}
		type visited struct {
			name string
			node *Node
		}
		var found []visited

		s.mu.Lock()
		start, err := s.resolver().locate(obj, loc)
		if err == nil {
			_, err = visit(start, "", map[uuid.UUID]bool{start.ID: true}, func(name string, n *Node) (bool, error) {
				found = append(found, visited{name, n})
				return false, nil
			})
		}
		s.mu.Unlock()
		if err != nil {
			return err
		}

		for _, v := range found {
			stop, err := args.Visit(v.name, v.node, v.node.Kind)
			if err != nil || stop {
				return err
			}
		}
		return nil

	default:
		return errors.Newf(errors.ErrorTypeValidation, "unknown object operation %d", args.Op)
	}
}
