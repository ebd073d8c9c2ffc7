package native

import (
	"context"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/google/uuid"
)

type linkOps struct{ c *connector }

// Create adds the link named by loc. The object the link lives in is located
// from obj; loc.Name is the new link's path.
func (o linkOps) Create(_ context.Context, args *core.LinkCreateArgs, obj any, loc core.LocParams, _ *core.Request) error {
	if loc.Type != core.LocByName {
		return errors.New(errors.ErrorTypeValidation, "link creation needs a path")
	}
	s := o.c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.resolver()
	start, err := r.locate(obj, core.Self(loc.ObjKind))
	if err != nil {
		return err
	}
	parent, base, err := r.parentFor(start, loc.Name)
	if err != nil {
		return err
	}
	if _, exists := parent.links[base]; exists {
		return errors.Newf(errors.ErrorTypeValidation, "%s already exists in %s", base, parent.Path)
	}

	link := &Link{Type: args.Type}
	switch args.Type {
	case core.LinkHard:
		target, err := r.locate(args.Target, args.TargetLoc)
		if err != nil {
			return err
		}
		if target.file != parent.file {
			return errors.Newf(errors.ErrorTypeValidation, "hard link from %s cannot point into file %s",
				parent.file.Name, target.file.Name)
		}
		link.target = target
	case core.LinkSoft:
		if args.Path == "" {
			return errors.New(errors.ErrorTypeValidation, "soft link path is empty")
		}
		link.path = args.Path
	case core.LinkExternal:
		if args.FileName == "" || args.ObjPath == "" {
			return errors.New(errors.ErrorTypeValidation, "external link needs a file name and an object path")
		}
		link.fileName = args.FileName
		link.objPath = args.ObjPath
	default:
		return errors.Newf(errors.ErrorTypeValidation, "unknown link type %d", args.Type)
	}
	parent.links[base] = link
	return nil
}

// lookupLink returns the link named by loc without following it
func (o linkOps) lookupLink(obj any, loc core.LocParams) (*Node, string, error) {
	r := o.c.store.resolver()
	start, err := r.locate(obj, core.Self(loc.ObjKind))
	if err != nil {
		return nil, "", err
	}
	return r.parentFor(start, loc.Name)
}

func (o linkOps) Get(_ context.Context, obj any, loc core.LocParams, args *core.LinkGetArgs, _ *core.Request) error {
	s := o.c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, base, err := o.lookupLink(obj, loc)
	if err != nil {
		return err
	}
	link, ok := parent.links[base]
	if !ok {
		return errors.Newf(errors.ErrorTypeNotFound, "link %s not found in %s", base, parent.Path)
	}
	switch args.Op {
	case core.LinkGetInfo:
		args.Info = core.LinkInfo{Type: link.Type}
	case core.LinkGetValue:
		args.Value = link.Value()
	default:
		return errors.Newf(errors.ErrorTypeValidation, "unknown link get operation %d", args.Op)
	}
	return nil
}

func (o linkOps) Specific(_ context.Context, obj any, loc core.LocParams, args *core.LinkSpecificArgs, _ *core.Request) error {
	s := o.c.store
	switch args.Op {
	case core.LinkExists:
		s.mu.Lock()
		defer s.mu.Unlock()
		parent, base, err := o.lookupLink(obj, loc)
		if errors.IsNotFound(err) {
			args.Exists = false
			return nil
		}
		if err != nil {
			return err
		}
		_, args.Exists = parent.links[base]
		return nil

	case core.LinkDelete:
		s.mu.Lock()
		defer s.mu.Unlock()
		parent, base, err := o.lookupLink(obj, loc)
		if err != nil {
			return err
		}
		link, ok := parent.links[base]
		if !ok {
			return errors.Newf(errors.ErrorTypeNotFound, "link %s not found in %s", base, parent.Path)
		}
		delete(parent.links, base)
		if link.Type == core.LinkHard && !reachable(parent.file, link.target) {
			forget(parent.file, link.target)
		}
		return nil

	case core.LinkIterate:
		if args.Iterate == nil {
			return errors.New(errors.ErrorTypeValidation, "link iteration needs a callback")
		}
		s.mu.Lock()
		grp, err := s.resolver().locate(obj, loc)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		if grp.Kind != core.KindGroup {
			s.mu.Unlock()
			return errors.Newf(errors.ErrorTypeValidation, "%s is a %s, not a group", grp.Path, grp.Kind)
		}
		names := sortedKeys(grp.links)
		infos := make([]core.LinkInfo, len(names))
		for i, name := range names {
			infos[i] = core.LinkInfo{Type: grp.links[name].Type}
		}
		s.mu.Unlock()

		for i, name := range names {
			stop, err := args.Iterate(name, infos[i])
			if err != nil || stop {
				return err
			}
		}
		return nil

	default:
		return errors.Newf(errors.ErrorTypeValidation, "unknown link operation %d", args.Op)
	}
}

// reachable reports whether n is still hard-linked from f's root
func reachable(f *File, n *Node) bool {
	if n == f.Root {
		return true
	}
	found := false
	_, _ = visit(f.Root, "", map[uuid.UUID]bool{}, func(_ string, m *Node) (bool, error) {
		found = m == n
		return found, nil
	})
	return found
}

// forget drops n and everything only it reached from f's node index
func forget(f *File, n *Node) {
	if _, ok := f.nodes[n.ID]; !ok {
		return
	}
	delete(f.nodes, n.ID)
	for _, l := range n.links {
		if l.Type == core.LinkHard && !reachable(f, l.target) {
			forget(f, l.target)
		}
	}
}
