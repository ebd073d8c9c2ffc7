package native

import (
	"context"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/errors"
	"go.uber.org/zap"
)

type fileOps struct{ c *connector }

func asFile(obj any) (*File, error) {
	f, ok := obj.(*File)
	if !ok || f == nil {
		return nil, errors.Newf(errors.ErrorTypeValidation, "expected a native file, got %T", obj)
	}
	return f, nil
}

func (o fileOps) Create(_ context.Context, name string, flags uint32, _ any, _ *core.Request) (any, error) {
	if name == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "file name is empty")
	}
	s := o.c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.files[name]
	if !ok && s.hasSnapshot(name) && flags&core.FileTruncate == 0 {
		return nil, errors.Newf(errors.ErrorTypeFile, "file %s already exists", name)
	}
	if ok {
		if flags&core.FileExclusive != 0 || flags&core.FileTruncate == 0 {
			return nil, errors.Newf(errors.ErrorTypeFile, "file %s already exists", name)
		}
		if existing.opens > 0 {
			return nil, errors.Newf(errors.ErrorTypeFile, "file %s is open and cannot be truncated", name).
				WithDetail("opens", existing.opens)
		}
	}

	f := newFile(name)
	f.opens = 1
	s.files[name] = f
	o.c.logger.Debug("file created", zap.String("file", name), zap.String("id", f.ID.String()))
	return f, nil
}

func (o fileOps) Open(_ context.Context, name string, flags uint32, _ any, _ *core.Request) (any, error) {
	s := o.c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.lookupLocked(name)
	if err != nil {
		return nil, err
	}
	if f.opens == 0 {
		f.Intent = flags & core.FileReadWrite
	} else if flags&core.FileReadWrite != 0 {
		f.Intent |= core.FileReadWrite
	}
	f.opens++
	return f, nil
}

func (o fileOps) Get(_ context.Context, file any, args *core.FileGetArgs, _ *core.Request) error {
	f, err := asFile(file)
	if err != nil {
		return err
	}
	s := o.c.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch args.Op {
	case core.FileGetName:
		args.Name = f.Name
	case core.FileGetIntent:
		args.Intent = f.Intent
	case core.FileGetObjectCount:
		args.Count = len(f.nodes)
	case core.FileGetID:
		args.ID = f.ID.String()
	default:
		return errors.Newf(errors.ErrorTypeValidation, "unknown file get operation %d", args.Op)
	}
	return nil
}

func (o fileOps) Specific(_ context.Context, file any, args *core.FileSpecificArgs, _ *core.Request) error {
	s := o.c.store
	switch args.Op {
	case core.FileFlush:
		f, err := asFile(file)
		if err != nil {
			return err
		}
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.saveSnapshot(f)

	case core.FileIsEqual:
		f, err := asFile(file)
		if err != nil {
			return err
		}
		other, ok := args.Other.(*File)
		args.Result = ok && other == f
		return nil

	case core.FileIsAccessible:
		s.mu.RLock()
		defer s.mu.RUnlock()
		_, ok := s.files[args.Name]
		args.Result = ok || (s.cfg.LoadSnapshots && s.hasSnapshot(args.Name))
		return nil

	case core.FileDelete:
		s.mu.Lock()
		defer s.mu.Unlock()
		f, ok := s.files[args.Name]
		if !ok && !s.hasSnapshot(args.Name) {
			return errors.Newf(errors.ErrorTypeNotFound, "file %s does not exist", args.Name)
		}
		if ok && f.opens > 0 {
			return errors.Newf(errors.ErrorTypeFile, "file %s is open and cannot be deleted", args.Name)
		}
		delete(s.files, args.Name)
		return s.removeSnapshot(args.Name)

	default:
		return errors.Newf(errors.ErrorTypeValidation, "unknown file operation %d", args.Op)
	}
}

func (o fileOps) Close(_ context.Context, file any, _ *core.Request) error {
	f, err := asFile(file)
	if err != nil {
		return err
	}
	s := o.c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.opens == 0 {
		return errors.Newf(errors.ErrorTypeFile, "file %s is not open", f.Name)
	}
	f.opens--
	return nil
}
