package vol

import (
	"context"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/ajitpratap0/hvol/pkg/ids"
	"github.com/ajitpratap0/hvol/pkg/plist"
	"go.uber.org/zap"
)

// FileCreate creates a file through the connector fapl selects, or the
// library default when fapl is nil or carries none
func (l *Library) FileCreate(ctx context.Context, name string, flags uint32, fapl *plist.FileAccess) (ids.ID, error) {
	return l.openFile(ctx, name, flags, fapl, true)
}

// FileOpen opens an existing file
func (l *Library) FileOpen(ctx context.Context, name string, flags uint32, fapl *plist.FileAccess) (ids.ID, error) {
	return l.openFile(ctx, name, flags, fapl, false)
}

func (l *Library) openFile(ctx context.Context, name string, flags uint32, fapl *plist.FileAccess, create bool) (ids.ID, error) {
	prop, cls, err := l.connectorFor(fapl)
	if err != nil {
		return ids.Invalid, err
	}
	if cls.File == nil {
		return ids.Invalid, unsupported(cls, "file")
	}

	op, fn := "file.open", cls.File.Open
	if create {
		op, fn = "file.create", cls.File.Create
	}
	var raw any
	err = trace(ctx, cls, op, func(ctx context.Context) error {
		var err error
		raw, err = fn(ctx, name, flags, prop.Info, nil)
		return err
	})
	if err != nil {
		return ids.Invalid, err
	}

	c, err := l.NewContainer(ctx, raw, prop.ID, prop.Info)
	if err != nil {
		cerr := trace(ctx, cls, "file.close", func(ctx context.Context) error {
			return cls.File.Close(ctx, raw, nil)
		})
		return ids.Invalid, errors.Cleanup(err, cerr)
	}

	id, err := l.CreateObject(ctx, core.KindFile, nil, c)
	if err != nil {
		cerr := trace(ctx, cls, "file.close", func(ctx context.Context) error {
			return cls.File.Close(ctx, raw, nil)
		})
		err = errors.Cleanup(err, cerr)
	}
	// the file handle holds the container from here on
	if _, derr := c.DecRef(ctx); derr != nil {
		err = errors.Cleanup(err, derr)
	}
	if err != nil {
		return ids.Invalid, err
	}
	c.logger.Debug("file opened", zap.String("file", name), zap.Bool("create", create), zap.Stringer("id", id))
	return id, nil
}

// FileGet runs a file query on the file that owns the object behind id
func (l *Library) FileGet(ctx context.Context, id ids.ID, args *core.FileGetArgs) error {
	o, err := l.Object(id)
	if err != nil {
		return err
	}
	return o.container.Get(ctx, args)
}

// FileSpecific runs a file operation on the file that owns the object behind id
func (l *Library) FileSpecific(ctx context.Context, id ids.ID, args *core.FileSpecificArgs, req *Request) error {
	o, err := l.Object(id)
	if err != nil {
		return err
	}
	return o.container.Specific(ctx, args, req)
}

// FileFlush flushes the file that owns the object behind id
func (l *Library) FileFlush(ctx context.Context, id ids.ID) error {
	return l.FileSpecific(ctx, id, &core.FileSpecificArgs{Op: core.FileFlush}, nil)
}

// FileName returns the name of the file that owns the object behind id
func (l *Library) FileName(ctx context.Context, id ids.ID) (string, error) {
	args := &core.FileGetArgs{Op: core.FileGetName}
	if err := l.FileGet(ctx, id, args); err != nil {
		return "", err
	}
	return args.Name, nil
}

// FileIsAccessible reports whether name can be opened through the connector fapl selects
func (l *Library) FileIsAccessible(ctx context.Context, name string, fapl *plist.FileAccess) (bool, error) {
	args := &core.FileSpecificArgs{Op: core.FileIsAccessible, Name: name}
	if err := l.fileByName(ctx, fapl, args); err != nil {
		return false, err
	}
	return args.Result, nil
}

// FileDelete removes name through the connector fapl selects
func (l *Library) FileDelete(ctx context.Context, name string, fapl *plist.FileAccess) error {
	return l.fileByName(ctx, fapl, &core.FileSpecificArgs{Op: core.FileDelete, Name: name})
}

func (l *Library) fileByName(ctx context.Context, fapl *plist.FileAccess, args *core.FileSpecificArgs) error {
	prop, cls, err := l.connectorFor(fapl)
	if err != nil {
		return err
	}
	if cls.File == nil {
		return unsupported(cls, "file")
	}
	args.Info = prop.Info
	return trace(ctx, cls, "file.specific", func(ctx context.Context) error {
		return cls.File.Specific(ctx, nil, args, nil)
	})
}

// FileClose closes a file handle
func (l *Library) FileClose(ctx context.Context, id ids.ID) error {
	if _, err := l.objectOfKind(id, core.KindFile); err != nil {
		return err
	}
	return l.CloseObject(ctx, id)
}

func (l *Library) fileGet(ctx context.Context, o *Object, args *core.FileGetArgs) error {
	cls := o.container.cls
	if cls.File == nil {
		return unsupported(cls, "file")
	}
	return l.call(ctx, o.container, "file.get", func(ctx context.Context) error {
		return cls.File.Get(ctx, o.Raw(), args, nil)
	})
}

func (l *Library) fileSpecific(ctx context.Context, o *Object, args *core.FileSpecificArgs, req *Request) error {
	cls := o.container.cls
	if cls.File == nil {
		return unsupported(cls, "file")
	}
	out := req.out()
	err := l.call(ctx, o.container, "file.specific", func(ctx context.Context) error {
		return cls.File.Specific(ctx, o.Raw(), args, out)
	})
	if err != nil {
		return err
	}
	return req.bind(o.container, out)
}
