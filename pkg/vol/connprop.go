package vol

import (
	"context"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/connector/registry"
	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/ajitpratap0/hvol/pkg/ids"
	"github.com/ajitpratap0/hvol/pkg/plist"
)

// RegisterConnector registers cls, or takes another reference on the
// connector already registered under its name or value
func (l *Library) RegisterConnector(ctx context.Context, cls *core.Class, vipl any) (ids.ID, error) {
	return l.reg.Register(ctx, cls, vipl)
}

// RegisterConnectorByName finds or loads the named connector and takes a reference on it
func (l *Library) RegisterConnectorByName(ctx context.Context, name string, vipl any) (ids.ID, error) {
	if vipl == nil {
		vipl = l.cfg.InitParams(name)
	}
	return l.reg.RegisterByName(ctx, name, vipl)
}

// RegisterConnectorByValue finds or loads the connector with value v and takes a reference on it
func (l *Library) RegisterConnectorByValue(ctx context.Context, v core.Value, vipl any) (ids.ID, error) {
	return l.reg.RegisterByValue(ctx, v, vipl)
}

// FindConnector returns the handle of the named connector without taking a
// reference. A miss is a not_found error.
func (l *Library) FindConnector(name string) (ids.ID, error) {
	return l.reg.FindByName(name)
}

// FindConnectorByValue returns the handle of the connector with value v
func (l *Library) FindConnectorByValue(v core.Value) (ids.ID, error) {
	return l.reg.FindByValue(v)
}

// UnregisterConnector drops one reference to a connector
func (l *Library) UnregisterConnector(ctx context.Context, id ids.ID) error {
	return l.reg.Unregister(ctx, id)
}

// Connectors lists the registered connectors
func (l *Library) Connectors() []registry.ConnectorInfo {
	return l.reg.List()
}

// ConnectorInfoFromString decodes a serialized info blob for connector id
func (l *Library) ConnectorInfoFromString(id ids.ID, s string) (any, error) {
	cls, err := l.reg.Class(id)
	if err != nil {
		return nil, err
	}
	if cls.Info.FromString == nil {
		if s == "" {
			return nil, nil
		}
		return nil, errors.Newf(errors.ErrorTypeConfig, "connector %s cannot parse info strings", cls.Name)
	}
	info, err := cls.Info.FromString(s)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid connector info").WithDetail("connector", cls.Name)
	}
	return info, nil
}

// ConnectorInfoToString serializes info for connector id
func (l *Library) ConnectorInfoToString(id ids.ID, info any) (string, error) {
	cls, err := l.reg.Class(id)
	if err != nil {
		return "", err
	}
	if cls.Info.ToString == nil {
		return "", nil
	}
	s, err := cls.Info.ToString(info)
	if err != nil {
		return "", errors.Dispatch(err, cls.Name, "info.to_string")
	}
	return s, nil
}

// SetFileAccessConnector stores connector id and a copy of info on fapl. The
// list holds a reference on the connector until it is replaced or released
// with ReleaseFileAccess.
func (l *Library) SetFileAccessConnector(ctx context.Context, fapl *plist.FileAccess, id ids.ID, info any) error {
	if fapl == nil {
		return errors.New(errors.ErrorTypeValidation, "file access list is nil")
	}
	cls, err := l.reg.Class(id)
	if err != nil {
		return err
	}
	if err := checkInfo(cls, info); err != nil {
		return err
	}
	if _, err := l.reg.IncRef(id); err != nil {
		return err
	}
	cp := info
	if info != nil {
		if cp, err = cls.Info.Copy(info); err != nil {
			_, derr := l.reg.DecRef(ctx, id)
			return errors.Cleanup(errors.Dispatch(err, cls.Name, "info.copy"), derr)
		}
	}

	prev, had := fapl.SetConnector(plist.ConnectorProp{ID: id, Info: cp})
	if !had {
		return nil
	}
	return l.releaseProp(ctx, prev)
}

// ReleaseFileAccess drops the connector reference and info a list holds
func (l *Library) ReleaseFileAccess(ctx context.Context, fapl *plist.FileAccess) error {
	if fapl == nil {
		return nil
	}
	prev, had := fapl.ClearConnector()
	if !had {
		return nil
	}
	return l.releaseProp(ctx, prev)
}

func (l *Library) releaseProp(ctx context.Context, prop plist.ConnectorProp) error {
	if prop.ID == ids.Invalid || prop.ID == 0 {
		return nil
	}
	cls, err := l.reg.Class(prop.ID)
	if err != nil {
		return err
	}
	if prop.Info != nil && cls.Info.Free != nil {
		if ferr := cls.Info.Free(prop.Info); ferr != nil {
			err = errors.Dispatch(ferr, cls.Name, "info.free")
		}
	}
	if _, derr := l.reg.DecRef(ctx, prop.ID); derr != nil {
		err = errors.Cleanup(err, derr)
	}
	return err
}

// connectorFor returns the connector fapl selects, falling back to the
// library default. Ownership stays with fapl or the library.
func (l *Library) connectorFor(fapl *plist.FileAccess) (plist.ConnectorProp, *core.Class, error) {
	prop, ok := plist.ConnectorProp{}, false
	if fapl != nil {
		prop, ok = fapl.PeekConnector()
	}
	if !ok {
		prop = l.DefaultConnector()
	}
	if prop.ID == ids.Invalid {
		return prop, nil, errors.New(errors.ErrorTypeProtocol, "the library has been closed")
	}
	cls, err := l.reg.Class(prop.ID)
	if err != nil {
		return prop, nil, err
	}
	return prop, cls, nil
}
