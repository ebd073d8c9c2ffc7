// Package vol is the object layer that sits between callers and connectors.
//
// A Library owns the connector registry and the handle table. Opening a file
// through a connector yields a Container, a counted binding between that
// connector and one storage instance. Every entity opened below it is an
// Object registered under an ids.ID and holding one count on its Container.
//
// Routed operations push the target's Container as the primary context for
// the duration of the callback. Contexts live in a Session carried by the
// context.Context, so nested calls on the same Container share one frame:
//
//	lib, err := vol.New(ctx, nil)
//	file, err := lib.FileCreate(ctx, "example", core.FileReadWrite, nil)
//	grp, err := lib.GroupCreate(ctx, file, "g")
//	defer lib.CloseObject(ctx, grp)
package vol

import (
	"context"
	"sync"

	"github.com/ajitpratap0/hvol/pkg/config"
	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/connector/native"
	"github.com/ajitpratap0/hvol/pkg/connector/plugin"
	"github.com/ajitpratap0/hvol/pkg/connector/registry"
	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/ajitpratap0/hvol/pkg/ids"
	"github.com/ajitpratap0/hvol/pkg/logger"
	"github.com/ajitpratap0/hvol/pkg/plist"
	"go.uber.org/zap"

	// built-in connectors register themselves in the plugin catalog
	_ "github.com/ajitpratap0/hvol/pkg/connector/passthru"
)

// Library is one instance of the object layer
type Library struct {
	table   *ids.Table
	reg     *registry.Registry
	catalog *plugin.Catalog
	cfg     *config.Config
	logger  *zap.Logger

	mu          sync.Mutex
	defaultProp plist.ConnectorProp
	closed      bool
}

// New builds a library from cfg, or from config.NewConfig when cfg is nil.
// The native connector is registered and made the base connector, then the
// default connector named by cfg.Connector is resolved.
func New(ctx context.Context, cfg *config.Config) (*Library, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	table := ids.NewTable()
	l := &Library{
		table:   table,
		catalog: plugin.Default(),
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "container")),
	}
	l.reg = registry.New(table, l.catalog)
	for _, kind := range objectKinds {
		table.SetFreeFunc(idKind(kind), l.freeObject)
	}

	nativeID, err := l.reg.RegisterByValue(ctx, core.ValueNative, cfg.InitParams(native.Name))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to register the native connector")
	}
	if err := l.reg.SetBase(ctx, nativeID); err != nil {
		return nil, errors.Cleanup(err, l.reg.Close(ctx))
	}
	// the registry holds the base connector itself from here on
	if _, err := l.reg.DecRef(ctx, nativeID); err != nil {
		return nil, errors.Cleanup(err, l.reg.Close(ctx))
	}

	prop, err := l.resolveDefault(ctx, cfg.Connector)
	if err != nil {
		return nil, errors.Cleanup(err, l.reg.Close(ctx))
	}
	l.defaultProp = prop

	l.logger.Info("library initialized",
		zap.String("default_connector", cfg.Connector.String()),
		zap.Stringer("base", nativeID))
	return l, nil
}

// resolveDefault registers the configured default connector and decodes its info
func (l *Library) resolveDefault(ctx context.Context, cc config.ConnectorConfig) (plist.ConnectorProp, error) {
	sel := cc.Selector()
	vipl := l.cfg.InitParams(sel.Name)

	var (
		id  ids.ID
		err error
	)
	if sel.Name != "" {
		id, err = l.reg.RegisterByName(ctx, sel.Name, vipl)
	} else {
		id, err = l.reg.RegisterByValue(ctx, sel.Value, vipl)
	}
	if err != nil {
		return plist.ConnectorProp{}, errors.Wrap(err, errors.ErrorTypeConfig, "cannot load the default connector").
			WithDetail("connector", cc.String())
	}

	cls, err := l.reg.Class(id)
	if err != nil {
		return plist.ConnectorProp{}, errors.Cleanup(err, l.reg.Unregister(ctx, id))
	}

	var info any
	if cc.Info != "" {
		if cls.Info.FromString == nil {
			err := errors.Newf(errors.ErrorTypeConfig, "connector %s cannot parse info strings", cls.Name)
			return plist.ConnectorProp{}, errors.Cleanup(err, l.reg.Unregister(ctx, id))
		}
		if info, err = cls.Info.FromString(cc.Info); err != nil {
			err = errors.Wrap(err, errors.ErrorTypeConfig, "invalid default connector info").
				WithDetail("connector", cls.Name)
			return plist.ConnectorProp{}, errors.Cleanup(err, l.reg.Unregister(ctx, id))
		}
	}
	return plist.ConnectorProp{ID: id, Info: info}, nil
}

// DefaultConnector returns the connector used for files opened without one
func (l *Library) DefaultConnector() plist.ConnectorProp {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.defaultProp
}

// Registry returns the library's connector registry
func (l *Library) Registry() *registry.Registry {
	return l.reg
}

// Config returns the configuration the library was built from
func (l *Library) Config() *config.Config {
	return l.cfg
}

// OpenObjects returns the number of live object handles of kind
func (l *Library) OpenObjects(kind core.ObjectKind) int {
	return l.table.Count(idKind(kind))
}

// Close releases the default connector, closes every object still open and
// terminates all connectors. It is safe to call more than once.
func (l *Library) Close(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	prop := l.defaultProp
	l.defaultProp = plist.ConnectorProp{ID: ids.Invalid}
	l.mu.Unlock()

	var result error
	// children before files so files close last
	for i := len(objectKinds) - 1; i >= 0; i-- {
		result = errors.Cleanup(result, l.closeAll(ctx, objectKinds[i]))
	}
	result = errors.Cleanup(result, l.releaseProp(ctx, prop))
	result = errors.Cleanup(result, l.reg.Close(ctx))
	l.logger.Info("library closed")
	return result
}

func (l *Library) closeAll(ctx context.Context, kind core.ObjectKind) error {
	var open []ids.ID
	_ = l.table.Iterate(idKind(kind), func(id ids.ID, _ any) (bool, error) {
		open = append(open, id)
		return false, nil
	})
	if len(open) == 0 {
		return nil
	}
	l.logger.Warn("closing objects left open", zap.Stringer("kind", kind), zap.Int("count", len(open)))

	var result error
	for _, id := range open {
		obj, err := l.table.Remove(id)
		if err != nil {
			continue
		}
		result = errors.Cleanup(result, l.freeObject(ctx, obj))
	}
	return result
}

var (
	defaultMu  sync.Mutex
	defaultLib *Library
)

// Init builds the process-wide library from cfg. A second call is a no-op
// until Term runs.
func Init(ctx context.Context, cfg *config.Config) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultLib != nil {
		return nil
	}
	lib, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defaultLib = lib
	return nil
}

// Term closes the process-wide library. It is a no-op when Init has not run.
func Term(ctx context.Context) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultLib == nil {
		return nil
	}
	err := defaultLib.Close(ctx)
	defaultLib = nil
	return err
}

// Default returns the process-wide library, or an error before Init
func Default() (*Library, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultLib == nil {
		return nil, errors.New(errors.ErrorTypeProtocol, "the library has not been initialized")
	}
	return defaultLib, nil
}
