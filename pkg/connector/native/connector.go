// Package native implements the base connector: an in-memory store of
// hierarchical files that every other connector ultimately stacks on.
//
// Files live in a namespace owned by the class instance, so two libraries
// built in one process do not see each other's files unless they share a
// snapshot directory. With config.NativeConfig.SnapshotDir set, flushing a
// file writes a JSON snapshot that a later Open can load.
package native

import (
	"context"

	"github.com/ajitpratap0/hvol/pkg/config"
	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/connector/plugin"
	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/ajitpratap0/hvol/pkg/logger"
	"go.uber.org/zap"
)

const (
	// Name is the registered name of the native connector
	Name = "native"
	// Version is the native connector's class version
	Version uint32 = 1
)

func init() {
	plugin.MustRegister(&plugin.ConnectorInfo{
		Name:         Name,
		Value:        core.ValueNative,
		Description:  "In-memory hierarchical store with optional JSON snapshots",
		Version:      Version,
		Capabilities: []string{"thread-safe", "external-links"},
		Factory: func(core.Registry) (*core.Class, error) {
			return NewClass(), nil
		},
	})
}

type connector struct {
	class  *core.Class
	store  *store
	logger *zap.Logger
}

// NewClass returns a fresh native connector class with an empty namespace
func NewClass() *core.Class {
	log := logger.With(zap.String("component", "native_connector"))
	c := &connector{
		store:  newStore(log),
		logger: log,
	}
	c.class = &core.Class{
		ProtocolVersion: core.ProtocolVersion,
		Value:           core.ValueNative,
		Name:            Name,
		Version:         Version,
		CapFlags:        core.CapThreadSafe | core.CapExternalLinks,
		Initialize:      c.initialize,
		Terminate:       c.terminate,
		Info: core.InfoClass{
			FromString: parseInfo,
			ToString:   func(any) (string, error) { return "", nil },
		},
		File:       fileOps{c},
		Group:      groupOps{c},
		Dataset:    datasetOps{c},
		Datatype:   datatypeOps{c},
		Attr:       attrOps{c},
		Map:        mapOps{c},
		Link:       linkOps{c},
		Object:     objectOps{c},
		Introspect: introspectOps{c},
	}
	return c.class
}

// parseInfo accepts only the empty string; the native connector has no info
func parseInfo(s string) (any, error) {
	if s != "" {
		return nil, errors.Newf(errors.ErrorTypeConfig, "native connector takes no info, got %q", s)
	}
	return nil, nil
}

func (c *connector) initialize(_ context.Context, vipl any) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	switch p := vipl.(type) {
	case nil:
	case *config.NativeConfig:
		c.store.cfg = *p
	case config.NativeConfig:
		c.store.cfg = p
	default:
		return errors.Newf(errors.ErrorTypeConfig, "native connector cannot use init params of type %T", vipl)
	}
	c.logger.Debug("native connector initialized",
		zap.String("snapshot_dir", c.store.cfg.SnapshotDir),
		zap.Bool("load_snapshots", c.store.cfg.LoadSnapshots))
	return nil
}

func (c *connector) terminate(context.Context) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	if open := c.openFilesLocked(); open > 0 {
		c.logger.Warn("native connector terminated with open files", zap.Int("open_files", open))
	}
	c.store.files = make(map[string]*File)
	return nil
}

func (c *connector) openFilesLocked() int {
	n := 0
	for _, f := range c.store.files {
		if f.opens > 0 {
			n++
		}
	}
	return n
}

type introspectOps struct{ c *connector }

// GetConnectorClass returns the native class at every level; nothing stacks below it
func (o introspectOps) GetConnectorClass(_ context.Context, _ any, _ core.ConnLevel) (*core.Class, error) {
	return o.c.class, nil
}
