// Package plugin locates connector classes that are not registered yet.
//
// Connector packages add themselves to the global catalog from init(); a
// registry asks the catalog for a class by name or value the first time the
// connector is selected:
//
//	import _ "github.com/ajitpratap0/hvol/pkg/connector/passthru"
//
//	reg := registry.New(table, plugin.Default())
//	id, err := reg.RegisterByName(ctx, "passthru", nil)
package plugin

import (
	"context"
	"sort"
	"sync"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/errors"
)

// Factory builds a fresh connector class. reg lets stacking connectors
// reach the connector beneath them.
type Factory func(reg core.Registry) (*core.Class, error)

// ConnectorInfo provides information about a loadable connector
type ConnectorInfo struct {
	Name         string     `json:"name"`
	Value        core.Value `json:"value"`
	Description  string     `json:"description"`
	Version      uint32     `json:"version"`
	Capabilities []string   `json:"capabilities"`
	Factory      Factory    `json:"-"`
}

// Catalog manages loadable connectors
type Catalog struct {
	byName  map[string]*ConnectorInfo
	byValue map[core.Value]*ConnectorInfo
	mu      sync.RWMutex
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{
		byName:  make(map[string]*ConnectorInfo),
		byValue: make(map[core.Value]*ConnectorInfo),
	}
}

// Register adds a connector to the catalog
func (c *Catalog) Register(info *ConnectorInfo) error {
	if info == nil || info.Name == "" || info.Factory == nil {
		return errors.New(errors.ErrorTypeValidation, "catalog entry needs a name and a factory")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byName[info.Name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "connector %s already in catalog", info.Name)
	}
	if other, exists := c.byValue[info.Value]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "connector value %d already used by %s", info.Value, other.Name)
	}

	c.byName[info.Name] = info
	c.byValue[info.Value] = info
	return nil
}

// Get retrieves connector information
func (c *Catalog) Get(sel core.Selector) (*ConnectorInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var (
		info   *ConnectorInfo
		exists bool
	)
	if sel.Name != "" {
		info, exists = c.byName[sel.Name]
	} else {
		info, exists = c.byValue[sel.Value]
	}
	if !exists {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "connector %s not found in catalog", sel)
	}
	return info, nil
}

// List returns all connectors in the catalog ordered by value
func (c *Catalog) List() []*ConnectorInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	infos := make([]*ConnectorInfo, 0, len(c.byName))
	for _, info := range c.byName {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Value < infos[j].Value })
	return infos
}

// Load builds the class for sel. It satisfies registry.Loader.
func (c *Catalog) Load(_ context.Context, sel core.Selector, reg core.Registry) (*core.Class, error) {
	info, err := c.Get(sel)
	if err != nil {
		return nil, err
	}
	cls, err := info.Factory(reg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeRegistration, "connector factory failed").
			WithDetail("connector", info.Name)
	}
	if cls == nil {
		return nil, errors.Newf(errors.ErrorTypeRegistration, "connector factory for %s returned no class", info.Name)
	}
	return cls, nil
}

// Global catalog instance
var globalCatalog = NewCatalog()

// Default returns the global catalog
func Default() *Catalog {
	return globalCatalog
}

// Register adds a connector to the global catalog
func Register(info *ConnectorInfo) error {
	return globalCatalog.Register(info)
}

// MustRegister adds a connector to the global catalog and panics on failure.
// It is meant for init functions.
func MustRegister(info *ConnectorInfo) {
	if err := globalCatalog.Register(info); err != nil {
		panic(err)
	}
}

// List lists all connectors in the global catalog
func List() []*ConnectorInfo {
	return globalCatalog.List()
}
