// Package plist holds the property lists callers hand to file create and open.
// The only property the connector layer reads is the connector id+info pair.
package plist

import (
	"sync"

	"github.com/ajitpratap0/hvol/pkg/ids"
)

// ConnectorProp selects a connector and the configuration blob to open it with
type ConnectorProp struct {
	ID   ids.ID
	Info any
}

// FileAccess is a file access property list
type FileAccess struct {
	mu        sync.RWMutex
	connector ConnectorProp
	set       bool
	props     map[string]any
}

// NewFileAccess creates an empty file access property list
func NewFileAccess() *FileAccess {
	return &FileAccess{props: make(map[string]any)}
}

// PeekConnector returns the connector property without transferring ownership
func (p *FileAccess) PeekConnector() (ConnectorProp, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connector, p.set
}

// SetConnector replaces the connector property and returns the previous one.
// Reference counting on the id and info is the caller's job.
func (p *FileAccess) SetConnector(prop ConnectorProp) (ConnectorProp, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev, had := p.connector, p.set
	p.connector = prop
	p.set = true
	return prev, had
}

// ClearConnector removes the connector property and returns it
func (p *FileAccess) ClearConnector() (ConnectorProp, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev, had := p.connector, p.set
	p.connector = ConnectorProp{}
	p.set = false
	return prev, had
}

// Set stores an arbitrary named property
func (p *FileAccess) Set(name string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.props[name] = value
}

// Get returns a named property
func (p *FileAccess) Get(name string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.props[name]
	return v, ok
}
