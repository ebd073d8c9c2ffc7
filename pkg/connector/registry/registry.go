package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/ajitpratap0/hvol/pkg/ids"
	"github.com/ajitpratap0/hvol/pkg/logger"
	"github.com/ajitpratap0/hvol/pkg/metrics"
	"go.uber.org/zap"
)

// Loader locates a connector class that is not registered yet.
// Implementations must return an error of type not_found when nothing matches.
type Loader interface {
	Load(ctx context.Context, sel core.Selector, reg core.Registry) (*core.Class, error)
}

// Handle is the registered, reference-counted form of one connector class.
// Its count lives in the handle table.
type Handle struct {
	id    ids.ID
	class *core.Class
}

// ID returns the handle's numeric id
func (h *Handle) ID() ids.ID {
	return h.id
}

// Class returns the connector class the handle owns
func (h *Handle) Class() *core.Class {
	return h.class
}

// Name returns the connector's name
func (h *Handle) Name() string {
	return h.class.Name
}

// ConnectorInfo describes one registered connector
type ConnectorInfo struct {
	ID       ids.ID        `json:"id"`
	Name     string        `json:"name"`
	Value    core.Value    `json:"value"`
	Version  uint32        `json:"version"`
	Caps     core.CapFlags `json:"caps"`
	RefCount int64         `json:"ref_count"`
	Base     bool          `json:"base"`
}

// Registry manages connector registration and lookup
type Registry struct {
	table  *ids.Table
	loader Loader

	// mu serializes register-or-increment against unregister
	mu     sync.Mutex
	base   ids.ID
	logger *zap.Logger
}

var _ core.Registry = (*Registry)(nil)

// New creates a registry storing its handles in table. loader may be nil, in
// which case connectors that are not registered cannot be found by name or value.
func New(table *ids.Table, loader Loader) *Registry {
	r := &Registry{
		table:  table,
		loader: loader,
		base:   ids.Invalid,
		logger: logger.Get().With(zap.String("component", "connector_registry")),
	}
	table.SetFreeFunc(ids.KindConnector, r.free)
	return r
}

// Validate checks a class descriptor before anything is allocated for it
func Validate(cls *core.Class) error {
	if cls == nil {
		return errors.New(errors.ErrorTypeRegistration, "connector class is nil")
	}
	if cls.ProtocolVersion != core.ProtocolVersion {
		return errors.Newf(errors.ErrorTypeRegistration, "connector class declares protocol version %d, expected %d",
			cls.ProtocolVersion, core.ProtocolVersion).
			WithDetail("name", cls.Name)
	}
	if cls.Name == "" {
		return errors.New(errors.ErrorTypeRegistration, "connector class has an empty name").
			WithDetail("value", int(cls.Value))
	}
	if cls.Value < 0 {
		return errors.Newf(errors.ErrorTypeRegistration, "connector %s has negative value %d", cls.Name, cls.Value)
	}
	if cls.Info.Copy != nil && cls.Info.Free == nil {
		return errors.Newf(errors.ErrorTypeRegistration, "connector %s provides info copy without info free", cls.Name)
	}
	if cls.Info.Size > 0 && cls.Info.Copy == nil {
		return errors.Newf(errors.ErrorTypeRegistration, "connector %s declares %d bytes of info but no info copy",
			cls.Name, cls.Info.Size)
	}
	if cls.Wrap.GetWrapCtx != nil && cls.Wrap.FreeWrapCtx == nil {
		return errors.Newf(errors.ErrorTypeRegistration, "connector %s provides get-wrap-context without free-wrap-context", cls.Name)
	}
	return nil
}

// Register registers cls, or takes another reference on an existing handle
// whose name or value matches. vipl is handed to the class's Initialize.
func (r *Registry) Register(ctx context.Context, cls *core.Class, vipl any) (ids.ID, error) {
	if err := Validate(cls); err != nil {
		return ids.Invalid, err
	}

	r.mu.Lock()
	if id, ok, err := r.existingLocked(cls); err != nil || ok {
		r.mu.Unlock()
		return id, err
	}
	r.mu.Unlock()

	// Initialize may reach back into the registry, so it runs unlocked
	if cls.Initialize != nil {
		if err := cls.Initialize(ctx, vipl); err != nil {
			return ids.Invalid, errors.Dispatch(err, cls.Name, "initialize")
		}
	}

	r.mu.Lock()
	id, existing, err := r.existingLocked(cls)
	if err == nil && !existing {
		h := &Handle{class: cls}
		if id, err = r.table.Register(ids.KindConnector, h); err != nil {
			err = errors.Wrap(err, errors.ErrorTypeAllocation, fmt.Sprintf("failed to allocate handle for connector %s", cls.Name))
		} else {
			h.id = id
		}
	}
	r.mu.Unlock()

	// Terminate runs unlocked for the same reason as Initialize
	if existing {
		// Lost a race with a concurrent registration of the same connector
		if cls.Terminate != nil {
			if terr := cls.Terminate(ctx); terr != nil {
				r.logger.Warn("failed to terminate duplicate connector class",
					zap.String("name", cls.Name), zap.Error(terr))
			}
		}
		return id, nil
	}
	if err != nil {
		if cls.Terminate != nil {
			err = errors.Cleanup(err, cls.Terminate(ctx))
		}
		return ids.Invalid, err
	}

	metrics.RegisteredConnectors.Inc()
	r.logger.Info("connector registered",
		zap.String("name", cls.Name),
		zap.Int("value", int(cls.Value)),
		zap.Stringer("id", id))
	return id, nil
}

// existingLocked increments and returns a registration matching cls by name or value
func (r *Registry) existingLocked(cls *core.Class) (ids.ID, bool, error) {
	for _, sel := range []core.Selector{core.ByName(cls.Name), core.ByValue(cls.Value)} {
		id, err := r.find(sel)
		if errors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return ids.Invalid, false, err
		}
		if _, err := r.table.IncRef(id); err != nil {
			return ids.Invalid, false, err
		}
		r.logger.Debug("connector already registered, reference taken",
			zap.String("name", cls.Name), zap.Stringer("id", id))
		return id, true, nil
	}
	return ids.Invalid, false, nil
}

// RegisterByName finds the named connector, or loads it, and takes a reference on it
func (r *Registry) RegisterByName(ctx context.Context, name string, vipl any) (ids.ID, error) {
	if name == "" {
		return ids.Invalid, errors.New(errors.ErrorTypeValidation, "connector name is empty")
	}
	return r.registerBySelector(ctx, core.ByName(name), vipl)
}

// RegisterByValue finds the connector with value v, or loads it, and takes a reference on it
func (r *Registry) RegisterByValue(ctx context.Context, v core.Value, vipl any) (ids.ID, error) {
	if v < 0 {
		return ids.Invalid, errors.Newf(errors.ErrorTypeValidation, "connector value %d is negative", v)
	}
	return r.registerBySelector(ctx, core.ByValue(v), vipl)
}

func (r *Registry) registerBySelector(ctx context.Context, sel core.Selector, vipl any) (ids.ID, error) {
	r.mu.Lock()
	id, err := r.find(sel)
	if err == nil {
		_, err = r.table.IncRef(id)
		r.mu.Unlock()
		if err != nil {
			return ids.Invalid, err
		}
		return id, nil
	}
	r.mu.Unlock()

	if !errors.IsNotFound(err) {
		return ids.Invalid, err
	}
	if r.loader == nil {
		return ids.Invalid, err
	}

	cls, lerr := r.loader.Load(ctx, sel, r)
	if lerr != nil {
		return ids.Invalid, lerr
	}
	return r.Register(ctx, cls, vipl)
}

// Acquire implements core.Registry
func (r *Registry) Acquire(ctx context.Context, sel core.Selector) (ids.ID, *core.Class, error) {
	id, err := r.registerBySelector(ctx, sel, nil)
	if err != nil {
		return ids.Invalid, nil, err
	}
	cls, err := r.Class(id)
	if err != nil {
		return ids.Invalid, nil, errors.Cleanup(err, r.Unregister(ctx, id))
	}
	return id, cls, nil
}

// Release implements core.Registry
func (r *Registry) Release(ctx context.Context, id ids.ID) error {
	return r.Unregister(ctx, id)
}

// find walks registered handles in registration order and returns the first
// whose name or value matches sel. A miss is a not_found error; any other
// error means the walk itself failed.
func (r *Registry) find(sel core.Selector) (ids.ID, error) {
	found := ids.Invalid
	err := r.table.Iterate(ids.KindConnector, func(id ids.ID, obj any) (bool, error) {
		h, ok := obj.(*Handle)
		if !ok {
			return true, errors.Newf(errors.ErrorTypeInternal, "handle %s does not hold a connector", id)
		}
		if sel.Name != "" {
			if h.class.Name == sel.Name {
				found = id
				return true, nil
			}
			return false, nil
		}
		if h.class.Value == sel.Value {
			found = id
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return ids.Invalid, errors.Wrap(err, errors.ErrorTypeLookup, "failed to iterate registered connectors").
			WithDetail("selector", sel.String())
	}
	if found == ids.Invalid {
		return ids.Invalid, errors.Newf(errors.ErrorTypeNotFound, "connector %s is not registered", sel)
	}
	return found, nil
}

// FindByName returns the id of the named connector
func (r *Registry) FindByName(name string) (ids.ID, error) {
	return r.find(core.ByName(name))
}

// FindByValue returns the id of the connector with value v
func (r *Registry) FindByValue(v core.Value) (ids.ID, error) {
	return r.find(core.ByValue(v))
}

// IsRegisteredByName reports whether a connector with name is registered
func (r *Registry) IsRegisteredByName(name string) (bool, error) {
	return r.isRegistered(core.ByName(name))
}

// IsRegisteredByValue reports whether a connector with value v is registered
func (r *Registry) IsRegisteredByValue(v core.Value) (bool, error) {
	return r.isRegistered(core.ByValue(v))
}

func (r *Registry) isRegistered(sel core.Selector) (bool, error) {
	_, err := r.find(sel)
	if errors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Unregister drops one reference to id. The registry's own hold on the base
// connector cannot be dropped this way.
func (r *Registry) Unregister(ctx context.Context, id ids.ID) error {
	if ids.KindOf(id) != ids.KindConnector {
		return errors.Newf(errors.ErrorTypeValidation, "handle %s is not a connector", id)
	}

	r.mu.Lock()
	if id == r.base {
		n, err := r.table.RefCount(id)
		if err != nil {
			r.mu.Unlock()
			return err
		}
		if n <= 1 {
			r.mu.Unlock()
			return errors.New(errors.ErrorTypeProtocol, "the base connector cannot be unregistered").
				WithDetail("id", id.String())
		}
	}
	_, obj, err := r.table.Detach(id)
	r.mu.Unlock()

	if err != nil || obj == nil {
		return err
	}
	return r.free(ctx, obj)
}

// IncRef takes a reference on a connector for an external holder
func (r *Registry) IncRef(id ids.ID) (int64, error) {
	if ids.KindOf(id) != ids.KindConnector {
		return 0, errors.Newf(errors.ErrorTypeValidation, "handle %s is not a connector", id)
	}
	return r.table.IncRef(id)
}

// DecRef drops a reference taken with IncRef
func (r *Registry) DecRef(ctx context.Context, id ids.ID) (int64, error) {
	if ids.KindOf(id) != ids.KindConnector {
		return 0, errors.Newf(errors.ErrorTypeValidation, "handle %s is not a connector", id)
	}
	r.mu.Lock()
	n, obj, err := r.table.Detach(id)
	r.mu.Unlock()

	if err != nil || obj == nil {
		return n, err
	}
	return 0, r.free(ctx, obj)
}

// RefCount returns the current count of a connector handle
func (r *Registry) RefCount(id ids.ID) (int64, error) {
	return r.table.RefCount(id)
}

// Handle returns the handle registered under id
func (r *Registry) Handle(id ids.ID) (*Handle, error) {
	obj, err := r.table.ObjectOfKind(id, ids.KindConnector)
	if err != nil {
		return nil, err
	}
	h, ok := obj.(*Handle)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeInternal, "handle %s does not hold a connector", id)
	}
	return h, nil
}

// Class returns the class registered under id
func (r *Registry) Class(id ids.ID) (*core.Class, error) {
	h, err := r.Handle(id)
	if err != nil {
		return nil, err
	}
	return h.class, nil
}

// SetBase designates id as the base connector. The registry takes its own
// reference and drops the one it held on the previous base.
func (r *Registry) SetBase(ctx context.Context, id ids.ID) error {
	if _, err := r.Handle(id); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id == r.base {
		return nil
	}
	if _, err := r.table.IncRef(id); err != nil {
		return err
	}
	prev := r.base
	r.base = id
	if prev != ids.Invalid {
		if _, err := r.table.DecRef(ctx, prev); err != nil {
			r.logger.Warn("failed to release previous base connector", zap.Stringer("id", prev), zap.Error(err))
		}
	}
	return nil
}

// Base returns the base connector's id, or ids.Invalid before SetBase
func (r *Registry) Base() ids.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.base
}

// BaseClass returns the base connector's class
func (r *Registry) BaseClass() (*core.Class, error) {
	id := r.Base()
	if id == ids.Invalid {
		return nil, errors.New(errors.ErrorTypeProtocol, "no base connector has been set")
	}
	return r.Class(id)
}

// List returns every registered connector in registration order
func (r *Registry) List() []ConnectorInfo {
	base := r.Base()
	var out []ConnectorInfo
	_ = r.table.Iterate(ids.KindConnector, func(id ids.ID, obj any) (bool, error) {
		h, ok := obj.(*Handle)
		if !ok {
			return false, nil
		}
		n, _ := r.table.RefCount(id)
		out = append(out, ConnectorInfo{
			ID:       id,
			Name:     h.class.Name,
			Value:    h.class.Value,
			Version:  h.class.Version,
			Caps:     h.class.CapFlags,
			RefCount: n,
			Base:     id == base,
		})
		return false, nil
	})
	return out
}

// Close terminates every registered connector regardless of its count
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.base = ids.Invalid

	var handles []ids.ID
	_ = r.table.Iterate(ids.KindConnector, func(id ids.ID, _ any) (bool, error) {
		handles = append(handles, id)
		return false, nil
	})
	removed := make([]any, 0, len(handles))
	for _, id := range handles {
		if obj, err := r.table.Remove(id); err == nil {
			removed = append(removed, obj)
		}
	}
	r.mu.Unlock()

	// Terminate may release other connectors through the registry.
	var result error
	for _, obj := range removed {
		result = errors.Cleanup(result, r.free(ctx, obj))
	}
	if len(handles) > 0 {
		r.logger.Info("connector registry closed", zap.Int("connectors", len(handles)))
	}
	return result
}

func (r *Registry) free(ctx context.Context, obj any) error {
	h, ok := obj.(*Handle)
	if !ok {
		return errors.New(errors.ErrorTypeInternal, "connector free called on a foreign object")
	}
	metrics.RegisteredConnectors.Dec()
	r.logger.Info("connector unregistered", zap.String("name", h.class.Name), zap.Stringer("id", h.id))

	if h.class.Terminate == nil {
		return nil
	}
	return errors.Dispatch(h.class.Terminate(ctx), h.class.Name, "terminate")
}
