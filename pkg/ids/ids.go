// Package ids provides the numeric handle table that hands out opaque integer
// handles for connectors and the objects routed through them.
//
// Handles encode their kind in the high byte so KindOf never needs a lookup.
// Entries carry their own reference count; when DecRef brings it to zero the
// entry is removed and the free function registered for its kind is invoked.
//
// The table is safe for concurrent use.
package ids

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// ID is an opaque handle
type ID int64

// Invalid is returned alongside errors
const Invalid ID = -1

const kindShift = 56

// Kind identifies what an ID refers to
type Kind int

const (
	KindBad Kind = iota
	KindConnector
	KindFile
	KindGroup
	KindDatatype
	KindDataset
	KindMap
	KindAttr
	kindCount
)

func (k Kind) String() string {
	switch k {
	case KindConnector:
		return "connector"
	case KindFile:
		return "file"
	case KindGroup:
		return "group"
	case KindDatatype:
		return "datatype"
	case KindDataset:
		return "dataset"
	case KindMap:
		return "map"
	case KindAttr:
		return "attr"
	default:
		return "bad"
	}
}

// FreeFunc releases the object behind an ID once its count reaches zero
type FreeFunc func(ctx context.Context, obj any) error

type entry struct {
	kind  Kind
	obj   any
	count atomic.Int64
}

// Table maps IDs to objects
type Table struct {
	entries *xsync.MapOf[ID, *entry]
	serial  atomic.Int64

	mu    sync.RWMutex
	frees [kindCount]FreeFunc
}

// NewTable creates an empty handle table
func NewTable() *Table {
	return &Table{
		entries: xsync.NewMapOf[ID, *entry](),
	}
}

// SetFreeFunc installs the function called when an ID of the given kind is released
func (t *Table) SetFreeFunc(kind Kind, fn FreeFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frees[kind] = fn
}

// KindOf extracts the kind encoded in an ID without touching the table
func KindOf(id ID) Kind {
	if id <= 0 {
		return KindBad
	}
	k := Kind(id >> kindShift)
	if k <= KindBad || k >= kindCount {
		return KindBad
	}
	return k
}

// Register stores obj under a new ID with a count of one
func (t *Table) Register(kind Kind, obj any) (ID, error) {
	if kind <= KindBad || kind >= kindCount {
		return Invalid, errors.Newf(errors.ErrorTypeAllocation, "cannot register handle of kind %d", kind)
	}
	if obj == nil {
		return Invalid, errors.New(errors.ErrorTypeAllocation, "cannot register a nil object")
	}

	id := ID(int64(kind)<<kindShift | t.serial.Add(1))
	e := &entry{kind: kind, obj: obj}
	e.count.Store(1)
	t.entries.Store(id, e)
	return id, nil
}

// ObjectOf returns the object behind id
func (t *Table) ObjectOf(id ID) (any, error) {
	e, ok := t.entries.Load(id)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "handle %d is not registered", id).
			WithDetail("kind", KindOf(id).String())
	}
	return e.obj, nil
}

// ObjectOfKind returns the object behind id after checking its kind
func (t *Table) ObjectOfKind(id ID, kind Kind) (any, error) {
	if k := KindOf(id); k != kind {
		return nil, errors.Newf(errors.ErrorTypeValidation, "handle %d is a %s, not a %s", id, k, kind)
	}
	return t.ObjectOf(id)
}

// RefCount returns the current count of id
func (t *Table) RefCount(id ID) (int64, error) {
	e, ok := t.entries.Load(id)
	if !ok {
		return 0, errors.Newf(errors.ErrorTypeNotFound, "handle %d is not registered", id)
	}
	return e.count.Load(), nil
}

// IncRef adds a reference to id and returns the new count
func (t *Table) IncRef(id ID) (int64, error) {
	e, ok := t.entries.Load(id)
	if !ok {
		return 0, errors.Newf(errors.ErrorTypeNotFound, "handle %d is not registered", id)
	}
	for {
		c := e.count.Load()
		if c <= 0 {
			return 0, errors.Newf(errors.ErrorTypeProtocol, "handle %d has a stale count", id)
		}
		if e.count.CompareAndSwap(c, c+1) {
			return c + 1, nil
		}
	}
}

// DecRef drops a reference to id. At zero the entry is removed and its free
// function runs; the entry is gone even if the free function fails.
func (t *Table) DecRef(ctx context.Context, id ID) (int64, error) {
	c, obj, err := t.Detach(id)
	if err != nil || c > 0 {
		return c, err
	}

	t.mu.RLock()
	free := t.frees[KindOf(id)]
	t.mu.RUnlock()
	if free == nil {
		return 0, nil
	}
	return 0, free(ctx, obj)
}

// Detach drops a reference to id. At zero the entry is removed and its object
// returned without running the free function, which is left to the caller.
func (t *Table) Detach(id ID) (int64, any, error) {
	e, ok := t.entries.Load(id)
	if !ok {
		return 0, nil, errors.Newf(errors.ErrorTypeNotFound, "handle %d is not registered", id)
	}

	c := e.count.Add(-1)
	if c > 0 {
		return c, nil, nil
	}
	if c < 0 {
		return 0, nil, errors.Newf(errors.ErrorTypeProtocol, "handle %d released more times than acquired", id)
	}
	t.entries.Delete(id)
	return 0, e.obj, nil
}

// Remove deletes id without calling its free function and returns the object
func (t *Table) Remove(id ID) (any, error) {
	e, ok := t.entries.LoadAndDelete(id)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "handle %d is not registered", id)
	}
	return e.obj, nil
}

// Iterate calls fn for every ID of kind in ascending (registration) order.
// Iteration stops when fn returns stop or an error; the error is returned.
func (t *Table) Iterate(kind Kind, fn func(id ID, obj any) (stop bool, err error)) error {
	var keys []ID
	t.entries.Range(func(id ID, e *entry) bool {
		if e.kind == kind {
			keys = append(keys, id)
		}
		return true
	})
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, id := range keys {
		e, ok := t.entries.Load(id)
		if !ok {
			continue
		}
		stop, err := fn(id, e.obj)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return nil
}

// Count returns how many IDs of kind are registered
func (t *Table) Count(kind Kind) int {
	n := 0
	t.entries.Range(func(_ ID, e *entry) bool {
		if e.kind == kind {
			n++
		}
		return true
	})
	return n
}

func (id ID) String() string {
	if id == Invalid {
		return "invalid"
	}
	return fmt.Sprintf("%s:%d", KindOf(id), int64(id)&(1<<kindShift-1))
}
