package core

import (
	"context"
	"strconv"
	"strings"

	"github.com/ajitpratap0/hvol/pkg/ids"
)

// ProtocolVersion is the connector protocol revision this library speaks.
// Classes declaring any other revision are rejected at registration.
const ProtocolVersion uint32 = 3

// Value is the numeric identifier a connector declares for itself
type Value int

const (
	// ValueNative identifies the built-in base connector
	ValueNative Value = 0
	// ValuePassthru identifies the built-in pass-through connector
	ValuePassthru Value = 1
	// ValueMaxReserved is the highest value reserved for built-in connectors
	ValueMaxReserved Value = 255
)

// CapFlags advertises optional connector behavior
type CapFlags uint64

const (
	CapAsync CapFlags = 1 << iota
	CapThreadSafe
	CapStacking
	CapExternalLinks
	CapCompression
)

// Has reports whether all bits of f are set
func (c CapFlags) Has(f CapFlags) bool {
	return c&f == f
}

var capNames = []struct {
	flag CapFlags
	name string
}{
	{CapAsync, "async"},
	{CapThreadSafe, "thread-safe"},
	{CapStacking, "stacking"},
	{CapExternalLinks, "external-links"},
	{CapCompression, "compression"},
}

// String lists the set flags, comma separated
func (c CapFlags) String() string {
	var names []string
	for _, cn := range capNames {
		if c.Has(cn.flag) {
			names = append(names, cn.name)
		}
	}
	return strings.Join(names, ",")
}

// InfoClass describes how a connector's configuration blob is handled.
// Copy and Free come as a pair, as do ToString and FromString for callers
// that need a textual form.
type InfoClass struct {
	// Size is the declared size of the info blob; part of the class identity
	Size int
	// Copy returns an independent deep copy of info
	Copy func(info any) (any, error)
	// Compare orders two info blobs, returning <0, 0 or >0
	Compare func(a, b any) (int, error)
	// Free releases a blob produced by Copy or FromString
	Free func(info any) error
	// ToString serializes info
	ToString func(info any) (string, error)
	// FromString parses a serialized info blob
	FromString func(s string) (any, error)
}

// WrapClass holds the callbacks that make stacking transparent.
// GetWrapCtx and FreeWrapCtx come as a pair.
type WrapClass struct {
	// GetObject returns the terminal object beneath obj, recursing through
	// every stacked connector
	GetObject func(obj any) (any, error)
	// GetWrapCtx captures whatever the connector needs to wrap objects
	// created under obj
	GetWrapCtx func(obj any) (any, error)
	// WrapObject wraps a terminal object for this connector
	WrapObject func(obj any, kind ObjectKind, wrapCtx any) (any, error)
	// UnwrapObject removes exactly one level of wrapping
	UnwrapObject func(obj any) (any, error)
	// FreeWrapCtx releases a context returned by GetWrapCtx
	FreeWrapCtx func(wrapCtx any) error
}

// Class is the immutable descriptor of one connector implementation.
// A nil operation interface means the connector does not handle that kind.
type Class struct {
	ProtocolVersion uint32
	Value           Value
	Name            string
	Version         uint32
	CapFlags        CapFlags

	Initialize func(ctx context.Context, vipl any) error
	Terminate  func(ctx context.Context) error

	Info InfoClass
	Wrap WrapClass

	Attr       AttrOps
	Dataset    DatasetOps
	Datatype   DatatypeOps
	File       FileOps
	Group      GroupOps
	Link       LinkOps
	Map        MapOps
	Object     ObjectOps
	Introspect IntrospectOps
	Request    RequestOps
}

// CompareClasses orders two classes by (value, name, version, info size).
// The first differing field decides; 0 means the same connector.
func CompareClasses(a, b *Class) int {
	if a == b {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	if a.Value != b.Value {
		if a.Value < b.Value {
			return -1
		}
		return 1
	}
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	if a.Version != b.Version {
		if a.Version < b.Version {
			return -1
		}
		return 1
	}
	if a.Info.Size != b.Info.Size {
		if a.Info.Size < b.Info.Size {
			return -1
		}
		return 1
	}
	return 0
}

// Selector names a connector either by name or by value. Name wins when set.
type Selector struct {
	Name  string
	Value Value
}

// ByName selects a connector by name
func ByName(name string) Selector {
	return Selector{Name: name, Value: -1}
}

// ByValue selects a connector by numeric value
func ByValue(v Value) Selector {
	return Selector{Value: v}
}

func (s Selector) String() string {
	if s.Name != "" {
		return s.Name
	}
	return "value:" + strconv.Itoa(int(s.Value))
}

// Registry is the part of the connector registry a stacking connector needs to
// reach the connector beneath it.
type Registry interface {
	// Acquire finds or loads the selected connector and takes a reference on it
	Acquire(ctx context.Context, sel Selector) (ids.ID, *Class, error)
	// Release drops a reference taken by Acquire
	Release(ctx context.Context, id ids.ID) error
}
