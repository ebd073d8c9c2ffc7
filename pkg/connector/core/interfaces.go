package core

import (
	"context"
	"time"
)

// ObjectKind identifies the logical entity an object handle represents
type ObjectKind int

const (
	KindFile ObjectKind = iota + 1
	KindGroup
	KindDatatype
	KindDataset
	KindMap
	KindAttr
)

func (k ObjectKind) String() string {
	switch k {
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
		return "unknown"
	}
}

// Valid reports whether k is one of the known kinds
func (k ObjectKind) Valid() bool {
	return k >= KindFile && k <= KindAttr
}

// ConnLevel selects how far introspection looks down a connector stack
type ConnLevel int

const (
	// LevelCurrent is the connector the object was opened through
	LevelCurrent ConnLevel = iota
	// LevelTerminal is the innermost, non-stacking connector
	LevelTerminal
)

// LocType says how a LocParams addresses an object
type LocType int

const (
	// LocBySelf addresses the object itself
	LocBySelf LocType = iota
	// LocByName addresses a path relative to the object
	LocByName
)

// LocParams locates an object relative to the object an operation is invoked on
type LocParams struct {
	ObjKind ObjectKind
	Type    LocType
	Name    string
}

// Self addresses the object itself
func Self(kind ObjectKind) LocParams {
	return LocParams{ObjKind: kind, Type: LocBySelf}
}

// ByPath addresses a path relative to an object
func ByPath(kind ObjectKind, name string) LocParams {
	return LocParams{ObjKind: kind, Type: LocByName, Name: name}
}

// Request is the optional out-parameter through which a connector reports an
// in-flight asynchronous operation. A nil *Request means the caller wants the
// operation to complete before returning.
type Request struct {
	token any
}

// SetToken records an asynchronous completion token
func (r *Request) SetToken(token any) {
	if r != nil {
		r.token = token
	}
}

// Token returns the recorded token, if any
func (r *Request) Token() any {
	if r == nil {
		return nil
	}
	return r.token
}

// Pending reports whether a connector recorded a token
func (r *Request) Pending() bool {
	return r != nil && r.token != nil
}

// RequestStatus is the state of an asynchronous operation
type RequestStatus int

const (
	RequestInProgress RequestStatus = iota
	RequestSucceeded
	RequestFailed
	RequestCanceled
)

// File flags
const (
	FileReadOnly  uint32 = 0
	FileReadWrite uint32 = 1 << 0
	FileTruncate  uint32 = 1 << 1
	FileExclusive uint32 = 1 << 2
)

// FileOps is the file (storage instance) callback table
type FileOps interface {
	Create(ctx context.Context, name string, flags uint32, info any, req *Request) (any, error)
	Open(ctx context.Context, name string, flags uint32, info any, req *Request) (any, error)
	Get(ctx context.Context, file any, args *FileGetArgs, req *Request) error
	Specific(ctx context.Context, file any, args *FileSpecificArgs, req *Request) error
	Close(ctx context.Context, file any, req *Request) error
}

// GroupOps is the group callback table
type GroupOps interface {
	Create(ctx context.Context, obj any, loc LocParams, name string, req *Request) (any, error)
	Open(ctx context.Context, obj any, loc LocParams, name string, req *Request) (any, error)
	Get(ctx context.Context, grp any, args *GroupGetArgs, req *Request) error
	Specific(ctx context.Context, grp any, args *GroupSpecificArgs, req *Request) error
	Close(ctx context.Context, grp any, req *Request) error
}

// DatasetOps is the dataset callback table
type DatasetOps interface {
	Create(ctx context.Context, obj any, loc LocParams, name string, dtype string, req *Request) (any, error)
	Open(ctx context.Context, obj any, loc LocParams, name string, req *Request) (any, error)
	Read(ctx context.Context, dset any, req *Request) ([]byte, error)
	Write(ctx context.Context, dset any, data []byte, req *Request) error
	Get(ctx context.Context, dset any, args *DatasetGetArgs, req *Request) error
	Specific(ctx context.Context, dset any, args *DatasetSpecificArgs, req *Request) error
	Close(ctx context.Context, dset any, req *Request) error
}

// DatatypeOps is the named (committed) datatype callback table
type DatatypeOps interface {
	Commit(ctx context.Context, obj any, loc LocParams, name string, desc string, req *Request) (any, error)
	Open(ctx context.Context, obj any, loc LocParams, name string, req *Request) (any, error)
	Get(ctx context.Context, dtype any, args *DatatypeGetArgs, req *Request) error
	Close(ctx context.Context, dtype any, req *Request) error
}

// AttrOps is the attribute callback table
type AttrOps interface {
	Create(ctx context.Context, obj any, loc LocParams, name string, req *Request) (any, error)
	Open(ctx context.Context, obj any, loc LocParams, name string, req *Request) (any, error)
	Read(ctx context.Context, attr any, req *Request) ([]byte, error)
	Write(ctx context.Context, attr any, data []byte, req *Request) error
	Get(ctx context.Context, attr any, args *AttrGetArgs, req *Request) error
	Specific(ctx context.Context, obj any, loc LocParams, args *AttrSpecificArgs, req *Request) error
	Close(ctx context.Context, attr any, req *Request) error
}

// MapOps is the key-value map callback table
type MapOps interface {
	Create(ctx context.Context, obj any, loc LocParams, name string, req *Request) (any, error)
	Open(ctx context.Context, obj any, loc LocParams, name string, req *Request) (any, error)
	Put(ctx context.Context, m any, key string, value []byte, req *Request) error
	Lookup(ctx context.Context, m any, key string, req *Request) ([]byte, bool, error)
	Count(ctx context.Context, m any, req *Request) (int, error)
	Close(ctx context.Context, m any, req *Request) error
}

// LinkOps is the link callback table
type LinkOps interface {
	Create(ctx context.Context, args *LinkCreateArgs, obj any, loc LocParams, req *Request) error
	Get(ctx context.Context, obj any, loc LocParams, args *LinkGetArgs, req *Request) error
	Specific(ctx context.Context, obj any, loc LocParams, args *LinkSpecificArgs, req *Request) error
}

// ObjectOps is the kind-agnostic object callback table
type ObjectOps interface {
	Open(ctx context.Context, obj any, loc LocParams, req *Request) (any, ObjectKind, error)
	Copy(ctx context.Context, srcObj any, srcLoc LocParams, srcName string, dstObj any, dstLoc LocParams, dstName string, req *Request) error
	Get(ctx context.Context, obj any, loc LocParams, args *ObjectGetArgs, req *Request) error
	Specific(ctx context.Context, obj any, loc LocParams, args *ObjectSpecificArgs, req *Request) error
}

// IntrospectOps lets the library discover which connector sits at a given level
type IntrospectOps interface {
	GetConnectorClass(ctx context.Context, obj any, level ConnLevel) (*Class, error)
}

// RequestOps drives asynchronous completion tokens
type RequestOps interface {
	Wait(ctx context.Context, token any, timeout time.Duration) (RequestStatus, error)
	Cancel(ctx context.Context, token any) error
	Free(ctx context.Context, token any) error
}
