package core

// FileGetOp selects a file query
type FileGetOp int

const (
	FileGetName FileGetOp = iota
	FileGetIntent
	FileGetObjectCount
	FileGetID
)

// FileGetArgs carries a file query and its results
type FileGetArgs struct {
	Op FileGetOp

	Name   string
	Intent uint32
	Count  int
	ID     string
}

// FileSpecificOp selects a file-specific operation
type FileSpecificOp int

const (
	FileFlush FileSpecificOp = iota
	// FileIsEqual compares the file against Other, both terminal raw files
	FileIsEqual
	// FileIsAccessible checks whether Name can be opened; the file argument is nil
	FileIsAccessible
	// FileDelete removes Name from the store; the file argument is nil
	FileDelete
)

// FileSpecificArgs carries a file-specific operation and its result
type FileSpecificArgs struct {
	Op FileSpecificOp

	Other any
	Name  string
	// Info is the connector info for operations addressed by Name
	Info any

	Result bool
}

// GroupGetOp selects a group query
type GroupGetOp int

const (
	GroupGetInfo GroupGetOp = iota
)

// GroupInfo describes a group
type GroupInfo struct {
	NumLinks int
}

// GroupGetArgs carries a group query and its results
type GroupGetArgs struct {
	Op   GroupGetOp
	Info GroupInfo
}

// GroupSpecificOp selects a group-specific operation
type GroupSpecificOp int

const (
	GroupFlush GroupSpecificOp = iota
)

// GroupSpecificArgs carries a group-specific operation
type GroupSpecificArgs struct {
	Op GroupSpecificOp
}

// DatasetGetOp selects a dataset query
type DatasetGetOp int

const (
	DatasetGetType DatasetGetOp = iota
	DatasetGetStorageSize
)

// DatasetGetArgs carries a dataset query and its results
type DatasetGetArgs struct {
	Op DatasetGetOp

	Type        string
	StorageSize int64
}

// DatasetSpecificOp selects a dataset-specific operation
type DatasetSpecificOp int

const (
	DatasetFlush DatasetSpecificOp = iota
)

// DatasetSpecificArgs carries a dataset-specific operation
type DatasetSpecificArgs struct {
	Op DatasetSpecificOp
}

// DatatypeGetOp selects a named datatype query
type DatatypeGetOp int

const (
	DatatypeGetDescriptor DatatypeGetOp = iota
)

// DatatypeGetArgs carries a named datatype query and its result
type DatatypeGetArgs struct {
	Op         DatatypeGetOp
	Descriptor string
}

// AttrGetOp selects an attribute query
type AttrGetOp int

const (
	AttrGetName AttrGetOp = iota
	AttrGetStorageSize
)

// AttrGetArgs carries an attribute query and its results
type AttrGetArgs struct {
	Op AttrGetOp

	Name        string
	StorageSize int64
}

// AttrSpecificOp selects an attribute operation addressed through its parent
type AttrSpecificOp int

const (
	AttrExists AttrSpecificOp = iota
	AttrDelete
	AttrIterate
)

// AttrSpecificArgs carries an attribute operation and its results
type AttrSpecificArgs struct {
	Op   AttrSpecificOp
	Name string

	Exists bool
	// Iterate is called once per attribute name in sorted order
	Iterate func(name string) (stop bool, err error)
}

// LinkType is the kind of link
type LinkType int

const (
	LinkHard LinkType = iota
	LinkSoft
	LinkExternal
)

func (t LinkType) String() string {
	switch t {
	case LinkHard:
		return "hard"
	case LinkSoft:
		return "soft"
	case LinkExternal:
		return "external"
	default:
		return "unknown"
	}
}

// LinkCreateArgs describes the link being created
type LinkCreateArgs struct {
	Type LinkType

	// hard
	Target    any
	TargetLoc LocParams

	// soft
	Path string

	// external
	FileName string
	ObjPath  string
}

// LinkInfo describes one link
type LinkInfo struct {
	Type LinkType
}

// LinkGetOp selects a link query
type LinkGetOp int

const (
	LinkGetInfo LinkGetOp = iota
	LinkGetValue
)

// LinkGetArgs carries a link query and its results
type LinkGetArgs struct {
	Op LinkGetOp

	Info LinkInfo
	// Value is the soft link path, or "file:path" for external links
	Value string
}

// LinkSpecificOp selects a link operation
type LinkSpecificOp int

const (
	LinkExists LinkSpecificOp = iota
	LinkDelete
	LinkIterate
)

// LinkSpecificArgs carries a link operation and its results
type LinkSpecificArgs struct {
	Op LinkSpecificOp

	Exists  bool
	Iterate func(name string, info LinkInfo) (stop bool, err error)
}

// ObjectGetOp selects a kind-agnostic object query
type ObjectGetOp int

const (
	// ObjectGetFile returns the raw file owning the object
	ObjectGetFile ObjectGetOp = iota
	ObjectGetName
	ObjectGetKind
)

// ObjectGetArgs carries an object query and its results
type ObjectGetArgs struct {
	Op ObjectGetOp

	File any
	Name string
	Kind ObjectKind
}

// ObjectSpecificOp selects a kind-agnostic object operation
type ObjectSpecificOp int

const (
	// ObjectIsEqual compares the object against Other, both terminal raw objects
	ObjectIsEqual ObjectSpecificOp = iota
	ObjectExists
	// ObjectVisit walks every object below the located one, depth first in name order.
	// Visit receives terminal raw objects; callers wrap them before use.
	ObjectVisit
)

// ObjectSpecificArgs carries an object operation and its results
type ObjectSpecificArgs struct {
	Op ObjectSpecificOp

	Other  any
	Result bool
	Visit  func(name string, obj any, kind ObjectKind) (stop bool, err error)
}
