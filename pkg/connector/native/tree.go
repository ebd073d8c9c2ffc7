package native

import (
	"sort"
	"strings"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/google/uuid"
)

// maxLinkHops bounds soft and external link chains
const maxLinkHops = 16

// File is the native connector's raw file object
type File struct {
	ID     uuid.UUID
	Name   string
	Root   *Node
	Intent uint32

	opens int
	nodes map[uuid.UUID]*Node
}

// Node is the raw object for groups, datasets, committed datatypes and maps
type Node struct {
	ID   uuid.UUID
	Kind core.ObjectKind
	// Path is the path the node was created under
	Path string

	file *File

	links map[string]*Link
	attrs map[string]*Attr

	dtype string
	data  []byte

	descriptor string

	entries map[string][]byte
}

// File returns the file that owns the node
func (n *Node) File() *File {
	return n.file
}

// Attr is the raw object for attributes
type Attr struct {
	Name   string
	parent *Node
	data   []byte
}

// Link is one named entry in a group
type Link struct {
	Type core.LinkType

	target *Node

	path string

	fileName string
	objPath  string
}

// Value returns the soft link path or "file:path" for external links
func (l *Link) Value() string {
	switch l.Type {
	case core.LinkSoft:
		return l.path
	case core.LinkExternal:
		return l.fileName + ":" + l.objPath
	default:
		return l.target.Path
	}
}

func newFile(name string) *File {
	f := &File{
		ID:     uuid.New(),
		Name:   name,
		Intent: core.FileReadWrite,
		nodes:  make(map[uuid.UUID]*Node),
	}
	f.Root = f.newNode(core.KindGroup, "/")
	return f
}

func (f *File) newNode(kind core.ObjectKind, path string) *Node {
	n := &Node{
		ID:    uuid.New(),
		Kind:  kind,
		Path:  path,
		file:  f,
		attrs: make(map[string]*Attr),
	}
	switch kind {
	case core.KindGroup:
		n.links = make(map[string]*Link)
	case core.KindMap:
		n.entries = make(map[string][]byte)
	}
	f.nodes[n.ID] = n
	return n
}

func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" && p != "." {
			out = append(out, p)
		}
	}
	return out
}

// splitParent separates the last component of path from the rest
func splitParent(path string) (dir, base string) {
	path = strings.TrimRight(path, "/")
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ".", path
	}
	if i == 0 {
		return "/", path[1:]
	}
	return path[:i], path[i+1:]
}

func joinPath(dir, base string) string {
	if dir == "/" || dir == "" {
		return "/" + base
	}
	return dir + "/" + base
}

// resolver walks paths inside one store. Callers hold the store lock.
type resolver struct {
	s    *store
	hops int
}

// walk resolves path relative to start, following every kind of link
func (r *resolver) walk(start *Node, path string) (*Node, error) {
	cur := start
	if strings.HasPrefix(path, "/") {
		cur = start.file.Root
	}
	for _, name := range splitPath(path) {
		if cur.Kind != core.KindGroup {
			return nil, errors.Newf(errors.ErrorTypeValidation, "%s is a %s, not a group", cur.Path, cur.Kind)
		}
		link, ok := cur.links[name]
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeNotFound, "%s not found in %s", name, cur.Path).
				WithDetail("file", cur.file.Name)
		}
		next, err := r.follow(cur, link)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

func (r *resolver) follow(dir *Node, link *Link) (*Node, error) {
	switch link.Type {
	case core.LinkHard:
		return link.target, nil
	case core.LinkSoft:
		if r.hops++; r.hops > maxLinkHops {
			return nil, errors.New(errors.ErrorTypeValidation, "too many soft or external links")
		}
		return r.walk(dir, link.path)
	case core.LinkExternal:
		if r.hops++; r.hops > maxLinkHops {
			return nil, errors.New(errors.ErrorTypeValidation, "too many soft or external links")
		}
		f, err := r.s.lookupLocked(link.fileName)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeNotFound, "external link target file is not available").
				WithDetail("file", link.fileName)
		}
		return r.walk(f.Root, "/"+strings.TrimLeft(link.objPath, "/"))
	default:
		return nil, errors.Newf(errors.ErrorTypeInternal, "unknown link type %d", link.Type)
	}
}

// parentFor resolves the group that will hold the last component of path
func (r *resolver) parentFor(start *Node, path string) (*Node, string, error) {
	dir, base := splitParent(path)
	if base == "" || base == "." {
		return nil, "", errors.Newf(errors.ErrorTypeValidation, "path %q does not name a link", path)
	}
	parent, err := r.walk(start, dir)
	if err != nil {
		return nil, "", err
	}
	if parent.Kind != core.KindGroup {
		return nil, "", errors.Newf(errors.ErrorTypeValidation, "%s is a %s, not a group", parent.Path, parent.Kind)
	}
	return parent, base, nil
}

// locate returns the node an operation addresses through obj and loc
func (r *resolver) locate(obj any, loc core.LocParams) (*Node, error) {
	var start *Node
	switch o := obj.(type) {
	case *File:
		start = o.Root
	case *Node:
		start = o
	case *Attr:
		start = o.parent
	default:
		return nil, errors.Newf(errors.ErrorTypeValidation, "object of type %T does not belong to the native connector", obj)
	}
	if loc.Type == core.LocBySelf {
		return start, nil
	}
	return r.walk(start, loc.Name)
}

// visit walks every node below n in name order, once per node
func visit(n *Node, prefix string, seen map[uuid.UUID]bool, fn func(name string, n *Node) (bool, error)) (bool, error) {
	if n.Kind != core.KindGroup {
		return false, nil
	}
	names := make([]string, 0, len(n.links))
	for name := range n.links {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		link := n.links[name]
		if link.Type != core.LinkHard || seen[link.target.ID] {
			continue
		}
		seen[link.target.ID] = true
		rel := name
		if prefix != "" {
			rel = prefix + "/" + name
		}
		stop, err := fn(rel, link.target)
		if err != nil || stop {
			return stop, err
		}
		if stop, err := visit(link.target, rel, seen, fn); err != nil || stop {
			return stop, err
		}
	}
	return false, nil
}

// copyNode deep-copies n and everything hard-linked below it into file f.
// copies maps source node ids to their copies, so a node reached twice is
// copied once and a link back up the tree points at the new ancestor.
func copyNode(f *File, n *Node, path string, copies map[uuid.UUID]*Node) *Node {
	if c, ok := copies[n.ID]; ok {
		return c
	}
	c := f.newNode(n.Kind, path)
	copies[n.ID] = c
	c.dtype = n.dtype
	c.data = append([]byte(nil), n.data...)
	c.descriptor = n.descriptor
	for k, v := range n.entries {
		c.entries[k] = append([]byte(nil), v...)
	}
	for k, a := range n.attrs {
		c.attrs[k] = &Attr{Name: a.Name, parent: c, data: append([]byte(nil), a.data...)}
	}
	for _, name := range sortedKeys(n.links) {
		l := n.links[name]
		cl := *l
		if l.Type == core.LinkHard {
			cl.target = copyNode(f, l.target, joinPath(path, name), copies)
		}
		c.links[name] = &cl
	}
	return c
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
