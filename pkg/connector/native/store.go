package native

import (
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/ajitpratap0/hvol/pkg/config"
	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/errors"
	jsonpool "github.com/ajitpratap0/hvol/pkg/json"
	"github.com/ajitpratap0/hvol/pkg/mmap"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// store is the namespace of files one native class instance serves
type store struct {
	mu     sync.RWMutex
	files  map[string]*File
	cfg    config.NativeConfig
	logger *zap.Logger
}

func newStore(logger *zap.Logger) *store {
	return &store{
		files:  make(map[string]*File),
		cfg:    config.NewNativeConfig(),
		logger: logger,
	}
}

func (s *store) resolver() *resolver {
	return &resolver{s: s}
}

// lookupLocked returns an in-memory file, loading its snapshot when allowed
func (s *store) lookupLocked(name string) (*File, error) {
	if f, ok := s.files[name]; ok {
		return f, nil
	}
	if !s.cfg.LoadSnapshots || s.cfg.SnapshotDir == "" {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "file %s does not exist", name)
	}
	f, err := s.loadSnapshot(name)
	if err != nil {
		return nil, err
	}
	s.files[name] = f
	return f, nil
}

func (s *store) snapshotPath(name string) string {
	return filepath.Join(s.cfg.SnapshotDir, url.PathEscape(name)+".json")
}

func (s *store) hasSnapshot(name string) bool {
	if s.cfg.SnapshotDir == "" {
		return false
	}
	_, err := os.Stat(s.snapshotPath(name))
	return err == nil
}

// snapshot is the on-disk form of a file. Nodes are keyed by id so hard links
// that share a target survive the round trip.
type snapshot struct {
	Name   string                   `json:"name"`
	ID     uuid.UUID                `json:"id"`
	Root   uuid.UUID                `json:"root"`
	Intent uint32                   `json:"intent"`
	Nodes  map[string]*snapshotNode `json:"nodes"`
}

type snapshotNode struct {
	Kind       int                      `json:"kind"`
	Path       string                   `json:"path"`
	Type       string                   `json:"type,omitempty"`
	Data       []byte                   `json:"data,omitempty"`
	Descriptor string                   `json:"descriptor,omitempty"`
	Entries    map[string][]byte        `json:"entries,omitempty"`
	Attrs      map[string][]byte        `json:"attrs,omitempty"`
	Links      map[string]*snapshotLink `json:"links,omitempty"`
}

type snapshotLink struct {
	Type     int       `json:"type"`
	Target   uuid.UUID `json:"target,omitempty"`
	Path     string    `json:"path,omitempty"`
	FileName string    `json:"file_name,omitempty"`
	ObjPath  string    `json:"obj_path,omitempty"`
}

// saveSnapshot writes f to the snapshot directory. Callers hold the store lock.
func (s *store) saveSnapshot(f *File) error {
	if s.cfg.SnapshotDir == "" {
		return nil
	}

	snap := &snapshot{
		Name:   f.Name,
		ID:     f.ID,
		Root:   f.Root.ID,
		Intent: f.Intent,
		Nodes:  make(map[string]*snapshotNode, len(f.nodes)),
	}
	for id, n := range f.nodes {
		sn := &snapshotNode{
			Kind:       int(n.Kind),
			Path:       n.Path,
			Type:       n.dtype,
			Data:       n.data,
			Descriptor: n.descriptor,
			Entries:    n.entries,
		}
		if len(n.attrs) > 0 {
			sn.Attrs = make(map[string][]byte, len(n.attrs))
			for name, a := range n.attrs {
				sn.Attrs[name] = a.data
			}
		}
		if len(n.links) > 0 {
			sn.Links = make(map[string]*snapshotLink, len(n.links))
			for name, l := range n.links {
				sl := &snapshotLink{Type: int(l.Type), Path: l.path, FileName: l.fileName, ObjPath: l.objPath}
				if l.target != nil {
					sl.Target = l.target.ID
				}
				sn.Links[name] = sl
			}
		}
		snap.Nodes[id.String()] = sn
	}

	if err := os.MkdirAll(s.cfg.SnapshotDir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create snapshot directory").
			WithDetail("dir", s.cfg.SnapshotDir)
	}
	path := s.snapshotPath(f.Name)
	tmp := path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create snapshot").WithDetail("path", tmp)
	}
	if err := jsonpool.MarshalToWriter(out, snap, false); err != nil {
		_ = out.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write snapshot").WithDetail("path", tmp)
	}
	if err := out.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close snapshot").WithDetail("path", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to publish snapshot").WithDetail("path", path)
	}

	s.logger.Debug("snapshot written", zap.String("file", f.Name), zap.String("path", path), zap.Int("nodes", len(f.nodes)))
	return nil
}

func (s *store) loadSnapshot(name string) (*File, error) {
	path := s.snapshotPath(name)
	in, err := mmap.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.Newf(errors.ErrorTypeNotFound, "file %s does not exist", name)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open snapshot").WithDetail("path", path)
	}
	defer func() {
		if cerr := in.Close(); cerr != nil {
			s.logger.Warn("failed to unmap snapshot", zap.String("path", path), zap.Error(cerr))
		}
	}()

	// Unmarshal copies everything it keeps out of the mapping
	var snap snapshot
	if err := jsonpool.Unmarshal(in.Bytes(), &snap); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to decode snapshot").WithDetail("path", path)
	}

	f := &File{
		ID:     snap.ID,
		Name:   name,
		Intent: snap.Intent,
		nodes:  make(map[uuid.UUID]*Node, len(snap.Nodes)),
	}
	for key, sn := range snap.Nodes {
		id, err := uuid.Parse(key)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "snapshot node id is not a uuid").WithDetail("path", path)
		}
		n := &Node{
			ID:         id,
			Kind:       core.ObjectKind(sn.Kind),
			Path:       sn.Path,
			file:       f,
			attrs:      make(map[string]*Attr, len(sn.Attrs)),
			dtype:      sn.Type,
			data:       sn.Data,
			descriptor: sn.Descriptor,
			entries:    sn.Entries,
		}
		for an, data := range sn.Attrs {
			n.attrs[an] = &Attr{Name: an, parent: n, data: data}
		}
		if n.Kind == core.KindGroup {
			n.links = make(map[string]*Link, len(sn.Links))
		}
		if n.Kind == core.KindMap && n.entries == nil {
			n.entries = make(map[string][]byte)
		}
		f.nodes[id] = n
	}
	for key, sn := range snap.Nodes {
		n := f.nodes[uuid.MustParse(key)]
		if len(sn.Links) > 0 && n.links == nil {
			return nil, errors.Newf(errors.ErrorTypeFile, "snapshot node %s has links but is a %s", key, n.Kind).
				WithDetail("path", path)
		}
		for ln, sl := range sn.Links {
			l := &Link{Type: core.LinkType(sl.Type), path: sl.Path, fileName: sl.FileName, objPath: sl.ObjPath}
			if l.Type == core.LinkHard {
				target, ok := f.nodes[sl.Target]
				if !ok {
					return nil, errors.Newf(errors.ErrorTypeFile, "snapshot link %s points at missing node %s", ln, sl.Target).
						WithDetail("path", path)
				}
				l.target = target
			}
			n.links[ln] = l
		}
	}
	root, ok := f.nodes[snap.Root]
	if !ok || root.Kind != core.KindGroup {
		return nil, errors.New(errors.ErrorTypeFile, "snapshot has no root group").WithDetail("path", path)
	}
	f.Root = root

	s.logger.Debug("snapshot loaded", zap.String("file", name), zap.String("path", path))
	return f, nil
}

func (s *store) removeSnapshot(name string) error {
	if s.cfg.SnapshotDir == "" {
		return nil
	}
	if err := os.Remove(s.snapshotPath(name)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to remove snapshot").WithDetail("file", name)
	}
	return nil
}
