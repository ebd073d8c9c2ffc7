// Package mmap provides read-only memory-mapped access to whole files. The
// native connector reads its snapshots through it.
package mmap

import (
	"os"
	"sync"

	"github.com/ajitpratap0/hvol/pkg/errors"
)

// Reader maps one file read-only for its whole lifetime
type Reader struct {
	mu     sync.Mutex
	path   string
	data   []byte
	mapped bool
	closed bool
}

// Open maps the file at path. An empty file yields a Reader with no data.
// A missing file is reported with os.ErrNotExist in its chain.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open file").WithDetail("path", path)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to stat file").WithDetail("path", path)
	}
	r := &Reader{path: path}
	if st.Size() == 0 {
		return r, nil
	}

	r.data, r.mapped, err = mapFile(f, st.Size())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to map file").WithDetail("path", path)
	}
	return r, nil
}

// Bytes returns the mapped contents. The slice is invalid after Close.
func (r *Reader) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data
}

// Len returns the file size in bytes
func (r *Reader) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

// Close unmaps the file. It is safe to call more than once.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	data := r.data
	r.data = nil
	if !r.mapped || data == nil {
		return nil
	}
	if err := unmap(data); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to unmap file").WithDetail("path", r.path)
	}
	return nil
}
