// Package hostio maps dumps into memory and writes rebuilt images, backups
// and restores to disk.
package hostio

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// Host is a read-only view of a dump file. Slices returned by Bytes, and any
// containers scanned from them, are valid until Close.
type Host struct {
	path string
	f    *os.File
	m    mmap.MMap
	data []byte
}

// Open maps path read-only. Empty files are not mapped and yield an empty
// buffer.
func Open(path string) (*Host, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%s: not a regular file", path)
	}
	h := &Host{path: path, f: f}
	if info.Size() == 0 {
		h.data = []byte{}
		return h, nil
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("map %s: %w", path, err)
	}
	h.m = m
	h.data = m
	return h, nil
}

func (h *Host) Path() string  { return h.path }
func (h *Host) Bytes() []byte { return h.data }
func (h *Host) Size() int     { return len(h.data) }

func (h *Host) Close() error {
	if h == nil || h.f == nil {
		return nil
	}
	var err error
	if h.m != nil {
		err = h.m.Unmap()
		h.m = nil
	}
	if cerr := h.f.Close(); err == nil {
		err = cerr
	}
	h.f = nil
	h.data = nil
	return err
}
