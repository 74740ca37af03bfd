package cfb

import (
	"bytes"
	"fmt"
	"io"
)

// Document represents a Compound File Binary Format document opened for
// reading. Stream and storage names are addressed by a path of path
// components, root-relative, e.g. []string{"\x06DataSpaces", "Version"}.
type Document interface {
	// List the streams contained in the named storage (nil or empty path
	// for the root storage). Returns the stream/storage names, not full
	// paths.
	List(storagePath []string) ([]string, error)

	// Open the named stream, addressed by its full path from the root.
	Open(path []string) (io.ReadSeeker, error)

	// HasStorage reports whether the named path is a storage.
	HasStorage(path []string) bool
}

// Open a Compound File Binary Format document from a byte stream.
func Open(rx io.Reader) (Document, error) {
	d := &doc{}
	if err := d.load(rx); err != nil {
		return nil, err
	}
	return d, nil
}

// OpenBytes is a convenience wrapper around Open for an in-memory buffer.
func OpenBytes(data []byte) (Document, error) {
	return Open(bytes.NewReader(data))
}

// find locates the directory index of the entry at path, or -1 if absent.
// An empty path resolves to the root entry (index 0).
func (d *doc) find(path []string) int {
	if len(d.dir) == 0 {
		return -1
	}
	cur := 0
	for _, name := range path {
		next := -1
		d.walkChildren(cur, func(idx int) bool {
			if d.dir[idx].String() == name {
				next = idx
				return false
			}
			return true
		})
		if next < 0 {
			return -1
		}
		cur = next
	}
	return cur
}

// walkChildren visits every direct child of the storage at dirIdx.
func (d *doc) walkChildren(dirIdx int, visit func(idx int) bool) {
	e := d.dir[dirIdx]
	if e.ObjectType != typeStorage && e.ObjectType != typeRootStorage {
		return
	}
	var walk func(idx int) bool
	walk = func(idx int) bool {
		if idx < 0 || idx >= len(d.dir) || uint32(idx) == secFree {
			return true
		}
		ce := d.dir[idx]
		if !walk(int(int32(ce.LeftSiblingID))) {
			return false
		}
		if !visit(idx) {
			return false
		}
		return walk(int(int32(ce.RightSiblingID)))
	}
	walk(int(int32(e.ChildID)))
}

func (d *doc) List(storagePath []string) ([]string, error) {
	idx := d.find(storagePath)
	if idx < 0 {
		return nil, fmt.Errorf("cfb: storage '%v' not found", storagePath)
	}
	var res []string
	d.walkChildren(idx, func(i int) bool {
		res = append(res, d.dir[i].String())
		return true
	})
	return res, nil
}

func (d *doc) HasStorage(path []string) bool {
	idx := d.find(path)
	return idx >= 0 && (d.dir[idx].ObjectType == typeStorage || d.dir[idx].ObjectType == typeRootStorage)
}

func (d *doc) Open(path []string) (io.ReadSeeker, error) {
	idx := d.find(path)
	if idx < 0 || d.dir[idx].ObjectType != typeStream {
		return nil, fmt.Errorf("cfb: stream '%v' not found", path)
	}
	return d.streamReader(d.dir[idx])
}
