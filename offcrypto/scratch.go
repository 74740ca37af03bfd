package offcrypto

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"
)

// MemoryThreshold is the cleartext size above which Sink spills to a
// temp file instead of holding the body in memory.
const MemoryThreshold = 32 << 20 // 32MiB

// Sink is an appendable, rewindable byte sink: memory-backed for small
// bodies, disk-backed (and self-deleting) for large ones. It is the
// scratch-storage collaborator described by the surrounding system.
type Sink interface {
	io.Writer
	io.ReaderAt
	Size() int64
	// Close discards the sink, removing any backing temp file.
	Close() error
}

// NewSink returns a Sink sized for sizeHint bytes, spilling to a temp
// file under dir (os.TempDir() if empty) once sizeHint exceeds
// MemoryThreshold.
func NewSink(sizeHint int64, dir string) (Sink, error) {
	if sizeHint <= MemoryThreshold {
		return &memSink{}, nil
	}
	f, err := ioutil.TempFile(dir, "ooxmlcrypt-*.tmp")
	if err != nil {
		return nil, err
	}
	return &fileSink{f: f}, nil
}

type memSink struct {
	buf bytes.Buffer
}

func (s *memSink) Write(p []byte) (int, error) { return s.buf.Write(p) }
func (s *memSink) Size() int64                 { return int64(s.buf.Len()) }
func (s *memSink) Close() error                { return nil }

func (s *memSink) ReadAt(p []byte, off int64) (int, error) {
	data := s.buf.Bytes()
	if off >= int64(len(data)) {
		return 0, io.EOF
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

type fileSink struct {
	f    *os.File
	size int64
}

func (s *fileSink) Write(p []byte) (int, error) {
	n, err := s.f.Write(p)
	s.size += int64(n)
	return n, err
}
func (s *fileSink) Size() int64 { return s.size }

func (s *fileSink) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

func (s *fileSink) Close() error {
	name := s.f.Name()
	cerr := s.f.Close()
	rerr := os.Remove(name)
	if cerr != nil {
		return cerr
	}
	return rerr
}
