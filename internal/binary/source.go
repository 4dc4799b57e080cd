package binary

import (
	"fmt"
	"io"
	"os"
)

// Source is a read-only, randomly addressable byte source.
type Source interface {
	ReadAt(p []byte, off int64) (int, error)
	Size() int64
	Close() error
}

// fileSource serves reads straight from an open file.
type fileSource struct {
	f    *os.File
	size int64
}

// OpenFile opens path read-only as a Source backed by positional file reads.
func OpenFile(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return &fileSource{f: f, size: info.Size()}, nil
}

func (s *fileSource) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

func (s *fileSource) Size() int64 {
	return s.size
}

func (s *fileSource) Close() error {
	return s.f.Close()
}

// bytesSource serves reads from an in-memory slice.
type bytesSource struct {
	data  []byte
	close func() error
}

// NewBytesSource wraps data as a Source. Close is a no-op.
func NewBytesSource(data []byte) Source {
	return &bytesSource{data: data}
}

func (s *bytesSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *bytesSource) Size() int64 {
	return int64(len(s.data))
}

func (s *bytesSource) Close() error {
	if s.close == nil {
		return nil
	}
	err := s.close()
	s.close = nil
	s.data = nil
	return err
}
