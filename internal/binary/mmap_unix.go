//go:build unix

package binary

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// OpenMapped maps path read-only into memory and returns it as a Source.
// Close unmaps the region.
func OpenMapped(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		return NewBytesSource(nil), nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return &bytesSource{
		data:  data,
		close: func() error { return unix.Munmap(data) },
	}, nil
}
