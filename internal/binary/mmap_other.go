//go:build !unix

package binary

// OpenMapped falls back to positional file reads where mmap is unavailable.
func OpenMapped(path string) (Source, error) {
	return OpenFile(path)
}
