package nlp4

import (
	"os"

	"github.com/robert-malhotra/go-nlp4/internal/header"
)

// Probe reports whether the file at path carries the NLP4 signature.
// Unreadable files are reported as not NLP4.
func Probe(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	return header.Probe(f)
}
