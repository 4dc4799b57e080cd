package nlp4

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-nlp4/internal/binary"
	"github.com/robert-malhotra/go-nlp4/internal/header"
	"github.com/robert-malhotra/go-nlp4/internal/metadata"
	"github.com/robert-malhotra/go-nlp4/internal/pixel"
)

// Common errors
var (
	ErrUnrecognizedFormat = header.ErrNotNLP4
	ErrInvalidHeader      = header.ErrInvalidHeader
	ErrTruncated          = binary.ErrTruncated
	ErrInvalidBlock       = metadata.ErrInvalidBlock
	ErrDecompression      = pixel.ErrDecompression
	ErrUnsupportedDepth   = pixel.ErrUnsupportedDepth
	ErrSampleCount        = pixel.ErrSampleCount
	ErrRowOutOfRange      = errors.New("row out of range")
	ErrClosed             = errors.New("measurement is closed")
)

// Phase names the loading step that failed.
type Phase int

const (
	PhaseHeader Phase = iota + 1
	PhaseDirectory
	PhaseMetadata
	PhaseImage
)

func (p Phase) String() string {
	switch p {
	case PhaseHeader:
		return "header"
	case PhaseDirectory:
		return "directory"
	case PhaseMetadata:
		return "metadata"
	case PhaseImage:
		return "image"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// LoadError is returned for every fatal load failure.
type LoadError struct {
	Phase Phase
	// Offset is the file position of the structure being read.
	Offset int64
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("nlp4: %s at offset %d: %v", e.Phase, e.Offset, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Warning is a recovered, non-fatal issue found while loading.
type Warning = metadata.Warning

// WarningKind classifies a Warning.
type WarningKind = metadata.WarningKind

const (
	InconsistentField  = metadata.InconsistentField
	UnexpectedBlockTag = metadata.UnexpectedBlockTag
)
