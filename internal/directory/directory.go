// Package directory reads the NLP4 directory block.
//
// The directory is a table of fixed-size entries, one per stored block. Each
// entry carries the frame number, a content code describing the block, and the
// block's absolute file offset. The position of an entry in the table is the
// canonical frame index used by every later stage.
package directory

import (
	"fmt"

	"github.com/robert-malhotra/go-nlp4/internal/binary"
)

// ContentMetadata marks a per-frame metadata block ("IMG00").
const ContentMetadata uint8 = 1

const (
	tagLen = 5
	// EntrySize is the on-disk size of one entry: frame number, content code,
	// block offset, reserved padding.
	EntrySize = 4 + 1 + 4 + reservedLen
	// reservedLen is skipped after every entry and not retained.
	reservedLen = 26
)

// Entry is one directory record.
type Entry struct {
	FrameNumber uint32
	ContentCode uint8
	BlockOffset int64
}

// IsMetadata reports whether the entry points at a frame metadata block.
func (e Entry) IsMetadata() bool {
	return e.ContentCode == ContentMetadata
}

// Directory is the parsed directory block.
type Directory struct {
	// Offset is the absolute position of the block.
	Offset int64

	// BlockSize is advisory and not validated against the entry count.
	BlockSize uint32

	// Tag is the 5-byte block tag, not validated.
	Tag string

	Entries []Entry
}

// Read parses the directory block at offset.
func Read(r *binary.Reader, offset int64) (*Directory, error) {
	rd := r.At(offset)

	blockSize, err := rd.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("reading directory block size: %w", err)
	}
	tag, err := rd.ReadBytes(tagLen)
	if err != nil {
		return nil, fmt.Errorf("reading directory tag: %w", err)
	}
	count, err := rd.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("reading directory entry count: %w", err)
	}

	d := &Directory{
		Offset:    offset,
		BlockSize: blockSize,
		Tag:       string(tag),
	}

	// count is untrusted; cap the preallocation.
	d.Entries = make([]Entry, 0, min(int(count), 1<<16))
	for i := 0; i < int(count); i++ {
		e, err := readEntry(rd)
		if err != nil {
			return nil, fmt.Errorf("reading directory entry %d: %w", i, err)
		}
		d.Entries = append(d.Entries, e)
	}

	return d, nil
}

func readEntry(rd *binary.Reader) (Entry, error) {
	frame, err := rd.ReadUint32()
	if err != nil {
		return Entry{}, err
	}
	code, err := rd.ReadUint8()
	if err != nil {
		return Entry{}, err
	}
	offset, err := rd.ReadUint32()
	if err != nil {
		return Entry{}, err
	}
	rd.Skip(reservedLen)

	return Entry{
		FrameNumber: frame,
		ContentCode: code,
		BlockOffset: int64(offset),
	}, nil
}

// MetadataCount returns the number of entries with the metadata content code.
func (d *Directory) MetadataCount() int {
	n := 0
	for _, e := range d.Entries {
		if e.IsMetadata() {
			n++
		}
	}
	return n
}
