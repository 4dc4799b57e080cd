package metadata

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/robert-malhotra/go-nlp4/internal/binary"
	"github.com/robert-malhotra/go-nlp4/internal/directory"
)

// BlockTag is the tag of a per-frame metadata block.
const BlockTag = "IMG00"

// TimeLayout is the acquisition time format of sub-header line 0.
const TimeLayout = "Mon Jan 2 15:04:05 2006"

const (
	tagLen      = 5
	prefixLen   = 5
	reservedLen = 48
)

// Errors
var (
	ErrUnexpectedTag = errors.New("unexpected block tag")
	ErrInvalidBlock  = errors.New("invalid metadata block")
)

// Field is one dynamic "*KEY VALUE" sub-header parameter.
type Field struct {
	Key   string
	Value string
}

// Row is the metadata of one frame.
type Row struct {
	// Index is the directory position of the block.
	Index int

	Time           time.Time
	CLK            float64
	FrameNumber    uint32
	GrabTime       float64
	Width          int
	Height         int
	BitsPerPixel   uint8
	ColorComponent uint8
	Compression    uint8

	// ImageAddress is the absolute offset of the image payload.
	ImageAddress int64

	// Fields holds the dynamic parameters in sub-header order.
	Fields []Field
}

// Field returns the dynamic parameter stored under key.
func (row *Row) Field(key string) (string, bool) {
	for _, f := range row.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

func (row *Row) setField(key, value string) {
	for i := range row.Fields {
		if row.Fields[i].Key == key {
			row.Fields[i].Value = value
			return
		}
	}
	row.Fields = append(row.Fields, Field{Key: key, Value: value})
}

// ParseBlock parses the metadata block that entry points at. index is the
// entry's directory position. A block tagged anything but BlockTag yields
// ErrUnexpectedTag; callers skip such entries.
func ParseBlock(r *binary.Reader, index int, entry directory.Entry) (*Row, error) {
	rd := r.At(entry.BlockOffset)

	if _, err := rd.ReadUint32(); err != nil {
		return nil, fmt.Errorf("reading block size: %w", err)
	}
	rawTag, err := rd.ReadBytes(tagLen)
	if err != nil {
		return nil, fmt.Errorf("reading block tag: %w", err)
	}
	tag := strings.ToValidUTF8(string(rawTag), string(utf8.RuneError))
	if tag != BlockTag {
		return nil, fmt.Errorf("%w %q at offset %d", ErrUnexpectedTag, tag, entry.BlockOffset)
	}

	textLen, err := rd.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("reading sub-header length: %w", err)
	}
	raw, err := rd.ReadBytes(int(textLen))
	if err != nil {
		return nil, fmt.Errorf("reading sub-header: %w", err)
	}

	row := &Row{Index: index}
	if err := row.parseText(decodeText(raw)); err != nil {
		return nil, fmt.Errorf("block at offset %d: %w", entry.BlockOffset, err)
	}
	if err := row.readFixed(rd); err != nil {
		return nil, fmt.Errorf("block at offset %d: %w", entry.BlockOffset, err)
	}
	return row, nil
}

// decodeText decodes Windows-1252 sub-header bytes.
func decodeText(raw []byte) string {
	text, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
	}
	return string(text)
}

func (row *Row) parseText(text string) error {
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return fmt.Errorf("%w: sub-header has %d lines", ErrInvalidBlock, len(lines))
	}

	t, err := ParseTime(dropRunes(lines[0], prefixLen))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}
	row.Time = t

	clk, err := strconv.ParseFloat(strings.TrimSpace(dropRunes(lines[1], prefixLen)), 64)
	if err != nil {
		return fmt.Errorf("%w: CLK %q", ErrInvalidBlock, lines[1])
	}
	row.CLK = clk

	for _, line := range lines[2:] {
		tokens := strings.Split(line, " ")
		if len(tokens) < 2 {
			continue
		}
		// Drop the leading "*" marker.
		key := strings.TrimSpace(dropRunes(tokens[0], 1))
		if key == "" {
			continue
		}
		row.setField(key, strings.TrimSpace(tokens[1]))
	}
	return nil
}

func (row *Row) readFixed(rd *binary.Reader) error {
	var err error
	if row.FrameNumber, err = rd.ReadUint32(); err != nil {
		return fmt.Errorf("reading frame number: %w", err)
	}
	if row.GrabTime, err = rd.ReadFloat64(); err != nil {
		return fmt.Errorf("reading grab time: %w", err)
	}
	width, err := rd.ReadUint32()
	if err != nil {
		return fmt.Errorf("reading width: %w", err)
	}
	height, err := rd.ReadUint32()
	if err != nil {
		return fmt.Errorf("reading height: %w", err)
	}
	row.Width, row.Height = int(width), int(height)

	if row.BitsPerPixel, err = rd.ReadUint8(); err != nil {
		return fmt.Errorf("reading bits per pixel: %w", err)
	}
	if row.ColorComponent, err = rd.ReadUint8(); err != nil {
		return fmt.Errorf("reading color component: %w", err)
	}
	if row.Compression, err = rd.ReadUint8(); err != nil {
		return fmt.Errorf("reading compression code: %w", err)
	}

	rd.Skip(reservedLen)
	row.ImageAddress = rd.Pos()
	return nil
}

// ParseTime parses an acquisition time such as "Sat Feb 23 18:56:46 2019".
// Runs of whitespace are treated as a single separator.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, strings.Join(strings.Fields(s), " "))
}

// dropRunes removes the first n characters of s.
func dropRunes(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[i:]
		}
		n--
	}
	return ""
}
