package header

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Velocidex/ordereddict"

	binpkg "github.com/robert-malhotra/go-nlp4/internal/binary"
)

// Magic is the NLP4 file signature.
const Magic = "NLP4\n"

const (
	magicLen    = 5
	sizeLen     = 13
	fixedPrefix = magicLen + sizeLen
	// Lines before the attribute list: timestamp, frame count, directory
	// offset, fixed frame size.
	fixedLines = 4
)

// Errors
var (
	ErrNotNLP4       = errors.New("not an NLP4 file: signature mismatch")
	ErrInvalidHeader = errors.New("invalid NLP4 header")
)

// Header contains the global NLP4 file metadata.
type Header struct {
	// Magic is the 5-byte file signature, always "NLP4\n" after a successful Read.
	Magic string

	// Size is the total header length in bytes, including the signature and
	// the size field itself.
	Size int64

	// Timestamp is the first text line, kept verbatim.
	Timestamp string

	// FrameCount is the number of frames announced by the header.
	FrameCount int

	// DirectoryOffset is the absolute offset of the directory block.
	DirectoryOffset int64

	// FixedFrameSize is informational; decoding does not use it.
	FixedFrameSize int64

	// Attributes maps instrument setting names to their values, in file order.
	Attributes *ordereddict.Dict
}

// Probe reports whether r starts with the NLP4 signature.
func Probe(r io.ReaderAt) bool {
	buf := make([]byte, magicLen)
	n, _ := r.ReadAt(buf, 0)
	return n == magicLen && string(buf) == Magic
}

// Read parses the header at the start of r.
// It never reads beyond the declared header size.
func Read(r io.ReaderAt) (*Header, error) {
	if !Probe(r) {
		return nil, ErrNotNLP4
	}

	rd := binpkg.NewReader(r).At(magicLen)
	sizeBuf, err := rd.ReadBytes(sizeLen)
	if err != nil {
		return nil, fmt.Errorf("reading header size: %w", err)
	}
	size, err := strconv.ParseInt(strings.TrimSpace(string(sizeBuf)), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: header size %q", ErrInvalidHeader, sizeBuf)
	}
	if size < fixedPrefix {
		return nil, fmt.Errorf("%w: header size %d smaller than its prefix", ErrInvalidHeader, size)
	}

	text, err := rd.ReadBytes(int(size - rd.Pos()))
	if err != nil {
		return nil, fmt.Errorf("reading header text: %w", err)
	}

	h := &Header{
		Magic: Magic,
		Size:  size,
	}
	if err := h.parseText(string(text)); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Header) parseText(text string) error {
	lines := strings.Split(text, "\n")
	if len(lines) < fixedLines {
		return fmt.Errorf("%w: %d text lines, need at least %d", ErrInvalidHeader, len(lines), fixedLines)
	}
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}

	h.Timestamp = lines[0]

	var err error
	if h.FrameCount, err = strconv.Atoi(strings.TrimSpace(lines[1])); err != nil {
		return fmt.Errorf("%w: frame count %q", ErrInvalidHeader, lines[1])
	}
	if h.DirectoryOffset, err = strconv.ParseInt(strings.TrimSpace(lines[2]), 10, 64); err != nil {
		return fmt.Errorf("%w: directory offset %q", ErrInvalidHeader, lines[2])
	}
	if h.FixedFrameSize, err = strconv.ParseInt(strings.TrimSpace(lines[3]), 10, 64); err != nil {
		return fmt.Errorf("%w: fixed frame size %q", ErrInvalidHeader, lines[3])
	}

	h.Attributes = parseAttributes(lines[fixedLines:])
	return nil
}

// parseAttributes keeps lines that split on spaces into exactly two tokens
// with a numeric second token.
func parseAttributes(lines []string) *ordereddict.Dict {
	attrs := ordereddict.NewDict()
	for _, line := range lines {
		tokens := strings.Split(line, " ")
		if len(tokens) != 2 {
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(tokens[1]), 64)
		if err != nil {
			continue
		}
		attrs.Set(tokens[0], value)
	}
	attrs.Delete("")
	return attrs
}

// Attribute returns the float attribute stored under key.
func (h *Header) Attribute(key string) (float64, bool) {
	v, ok := h.Attributes.Get(key)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}
