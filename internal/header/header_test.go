package header

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"

	binpkg "github.com/robert-malhotra/go-nlp4/internal/binary"
)

// bytesReaderAt wraps a byte slice to implement io.ReaderAt.
type bytesReaderAt []byte

func (b bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b)) {
		return 0, nil
	}
	n := copy(p, b[off:])
	return n, nil
}

// buildHeader assembles signature, size field and text, appending trailer
// bytes that must never be consumed.
func buildHeader(text, trailer string) bytesReaderAt {
	var buf bytes.Buffer
	buf.WriteString(Magic)
	fmt.Fprintf(&buf, "%013d", fixedPrefix+len(text))
	buf.WriteString(text)
	buf.WriteString(trailer)
	return bytesReaderAt(buf.Bytes())
}

func TestReadHeader(t *testing.T) {
	text := "Sat Feb 23 18:56:46 2019\n" +
		"1\n" +
		"4096\n" +
		"2621440\n" +
		"UPRISM_ST 0.01975\n" +
		"MCH 3.5\n" +
		"not an attribute line\n" +
		"BAD value\n" +
		" 7\n" +
		"\n"
	data := buildHeader(text, "IMG00 trailing block bytes")

	h, err := Read(data)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if h.Magic != Magic {
		t.Errorf("expected magic %q, got %q", Magic, h.Magic)
	}
	if h.Size != int64(fixedPrefix+len(text)) {
		t.Errorf("expected size %d, got %d", fixedPrefix+len(text), h.Size)
	}
	if h.Timestamp != "Sat Feb 23 18:56:46 2019" {
		t.Errorf("unexpected timestamp %q", h.Timestamp)
	}
	if h.FrameCount != 1 {
		t.Errorf("expected 1 frame, got %d", h.FrameCount)
	}
	if h.DirectoryOffset != 4096 {
		t.Errorf("expected directory offset 4096, got %d", h.DirectoryOffset)
	}
	if h.FixedFrameSize != 2621440 {
		t.Errorf("expected fixed frame size 2621440, got %d", h.FixedFrameSize)
	}

	if v, ok := h.Attribute("UPRISM_ST"); !ok || v != 0.01975 {
		t.Errorf("UPRISM_ST: got %v, %v", v, ok)
	}
	if v, ok := h.Attribute("MCH"); !ok || v != 3.5 {
		t.Errorf("MCH: got %v, %v", v, ok)
	}
	if _, ok := h.Attribute(""); ok {
		t.Error("empty key should be removed")
	}
	if _, ok := h.Attribute("BAD"); ok {
		t.Error("non-numeric value should be skipped")
	}

	keys := h.Attributes.Keys()
	if len(keys) != 2 || keys[0] != "UPRISM_ST" || keys[1] != "MCH" {
		t.Errorf("expected attributes in file order [UPRISM_ST MCH], got %v", keys)
	}
}

func TestReadHeaderStopsAtDeclaredSize(t *testing.T) {
	// Anything after the declared size must not leak into the attributes.
	text := "ts\n0\n100\n0\nA 1"
	data := buildHeader(text, "0\nB 2\n")

	h, err := Read(data)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if v, ok := h.Attribute("A"); !ok || v != 1 {
		t.Errorf("A: got %v, %v", v, ok)
	}
	if _, ok := h.Attribute("B"); ok {
		t.Error("attribute past the header size was parsed")
	}
}

func TestReadNotNLP4(t *testing.T) {
	tests := []struct {
		name string
		data bytesReaderAt
	}{
		{"empty", bytesReaderAt{}},
		{"short", bytesReaderAt("NLP")},
		{"wrong magic", bytesReaderAt("NLP3\n0000000000018")},
		{"missing newline", bytesReaderAt("NLP4 0000000000018")},
		{"hdf5", bytesReaderAt{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(tt.data)
			if !errors.Is(err, ErrNotNLP4) {
				t.Errorf("expected ErrNotNLP4, got %v", err)
			}
			if Probe(tt.data) {
				t.Error("Probe accepted a non-NLP4 source")
			}
		})
	}
}

func TestReadInvalidHeader(t *testing.T) {
	tests := []struct {
		name string
		data bytesReaderAt
	}{
		{"size not a number", bytesReaderAt("NLP4\nabcdefghijklm")},
		{"size below prefix", bytesReaderAt("NLP4\n0000000000010")},
		{"too few lines", buildHeader("ts\n1\n", "")},
		{"bad frame count", buildHeader("ts\nx\n1\n1\n", "")},
		{"bad directory offset", buildHeader("ts\n1\nx\n1\n", "")},
		{"bad frame size", buildHeader("ts\n1\n1\nx\n", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(tt.data)
			if !errors.Is(err, ErrInvalidHeader) {
				t.Errorf("expected ErrInvalidHeader, got %v", err)
			}
		})
	}
}

func TestReadTruncatedHeader(t *testing.T) {
	full := buildHeader("ts\n1\n100\n0\nA 1\n", "")
	data := full[:len(full)-4]

	_, err := Read(data)
	if !errors.Is(err, binpkg.ErrTruncated) {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
}

func TestReadOversizedHeaderSize(t *testing.T) {
	data := []byte(buildHeader("ts\n1\n100\n0\nA 1\n", ""))
	copy(data[magicLen:], "9999999999999")

	sources := map[string]io.ReaderAt{
		"sized":   binpkg.NewBytesSource(data),
		"unsized": bytesReaderAt(data),
	}
	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			_, err := Read(src)
			if !errors.Is(err, binpkg.ErrTruncated) {
				t.Errorf("expected ErrTruncated, got %v", err)
			}
		})
	}
}

func TestProbe(t *testing.T) {
	if !Probe(bytesReaderAt("NLP4\nrest")) {
		t.Error("Probe rejected a valid signature")
	}
}
