package binary

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestWriterAt(t *testing.T) {
	buf := &Buffer{}
	w := NewWriter(buf)

	w2 := w.At(32)
	if w2.Pos() != 32 {
		t.Errorf("expected position 32, got %d", w2.Pos())
	}
	// Original writer should be unchanged
	if w.Pos() != 0 {
		t.Errorf("expected original position 0, got %d", w.Pos())
	}
}

func TestWriteBytes(t *testing.T) {
	buf := &Buffer{}
	w := NewWriter(buf)

	data := []byte{0x01, 0x02, 0x03, 0x04}
	if err := w.WriteBytes(data); err != nil {
		t.Fatalf("WriteBytes failed: %v", err)
	}

	if w.Pos() != 4 {
		t.Errorf("expected position 4, got %d", w.Pos())
	}
	if !bytes.Equal(buf.Bytes(), data) {
		t.Errorf("expected %v, got %v", data, buf.Bytes())
	}
}

func TestWriteUint16(t *testing.T) {
	buf := &Buffer{}
	w := NewWriter(buf)

	if err := w.WriteUint16(0x1234); err != nil {
		t.Fatalf("WriteUint16 failed: %v", err)
	}

	// Little-endian: low byte first
	if buf.Bytes()[0] != 0x34 || buf.Bytes()[1] != 0x12 {
		t.Errorf("expected [0x34, 0x12], got [0x%02X, 0x%02X]", buf.Bytes()[0], buf.Bytes()[1])
	}
}

func TestWriteUint32(t *testing.T) {
	buf := &Buffer{}
	w := NewWriter(buf)

	if err := w.WriteUint32(0x12345678); err != nil {
		t.Fatalf("WriteUint32 failed: %v", err)
	}

	expected := []byte{0x78, 0x56, 0x34, 0x12}
	if !bytes.Equal(buf.Bytes(), expected) {
		t.Errorf("expected %v, got %v", expected, buf.Bytes())
	}
}

func TestWriterReaderRoundTrip(t *testing.T) {
	buf := &Buffer{}
	w := NewWriter(buf)

	w.WriteString("NLP4\n")
	w.WriteUint32(7)
	w.WriteUint8(3)
	w.WriteFloat64(-2.5)
	w.WriteZeros(26)
	w.WriteUint16(513)

	r := NewReader(buf)
	magic, err := r.ReadBytes(5)
	if err != nil || string(magic) != "NLP4\n" {
		t.Fatalf("magic: %q, %v", magic, err)
	}
	if v, _ := r.ReadUint32(); v != 7 {
		t.Errorf("uint32: expected 7, got %d", v)
	}
	if v, _ := r.ReadUint8(); v != 3 {
		t.Errorf("uint8: expected 3, got %d", v)
	}
	if v, _ := r.ReadFloat64(); v != -2.5 {
		t.Errorf("float64: expected -2.5, got %v", v)
	}
	r.Skip(26)
	if v, _ := r.ReadUint16(); v != 513 {
		t.Errorf("uint16 after padding: expected 513, got %d", v)
	}
}

func TestBufferGrowsOnSparseWrite(t *testing.T) {
	buf := &Buffer{}
	w := NewWriter(buf).At(10)
	w.WriteUint8(0xAA)

	if buf.Len() != 11 {
		t.Fatalf("expected length 11, got %d", buf.Len())
	}
	if buf.Bytes()[10] != 0xAA || buf.Bytes()[0] != 0 {
		t.Errorf("unexpected contents %v", buf.Bytes())
	}
}

func TestSources(t *testing.T) {
	payload := []byte("NLP4\n0000000000018")
	path := filepath.Join(t.TempDir(), "source.nlp")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatal(err)
	}

	openers := map[string]func(string) (Source, error){
		"file":   OpenFile,
		"mapped": OpenMapped,
	}
	for name, open := range openers {
		t.Run(name, func(t *testing.T) {
			src, err := open(path)
			if err != nil {
				t.Fatalf("open failed: %v", err)
			}
			defer src.Close()

			if src.Size() != int64(len(payload)) {
				t.Errorf("expected size %d, got %d", len(payload), src.Size())
			}
			got, err := NewReader(src).At(5).ReadBytes(13)
			if err != nil {
				t.Fatalf("ReadBytes failed: %v", err)
			}
			if string(got) != "0000000000018" {
				t.Errorf("unexpected bytes %q", got)
			}
		})
	}
}

func TestOpenMappedEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.nlp")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := OpenMapped(path)
	if err != nil {
		t.Fatalf("OpenMapped failed: %v", err)
	}
	defer src.Close()

	if src.Size() != 0 {
		t.Errorf("expected size 0, got %d", src.Size())
	}
}
