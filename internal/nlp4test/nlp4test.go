// Package nlp4test builds synthetic NLP4 files for tests.
package nlp4test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zlib"

	"github.com/robert-malhotra/go-nlp4/internal/binary"
)

// CompressionDelta is the compression code of zlib-compressed delta payloads.
const CompressionDelta = 3

// Frame describes one directory entry and, for metadata entries, its block.
type Frame struct {
	// ContentCode defaults to 1 (metadata).
	ContentCode uint8
	// Tag defaults to "IMG00".
	Tag string

	Time time.Time
	CLK  float64
	// Fields are written as "*KEY VALUE" lines.
	Fields [][2]string
	// RawLines are appended verbatim after Fields.
	RawLines []string

	FrameNumber    uint32
	GrabTime       float64
	Width, Height  int
	BitsPerPixel   uint8
	ColorComponent uint8
	Compression    uint8

	// Samples are the true intensities, encoded per bit depth and compression.
	Samples []int64
	// Payload, when non-nil, is written instead of encoded Samples.
	Payload []byte
}

// File describes a whole NLP4 file.
type File struct {
	Timestamp      string
	FixedFrameSize int
	// Attributes are written as "KEY VALUE" header lines.
	Attributes [][2]string
	// HeaderLines are appended verbatim after Attributes.
	HeaderLines []string
	// FrameCount overrides the header frame count; defaults to len(Frames).
	FrameCount int
	Frames     []Frame
}

// Bytes encodes f. Blocks follow the header; the directory comes last.
func (f *File) Bytes() []byte {
	buf := &binary.Buffer{}

	frameCount := f.FrameCount
	if frameCount == 0 {
		frameCount = len(f.Frames)
	}

	// The directory offset is zero-padded so the header length is known
	// before the offset is.
	headerText := func(dirOffset int64) string {
		var b bytes.Buffer
		fmt.Fprintf(&b, "%s\n%d\n%010d\n%d\n", f.Timestamp, frameCount, dirOffset, f.FixedFrameSize)
		for _, kv := range f.Attributes {
			fmt.Fprintf(&b, "%s %s\n", kv[0], kv[1])
		}
		for _, line := range f.HeaderLines {
			b.WriteString(line + "\n")
		}
		return b.String()
	}
	headerSize := int64(5 + 13 + len(headerText(0)))

	w := binary.NewWriter(buf).At(headerSize)
	offsets := make([]int64, len(f.Frames))
	for i := range f.Frames {
		fr := &f.Frames[i]
		offsets[i] = w.Pos()
		if fr.contentCode() != 1 {
			// Opaque non-metadata block.
			w.WriteUint32(9)
			w.WriteString("OTHER")
			continue
		}
		fr.writeBlock(w)
	}

	dirOffset := w.Pos()
	w.WriteUint32(uint32(4 + 5 + 4 + 35*len(f.Frames)))
	w.WriteString("DIR00")
	w.WriteUint32(uint32(len(f.Frames)))
	for i, fr := range f.Frames {
		w.WriteUint32(fr.FrameNumber)
		w.WriteUint8(fr.contentCode())
		w.WriteUint32(uint32(offsets[i]))
		w.WriteZeros(26)
	}

	hw := binary.NewWriter(buf)
	hw.WriteString("NLP4\n")
	hw.WriteString(fmt.Sprintf("%013d", headerSize))
	hw.WriteString(headerText(dirOffset))

	return buf.Bytes()
}

// WriteFile writes f into a temporary directory and returns its path.
func (f *File) WriteFile(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "measurement.nlp")
	if err := os.WriteFile(path, f.Bytes(), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func (fr *Frame) contentCode() uint8 {
	if fr.ContentCode == 0 {
		return 1
	}
	return fr.ContentCode
}

func (fr *Frame) writeBlock(w *binary.Writer) {
	tag := fr.Tag
	if tag == "" {
		tag = "IMG00"
	}

	var text bytes.Buffer
	fmt.Fprintf(&text, "TIME %s\n", fr.Time.Format("Mon Jan 2 15:04:05 2006"))
	fmt.Fprintf(&text, "*CLK %g\n", fr.CLK)
	for _, kv := range fr.Fields {
		fmt.Fprintf(&text, "*%s %s\n", kv[0], kv[1])
	}
	for _, line := range fr.RawLines {
		text.WriteString(line + "\n")
	}

	payload := fr.Payload
	if payload == nil {
		payload = EncodeSamples(fr.Samples, fr.BitsPerPixel, fr.Compression)
	}

	start := w.Pos()
	w.WriteUint32(0) // block size, patched below
	w.WriteString(tag)
	w.WriteUint32(uint32(text.Len()))
	w.WriteBytes(text.Bytes())
	w.WriteUint32(fr.FrameNumber)
	w.WriteFloat64(fr.GrabTime)
	w.WriteUint32(uint32(fr.Width))
	w.WriteUint32(uint32(fr.Height))
	w.WriteUint8(fr.BitsPerPixel)
	w.WriteUint8(fr.ColorComponent)
	w.WriteUint8(fr.Compression)
	w.WriteZeros(48)
	w.WriteUint32(uint32(len(payload)))
	w.WriteBytes(payload)

	w.At(start).WriteUint32(uint32(w.Pos() - start))
}

// EncodeSamples encodes true intensities the way an instrument stores them.
func EncodeSamples(samples []int64, bitsPerPixel, compression uint8) []byte {
	if compression != CompressionDelta {
		var out []byte
		for _, s := range samples {
			if bitsPerPixel == 8 {
				out = append(out, byte(s))
			} else {
				out = append(out, byte(s), byte(s>>8))
			}
		}
		return out
	}

	deltas := make([]int64, len(samples))
	var prev int64
	for i, s := range samples {
		deltas[i] = s - prev
		prev = s
	}
	return Deflate(EncodeDeltas(deltas, bitsPerPixel))
}

// EncodeDeltas stores deltas as int8 or little-endian int16 values.
func EncodeDeltas(deltas []int64, bitsPerPixel uint8) []byte {
	var out []byte
	for _, d := range deltas {
		if bitsPerPixel == 8 {
			out = append(out, byte(int8(d)))
		} else {
			v := uint16(int16(d))
			out = append(out, byte(v), byte(v>>8))
		}
	}
	return out
}

// Deflate zlib-compresses data.
func Deflate(data []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write(data)
	zw.Close()
	return buf.Bytes()
}

// Ramp returns n samples starting at start and stepping by step.
func Ramp(n int, start, step int64) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = start + int64(i)*step
	}
	return out
}

// BaseTime is the acquisition time of the first synthetic frame.
var BaseTime = time.Date(2019, time.February, 23, 18, 56, 46, 0, time.UTC)

// Series returns n small 8-bit frames, alternating raw and delta payloads,
// each carrying the dynamic field GUN_HV.
func Series(n, width, height int) *File {
	f := &File{
		Timestamp:      BaseTime.Format("Mon Jan 2 15:04:05 2006"),
		FixedFrameSize: width * height,
		Attributes:     [][2]string{{"UPRISM_ST", "0.01975"}},
	}
	for i := 0; i < n; i++ {
		compression := uint8(0)
		if i%2 == 1 {
			compression = CompressionDelta
		}
		f.Frames = append(f.Frames, Frame{
			Time:         BaseTime.Add(time.Duration(i) * time.Second),
			CLK:          float64(i) + 0.5,
			Fields:       [][2]string{{"GUN_HV", "+15000.000000"}},
			FrameNumber:  uint32(i),
			GrabTime:     float64(i) * 0.25,
			Width:        width,
			Height:       height,
			BitsPerPixel: 8,
			Compression:  compression,
			Samples:      Ramp(width*height, int64(i), 1),
		})
	}
	return f
}
