package pixel

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zlib"

	bin "github.com/robert-malhotra/go-nlp4/internal/binary"
)

// CompressionDelta is the compression code of zlib-compressed delta payloads.
const CompressionDelta = 3

// Errors
var (
	ErrDecompression    = errors.New("decompression failed")
	ErrUnsupportedDepth = errors.New("unsupported bit depth")
	ErrSampleCount      = errors.New("sample count mismatch")
)

// MaxCanvasSamples bounds the canvas area. Larger dimensions only come from
// corrupt metadata.
const MaxCanvasSamples = 1 << 26

// CheckCanvas reports an ErrSampleCount error when a height x width canvas
// is negative or larger than MaxCanvasSamples.
func CheckCanvas(height, width int) error {
	if height < 0 || width < 0 || (height > 0 && width > MaxCanvasSamples/height) {
		return fmt.Errorf("%w: %dx%d canvas exceeds %d samples", ErrSampleCount, height, width, MaxCanvasSamples)
	}
	return nil
}

// Spec describes how a payload is encoded.
type Spec struct {
	BitsPerPixel uint8
	Compression  uint8
	Height       int
	Width        int
}

// Samples returns the number of samples the payload must hold.
func (s Spec) Samples() int {
	return s.Height * s.Width
}

// ReadPayload reads the length-prefixed payload at addr.
func ReadPayload(r *bin.Reader, addr int64) ([]byte, error) {
	cur := r.At(addr)
	n, err := cur.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("payload length at %d: %w", addr, err)
	}
	data, err := cur.ReadBytes(int(n))
	if err != nil {
		return nil, fmt.Errorf("payload at %d: %w", addr+4, err)
	}
	return data, nil
}

// Decode turns payload into a frame of canvasH x canvasW samples.
func Decode(payload []byte, spec Spec, canvasH, canvasW int) (*Frame, error) {
	if err := CheckCanvas(canvasH, canvasW); err != nil {
		return nil, err
	}
	if spec.Height < 0 || spec.Width < 0 || spec.Height > canvasH || spec.Width > canvasW {
		return nil, fmt.Errorf("%w: %dx%d frame on %dx%d canvas", ErrSampleCount, spec.Height, spec.Width, canvasH, canvasW)
	}

	samples, err := Samples(payload, spec)
	if err != nil {
		return nil, err
	}

	f := &Frame{
		Height: canvasH,
		Width:  canvasW,
		Pix:    make([]float64, canvasH*canvasW),
	}
	for y := 0; y < spec.Height; y++ {
		copy(f.Pix[y*canvasW:y*canvasW+spec.Width], samples[y*spec.Width:(y+1)*spec.Width])
	}
	f.Min, f.Max = extrema(f.Pix)
	return f, nil
}

// Samples decodes payload into spec.Samples() intensities in row-major order.
func Samples(payload []byte, spec Spec) ([]float64, error) {
	if spec.BitsPerPixel != 8 && spec.BitsPerPixel != 16 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedDepth, spec.BitsPerPixel)
	}
	if err := CheckCanvas(spec.Height, spec.Width); err != nil {
		return nil, err
	}
	width := int(spec.BitsPerPixel / 8)

	if spec.Compression == CompressionDelta {
		raw, err := inflate(payload, int64(spec.Samples()*width))
		if err != nil {
			return nil, err
		}
		if err := checkCount(len(raw), width, spec); err != nil {
			return nil, err
		}
		return accumulate(raw, width), nil
	}

	if err := checkCount(len(payload), width, spec); err != nil {
		return nil, err
	}
	out := make([]float64, spec.Samples())
	for i := range out {
		if width == 1 {
			out[i] = float64(payload[i])
		} else {
			out[i] = float64(binary.LittleEndian.Uint16(payload[2*i:]))
		}
	}
	return out, nil
}

// inflate decompresses at most limit+1 bytes; anything past limit is a
// sample count mismatch for the caller.
func inflate(payload []byte, limit int64) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: zlib reader: %v", ErrDecompression, err)
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
	}
	return out, nil
}

func checkCount(n, width int, spec Spec) error {
	if n%width != 0 || n/width != spec.Samples() {
		return fmt.Errorf("%w: have %d bytes of %d-bit samples, want %dx%d", ErrSampleCount, n, spec.BitsPerPixel, spec.Height, spec.Width)
	}
	return nil
}

// accumulate prefix-sums signed deltas. 8-bit sums wrap modulo 256.
func accumulate(raw []byte, width int) []float64 {
	out := make([]float64, len(raw)/width)
	var sum int64
	for i := range out {
		if width == 1 {
			sum += int64(int8(raw[i]))
			out[i] = float64(uint8(sum))
		} else {
			sum += int64(int16(binary.LittleEndian.Uint16(raw[2*i:])))
			out[i] = float64(sum)
		}
	}
	return out
}

func extrema(pix []float64) (lo, hi float64) {
	if len(pix) == 0 {
		return 0, 0
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range pix {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
