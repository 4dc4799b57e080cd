package pixel

import (
	"image"
	"math"
)

// Frame is a decoded image on the file's canvas.
type Frame struct {
	Height int
	Width  int
	// Pix holds Height*Width intensities in row-major order.
	Pix []float64
	Min float64
	Max float64
}

// At returns the intensity at row y, column x.
func (f *Frame) At(y, x int) float64 {
	return f.Pix[y*f.Width+x]
}

// Gray16 converts the frame to a 16-bit grayscale image. Intensities are
// clamped to [0, 65535].
func (f *Frame) Gray16() *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, f.Width, f.Height))
	for i, v := range f.Pix {
		c := uint16(math.Max(0, math.Min(v, math.MaxUint16)))
		img.Pix[2*i] = byte(c >> 8)
		img.Pix[2*i+1] = byte(c)
	}
	return img
}

// Extrema accumulates global minimum and maximum intensities across frames.
type Extrema struct {
	Min, Max float64
	n        int
}

// Add folds f into the running extrema.
func (e *Extrema) Add(f *Frame) {
	if e.n == 0 {
		e.Min, e.Max = f.Min, f.Max
	} else {
		e.Min = math.Min(e.Min, f.Min)
		e.Max = math.Max(e.Max, f.Max)
	}
	e.n++
}

// Count returns the number of folded frames.
func (e *Extrema) Count() int {
	return e.n
}
