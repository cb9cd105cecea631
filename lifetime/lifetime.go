/*Package lifetime reduces raw gated image stacks to per-pixel decay times.

The rapid lifetime determination (log-ratio) estimate from two time-gated
intensity samples is

	tau = delta_t / ln(w1 / w2)

with w1, w2 the dark-subtracted mean intensities of the two gate windows.
Pixels where the estimate is undefined (no signal in the denominator, a
zero or inverted ratio) carry NaN, never a zero, a clamp or an infinity;
consumers must treat NaN as "no data".

*/
package lifetime

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/flimlab/gorld/camera"
)

// ErrEmptyStack is generated when a window holds no frames at all; the
// mean over zero elements is undefined and the reduction refuses to run.
var ErrEmptyStack = errors.New("empty image stack")

// Map is a real-valued per-pixel decay time image in microseconds, with
// the same spatial extent as its input frames.  NaN marks pixels with no
// defined lifetime.
type Map struct {
	Data     []float64
	Width    int
	Height   int
	Channels int
}

// At returns the value at (x, y) for channel c
func (m *Map) At(x, y, c int) float64 {
	return m.Data[(y*m.Width+x)*m.Channels+c]
}

// Compute reduces the three raw sequences into a lifetime map.  deltaTUS
// is the gate separation in microseconds; a non-positive value is not
// rejected and propagates into the output as a sign flip or zeros.
//
// The per-window means are taken over however many frames each window
// holds, independently; mismatched lengths are the caller's concern to
// flag (the live sequencer already reports them as a partial acquisition).
func Compute(deltaTUS float64, w1, w2, dark []camera.Frame) (Map, error) {
	darkAvg, err := mean(dark)
	if err != nil {
		return Map{}, fmt.Errorf("dark: %w", err)
	}
	m1, err := mean(w1)
	if err != nil {
		return Map{}, fmt.Errorf("window1: %w", err)
	}
	m2, err := mean(w2)
	if err != nil {
		return Map{}, fmt.Errorf("window2: %w", err)
	}
	if !sameShape(w1[0], w2[0]) || !sameShape(w1[0], dark[0]) {
		return Map{}, fmt.Errorf("window shapes differ: %dx%dx%d vs %dx%dx%d",
			w1[0].Width, w1[0].Height, w1[0].Channels,
			w2[0].Width, w2[0].Height, w2[0].Channels)
	}

	floats.Sub(m1, darkAvg)
	floats.Sub(m2, darkAvg)

	out := Map{
		Data:     make([]float64, len(m1)),
		Width:    w1[0].Width,
		Height:   w1[0].Height,
		Channels: w1[0].Channels,
	}
	nan := math.NaN()
	for i := range out.Data {
		a, b := m1[i], m2[i]
		if b == 0 {
			out.Data[i] = nan
			continue
		}
		ratio := a / b
		if ratio == 0 {
			out.Data[i] = nan
			continue
		}
		lr := math.Log(ratio)
		// lr <= 0 is a non-decaying or inverted pixel; a negative ratio
		// already came out of Log as NaN.  Neither may yield a finite value.
		if !(lr > 0) {
			out.Data[i] = nan
			continue
		}
		out.Data[i] = deltaTUS / lr
	}
	return out, nil
}

// mean is the elementwise mean of a frame sequence in float64, avoiding
// integer underflow on the later dark subtraction
func mean(frames []camera.Frame) ([]float64, error) {
	if len(frames) == 0 {
		return nil, ErrEmptyStack
	}
	ref := frames[0]
	n := ref.Width * ref.Height * ref.Channels
	acc := make([]float64, n)
	tmp := make([]float64, n)
	for _, f := range frames {
		if !sameShape(f, ref) || len(f.Pix) != n {
			return nil, fmt.Errorf("frame shape %dx%dx%d does not match %dx%dx%d",
				f.Width, f.Height, f.Channels, ref.Width, ref.Height, ref.Channels)
		}
		for i, v := range f.Pix {
			tmp[i] = float64(v)
		}
		floats.Add(acc, tmp)
	}
	floats.Scale(1/float64(len(frames)), acc)
	return acc, nil
}

func sameShape(a, b camera.Frame) bool {
	return a.Width == b.Width && a.Height == b.Height && a.Channels == b.Channels
}
