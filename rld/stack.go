package rld

import (
	"github.com/flimlab/gorld/camera"
)

// Window names one of the three capture roles of a set.
type Window string

// The capture order within one set is fixed: the controller fires the two
// gated exposures first and the dark reference last.
const (
	Window1 Window = "window1"
	Window2 Window = "window2"
	Dark    Window = "dark"
)

// WindowOrder is the fixed order frames arrive in within one set.
var WindowOrder = [3]Window{Window1, Window2, Dark}

// Sequence is the ordered frames captured for one window role, with the
// camera hardware timestamp of each frame kept in a parallel slice.
type Sequence struct {
	Frames     []camera.Frame
	Timestamps []int64
}

func (s *Sequence) append(f camera.Frame) {
	s.Frames = append(s.Frames, f)
	s.Timestamps = append(s.Timestamps, f.Timestamp)
}

// Len is the number of frames captured for this window
func (s *Sequence) Len() int {
	return len(s.Frames)
}

// Stack holds the three raw image sequences of one measurement.  It is
// constructed fresh for every run and never shared between records.
type Stack struct {
	Window1 Sequence
	Window2 Sequence
	Dark    Sequence
}

// Seq returns the sequence for a window role
func (st *Stack) Seq(w Window) *Sequence {
	switch w {
	case Window1:
		return &st.Window1
	case Window2:
		return &st.Window2
	default:
		return &st.Dark
	}
}

// Lengths returns the per-window frame counts in window order
func (st *Stack) Lengths() [3]int {
	return [3]int{st.Window1.Len(), st.Window2.Len(), st.Dark.Len()}
}

// Mismatched reports whether the three windows hold unequal frame counts.
// Under correct operation all three equal the requested set count; a
// mismatch marks a partial acquisition or a partially loaded folder.
func (st *Stack) Mismatched() bool {
	l := st.Lengths()
	return l[0] != l[1] || l[0] != l[2]
}

// Empty reports whether no frames were captured at all
func (st *Stack) Empty() bool {
	l := st.Lengths()
	return l[0] == 0 && l[1] == 0 && l[2] == 0
}
