package rld

import (
	"io"
	"log"
	"sync"
	"time"

	"github.com/flimlab/gorld/camera"
)

// State is the sequencer's position in one measurement.
type State int

const (
	// Idle means no run is in progress
	Idle State = iota

	// Armed means hardware handles are attached and checked
	Armed

	// Capturing means the triggered frame loop is running
	Capturing

	// Stopped means the last run finished and camera triggering is halted
	Stopped

	// Failed means the last run ended on an error; triggering was still
	// halted best-effort
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Capturing:
		return "capturing"
	case Stopped:
		return "stopped"
	default:
		return "failed"
	}
}

// DefaultFrameTimeout bounds one blocking frame pull.  It has to cover the
// longest window gate plus the firmware interframe delay with margin.
const DefaultFrameTimeout = 10 * time.Second

// Sequencer drives one complete measurement through a gated camera and the
// RLD controller transport.  Both handles are injected capabilities owned
// by the surrounding process; the sequencer only uses them.  It is strictly
// synchronous: one frame pull at a time, no overlapping hardware IO.
type Sequencer struct {
	cam camera.Gated
	ctl io.Writer

	// FrameTimeout is the driver-level timeout for one frame pull
	FrameTimeout time.Duration

	// mu guards state; Abort and status queries may come from other
	// goroutines while a capture runs
	mu    sync.Mutex
	state State
}

// NewSequencer returns a sequencer with either or both handles attached.
// Nil handles are permitted here; Arm rejects them.
func NewSequencer(cam camera.Gated, ctl io.Writer) *Sequencer {
	return &Sequencer{cam: cam, ctl: ctl, FrameTimeout: DefaultFrameTimeout}
}

// Attach replaces the hardware handles.  Only valid outside a run.
func (s *Sequencer) Attach(cam camera.Gated, ctl io.Writer) {
	if cam != nil {
		s.cam = cam
	}
	if ctl != nil {
		s.ctl = ctl
	}
}

// State reports the sequencer state
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Sequencer) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Arm verifies both hardware handles are attached.  On failure the
// sequencer stays in its prior state and no hardware is touched.
func (s *Sequencer) Arm() error {
	if s.cam == nil || s.ctl == nil {
		return ErrNotReady
	}
	s.setState(Armed)
	return nil
}

// Capture runs one full measurement: configures the camera for triggered
// capture, programs and starts the controller, pulls sets x three frames
// in window order, and halts triggering.  The returned record is never nil
// once capture began; on error it holds whatever frames were pulled.
//
// Error semantics: ErrNotReady if not armed first, *AcquisitionError if
// the run died before one complete set, *PartialError if at least one
// complete set was captured.
func (s *Sequencer) Capture(p Parameters) (*Record, error) {
	if s.State() != Armed {
		if err := s.Arm(); err != nil {
			return nil, err
		}
	}
	p = p.Snapped()

	cfg := camera.TriggerConfig{
		ExposureTime: time.Duration(p.ExposureTimeUS) * time.Microsecond,
		BurstCount:   p.ExposuresPerFrame,
		SumBinning:   s.cam.Sensor() == camera.Monochrome,
	}
	if err := s.cam.Configure(cfg); err != nil {
		s.setState(Failed)
		return nil, &AcquisitionError{Window: Window1, Set: 0, Err: err}
	}
	if _, err := s.ctl.Write(EncodeSettings(p)); err != nil {
		s.setState(Failed)
		return nil, &AcquisitionError{Window: Window1, Set: 0, Err: err}
	}
	if err := s.cam.StartAcquisition(); err != nil {
		s.setState(Failed)
		return nil, &AcquisitionError{Window: Window1, Set: 0, Err: err}
	}
	if _, err := s.ctl.Write(EncodeStart()); err != nil {
		s.stopCamera()
		s.setState(Failed)
		return nil, &AcquisitionError{Window: Window1, Set: 0, Err: err}
	}

	rec := &Record{Params: p, StartNS: time.Now().UnixNano()}
	s.setState(Capturing)
	var cause *AcquisitionError
capture:
	for set := 0; set < p.SetsToAcquire; set++ {
		for _, w := range WindowOrder {
			f, err := s.cam.AwaitFrame(s.FrameTimeout)
			if err != nil {
				cause = &AcquisitionError{Window: w, Set: set, Err: err}
				break capture
			}
			rec.Stack.Seq(w).append(f)
		}
	}
	rec.EndNS = time.Now().UnixNano()
	s.stopCamera()

	// captured frames are demosaiced even when the run died early; the
	// frames themselves are valid, only the count is short, and the
	// reduction must never see raw mosaic data
	if s.cam.Sensor() == camera.Color {
		if err := s.demosaic(&rec.Stack); err != nil {
			if cause == nil {
				s.setState(Failed)
				return rec, &AcquisitionError{Window: Window1, Set: 0, Err: err}
			}
			// the pull failure below is the primary fault
			log.Println("demosaic of partial stack failed:", err)
		}
	}

	if cause != nil {
		s.setState(Failed)
		completed := completeSets(&rec.Stack)
		if completed == 0 {
			return rec, cause
		}
		rec.Partial = true
		return rec, &PartialError{Completed: completed, Requested: p.SetsToAcquire, Cause: cause}
	}
	// a clean run should never mismatch, but flag it rather than let the
	// reduction silently average unequal sample sizes
	if rec.Stack.Mismatched() {
		s.setState(Failed)
		rec.Partial = true
		return rec, &PartialError{Completed: completeSets(&rec.Stack), Requested: p.SetsToAcquire}
	}
	s.setState(Stopped)
	return rec, nil
}

// Abort halts camera triggering best-effort so the instrument is not left
// in a triggered state.  Intended for the surrounding process's shutdown
// path; the capture loop itself always stops the camera on exit.
func (s *Sequencer) Abort() {
	s.stopCamera()
	s.setState(Stopped)
}

func (s *Sequencer) stopCamera() {
	if s.cam == nil {
		return
	}
	if err := s.cam.StopAcquisition(); err != nil {
		log.Println("error halting camera triggering:", err)
	}
}

func (s *Sequencer) demosaic(st *Stack) error {
	for _, w := range WindowOrder {
		seq := st.Seq(w)
		for i, f := range seq.Frames {
			rgb, err := camera.DemosaicRGGB(f)
			if err != nil {
				return err
			}
			seq.Frames[i] = rgb
		}
	}
	return nil
}

// completeSets is the number of whole triples present in a stack
func completeSets(st *Stack) int {
	l := st.Lengths()
	min := l[0]
	if l[1] < min {
		min = l[1]
	}
	if l[2] < min {
		min = l[2]
	}
	return min
}
