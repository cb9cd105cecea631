// Package sim provides simulated instrument hardware: a gated camera and a
// pulse controller that parses the same wire commands the real firmware
// does.  The pair lets the full acquisition path run on a bench with no
// hardware attached, and backs the package tests.
package sim

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/flimlab/gorld/camera"
	"github.com/flimlab/gorld/rld"
)

// ErrNotAcquiring is generated when a frame is pulled from a camera that
// has not been started.
var ErrNotAcquiring = errors.New("sim camera is not acquiring")

// Camera is a simulated gated camera.  Frames cycle through the fixed
// window order (window1, window2, dark); gated frames carry a uniform
// field following an exponential decay of the configured Tau, the dark
// frame only the offset.
type Camera struct {
	// Width and Height are the simulated sensor extent
	Width  int
	Height int

	// Mosaic selects monochrome or color behavior
	Mosaic camera.Sensor

	// Tau is the simulated fluorescence decay constant in microseconds
	Tau float64

	// Amplitude is the gated signal at zero delay, per burst
	Amplitude float64

	// DarkLevel is the constant sensor offset
	DarkLevel uint16

	// FailAfter, when positive, makes every frame pull past the Nth fail.
	// Used to exercise partial acquisition handling.
	FailAfter int

	mu        sync.Mutex
	cfg       camera.TriggerConfig
	acquiring bool
	gate1US   float64
	gate2US   float64
	slot      int
	pulled    int
	clockNS   int64
}

// NewCamera returns a simulated monochrome camera with a 4 us decay
func NewCamera(width, height int) *Camera {
	return &Camera{
		Width:     width,
		Height:    height,
		Tau:       4.0,
		Amplitude: 1000,
		DarkLevel: 100,
	}
}

// Configure records the trigger configuration
func (c *Camera) Configure(cfg camera.TriggerConfig) error {
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	return nil
}

// StartAcquisition arms the simulated trigger loop
func (c *Camera) StartAcquisition() error {
	c.mu.Lock()
	c.acquiring = true
	c.slot = 0
	c.pulled = 0
	c.mu.Unlock()
	return nil
}

// StopAcquisition halts the simulated trigger loop
func (c *Camera) StopAcquisition() error {
	c.mu.Lock()
	c.acquiring = false
	c.mu.Unlock()
	return nil
}

// Sensor reports the configured mosaic variant
func (c *Camera) Sensor() camera.Sensor {
	return c.Mosaic
}

// setGates is called by the simulated controller with the recovered
// window delays, which the simulation uses as decay sample points
func (c *Camera) setGates(d1, d2 float64) {
	c.mu.Lock()
	c.gate1US = d1
	c.gate2US = d2
	c.mu.Unlock()
}

// AwaitFrame synthesizes the next frame in window order.
func (c *Camera) AwaitFrame(timeout time.Duration) (camera.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.acquiring {
		return camera.Frame{}, ErrNotAcquiring
	}
	if c.FailAfter > 0 && c.pulled >= c.FailAfter {
		return camera.Frame{}, fmt.Errorf("simulated driver timeout after %v", timeout)
	}
	var level float64
	switch c.slot {
	case 0:
		level = c.signal(c.gate1US)
	case 1:
		level = c.signal(c.gate2US)
	default:
		level = 0
	}
	bursts := c.cfg.BurstCount
	if bursts < 1 {
		bursts = 1
	}
	v := float64(c.DarkLevel) + level*float64(bursts)
	if v > 65535 {
		v = 65535
	}
	f := camera.Frame{
		Pix:       make([]uint16, c.Width*c.Height),
		Width:     c.Width,
		Height:    c.Height,
		Channels:  1,
		Timestamp: c.clockNS,
	}
	for i := range f.Pix {
		f.Pix[i] = uint16(v)
	}
	c.clockNS += c.cfg.ExposureTime.Nanoseconds() + int64(25*time.Millisecond)
	c.slot = (c.slot + 1) % 3
	c.pulled++
	return f, nil
}

func (c *Camera) signal(gateUS float64) float64 {
	if c.Tau <= 0 {
		return 0
	}
	return c.Amplitude * math.Exp(-gateUS/c.Tau)
}

// Controller emulates the RLD pulse controller's command parser.  It
// satisfies io.Writer like the real serial transport; R commands program
// the simulated camera's gate timings, A commands are accepted and
// ignored (the sim camera needs no explicit start pulse).
type Controller struct {
	Cam *Camera

	// Commands retains every command received, newline-terminated
	Commands [][]byte
}

// Write parses one controller command.
func (t *Controller) Write(b []byte) (int, error) {
	t.Commands = append(t.Commands, append([]byte(nil), b...))
	line := bytes.TrimSuffix(b, []byte{'\n'})
	fields := bytes.Split(line, []byte{','})
	switch {
	case len(fields) == 9 && len(fields[0]) == 1 && fields[0][0] == 'R':
		g1, err1 := strconv.ParseFloat(string(fields[2]), 64)
		g2, err2 := strconv.ParseFloat(string(fields[3]), 64)
		pw, err3 := strconv.ParseFloat(string(fields[6]), 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return 0, fmt.Errorf("malformed R command: %q", line)
		}
		if t.Cam != nil {
			// undo the gate-field arithmetic to recover the window delays,
			// like the firmware's timing stage does
			t.Cam.setGates(g1-pw+rld.TriggerSkewUS, g2-pw+rld.TriggerSkewUS)
		}
	case len(fields) == 1 && len(fields[0]) == 1 && fields[0][0] == 'A':
		// start command, nothing to do
	default:
		return 0, fmt.Errorf("unknown controller command: %q", line)
	}
	return len(b), nil
}
