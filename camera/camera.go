/*Package camera describes the contract with time-gated trigger cameras.

The Gated interface contains everything the acquisition sequencer uses.
Concrete drivers (and the simulated hardware used in tests) implement it;
the sequencer never opens or closes the device itself.

*/
package camera

import (
	"errors"
	"time"
)

// ErrNotBayer is generated when demosaic is asked to process a frame
// that is not single-channel raw sensor data.
var ErrNotBayer = errors.New("frame is not single-channel bayer data, cannot demosaic")

// Sensor is the mosaic variant of a camera, resolved once at configuration
// time and never queried in the capture loop.
type Sensor int

const (
	// Monochrome sensors read out one intensity channel and support sum binning
	Monochrome Sensor = iota

	// Color sensors read out a Bayer mosaic which must be demosaiced before
	// any intensity arithmetic
	Color
)

func (s Sensor) String() string {
	if s == Color {
		return "color"
	}
	return "monochrome"
}

// Frame is one readout from the camera.  Pix is strided by Width*Channels;
// channels are interleaved for color data.  Timestamp is the hardware clock
// at exposure start in nanoseconds.  The hardware clock is monotonic and
// camera-internal; it is not comparable to wall time or across power cycles.
type Frame struct {
	Pix       []uint16
	Width     int
	Height    int
	Channels  int
	Timestamp int64
}

// TriggerConfig holds the camera features programmed before a gated run.
// The GPI/GPO roles are fixed by the instrument wiring: GPI port 2 carries
// the controller's exposure trigger edge, GPO port 3 mirrors exposure-active
// for scope inspection.
type TriggerConfig struct {
	// ExposureTime is the single-exposure integration time
	ExposureTime time.Duration

	// BurstCount is the number of hardware exposures summed per triggered frame
	BurstCount int

	// SumBinning enables 2x2 sum binning.  Only meaningful for monochrome
	// sensors; drivers ignore it for color sensors.
	SumBinning bool
}

// Gated describes a camera configured for externally triggered capture.
type Gated interface {
	// Configure programs the trigger, exposure and readout features.
	// Drivers put the sensor in 16-bit raw readout with gain/gamma
	// correction disabled.
	Configure(TriggerConfig) error

	// StartAcquisition arms the camera so trigger edges begin exposures
	StartAcquisition() error

	// StopAcquisition halts triggered capture.  It must be safe to call
	// on a camera that is not acquiring.
	StopAcquisition() error

	// AwaitFrame blocks until the hardware delivers one triggered frame or
	// the driver-level timeout elapses
	AwaitFrame(timeout time.Duration) (Frame, error)

	// Sensor reports the mosaic variant of the attached sensor
	Sensor() Sensor
}
