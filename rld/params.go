/*Package rld drives rapid-lifetime-determination measurements: it owns the
acquisition parameter model, the wire protocol to the RLD pulse controller,
the triggered capture sequencer, and settings file IO.

*/
package rld

import (
	"fmt"
)

// Calibration constants.  These encode measured hardware behavior of the
// reference instrument; there is no formula behind them and they are not
// user configurable.
const (
	// Granularity is the timing resolution of the controller in microseconds.
	// Delays and pulse widths are snapped to multiples of it before
	// transmission; values exactly halfway round up.
	Granularity = 0.0625

	// TriggerSkewUS compensates the propagation delay between the commanded
	// delay setting and the physical gate edge, in microseconds
	TriggerSkewUS = 0.75

	// InterframeDelayMS is the pause between repeated acquisition triples.
	// It is hardcoded in the controller firmware and listed here only for
	// documentation; nothing in this package can change it.
	InterframeDelayMS = 25
)

// Parameters is the immutable-per-run acquisition configuration.
// All times are in microseconds, matching the controller's command units.
type Parameters struct {
	// SetsToAcquire is the number of (window1, window2, dark) triples to
	// capture and average
	SetsToAcquire int `json:"setsToAcquire"`

	// ExposureTimeUS is the single-exposure integration time
	ExposureTimeUS int `json:"exposureTimeUS"`

	// DelayWindow1US is the gate delay of the first window relative to the
	// end of the excitation pulse
	DelayWindow1US float64 `json:"delayWindow1US"`

	// DelayWindow2US is the gate delay of the second window; it must exceed
	// DelayWindow1US for the lifetime to be physically meaningful
	DelayWindow2US float64 `json:"delayWindow2US"`

	// PulseWidthUS is the excitation pulse width
	PulseWidthUS float64 `json:"pulseWidthUS"`

	// ExposuresPerFrame is the number of hardware exposure bursts summed
	// per logical frame
	ExposuresPerFrame int `json:"exposuresPerFrame"`

	// EndDelayUS is the fixed trailing delay of the controller's internal
	// cycle.  Determined experimentally, forwarded verbatim.
	EndDelayUS int `json:"endDelayUS"`

	// LightIntensity is the excitation source drive in instrument units
	LightIntensity int `json:"lightIntensity"`
}

// DefaultParameters returns the parameter set the instrument boots with.
func DefaultParameters() Parameters {
	return Parameters{
		SetsToAcquire:     3,
		ExposureTimeUS:    20,
		DelayWindow1US:    2.5,
		DelayWindow2US:    22.5,
		PulseWidthUS:      40.0,
		ExposuresPerFrame: 10,
		EndDelayUS:        33,
		LightIntensity:    100,
	}
}

// snap rounds v to the nearest multiple of the controller granularity,
// halfway cases rounding up
func snap(v float64) float64 {
	return float64(int64(v/Granularity+0.5)) * Granularity
}

// Snapped returns a copy with the real-valued timings snapped to the
// controller's 1/16 us resolution.  The sequencer snaps before
// transmission; callers may snap earlier for display.
func (p Parameters) Snapped() Parameters {
	p.DelayWindow1US = snap(p.DelayWindow1US)
	p.DelayWindow2US = snap(p.DelayWindow2US)
	p.PulseWidthUS = snap(p.PulseWidthUS)
	return p
}

// DeltaT is the time separation of the two gate windows in microseconds
func (p Parameters) DeltaT() float64 {
	return p.DelayWindow2US - p.DelayWindow1US
}

// Validate checks the integer bounds from the data model.  The window
// ordering invariant (DelayWindow2US > DelayWindow1US) is deliberately not
// enforced here; violating it flips the sign of the computed lifetimes
// rather than failing the run.
func (p Parameters) Validate() error {
	if p.SetsToAcquire < 1 {
		return fmt.Errorf("sets_to_acquire must be >= 1, got %d", p.SetsToAcquire)
	}
	if p.ExposureTimeUS <= 0 {
		return fmt.Errorf("exposure_time_us must be > 0, got %d", p.ExposureTimeUS)
	}
	if p.DelayWindow1US < 0 || p.DelayWindow2US < 0 {
		return fmt.Errorf("gate delays must be non-negative, got %g and %g", p.DelayWindow1US, p.DelayWindow2US)
	}
	if p.PulseWidthUS <= 0 {
		return fmt.Errorf("pulse_width_us must be > 0, got %g", p.PulseWidthUS)
	}
	if p.ExposuresPerFrame < 1 {
		return fmt.Errorf("exposures_per_frame must be >= 1, got %d", p.ExposuresPerFrame)
	}
	return nil
}
