package rld

// RLD controller command primer
//
// commands are comma separated ASCII, newline terminated.  Two exist:
//
//	R,<exposure>,<gate1>,<gate2>,<bursts>,<intensity>,<width>,<end>,<sets>\n
//	A\n
//
// R programs the timing registers, A begins the externally clocked
// acquisition cycle.  The gate fields are not the raw window delays: the
// pulse width is added (the windows are referenced to pulse end) and the
// trigger skew subtracted.  The controller may echo a terminator after R;
// the sequencer does not block on it.

import (
	"strconv"
)

const (
	opSettings = 'R'
	opStart    = 'A'

	txTerm = '\n'
)

// gateField converts a window delay to the controller's gate field:
// delay + pulse width - trigger skew, snapped to the timing granularity.
func gateField(delayUS, pulseWidthUS float64) float64 {
	return snap(delayUS) + snap(pulseWidthUS) - TriggerSkewUS
}

func appendFloat(b []byte, v float64) []byte {
	return strconv.AppendFloat(b, v, 'g', -1, 64)
}

func appendInt(b []byte, v int) []byte {
	return strconv.AppendInt(b, int64(v), 10)
}

// EncodeSettings builds the R command that programs the controller's
// timing registers from a parameter set.  Real-valued timings are snapped
// to the controller granularity before formatting.
func EncodeSettings(p Parameters) []byte {
	b := make([]byte, 0, 64)
	b = append(b, opSettings, ',')
	b = appendInt(b, p.ExposureTimeUS)
	b = append(b, ',')
	b = appendFloat(b, gateField(p.DelayWindow1US, p.PulseWidthUS))
	b = append(b, ',')
	b = appendFloat(b, gateField(p.DelayWindow2US, p.PulseWidthUS))
	b = append(b, ',')
	b = appendInt(b, p.ExposuresPerFrame)
	b = append(b, ',')
	b = appendInt(b, p.LightIntensity)
	b = append(b, ',')
	b = appendFloat(b, snap(p.PulseWidthUS))
	b = append(b, ',')
	b = appendInt(b, p.EndDelayUS)
	b = append(b, ',')
	b = appendInt(b, p.SetsToAcquire)
	b = append(b, txTerm)
	return b
}

// EncodeStart builds the A command that tells the controller to begin the
// acquisition cycle.  The interframe delay between triples is fixed in
// controller firmware; see InterframeDelayMS.
func EncodeStart() []byte {
	return []byte{opStart, txTerm}
}
