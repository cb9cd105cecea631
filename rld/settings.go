package rld

import (
	"os"
	"strconv"

	"gopkg.in/ini.v1"
)

// Settings files are plain text key/value sections.  The current schema
// carries all eight parameters under [ImagingParameters]; files written by
// older instrument firmware use a reduced [Settings] section with renamed
// keys and no first-window delay, which stays at its default when loading.
const (
	currentSection = "ImagingParameters"
	legacySection  = "Settings"
)

// LoadSettings parses a settings file into a parameter set.
//
// Outcomes are mutually exclusive: nil error with a complete parameter
// set, ErrSettingsNotFound, ErrSettingsIncomplete, or ErrSettingsCorrupt.
// On any non-nil error the returned parameters must be discarded; callers
// keep whatever configuration they already have.
func LoadSettings(path string) (Parameters, error) {
	p := DefaultParameters()
	f, err := ini.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, ErrSettingsNotFound
		}
		return p, ErrSettingsCorrupt
	}

	if sec, err := f.GetSection(currentSection); err == nil {
		ok := readInt(sec, "exposure_time_us", &p.ExposureTimeUS)
		ok = readFloat(sec, "delay_window1_us", &p.DelayWindow1US) && ok
		ok = readFloat(sec, "delay_window2_us", &p.DelayWindow2US) && ok
		ok = readInt(sec, "end_delay_us", &p.EndDelayUS) && ok
		ok = readFloat(sec, "pulse_width_us", &p.PulseWidthUS) && ok
		ok = readInt(sec, "light_intensity", &p.LightIntensity) && ok
		ok = readInt(sec, "sets_to_acquire", &p.SetsToAcquire) && ok
		ok = readInt(sec, "exposures_per_frame", &p.ExposuresPerFrame) && ok
		if !ok {
			return DefaultParameters(), ErrSettingsIncomplete
		}
		return p, nil
	}

	if sec, err := f.GetSection(legacySection); err == nil {
		// legacy firmware wrote integer delays and had no window 1 delay
		ok := readInt(sec, "exposure_us", &p.ExposureTimeUS)
		ok = readFloat(sec, "delay_window2_us", &p.DelayWindow2US) && ok
		ok = readInt(sec, "end_delay_us", &p.EndDelayUS) && ok
		ok = readFloat(sec, "light_pulse_width_us", &p.PulseWidthUS) && ok
		ok = readInt(sec, "light_intensity", &p.LightIntensity) && ok
		ok = readInt(sec, "sets_to_acquire", &p.SetsToAcquire) && ok
		ok = readInt(sec, "exposures_per_frame", &p.ExposuresPerFrame) && ok
		if !ok {
			return DefaultParameters(), ErrSettingsIncomplete
		}
		return p, nil
	}

	return p, ErrSettingsNotFound
}

// readInt stores the key's integer value into dst, reporting false when
// the key is absent or present but not a number
func readInt(sec *ini.Section, key string, dst *int) bool {
	if !sec.HasKey(key) {
		return false
	}
	v, err := sec.Key(key).Int()
	if err != nil {
		return false
	}
	*dst = v
	return true
}

func readFloat(sec *ini.Section, key string, dst *float64) bool {
	if !sec.HasKey(key) {
		return false
	}
	v, err := sec.Key(key).Float64()
	if err != nil {
		return false
	}
	*dst = v
	return true
}

// SaveSettings serializes a parameter set to path.  The current schema is
// always written, all eight fields.
func SaveSettings(path string, p Parameters) error {
	f := ini.Empty()
	sec, err := f.NewSection(currentSection)
	if err != nil {
		return err
	}
	sec.NewKey("exposure_time_us", strconv.Itoa(p.ExposureTimeUS))
	sec.NewKey("delay_window1_us", formatFloat(p.DelayWindow1US))
	sec.NewKey("delay_window2_us", formatFloat(p.DelayWindow2US))
	sec.NewKey("end_delay_us", strconv.Itoa(p.EndDelayUS))
	sec.NewKey("pulse_width_us", formatFloat(p.PulseWidthUS))
	sec.NewKey("light_intensity", strconv.Itoa(p.LightIntensity))
	sec.NewKey("sets_to_acquire", strconv.Itoa(p.SetsToAcquire))
	sec.NewKey("exposures_per_frame", strconv.Itoa(p.ExposuresPerFrame))
	return f.SaveTo(path)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
