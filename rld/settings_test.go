package rld

import (
	"errors"
	"os"
	"path"
	"testing"
)

func TestSettingsRoundTrip(t *testing.T) {
	p := Parameters{
		SetsToAcquire:     5,
		ExposureTimeUS:    40,
		DelayWindow1US:    1.25,
		DelayWindow2US:    31.25,
		PulseWidthUS:      12.5,
		ExposuresPerFrame: 4,
		EndDelayUS:        33,
		LightIntensity:    80,
	}
	fn := path.Join(t.TempDir(), "settings.conf")
	if err := SaveSettings(fn, p); err != nil {
		t.Fatal(err)
	}
	got, err := LoadSettings(fn)
	if err != nil {
		t.Fatal(err)
	}
	if got != p {
		t.Errorf("round trip changed parameters: expected %+v got %+v", p, got)
	}
}

func TestLoadSettingsIncomplete(t *testing.T) {
	// current schema section with one field missing
	content := `[ImagingParameters]
exposure_time_us = 20
delay_window1_us = 2.5
delay_window2_us = 22.5
end_delay_us = 33
pulse_width_us = 40
light_intensity = 100
sets_to_acquire = 3
`
	fn := path.Join(t.TempDir(), "settings.conf")
	if err := os.WriteFile(fn, []byte(content), 0666); err != nil {
		t.Fatal(err)
	}
	existing := Parameters{SetsToAcquire: 7, ExposureTimeUS: 55}
	_, err := LoadSettings(fn)
	if !errors.Is(err, ErrSettingsIncomplete) {
		t.Errorf("expected ErrSettingsIncomplete, got %v", err)
	}
	// the caller's parameter set must be untouched by a failed load
	if existing.SetsToAcquire != 7 || existing.ExposureTimeUS != 55 {
		t.Error("existing parameters were modified by a failed load")
	}
}

func TestLoadSettingsInvalidFieldIsIncomplete(t *testing.T) {
	content := `[ImagingParameters]
exposure_time_us = twenty
delay_window1_us = 2.5
delay_window2_us = 22.5
end_delay_us = 33
pulse_width_us = 40
light_intensity = 100
sets_to_acquire = 3
exposures_per_frame = 10
`
	fn := path.Join(t.TempDir(), "settings.conf")
	if err := os.WriteFile(fn, []byte(content), 0666); err != nil {
		t.Fatal(err)
	}
	_, err := LoadSettings(fn)
	if !errors.Is(err, ErrSettingsIncomplete) {
		t.Errorf("expected ErrSettingsIncomplete for unparseable field, got %v", err)
	}
}

func TestLoadSettingsCorrupt(t *testing.T) {
	fn := path.Join(t.TempDir(), "settings.conf")
	if err := os.WriteFile(fn, []byte("{this is not a settings file"), 0666); err != nil {
		t.Fatal(err)
	}
	_, err := LoadSettings(fn)
	if !errors.Is(err, ErrSettingsCorrupt) {
		t.Errorf("expected ErrSettingsCorrupt, got %v", err)
	}
}

func TestLoadSettingsNotFound(t *testing.T) {
	_, err := LoadSettings(path.Join(t.TempDir(), "nope.conf"))
	if !errors.Is(err, ErrSettingsNotFound) {
		t.Errorf("expected ErrSettingsNotFound, got %v", err)
	}
}

func TestLoadSettingsNoRecognizedSection(t *testing.T) {
	fn := path.Join(t.TempDir(), "settings.conf")
	if err := os.WriteFile(fn, []byte("[Other]\nfoo = 1\n"), 0666); err != nil {
		t.Fatal(err)
	}
	_, err := LoadSettings(fn)
	if !errors.Is(err, ErrSettingsNotFound) {
		t.Errorf("expected ErrSettingsNotFound, got %v", err)
	}
}

func TestLoadSettingsLegacySchema(t *testing.T) {
	content := `[Settings]
exposure_us = 30
delay_window2_us = 25
end_delay_us = 40
light_pulse_width_us = 35
light_intensity = 90
sets_to_acquire = 2
exposures_per_frame = 5
`
	fn := path.Join(t.TempDir(), "settings.conf")
	if err := os.WriteFile(fn, []byte(content), 0666); err != nil {
		t.Fatal(err)
	}
	p, err := LoadSettings(fn)
	if err != nil {
		t.Fatal(err)
	}
	if p.ExposureTimeUS != 30 || p.DelayWindow2US != 25 || p.PulseWidthUS != 35 {
		t.Errorf("legacy fields not mapped: %+v", p)
	}
	// the legacy schema has no first-window delay; the default applies
	if p.DelayWindow1US != DefaultParameters().DelayWindow1US {
		t.Errorf("expected default delay_window1_us, got %g", p.DelayWindow1US)
	}
}
