package rld

import (
	"errors"
	"fmt"
)

// ErrNotReady is generated when the sequencer is asked to arm without both
// a camera and a controller transport attached.  No partial state is
// produced; the run never starts.
var ErrNotReady = errors.New("camera or controller transport not attached")

// Settings file parse outcomes.  These are never fatal; callers keep their
// existing parameters and inform the user.
var (
	// ErrSettingsNotFound means no settings file or recognized section was located
	ErrSettingsNotFound = errors.New("no settings file or settings section found")

	// ErrSettingsIncomplete means a recognized section was present but one or
	// more fields were absent or unparseable as a number
	ErrSettingsIncomplete = errors.New("settings section is missing or has invalid fields")

	// ErrSettingsCorrupt means the file could not be parsed as a settings file at all
	ErrSettingsCorrupt = errors.New("settings file is malformed")
)

// AcquisitionError is generated when a frame pull fails.  The run halts
// and the partial stack is retained; the sequencer does not retry.
type AcquisitionError struct {
	// Window is the capture role being pulled when the failure occurred
	Window Window

	// Set is the zero-based index of the set being captured
	Set int

	// Err is the underlying driver error
	Err error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("frame pull failed on %s of set %d: %v", e.Window, e.Set, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// PartialError is generated when a run produced at least one complete set
// but fewer than requested.  It is not fatal: the record holds the frames
// that were captured and the caller decides to accept, discard or re-run.
type PartialError struct {
	// Completed is the number of whole (window1, window2, dark) triples captured
	Completed int

	// Requested is the set count the run asked for
	Requested int

	// Cause is the acquisition failure that ended the run early, if any.
	// A nil Cause marks a mismatch detected after a nominally clean run.
	Cause *AcquisitionError
}

func (e *PartialError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("partial acquisition, %d of %d sets: %v", e.Completed, e.Requested, e.Cause)
	}
	return fmt.Sprintf("partial acquisition, %d of %d sets", e.Completed, e.Requested)
}

func (e *PartialError) Unwrap() error {
	if e.Cause == nil {
		return nil
	}
	return e.Cause
}
