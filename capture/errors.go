package capture

import (
	"errors"
	"fmt"
)

var (
	ErrDeviceUnavailable = errors.New("device unavailable")
	ErrNoMicrophone      = fmt.Errorf("microphone: %w", ErrDeviceUnavailable)
	ErrZeroDuration      = errors.New("no audio samples captured")
	ErrArtifactWrite     = errors.New("writing audio artifact")
	ErrSessionFailed     = errors.New("capture session failed")
	ErrAlreadyRun        = errors.New("scheduler already ran")
)

// Reason explains why a session ended in StateFailed.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonNoMicrophone
	ReasonZeroDuration
	ReasonArtifactWrite
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonNoMicrophone:
		return "no_microphone"
	case ReasonZeroDuration:
		return "zero_duration"
	case ReasonArtifactWrite:
		return "artifact_write"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Err returns the sentinel matching r, or nil for ReasonNone.
func (r Reason) Err() error {
	switch r {
	case ReasonNoMicrophone:
		return ErrNoMicrophone
	case ReasonZeroDuration:
		return ErrZeroDuration
	case ReasonArtifactWrite:
		return ErrArtifactWrite
	default:
		return nil
	}
}
