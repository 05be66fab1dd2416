package capture

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"interviewcap/transcriber"
)

const (
	// NoSpeechSentinel is the transcript of a completed session in which
	// nothing was recognized, even by the fallback pass.
	NoSpeechSentinel = "(no speech detected)"

	// FallbackMessage is shown to the candidate when a session fails.
	FallbackMessage = "Recording failed. Please type your answer instead."
)

// Session is one recording attempt. It is created and mutated only by the
// scheduler goroutine that runs it.
type Session struct {
	ID             string
	TargetDuration time.Duration
	StartedAt      time.Time
	AudioPath      string
	VideoPath      string
	Transcript     string

	lifecycle *Lifecycle
}

func newSession(cfg Config) *Session {
	id := cfg.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{
		ID:             id,
		TargetDuration: cfg.TargetDuration,
		AudioPath:      filepath.Join(cfg.ArtifactDir, id+"."+cfg.AudioFormat),
		lifecycle:      NewLifecycle(),
	}
}

func (s *Session) State() State { return s.lifecycle.State() }

// Cleanup removes the session's artifact files. Missing files are ignored.
func (s *Session) Cleanup() error {
	return removeArtifacts(s.AudioPath, s.VideoPath)
}

func removeArtifacts(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WindowReport records what happened to one dispatched window.
type WindowReport struct {
	Index  int              `json:"index"`
	Start  time.Duration    `json:"start"`
	End    time.Duration    `json:"end"`
	Kind   transcriber.Kind `json:"kind"`
	Text   string           `json:"text,omitempty"`
	Detail string           `json:"detail,omitempty"`

	resolved bool
}

// Result is what a finished session hands its caller. VideoPath is empty
// when the session ran audio-only.
type Result struct {
	SessionID       string         `json:"session_id"`
	State           State          `json:"state"`
	Reason          Reason         `json:"reason,omitempty"`
	Transcript      string         `json:"transcript"`
	NoSpeech        bool           `json:"no_speech"`
	FallbackMessage string         `json:"fallback_message,omitempty"`
	AudioPath       string         `json:"audio_path,omitempty"`
	VideoPath       string         `json:"video_path,omitempty"`
	Duration        time.Duration  `json:"duration"`
	Samples         int            `json:"samples"`
	FramesAttempted int            `json:"frames_attempted"`
	FramesCaptured  int            `json:"frames_captured"`
	Windows         []WindowReport `json:"windows"`
	History         []State        `json:"history"`
}

// Cleanup removes the artifacts named by the result.
func (r *Result) Cleanup() error {
	return removeArtifacts(r.AudioPath, r.VideoPath)
}
