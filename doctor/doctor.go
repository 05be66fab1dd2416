// Package doctor runs the environment checks behind -doctor.
package doctor

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"sync"
	"time"

	"interviewcap/audio"
	"interviewcap/clipboard"
	"interviewcap/encoder"
	"interviewcap/hotkey"
	"interviewcap/transcriber"
	"interviewcap/vad"
	"interviewcap/video"
)

// Check is one named probe. Detail is printed on success.
type Check struct {
	Name     string
	Optional bool // failure is reported but does not fail the run
	Run      func(ctx context.Context) (detail string, err error)
}

// Run executes checks in order, writing PASS/FAIL/WARN lines to w, and
// returns an exit code (0=all required checks pass, 1=any fail).
func Run(ctx context.Context, w io.Writer, checks []Check) int {
	fmt.Fprintln(w, "interviewcap doctor - system diagnostics")
	fmt.Fprintln(w, "========================================")

	failed := 0
	for i, c := range checks {
		fmt.Fprintf(w, "\n[%d/%d] %s\n", i+1, len(checks), c.Name)
		detail, err := c.Run(ctx)
		switch {
		case err == nil:
			fmt.Fprintf(w, "  PASS: %s\n", detail)
		case c.Optional:
			fmt.Fprintf(w, "  WARN: %v\n", err)
		default:
			fmt.Fprintf(w, "  FAIL: %v\n", err)
			failed++
		}
		if ctx.Err() != nil {
			fmt.Fprintln(w, "\nInterrupted")
			return 1
		}
	}

	fmt.Fprintln(w)
	if failed == 0 {
		fmt.Fprintln(w, "All checks passed!")
		return 0
	}
	fmt.Fprintf(w, "%d check(s) failed. See details above.\n", failed)
	return 1
}

// MicrophoneCheck records for d and requires at least one nonzero sample.
func MicrophoneCheck(open func() (audio.CaptureDevice, error), sampleRate int, d time.Duration) Check {
	return Check{
		Name: "Microphone",
		Run: func(ctx context.Context) (string, error) {
			dev, err := open()
			if err != nil {
				return "", err
			}
			if dev == nil {
				return "", audio.ErrNoDevice
			}
			defer dev.Close()

			var mu sync.Mutex
			var pcm []byte
			dev.SetCallback(func(data []byte, _ uint32) {
				mu.Lock()
				pcm = append(pcm, data...)
				mu.Unlock()
			})
			if err := dev.Start(); err != nil {
				return "", fmt.Errorf("starting capture: %w", err)
			}
			select {
			case <-time.After(d):
			case <-ctx.Done():
			}
			dev.Stop()
			dev.ClearCallback()

			mu.Lock()
			samples := make([]int16, len(pcm)/2)
			for i := range samples {
				samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
			}
			mu.Unlock()

			if len(samples) == 0 {
				return "", errors.New("no audio captured")
			}
			var peak float64
			for _, s := range samples {
				peak = math.Max(peak, math.Abs(float64(s)))
			}
			if peak == 0 {
				return "", fmt.Errorf("%d samples captured but all silent (muted input?)", len(samples))
			}
			detail := fmt.Sprintf("%s: %d samples, peak %.0f", dev.DeviceName(), len(samples), peak)
			if ratio, err := vad.SpeechRatio(samples, sampleRate); err == nil {
				detail += fmt.Sprintf(", speech %.0f%%", ratio*100)
			}
			return detail, nil
		},
	}
}

// CameraCheck opens camera index and grabs one frame.
func CameraCheck(open video.OpenFunc, index int) Check {
	return Check{
		Name:     "Camera",
		Optional: true,
		Run: func(ctx context.Context) (string, error) {
			if _, err := exec.LookPath("ffmpeg"); err != nil {
				return "", fmt.Errorf("ffmpeg not found on PATH: %w", err)
			}
			cam, err := open(index)
			if err != nil {
				return "", err
			}
			defer cam.Close()
			img, err := cam.Grab()
			if err != nil {
				return "", err
			}
			b := img.Bounds()
			return fmt.Sprintf("camera %d: %dx%d frame", index, b.Dx(), b.Dy()), nil
		},
	}
}

// RecognizerCheck sends one second of silence and requires a reply
// within timeout. Empty text is fine.
func RecognizerCheck(rec transcriber.Recognizer, format string, timeout time.Duration) Check {
	return Check{
		Name: "Transcription service",
		Run: func(ctx context.Context) (string, error) {
			if rec == nil {
				return "", errors.New("no transcription provider configured (set GROQ_API_KEY, OPENAI_API_KEY, DEEPGRAM_API_KEY or GOOGLE_APPLICATION_CREDENTIALS)")
			}
			data, err := encoder.Encode(format, make([]int16, encoder.SampleRate), encoder.SampleRate)
			if err != nil {
				return "", err
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			start := time.Now()
			if _, err := rec.Recognize(ctx, transcriber.Audio{Data: data, Format: format, SampleRate: encoder.SampleRate}); err != nil {
				return "", fmt.Errorf("%s: %w", rec.Name(), err)
			}
			return fmt.Sprintf("%s answered in %dms", rec.Name(), time.Since(start).Milliseconds()), nil
		},
	}
}

// HotkeyCheck verifies the stop key can be registered.
func HotkeyCheck(hk hotkey.Hotkey) Check {
	return Check{
		Name:     "Stop hotkey",
		Optional: true,
		Run: func(context.Context) (string, error) {
			if err := hk.Register(); err != nil {
				return "", err
			}
			hk.Unregister()
			resetTerminal()
			return hotkey.Label + " registered", nil
		},
	}
}

func ClipboardCheck() Check {
	return Check{
		Name:     "Clipboard",
		Optional: true,
		Run: func(context.Context) (string, error) {
			return clipboard.Diagnose()
		},
	}
}
