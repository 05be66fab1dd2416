//go:build integration

package test_test

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("INTERVIEWCAP_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "INTERVIEWCAP_TEST_BIN not set; build the binary and point the variable at it")
		os.Exit(1)
	}
	os.Exit(m.Run())
}

// writeWAV writes a 16 kHz mono clip. A zero frequency gives silence.
func writeWAV(t *testing.T, freq, durationS float64) string {
	t.Helper()
	const (
		headerSize = 44
		sampleRate = 16000
	)
	numSamples := int(sampleRate * durationS)
	dataSize := numSamples * 2

	buf := make([]byte, headerSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], sampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], sampleRate*2)
	binary.LittleEndian.PutUint16(buf[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	for i := 0; i < numSamples; i++ {
		s := int16(8000 * math.Sin(2*math.Pi*freq*float64(i)/sampleRate))
		binary.LittleEndian.PutUint16(buf[headerSize+2*i:], uint16(s))
	}

	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, buf, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

type run struct {
	logDir string
	report map[string]any
	code   int
	output string
}

func runCapture(t *testing.T, stdin string, args ...string) run {
	t.Helper()
	r := run{logDir: t.TempDir()}
	reportPath := filepath.Join(t.TempDir(), "report.json")
	cmdArgs := append([]string{"-logpath", r.logDir, "-o", reportPath, "-provider", "fake", "-camera", "-1"}, args...)

	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = os.Environ()

	out, err := cmd.CombinedOutput()
	r.output = string(out)
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		r.code = exitErr.ExitCode()
	} else if err != nil {
		t.Fatalf("running binary: %v", err)
	}

	if data, err := os.ReadFile(reportPath); err == nil {
		if err := json.Unmarshal(data, &r.report); err != nil {
			t.Fatalf("bad report JSON: %v\n%s", err, data)
		}
	}
	return r
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func TestSessionRunsToTarget(t *testing.T) {
	clip := writeWAV(t, 220, 1.5)
	r := runCapture(t, "", "-test", clip, "-duration", "2s")
	if r.code != 0 {
		t.Fatalf("exit code %d\n%s", r.code, r.output)
	}
	if r.report["state"] != "complete" {
		t.Fatalf("state = %v\n%s", r.report["state"], r.output)
	}
	if _, ok := r.report["speech"]; !ok {
		t.Errorf("report has no speech metrics: %v", r.report)
	}
	diag := readLog(t, r.logDir, "diagnostics_log.txt")
	for _, want := range []string{"session_start", "session_end"} {
		if !strings.Contains(diag, want) {
			t.Errorf("diagnostics missing %q:\n%s", want, diag)
		}
	}
}

func TestStopEndsEarly(t *testing.T) {
	clip := writeWAV(t, 220, 1)
	r := runCapture(t, cmds("WAIT_AUDIO_DONE", "SLEEP 200", "STOP"), "-test", clip, "-duration", "60s")
	if r.code != 0 {
		t.Fatalf("exit code %d\n%s", r.code, r.output)
	}
	if r.report["state"] != "complete" {
		t.Fatalf("state = %v", r.report["state"])
	}
	if d, _ := r.report["duration"].(float64); d <= 0 || d >= 60e9 {
		t.Errorf("duration = %v ns, want between 0 and 60s", r.report["duration"])
	}
}

func TestSilentSessionReportsNoSpeech(t *testing.T) {
	clip := writeWAV(t, 0, 1)
	r := runCapture(t, "", "-test", clip, "-duration", "1s")
	if r.code != 0 {
		t.Fatalf("exit code %d\n%s", r.code, r.output)
	}
	if r.report["no_speech"] != true {
		t.Errorf("no_speech = %v", r.report["no_speech"])
	}
	if r.report["transcript"] != "(no speech detected)" {
		t.Errorf("transcript = %v", r.report["transcript"])
	}

	speech, ok := r.report["speech"].(map[string]any)
	if !ok {
		t.Fatalf("no speech metrics in report (speech_error = %v)", r.report["speech_error"])
	}
	if speech["clarity_score"] != 1.0 {
		t.Errorf("clarity_score = %v, want 1", speech["clarity_score"])
	}
	if speech["speaking_pace_wpm"] != 80.0 {
		t.Errorf("speaking_pace_wpm = %v, want 80", speech["speaking_pace_wpm"])
	}
}

func TestInvalidConfigExitsWithSetupError(t *testing.T) {
	r := runCapture(t, "", "-format", "mp3")
	if r.code != 1 {
		t.Errorf("exit code %d, want 1\n%s", r.code, r.output)
	}
	if r.report != nil {
		t.Error("no report expected for a setup error")
	}
}
