package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Capture.SampleRate != 16000 {
		t.Fatalf("expected 16kHz default, got %d", cfg.Capture.SampleRate)
	}
	if cfg.Capture.WindowMS != 3000 || cfg.Transcription.RecognizeTimeoutMS != 2500 {
		t.Fatalf("unexpected window/timeout defaults: %d/%d", cfg.Capture.WindowMS, cfg.Transcription.RecognizeTimeoutMS)
	}
	if cfg.Events.Enabled {
		t.Fatal("events should be disabled by default")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interviewcap.yaml")
	data := `
capture:
  duration_s: 90
  audio_format: wav
transcription:
  provider: deepgram
  language: de
video:
  enabled: false
events:
  enabled: true
  brokers: ["k1:9092", "k2:9092"]
  topic: reports
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Capture.DurationS != 90 || cfg.Capture.AudioFormat != "wav" {
		t.Fatalf("capture section not applied: %+v", cfg.Capture)
	}
	if cfg.Capture.SampleRate != 16000 {
		t.Fatalf("unset fields should keep defaults, got sample rate %d", cfg.Capture.SampleRate)
	}
	if cfg.Transcription.Provider != "deepgram" || cfg.Transcription.Language != "de" {
		t.Fatalf("transcription section not applied: %+v", cfg.Transcription)
	}
	if len(cfg.Events.Brokers) != 2 || cfg.Events.Topic != "reports" {
		t.Fatalf("events section not applied: %+v", cfg.Events)
	}

	sc := cfg.SchedulerConfig()
	if sc.TargetDuration != 90*time.Second {
		t.Fatalf("expected 90s target, got %v", sc.TargetDuration)
	}
	if sc.CameraIndex >= 0 {
		t.Fatalf("disabled video should map to a negative camera index, got %d", sc.CameraIndex)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("capture: [unterminated"), 0644)
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("INTERVIEWCAP_CAPTURE_DURATION_S", "45")
	t.Setenv("INTERVIEWCAP_CAPTURE_ARTIFACT_DIR", "/tmp/artifacts")
	t.Setenv("INTERVIEWCAP_CAPTURE_GAIN", "4")
	t.Setenv("INTERVIEWCAP_TRANSCRIPTION_PROVIDER", "fake")
	t.Setenv("INTERVIEWCAP_TRANSCRIPTION_VAD_GATE", "false")
	t.Setenv("INTERVIEWCAP_VIDEO_DEVICE_INDEX", "2")
	t.Setenv("INTERVIEWCAP_EVENTS_ENABLED", "true")
	t.Setenv("INTERVIEWCAP_EVENTS_BROKERS", "a:9092, b:9092 ,")
	t.Setenv("INTERVIEWCAP_LOG_LEVEL", "debug")
	t.Setenv("INTERVIEWCAP_ANALYSIS_MIN_VIDEO_BYTES", "2048")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Capture.DurationS != 45 || cfg.Capture.ArtifactDir != "/tmp/artifacts" || cfg.Capture.Gain != 4 {
		t.Fatalf("capture overrides not applied: %+v", cfg.Capture)
	}
	if cfg.Transcription.Provider != "fake" || cfg.Transcription.VADGate {
		t.Fatalf("transcription overrides not applied: %+v", cfg.Transcription)
	}
	if cfg.Video.DeviceIndex != 2 {
		t.Fatalf("expected camera 2, got %d", cfg.Video.DeviceIndex)
	}
	if !cfg.Events.Enabled || len(cfg.Events.Brokers) != 2 || cfg.Events.Brokers[1] != "b:9092" {
		t.Fatalf("events overrides not applied: %+v", cfg.Events)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.Log.Level)
	}
	if cfg.Analysis.MinVideoBytes != 2048 {
		t.Fatalf("expected 2048, got %d", cfg.Analysis.MinVideoBytes)
	}
}

func TestEnvOverrideIgnoresGarbage(t *testing.T) {
	t.Setenv("INTERVIEWCAP_CAPTURE_DURATION_S", "soon")
	t.Setenv("INTERVIEWCAP_TRANSCRIPTION_LANGUAGE", "   ")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Capture.DurationS != 30 || cfg.Transcription.Language != "en" {
		t.Fatalf("garbage overrides should be ignored: %d %q", cfg.Capture.DurationS, cfg.Transcription.Language)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero duration", func(c *Config) { c.Capture.DurationS = 0 }, "capture.duration_s"},
		{"bad format", func(c *Config) { c.Capture.AudioFormat = "mp3" }, "capture.audio_format"},
		{"timeout not below window", func(c *Config) { c.Transcription.RecognizeTimeoutMS = 3000 }, "shorter than"},
		{"unknown provider", func(c *Config) { c.Transcription.Provider = "whisper.cpp" }, "not supported"},
		{"bad quality", func(c *Config) { c.Video.JPEGQuality = 0 }, "jpeg_quality"},
		{"events without topic", func(c *Config) { c.Events.Enabled = true; c.Events.Topic = "" }, "events.topic"},
		{"window shorter than tick", func(c *Config) { c.Capture.WindowMS = 50 }, "at least one tick"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}

	cfg := Default()
	cfg.Video.Enabled = false
	cfg.Video.JPEGQuality = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("video settings should be ignored when disabled: %v", err)
	}
}

func TestDispatcherAndCameraConfig(t *testing.T) {
	cfg := Default()
	cfg.Transcription.Language = "fr"
	cfg.Video.DeviceName = "FaceTime HD Camera"

	dc := cfg.DispatcherConfig()
	if dc.Timeout != 2500*time.Millisecond || dc.Language != "fr" || !dc.VADGate {
		t.Fatalf("unexpected dispatcher config: %+v", dc)
	}
	cc := cfg.CameraConfig()
	if cc.Width != 640 || cc.Device != "FaceTime HD Camera" {
		t.Fatalf("unexpected camera config: %+v", cc)
	}
	if ac := cfg.AudioConfig(); ac.SampleRate != 16000 || ac.Channels != 1 {
		t.Fatalf("unexpected audio config: %+v", ac)
	}
}
