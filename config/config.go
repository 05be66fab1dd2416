// Package config loads interviewcap settings from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"interviewcap/audio"
	"interviewcap/capture"
	"interviewcap/encoder"
	"interviewcap/transcriber"
	"interviewcap/video"
)

const envPrefix = "INTERVIEWCAP_"

type CaptureConfig struct {
	SampleRate        int    `yaml:"sample_rate"`
	DurationS         int    `yaml:"duration_s"`
	TickIntervalMS    int    `yaml:"tick_interval_ms"`
	WindowMS          int    `yaml:"window_ms"`
	FinalizeTimeoutMS int    `yaml:"finalize_timeout_ms"`
	MaxInFlight       int    `yaml:"max_in_flight"`
	ArtifactDir       string `yaml:"artifact_dir"`
	AudioFormat       string `yaml:"audio_format"`
	SilenceWarnMS     int    `yaml:"silence_warn_ms"`
	Device            string `yaml:"device"`
	Gain              int    `yaml:"gain"`
}

type TranscriptionConfig struct {
	Provider           string `yaml:"provider"`
	Language           string `yaml:"language"`
	RecognizeTimeoutMS int    `yaml:"recognize_timeout_ms"`
	FallbackTimeoutMS  int    `yaml:"fallback_timeout_ms"`
	VADGate            bool   `yaml:"vad_gate"`
	UploadFormat       string `yaml:"upload_format"`
}

type VideoConfig struct {
	Enabled     bool   `yaml:"enabled"`
	DeviceIndex int    `yaml:"device_index"`
	DeviceName  string `yaml:"device_name"`
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	FPS         int    `yaml:"fps"`
	JPEGQuality int    `yaml:"jpeg_quality"`
	InputFormat string `yaml:"input_format"`
}

type AnalysisConfig struct {
	CascadePath   string `yaml:"cascade_path"`
	MinAudioBytes int64  `yaml:"min_audio_bytes"`
	MinVideoBytes int64  `yaml:"min_video_bytes"`
}

type MetricsConfig struct {
	Bind string `yaml:"bind"`
}

type EventsConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

type Config struct {
	Capture       CaptureConfig       `yaml:"capture"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Video         VideoConfig         `yaml:"video"`
	Analysis      AnalysisConfig      `yaml:"analysis"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Events        EventsConfig        `yaml:"events"`
	Log           LogConfig           `yaml:"log"`
}

func Default() Config {
	cam := video.DefaultCameraConfig()
	return Config{
		Capture: CaptureConfig{
			SampleRate:        encoder.SampleRate,
			DurationS:         int(capture.DefaultTargetDuration / time.Second),
			TickIntervalMS:    int(capture.DefaultTickInterval / time.Millisecond),
			WindowMS:          int(transcriber.DefaultWindow / time.Millisecond),
			FinalizeTimeoutMS: int(capture.DefaultFinalizeTimeout / time.Millisecond),
			MaxInFlight:       capture.DefaultMaxInFlight,
			AudioFormat:       encoder.FormatFLAC,
			SilenceWarnMS:     8000,
			Gain:              1,
		},
		Transcription: TranscriptionConfig{
			Language:           "en",
			RecognizeTimeoutMS: int(transcriber.DefaultTimeout / time.Millisecond),
			FallbackTimeoutMS:  int(transcriber.DefaultFallbackTimeout / time.Millisecond),
			VADGate:            true,
			UploadFormat:       encoder.FormatFLAC,
		},
		Video: VideoConfig{
			Enabled:     true,
			Width:       cam.Width,
			Height:      cam.Height,
			FPS:         cam.FPS,
			JPEGQuality: video.DefaultJPEGQuality,
		},
		Analysis: AnalysisConfig{
			MinAudioBytes: 1024,
			MinVideoBytes: 1024,
		},
		Events: EventsConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "interview.capture.reports",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path (if non-empty) over Default, applies INTERVIEWCAP_*
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideInt(&cfg.Capture.SampleRate, "CAPTURE_SAMPLE_RATE")
	overrideInt(&cfg.Capture.DurationS, "CAPTURE_DURATION_S")
	overrideInt(&cfg.Capture.TickIntervalMS, "CAPTURE_TICK_INTERVAL_MS")
	overrideInt(&cfg.Capture.WindowMS, "CAPTURE_WINDOW_MS")
	overrideInt(&cfg.Capture.FinalizeTimeoutMS, "CAPTURE_FINALIZE_TIMEOUT_MS")
	overrideInt(&cfg.Capture.MaxInFlight, "CAPTURE_MAX_IN_FLIGHT")
	overrideString(&cfg.Capture.ArtifactDir, "CAPTURE_ARTIFACT_DIR")
	overrideString(&cfg.Capture.AudioFormat, "CAPTURE_AUDIO_FORMAT")
	overrideInt(&cfg.Capture.SilenceWarnMS, "CAPTURE_SILENCE_WARN_MS")
	overrideString(&cfg.Capture.Device, "CAPTURE_DEVICE")
	overrideInt(&cfg.Capture.Gain, "CAPTURE_GAIN")
	overrideString(&cfg.Transcription.Provider, "TRANSCRIPTION_PROVIDER")
	overrideString(&cfg.Transcription.Language, "TRANSCRIPTION_LANGUAGE")
	overrideInt(&cfg.Transcription.RecognizeTimeoutMS, "TRANSCRIPTION_RECOGNIZE_TIMEOUT_MS")
	overrideInt(&cfg.Transcription.FallbackTimeoutMS, "TRANSCRIPTION_FALLBACK_TIMEOUT_MS")
	overrideBool(&cfg.Transcription.VADGate, "TRANSCRIPTION_VAD_GATE")
	overrideString(&cfg.Transcription.UploadFormat, "TRANSCRIPTION_UPLOAD_FORMAT")
	overrideBool(&cfg.Video.Enabled, "VIDEO_ENABLED")
	overrideInt(&cfg.Video.DeviceIndex, "VIDEO_DEVICE_INDEX")
	overrideString(&cfg.Video.DeviceName, "VIDEO_DEVICE_NAME")
	overrideInt(&cfg.Video.Width, "VIDEO_WIDTH")
	overrideInt(&cfg.Video.Height, "VIDEO_HEIGHT")
	overrideInt(&cfg.Video.FPS, "VIDEO_FPS")
	overrideInt(&cfg.Video.JPEGQuality, "VIDEO_JPEG_QUALITY")
	overrideString(&cfg.Video.InputFormat, "VIDEO_INPUT_FORMAT")
	overrideString(&cfg.Analysis.CascadePath, "ANALYSIS_CASCADE_PATH")
	overrideInt64(&cfg.Analysis.MinAudioBytes, "ANALYSIS_MIN_AUDIO_BYTES")
	overrideInt64(&cfg.Analysis.MinVideoBytes, "ANALYSIS_MIN_VIDEO_BYTES")
	overrideString(&cfg.Metrics.Bind, "METRICS_BIND")
	overrideBool(&cfg.Events.Enabled, "EVENTS_ENABLED")
	overrideStringSlice(&cfg.Events.Brokers, "EVENTS_BROKERS")
	overrideString(&cfg.Events.Topic, "EVENTS_TOPIC")
	overrideString(&cfg.Log.Level, "LOG_LEVEL")
	overrideString(&cfg.Log.Path, "LOG_PATH")
}

func overrideString(target *string, key string) {
	if value, ok := os.LookupEnv(envPrefix + key); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, key string) {
	if value, ok := os.LookupEnv(envPrefix + key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideInt64(target *int64, key string) {
	if value, ok := os.LookupEnv(envPrefix + key); ok {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, key string) {
	if value, ok := os.LookupEnv(envPrefix + key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, key string) {
	if value, ok := os.LookupEnv(envPrefix + key); ok {
		var trimmed []string
		for _, p := range strings.Split(value, ",") {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validFormat(f string) bool {
	return f == encoder.FormatFLAC || f == encoder.FormatWAV
}

// Validate reports the first setting that cannot drive a session.
func (c Config) Validate() error {
	if c.Capture.SampleRate <= 0 {
		return errors.New("capture.sample_rate must be positive")
	}
	if c.Capture.DurationS <= 0 {
		return errors.New("capture.duration_s must be positive")
	}
	if c.Capture.TickIntervalMS <= 0 {
		return errors.New("capture.tick_interval_ms must be positive")
	}
	if c.Capture.WindowMS < c.Capture.TickIntervalMS {
		return errors.New("capture.window_ms must be at least one tick")
	}
	if c.Capture.FinalizeTimeoutMS <= 0 {
		return errors.New("capture.finalize_timeout_ms must be positive")
	}
	if c.Capture.MaxInFlight <= 0 {
		return errors.New("capture.max_in_flight must be >= 1")
	}
	if !validFormat(c.Capture.AudioFormat) {
		return errors.New("capture.audio_format must be one of flac|wav")
	}
	if c.Capture.Gain < 0 {
		return errors.New("capture.gain must be >= 0")
	}
	switch c.Transcription.Provider {
	case "", transcriber.ProviderGroq, transcriber.ProviderOpenAI, transcriber.ProviderDeepgram,
		transcriber.ProviderGoogle, transcriber.ProviderFake:
	default:
		return fmt.Errorf("transcription.provider %q is not supported", c.Transcription.Provider)
	}
	if c.Transcription.RecognizeTimeoutMS <= 0 {
		return errors.New("transcription.recognize_timeout_ms must be positive")
	}
	if c.Transcription.RecognizeTimeoutMS >= c.Capture.WindowMS {
		return errors.New("transcription.recognize_timeout_ms must be shorter than capture.window_ms")
	}
	if c.Transcription.FallbackTimeoutMS <= 0 {
		return errors.New("transcription.fallback_timeout_ms must be positive")
	}
	if !validFormat(c.Transcription.UploadFormat) {
		return errors.New("transcription.upload_format must be one of flac|wav")
	}
	if c.Video.Enabled {
		if c.Video.DeviceIndex < 0 {
			return errors.New("video.device_index must be >= 0")
		}
		if c.Video.Width <= 0 || c.Video.Height <= 0 {
			return errors.New("video.width and video.height must be positive")
		}
		if c.Video.FPS <= 0 {
			return errors.New("video.fps must be positive")
		}
		if c.Video.JPEGQuality < 1 || c.Video.JPEGQuality > 100 {
			return errors.New("video.jpeg_quality must be between 1 and 100")
		}
	}
	if c.Analysis.MinAudioBytes < 0 || c.Analysis.MinVideoBytes < 0 {
		return errors.New("analysis minimum sizes must be >= 0")
	}
	if c.Events.Enabled {
		if len(c.Events.Brokers) == 0 {
			return errors.New("events.brokers must not be empty when events are enabled")
		}
		if c.Events.Topic == "" {
			return errors.New("events.topic must not be empty when events are enabled")
		}
	}
	return nil
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// SchedulerConfig maps the capture section onto the scheduler's settings.
func (c Config) SchedulerConfig() capture.Config {
	cameraIndex := c.Video.DeviceIndex
	if !c.Video.Enabled {
		cameraIndex = -1
	}
	return capture.Config{
		TargetDuration:  time.Duration(c.Capture.DurationS) * time.Second,
		SampleRate:      c.Capture.SampleRate,
		TickInterval:    ms(c.Capture.TickIntervalMS),
		Window:          ms(c.Capture.WindowMS),
		FinalizeTimeout: ms(c.Capture.FinalizeTimeoutMS),
		MaxInFlight:     c.Capture.MaxInFlight,
		ArtifactDir:     c.Capture.ArtifactDir,
		AudioFormat:     c.Capture.AudioFormat,
		CameraIndex:     cameraIndex,
		SilenceWarn:     ms(c.Capture.SilenceWarnMS),
	}
}

func (c Config) DispatcherConfig() transcriber.DispatcherConfig {
	return transcriber.DispatcherConfig{
		Language:        c.Transcription.Language,
		SampleRate:      c.Capture.SampleRate,
		Format:          c.Transcription.UploadFormat,
		Timeout:         ms(c.Transcription.RecognizeTimeoutMS),
		FallbackTimeout: ms(c.Transcription.FallbackTimeoutMS),
		VADGate:         c.Transcription.VADGate,
	}
}

func (c Config) CameraConfig() video.CameraConfig {
	return video.CameraConfig{
		Width:       c.Video.Width,
		Height:      c.Video.Height,
		FPS:         c.Video.FPS,
		InputFormat: c.Video.InputFormat,
		Device:      c.Video.DeviceName,
	}
}

func (c Config) AudioConfig() audio.CaptureConfig {
	return audio.CaptureConfig{
		SampleRate: uint32(c.Capture.SampleRate),
		Channels:   uint32(encoder.Channels),
		Gain:       c.Capture.Gain,
	}
}
