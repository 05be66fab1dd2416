package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog        = zerolog.Nop()
	diagFile       *os.File
	transcribeFile *os.File
	logMu          sync.Mutex
	logReady       bool
	pid            int
	dir            string
	level          = zerolog.InfoLevel
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absolute(flagPath)
	}

	// Priority 2: INTERVIEWCAP_LOG_PATH environment variable
	if envPath := os.Getenv("INTERVIEWCAP_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

// SetLevel parses a zerolog level name. Unknown names leave the level unchanged.
func SetLevel(name string) error {
	l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return fmt.Errorf("log level %q: %w", name, err)
	}
	logMu.Lock()
	level = l
	if logReady {
		diagLog = diagLog.Level(l)
	}
	logMu.Unlock()
	return nil
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	transcribePath := filepath.Join(dir, "transcribe_log.txt")
	transcribeFile, err = os.OpenFile(transcribePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	diagLog = newLogger(diagFile)
	logReady = true
	return nil
}

func newLogger(w io.Writer) zerolog.Logger {
	consoleWriter := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	return zerolog.New(consoleWriter).Level(level).With().Timestamp().Int("pid", pid).Logger()
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcribeFile != nil {
		transcribeFile.Close()
		transcribeFile = nil
	}
	diagLog = zerolog.Nop()
	logReady = false
}

// Component returns a diagnostics logger tagged with name, for handing to
// the capture, transcriber and video packages. Before Init it discards.
func Component(name string) zerolog.Logger {
	logMu.Lock()
	defer logMu.Unlock()
	if !logReady {
		return zerolog.Nop()
	}
	return diagLog.With().Str("component", name).Logger()
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// TranscriptionText appends one tab-separated line to the transcript log.
func TranscriptionText(sessionID, text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	if transcribeFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, sessionID, text)
	transcribeFile.WriteString(line)
}

func SessionStart(id, provider, format string, target time.Duration, camera bool) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", id).
		Str("provider", provider).
		Str("format", format).
		Dur("target", target).
		Bool("camera", camera).
		Msg("session_start")
}

type SessionSummary struct {
	ID              string
	State           string
	Reason          string
	DurationS       float64
	Samples         int
	Windows         int
	FramesAttempted int
	FramesCaptured  int
}

func SessionEnd(s SessionSummary) {
	if !logReady {
		return
	}
	ev := diagLog.Info()
	if s.Reason != "" && s.Reason != "none" {
		ev = diagLog.Warn().Str("reason", s.Reason)
	}
	ev.Str("session", s.ID).
		Str("state", s.State).
		Float64("audio_s", s.DurationS).
		Int("samples", s.Samples).
		Int("windows", s.Windows).
		Int("frames_attempted", s.FramesAttempted).
		Int("frames_captured", s.FramesCaptured).
		Msg("session_end")
}

// WindowResult records the outcome of one recognition window.
func WindowResult(index int, kind, detail string, latency time.Duration) {
	if !logReady {
		return
	}
	ev := diagLog.Debug()
	if detail != "" {
		ev = diagLog.Warn().Str("detail", detail)
	}
	ev.Int("window", index).
		Str("kind", kind).
		Float64("latency_ms", float64(latency.Microseconds())/1000).
		Msg("window_result")
}

func Analysis(analyzer string, err error) {
	if !logReady {
		return
	}
	if err != nil {
		diagLog.Warn().Str("analyzer", analyzer).Err(err).Msg("analysis_failed")
		return
	}
	diagLog.Info().Str("analyzer", analyzer).Msg("analysis_done")
}
