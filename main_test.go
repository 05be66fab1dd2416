package main

import (
	"context"
	"encoding/json"
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"interviewcap/analysis"
	"interviewcap/capture"
	"interviewcap/config"
	"interviewcap/encoder"
	"interviewcap/transcriber"
	"interviewcap/video"
)

func writeTone(t *testing.T, dir string, seconds int) string {
	t.Helper()
	samples := make([]int16, seconds*encoder.SampleRate)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*220*float64(i)/float64(encoder.SampleRate)))
	}
	path := filepath.Join(dir, "audio.wav")
	if err := encoder.WriteFile(path, samples, encoder.SampleRate); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeFrames(t *testing.T, dir string, n int) string {
	t.Helper()
	path := filepath.Join(dir, "video.mjpeg")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := video.NewMJPEGWriter(f, 90)
	cam := &video.FakeCamera{Width: 160, Height: 120}
	for i := 0; i < n; i++ {
		img, _ := cam.Grab()
		if err := w.WriteFrame(img); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	f.Close()
	return path
}

type centeredFace struct{}

func (centeredFace) Detect(img image.Image) ([]analysis.Face, error) {
	b := img.Bounds()
	return []analysis.Face{{X: float64(b.Dx()) / 2, Y: float64(b.Dy()) / 2}}, nil
}

func TestAnalyzeCompleteSession(t *testing.T) {
	dir := t.TempDir()
	res := &capture.Result{
		SessionID: "s1",
		State:     capture.StateComplete,
		AudioPath: writeTone(t, dir, 2),
		VideoPath: writeFrames(t, dir, 4),
	}
	a := analyzers{video: analysis.VideoAnalyzer{Detector: centeredFace{}}}

	rep := a.analyze(res, "fake")
	if rep.Speech == nil {
		t.Fatalf("speech metrics missing: %s", rep.SpeechError)
	}
	if rep.Video == nil {
		t.Fatalf("video metrics missing: %s", rep.VideoError)
	}
	if rep.Video.EngagementScore != 1 {
		t.Errorf("engagement = %v, want 1", rep.Video.EngagementScore)
	}
	if rep.Provider != "fake" || rep.CreatedAt.IsZero() {
		t.Errorf("provider=%q created=%v", rep.Provider, rep.CreatedAt)
	}
}

func TestAnalyzeAudioOnly(t *testing.T) {
	res := &capture.Result{State: capture.StateComplete, AudioPath: writeTone(t, t.TempDir(), 2)}
	rep := analyzers{}.analyze(res, "fake")
	if rep.Speech == nil {
		t.Fatalf("speech metrics missing: %s", rep.SpeechError)
	}
	if rep.Video != nil || rep.VideoError != "" {
		t.Errorf("audio-only session got video result %+v %q", rep.Video, rep.VideoError)
	}
}

func TestAnalyzeWithoutDetector(t *testing.T) {
	dir := t.TempDir()
	res := &capture.Result{
		State:     capture.StateComplete,
		AudioPath: writeTone(t, dir, 2),
		VideoPath: writeFrames(t, dir, 2),
	}
	rep := analyzers{}.analyze(res, "fake")
	if rep.Video != nil {
		t.Fatal("video metrics without a detector")
	}
	if !strings.Contains(rep.VideoError, "face detector not configured") {
		t.Errorf("VideoError = %q", rep.VideoError)
	}
}

func TestAnalyzeMissingArtifact(t *testing.T) {
	res := &capture.Result{State: capture.StateComplete, AudioPath: filepath.Join(t.TempDir(), "gone.flac")}
	rep := analyzers{}.analyze(res, "fake")
	if rep.Speech != nil || rep.SpeechError == "" {
		t.Errorf("speech=%v err=%q, want error only", rep.Speech, rep.SpeechError)
	}
}

func TestAnalyzeFailedSessionSkipsAnalysis(t *testing.T) {
	res := &capture.Result{
		State:     capture.StateFailed,
		Reason:    capture.ReasonNoMicrophone,
		AudioPath: writeTone(t, t.TempDir(), 2),
	}
	rep := analyzers{}.analyze(res, "fake")
	if rep.Speech != nil || rep.SpeechError != "" {
		t.Errorf("failed session was analyzed: %+v", rep)
	}
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	rep := Report{
		Result:   &capture.Result{SessionID: "abc", State: capture.StateComplete, Transcript: "hello"},
		Provider: "fake",
		Speech:   &analysis.SpeechMetrics{ClarityScore: 5},
	}
	if err := writeReport(path, rep); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["session_id"] != "abc" || got["state"] != "complete" || got["provider"] != "fake" {
		t.Errorf("report = %v", got)
	}
	if _, ok := got["speech"]; !ok {
		t.Error("speech metrics missing from report")
	}
	if _, ok := got["video"]; ok {
		t.Error("empty video metrics should be omitted")
	}
}

func TestPrintSummary(t *testing.T) {
	var b strings.Builder
	printSummary(&b, Report{Result: &capture.Result{
		State:           capture.StateFailed,
		Reason:          capture.ReasonNoMicrophone,
		FallbackMessage: "check your microphone",
	}})
	if !strings.Contains(b.String(), "Recording failed") || !strings.Contains(b.String(), "check your microphone") {
		t.Errorf("failed summary = %q", b.String())
	}

	b.Reset()
	printSummary(&b, Report{Result: &capture.Result{State: capture.StateComplete, Transcript: "hi there"}})
	if !strings.Contains(b.String(), "hi there") || !strings.Contains(b.String(), "audio-only") {
		t.Errorf("complete summary = %q", b.String())
	}
}

type stubDispatcher struct {
	windows []int
	files   []string
}

func (d *stubDispatcher) Dispatch(_ context.Context, w transcriber.Window) transcriber.Recognition {
	d.windows = append(d.windows, w.Index)
	return transcriber.Recognition{Kind: transcriber.Recognized, Text: "word"}
}

func (d *stubDispatcher) RecognizeFile(_ context.Context, path string) transcriber.Recognition {
	d.files = append(d.files, path)
	return transcriber.Failed("boom")
}

func TestLoggedDispatcherDelegates(t *testing.T) {
	stub := &stubDispatcher{}
	d := loggedDispatcher{stub}

	got := d.Dispatch(context.Background(), transcriber.Window{Index: 3})
	if got.Text != "word" || len(stub.windows) != 1 || stub.windows[0] != 3 {
		t.Errorf("Dispatch = %+v, calls %v", got, stub.windows)
	}
	got = d.RecognizeFile(context.Background(), "a.flac")
	if got.Kind != transcriber.ServiceError || len(stub.files) != 1 {
		t.Errorf("RecognizeFile = %+v, calls %v", got, stub.files)
	}
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  []string
	}{
		{"", 10, []string{""}},
		{"short", 10, []string{"short"}},
		{"hello world again", 11, []string{"hello world", "again"}},
		{"abcdefghijkl", 5, []string{"abcde", "fghij", "kl"}},
	}
	for _, tt := range tests {
		got := wrapText(tt.text, tt.width)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("wrapText(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
		}
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		elapsed, target time.Duration
		wantFull        int
	}{
		{0, 10 * time.Second, 0},
		{5 * time.Second, 10 * time.Second, 10},
		{20 * time.Second, 10 * time.Second, 20},
		{time.Second, 0, 0},
	}
	for _, tt := range tests {
		bar := renderBar(tt.elapsed, tt.target, 20)
		if n := strings.Count(bar, "█"); n != tt.wantFull {
			t.Errorf("renderBar(%v, %v): %d full cells, want %d", tt.elapsed, tt.target, n, tt.wantFull)
		}
		if n := strings.Count(bar, "█") + strings.Count(bar, "░"); n != 20 {
			t.Errorf("renderBar width = %d, want 20", n)
		}
	}
}

func TestTUIStopsOnce(t *testing.T) {
	stops, aborts := 0, 0
	var m tea.Model = newTUIModel(30*time.Second, func() { stops++ }, func() { aborts++ })

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if stops != 1 {
		t.Errorf("stop called %d times, want 1", stops)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if aborts != 1 {
		t.Errorf("abort called %d times, want 1", aborts)
	}
}

func TestTUIProgressAndDone(t *testing.T) {
	var m tea.Model = newTUIModel(30*time.Second, nil, nil)
	if !strings.Contains(m.View(), "STARTING") {
		t.Errorf("initial view = %q", m.View())
	}

	m, _ = m.Update(ProgressMsg{capture.Progress{
		Elapsed: 2 * time.Second,
		State:   capture.StateRecording,
		Partial: "so far",
		NoVoice: true,
	}})
	view := m.View()
	for _, want := range []string{"REC 2.0s / 30s", "so far", "no voice detected"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	m, cmd := m.Update(SessionDoneMsg{Result: &capture.Result{State: capture.StateComplete}})
	if cmd == nil {
		t.Fatal("done message should quit the program")
	}
	if !strings.Contains(m.View(), "DONE") {
		t.Errorf("final view = %q", m.View())
	}
}

func TestLinePrinterDedupes(t *testing.T) {
	var b strings.Builder
	l := &linePrinter{w: &b}
	l.start(nil, nil)

	l.Progress(capture.Progress{Elapsed: 100 * time.Millisecond, State: capture.StateRecording})
	l.Progress(capture.Progress{Elapsed: 200 * time.Millisecond, State: capture.StateRecording})
	l.Progress(capture.Progress{Elapsed: 1100 * time.Millisecond, State: capture.StateRecording})
	l.Progress(capture.Progress{Elapsed: 1200 * time.Millisecond, State: capture.StateFinalizing})
	l.finish(&capture.Result{SessionID: "x", State: capture.StateComplete})

	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), b.String())
	}
	if !strings.Contains(lines[2], "finalizing") || lines[3] != "session x complete" {
		t.Errorf("lines = %q", lines)
	}
}

func TestDriveSession(t *testing.T) {
	stops, aborts := 0, 0
	done := make(chan struct{})
	close(done)
	in := strings.NewReader("SLEEP 1\nWAIT_AUDIO_DONE\nSTOP\nbogus\nQUIT\nSTOP\n")

	driveSession(in, done, func() { stops++ }, func() { aborts++ })
	if stops != 1 || aborts != 1 {
		t.Errorf("stops=%d aborts=%d, want 1 and 1", stops, aborts)
	}
}

func TestParseFlagsOverridesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte("capture:\n  duration_s: 45\ntranscription:\n  language: fr\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, opts, err := parseFlags([]string{"-config", path, "-lang", "de", "-camera", "-1", "-format", "wav", "-keep"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Capture.DurationS != 45 {
		t.Errorf("duration = %d, want 45 from file", cfg.Capture.DurationS)
	}
	if cfg.Transcription.Language != "de" {
		t.Errorf("language = %q, want flag value", cfg.Transcription.Language)
	}
	if cfg.Video.Enabled || cfg.SchedulerConfig().CameraIndex >= 0 {
		t.Error("-camera -1 should disable video")
	}
	if cfg.Capture.AudioFormat != "wav" || !opts.keep {
		t.Errorf("format=%q keep=%v", cfg.Capture.AudioFormat, opts.keep)
	}
}

func TestParseFlagsUnsetKeepsDefaults(t *testing.T) {
	cfg, _, err := parseFlags(nil)
	if err != nil {
		t.Fatal(err)
	}
	def := config.Default()
	if cfg.Capture.DurationS != def.Capture.DurationS || cfg.Video.Enabled != def.Video.Enabled {
		t.Errorf("cfg = %+v, want defaults", cfg.Capture)
	}
}

func TestParseFlagsRejectsInvalid(t *testing.T) {
	if _, _, err := parseFlags([]string{"-format", "mp3"}); err == nil {
		t.Error("expected validation error for mp3 format")
	}
}
