package capture

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"interviewcap/audio"
	"interviewcap/encoder"
	"interviewcap/metrics"
	"interviewcap/transcriber"
)

const (
	DefaultTickInterval    = 100 * time.Millisecond
	DefaultFinalizeTimeout = 10 * time.Second
	DefaultMaxInFlight     = 4
	DefaultTargetDuration  = 30 * time.Second
)

type Config struct {
	TargetDuration  time.Duration
	SampleRate      int
	TickInterval    time.Duration
	Window          time.Duration
	FinalizeTimeout time.Duration
	MaxInFlight     int
	ArtifactDir     string
	AudioFormat     string // "flac" or "wav"
	CameraIndex     int    // negative disables video
	SilenceWarn     time.Duration
	SessionID       string // generated when empty
}

func DefaultConfig() Config {
	return Config{
		TargetDuration:  DefaultTargetDuration,
		SampleRate:      encoder.SampleRate,
		TickInterval:    DefaultTickInterval,
		Window:          transcriber.DefaultWindow,
		FinalizeTimeout: DefaultFinalizeTimeout,
		MaxInFlight:     DefaultMaxInFlight,
		AudioFormat:     encoder.FormatFLAC,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TargetDuration <= 0 {
		c.TargetDuration = d.TargetDuration
	}
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.FinalizeTimeout <= 0 {
		c.FinalizeTimeout = d.FinalizeTimeout
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = d.MaxInFlight
	}
	if c.AudioFormat == "" {
		c.AudioFormat = d.AudioFormat
	}
	return c
}

// Dispatcher recognizes windows. It must fold every failure into the
// returned Recognition.
type Dispatcher interface {
	Dispatch(ctx context.Context, w transcriber.Window) transcriber.Recognition
	RecognizeFile(ctx context.Context, path string) transcriber.Recognition
}

// VideoRecorder is the camera side of a session. Open reports whether a
// camera was acquired; when it was not, CaptureFrame must be a no-op.
type VideoRecorder interface {
	Open(deviceIndex int) bool
	CaptureFrame()
	Close() error
	Path() string
	Stats() (attempted, captured int)
}

// VideoFactory builds the recorder for one session writing to path.
type VideoFactory func(path string) VideoRecorder

// SpeechDetector is fed raw device PCM and polled once per tick.
type SpeechDetector interface {
	Process(pcm []byte)
	HasSpeechTick() bool
}

type Option func(*Scheduler)

func WithVideo(f VideoFactory) Option {
	return func(s *Scheduler) { s.newVideo = f }
}

func WithSpeechDetector(d SpeechDetector) Option {
	return func(s *Scheduler) { s.detector = d }
}

func WithProgress(p ProgressSink) Option {
	return func(s *Scheduler) { s.progress = p }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// Scheduler runs one capture session: it owns the session clock, pulls
// camera frames, cuts audio windows for recognition and assembles the
// final transcript.
type Scheduler struct {
	cfg        Config
	mic        audio.CaptureDevice
	dispatcher Dispatcher
	newVideo   VideoFactory
	detector   SpeechDetector
	progress   ProgressSink
	log        zerolog.Logger
	metrics    *metrics.Metrics

	stop     chan struct{}
	stopOnce sync.Once
	runOnce  sync.Once
}

// NewScheduler prepares a session. A nil mic makes Run fail with
// ReasonNoMicrophone.
func NewScheduler(cfg Config, mic audio.CaptureDevice, d Dispatcher, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:        cfg.withDefaults(),
		mic:        mic,
		dispatcher: d,
		log:        zerolog.Nop(),
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stop ends recording early. The session still finalizes normally.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

type windowResult struct {
	index int
	rec   transcriber.Recognition
}

// run holds the per-session state owned by the Run goroutine.
type run struct {
	s    *Scheduler
	sess *Session
	acc  *Accumulator
	log  zerolog.Logger

	video   VideoRecorder
	videoOK bool
	silence *silenceMonitor

	sem         *semaphore.Weighted
	dispatchCtx context.Context
	results     chan windowResult
	abandon     chan struct{}
	inFlight    int
	nextSample  int
	windows     []WindowReport
}

// Run records until the target duration elapses, ctx is cancelled or Stop
// is called, then finalizes. A Failed session returns both a Result and an
// error wrapping ErrSessionFailed and the reason's sentinel.
func (s *Scheduler) Run(ctx context.Context) (*Result, error) {
	first := false
	s.runOnce.Do(func() { first = true })
	if !first {
		return nil, ErrAlreadyRun
	}

	sess := newSession(s.cfg)
	r := &run{
		s:       s,
		sess:    sess,
		acc:     NewAccumulator(),
		log:     s.log.With().Str("session", sess.ID).Logger(),
		silence: newSilenceMonitor(s.cfg.TickInterval, s.cfg.SilenceWarn),
		sem:     semaphore.NewWeighted(int64(s.cfg.MaxInFlight)),
		results: make(chan windowResult),
		abandon: make(chan struct{}),
	}

	// Dispatches outlive a cancelled ctx until the finalize timeout.
	dispatchCtx, cancelDispatch := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelDispatch()
	r.dispatchCtx = dispatchCtx

	r.transition(StateRecording)
	sess.StartedAt = time.Now()
	s.metrics.RecordSessionStart()
	r.log.Info().Dur("target", s.cfg.TargetDuration).Msg("recording started")

	if err := r.openMic(); err != nil {
		r.log.Error().Err(err).Msg("microphone unavailable")
		r.transition(StateFinalizing)
		return r.fail(ReasonNoMicrophone, err)
	}
	defer s.mic.Close()

	if s.newVideo != nil && s.cfg.CameraIndex >= 0 {
		r.video = s.newVideo(filepath.Join(s.cfg.ArtifactDir, sess.ID+".mjpeg"))
		r.videoOK = r.video.Open(s.cfg.CameraIndex)
		if !r.videoOK {
			r.log.Warn().Err(ErrDeviceUnavailable).Int("camera", s.cfg.CameraIndex).Msg("continuing audio-only")
		}
		defer r.video.Close()
	}

	r.record(ctx)

	r.transition(StateFinalizing)
	return r.finalize(ctx, cancelDispatch)
}

func (r *run) transition(to State) {
	if err := r.sess.lifecycle.Transition(to); err != nil {
		// Unreachable: Run only walks legal edges.
		panic(err)
	}
	r.log.Debug().Stringer("state", to).Msg("state change")
}

func (r *run) openMic() error {
	mic := r.s.mic
	if mic == nil {
		return ErrNoMicrophone
	}
	det := r.s.detector
	mic.SetCallback(func(data []byte, _ uint32) {
		r.acc.PushPCM(data)
		if det != nil {
			det.Process(data)
		}
	})
	if err := mic.Start(); err != nil {
		mic.ClearCallback()
		mic.Close()
		return fmt.Errorf("%w: %w", ErrNoMicrophone, err)
	}
	r.log.Info().Str("device", mic.DeviceName()).Msg("microphone open")
	return nil
}

func (r *run) record(ctx context.Context) {
	cfg := r.s.cfg
	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

	start := r.sess.StartedAt
	lastDispatch := start

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Err(ctx.Err()).Msg("recording cancelled")
			return
		case <-r.s.stop:
			r.log.Info().Msg("recording stopped")
			return
		case res := <-r.results:
			r.resolve(res)
		case now := <-ticker.C:
			elapsed := now.Sub(start)

			if r.videoOK {
				r.video.CaptureFrame()
			}

			if r.s.detector != nil {
				switch r.silence.Tick(r.s.detector.HasSpeechTick()) {
				case SilenceWarn, SilenceRepeat:
					r.s.metrics.RecordNoVoiceWarning()
					r.log.Warn().Dur("elapsed", elapsed).Msg("no voice detected")
				case SilenceWarnClear:
					r.log.Info().Dur("elapsed", elapsed).Msg("voice resumed")
				}
			}

			if now.Sub(lastDispatch) >= cfg.Window {
				lastDispatch = now
				r.dispatch(r.acc.DrainPending())
			}

			r.emit(StateRecording, elapsed)

			if elapsed >= cfg.TargetDuration {
				return
			}
		}
	}
}

// dispatch sends samples as the next window. An empty drain is silence and
// is not sent.
func (r *run) dispatch(samples []int16) {
	if len(samples) == 0 {
		return
	}

	w := transcriber.NewWindow(len(r.windows), samples, r.nextSample, r.s.cfg.SampleRate)
	r.nextSample += len(samples)
	r.windows = append(r.windows, WindowReport{Index: w.Index, Start: w.Start, End: w.End})
	r.inFlight++
	r.s.metrics.RecordWindowDispatched()

	go func() {
		var rec transcriber.Recognition
		if err := r.sem.Acquire(r.dispatchCtx, 1); err != nil {
			rec = transcriber.Failed("finalize timeout")
		} else {
			rec = r.s.dispatcher.Dispatch(r.dispatchCtx, w)
			r.sem.Release(1)
		}
		select {
		case r.results <- windowResult{index: w.Index, rec: rec}:
		case <-r.abandon:
		}
	}()
}

func (r *run) resolve(res windowResult) {
	r.inFlight--
	w := &r.windows[res.index]
	w.resolved = true
	w.Kind = res.rec.Kind
	w.Text = res.rec.Text
	w.Detail = res.rec.Detail
	r.sess.Transcript = r.transcript()
}

// transcript joins recognized text in window order, not completion order.
func (r *run) transcript() string {
	var parts []string
	for _, w := range r.windows {
		if !w.resolved || w.Kind != transcriber.Recognized {
			continue
		}
		if t := strings.TrimSpace(w.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func (r *run) emit(state State, elapsed time.Duration) {
	if r.s.progress == nil {
		return
	}
	done := 0
	for _, w := range r.windows {
		if w.resolved {
			done++
		}
	}
	_, captured := r.frameStats()
	r.s.progress.Progress(Progress{
		Elapsed:           elapsed,
		Remaining:         max(r.s.cfg.TargetDuration-elapsed, 0),
		Partial:           r.sess.Transcript,
		State:             state,
		NoVoice:           r.silence.Warned(),
		FramesCaptured:    captured,
		WindowsDispatched: len(r.windows),
		WindowsDone:       done,
	})
}

func (r *run) frameStats() (attempted, captured int) {
	if r.video == nil {
		return 0, 0
	}
	return r.video.Stats()
}

func (r *run) finalize(ctx context.Context, cancelDispatch context.CancelFunc) (*Result, error) {
	cfg := r.s.cfg
	elapsed := time.Since(r.sess.StartedAt)

	r.s.mic.Stop()
	r.s.mic.ClearCallback()
	r.dispatch(r.acc.DrainPending())
	r.emit(StateFinalizing, elapsed)

	r.await(cfg.FinalizeTimeout)
	close(r.abandon)
	cancelDispatch()

	if r.video != nil {
		if err := r.video.Close(); err != nil {
			r.log.Warn().Err(err).Msg("closing video artifact")
		}
		r.sess.VideoPath = r.video.Path()
	}

	all := r.acc.SnapshotAll()
	if len(all) == 0 {
		return r.fail(ReasonZeroDuration, ErrZeroDuration)
	}
	if err := encoder.WriteFile(r.sess.AudioPath, all, cfg.SampleRate); err != nil {
		r.log.Error().Err(err).Str("path", r.sess.AudioPath).Msg("audio artifact")
		if rmErr := removeArtifacts(r.sess.AudioPath); rmErr != nil {
			r.log.Warn().Err(rmErr).Msg("removing partial audio artifact")
		}
		return r.fail(ReasonArtifactWrite, fmt.Errorf("%w: %w", ErrArtifactWrite, err))
	}

	noSpeech := false
	if strings.TrimSpace(r.sess.Transcript) == "" {
		fb := r.s.dispatcher.RecognizeFile(context.WithoutCancel(ctx), r.sess.AudioPath)
		if t := strings.TrimSpace(fb.Text); fb.Kind == transcriber.Recognized && t != "" {
			r.sess.Transcript = t
		} else {
			r.sess.Transcript = NoSpeechSentinel
			noSpeech = true
		}
	}

	r.transition(StateComplete)
	res := r.result(ReasonNone)
	res.NoSpeech = noSpeech
	r.report(res)
	r.log.Info().
		Int("windows", len(res.Windows)).
		Bool("no_speech", noSpeech).
		Str("audio", res.AudioPath).
		Str("video", res.VideoPath).
		Msg("session complete")
	return res, nil
}

// await collects in-flight results until none remain or timeout elapses.
// Windows still unresolved afterwards are marked as timed out.
func (r *run) await(timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for r.inFlight > 0 {
		select {
		case res := <-r.results:
			r.resolve(res)
		case <-timer.C:
			r.log.Warn().Int("pending", r.inFlight).Dur("timeout", timeout).Msg("finalize timeout")
			for i := range r.windows {
				if !r.windows[i].resolved {
					r.windows[i].resolved = true
					r.windows[i].Kind = transcriber.ServiceError
					r.windows[i].Detail = "finalize timeout"
				}
			}
			r.inFlight = 0
			return
		}
	}
}

func (r *run) result(reason Reason) *Result {
	attempted, captured := r.frameStats()
	samples := r.acc.Len()
	res := &Result{
		SessionID:       r.sess.ID,
		State:           r.sess.State(),
		Reason:          reason,
		Transcript:      r.sess.Transcript,
		VideoPath:       r.sess.VideoPath,
		Duration:        time.Duration(samples) * time.Second / time.Duration(r.s.cfg.SampleRate),
		Samples:         samples,
		FramesAttempted: attempted,
		FramesCaptured:  captured,
		Windows:         append([]WindowReport(nil), r.windows...),
		History:         r.sess.lifecycle.History(),
	}
	if res.State == StateComplete {
		res.AudioPath = r.sess.AudioPath
	}
	return res
}

func (r *run) fail(reason Reason, cause error) (*Result, error) {
	r.transition(StateFailed)
	res := r.result(reason)
	res.FallbackMessage = FallbackMessage
	r.report(res)
	r.log.Error().Err(cause).Stringer("reason", reason).Msg("session failed")
	if !errors.Is(cause, reason.Err()) {
		cause = fmt.Errorf("%w: %w", reason.Err(), cause)
	}
	return res, fmt.Errorf("%w: %w", ErrSessionFailed, cause)
}

func (r *run) report(res *Result) {
	m := r.s.metrics
	m.RecordSessionEnd(res.State.String(), res.Reason.String(), res.Duration.Seconds(), res.Samples)
	m.RecordFrames(res.FramesAttempted, res.FramesCaptured)
}
