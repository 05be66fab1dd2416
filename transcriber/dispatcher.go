package transcriber

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"interviewcap/encoder"
	"interviewcap/metrics"
	"interviewcap/vad"
)

const (
	DefaultTimeout         = 2500 * time.Millisecond
	DefaultFallbackTimeout = 15 * time.Second
)

// SpeechGate returns the fraction of samples judged to contain speech.
type SpeechGate func(samples []int16, sampleRate int) (float64, error)

type DispatcherConfig struct {
	Language        string
	SampleRate      int
	Format          string // upload container, "flac" or "wav"
	Timeout         time.Duration
	FallbackTimeout time.Duration
	VADGate         bool
}

// Dispatcher sends windows to a Recognizer and folds every outcome into a
// Recognition. It never returns an error and is safe for concurrent use.
type Dispatcher struct {
	rec     Recognizer
	cfg     DispatcherConfig
	gate    SpeechGate
	log     zerolog.Logger
	metrics *metrics.Metrics
}

type Option func(*Dispatcher)

func WithSpeechGate(g SpeechGate) Option {
	return func(d *Dispatcher) { d.gate = g }
}

func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func NewDispatcher(rec Recognizer, cfg DispatcherConfig, opts ...Option) *Dispatcher {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = encoder.SampleRate
	}
	if cfg.Format == "" {
		cfg.Format = encoder.FormatFLAC
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.FallbackTimeout <= 0 {
		cfg.FallbackTimeout = DefaultFallbackTimeout
	}
	d := &Dispatcher{
		rec:  rec,
		cfg:  cfg,
		gate: vad.SpeechRatio,
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With().Str("provider", rec.Name()).Logger()
	return d
}

func (d *Dispatcher) Provider() string { return d.rec.Name() }

// Dispatch recognizes one window.
func (d *Dispatcher) Dispatch(ctx context.Context, w Window) Recognition {
	start := time.Now()
	r := d.dispatch(ctx, w)
	latency := time.Since(start)

	d.metrics.RecordRecognition(d.rec.Name(), r.Kind.String(), latency.Seconds())
	ev := d.log.Debug()
	if r.Kind == ServiceError {
		ev = d.log.Warn()
	}
	ev.Int("window", w.Index).
		Str("kind", r.Kind.String()).
		Str("detail", r.Detail).
		Dur("latency", latency).
		Msg("window recognized")
	return r
}

func (d *Dispatcher) dispatch(ctx context.Context, w Window) Recognition {
	if len(w.Samples) == 0 {
		return unintelligible("empty window")
	}

	if d.cfg.VADGate && d.gate != nil {
		ratio, err := d.gate(w.Samples, d.cfg.SampleRate)
		if err != nil {
			d.log.Warn().Err(err).Int("window", w.Index).Msg("speech gate failed, sending window anyway")
		} else if ratio < vad.SpeechThreshold {
			return unintelligible(fmt.Sprintf("speech in %.0f%% of frames", ratio*100))
		}
	}

	data, err := encoder.Encode(d.cfg.Format, w.Samples, d.cfg.SampleRate)
	if err != nil {
		return Failed(fmt.Sprintf("encode: %v", err))
	}

	return d.recognize(ctx, Audio{
		Data:       data,
		Format:     d.cfg.Format,
		SampleRate: d.cfg.SampleRate,
		Language:   d.cfg.Language,
	}, d.cfg.Timeout)
}

// RecognizeFile runs one recognition over a whole persisted artifact. It is
// the fallback pass when no window produced text.
func (d *Dispatcher) RecognizeFile(ctx context.Context, path string) Recognition {
	r := d.recognizeFile(ctx, path)
	d.metrics.RecordFallback(r.Kind.String())
	d.log.Info().Str("path", path).Str("kind", r.Kind.String()).Str("detail", r.Detail).Msg("fallback recognition")
	return r
}

func (d *Dispatcher) recognizeFile(ctx context.Context, path string) Recognition {
	format, err := encoder.FormatFromPath(path)
	if err != nil {
		return Failed(err.Error())
	}
	if l, ok := d.rec.(ClipLimiter); ok && l.MaxClip() > 0 {
		pcm, err := encoder.DecodeFile(path)
		if err != nil {
			return Failed(fmt.Sprintf("decode artifact: %v", err))
		}
		if dur := pcm.Duration(); dur > l.MaxClip() {
			return Failed(fmt.Sprintf("artifact is %s, %s accepts at most %s", dur.Round(time.Second), d.rec.Name(), l.MaxClip()))
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Failed(fmt.Sprintf("read artifact: %v", err))
	}
	return d.recognize(ctx, Audio{
		Data:       data,
		Format:     format,
		SampleRate: d.cfg.SampleRate,
		Language:   d.cfg.Language,
	}, d.cfg.FallbackTimeout)
}

type recognizeOutcome struct {
	res *Result
	err error
}

// recognize bounds the call by timeout even if the backend ignores ctx, and
// turns a backend panic into a ServiceError.
func (d *Dispatcher) recognize(ctx context.Context, audio Audio, timeout time.Duration) Recognition {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan recognizeOutcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- recognizeOutcome{err: fmt.Errorf("recognizer panic: %v", p)}
			}
		}()
		res, err := d.rec.Recognize(ctx, audio)
		done <- recognizeOutcome{res: res, err: err}
	}()

	var out recognizeOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out.err = ctx.Err()
	}

	switch {
	case errors.Is(out.err, context.DeadlineExceeded):
		return Failed(fmt.Sprintf("timeout after %s", timeout))
	case out.err != nil:
		return Failed(out.err.Error())
	case out.res == nil:
		return Failed("empty response")
	}
	if m := out.res.Metrics; m != nil {
		d.log.Debug().
			Bool("conn_reused", m.ConnReused).
			Dur("ttfb", m.TTFB).
			Dur("total", m.Total).
			Str("rate_limit", out.res.RateLimit).
			Msg("network")
	}
	if out.res.NoSpeech {
		return unintelligible("no speech")
	}
	return recognized(strings.TrimSpace(out.res.Text))
}
