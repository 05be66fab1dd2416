package transcriber

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"
)

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

// rateLimit formats the first present remaining/limit headers as "r/l".
func rateLimit(h http.Header, remaining, limit []string) string {
	return firstNonEmpty(h, remaining...) + "/" + firstNonEmpty(h, limit...)
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

// ClipLimiter is implemented by recognizers that reject uploads longer
// than MaxClip. Zero means no limit.
type ClipLimiter interface {
	MaxClip() time.Duration
}

// Audio is one encoded upload.
type Audio struct {
	Data       []byte
	Format     string // "flac" or "wav"
	SampleRate int
	Language   string
}

type Result struct {
	Text       string
	NoSpeech   bool
	Metrics    *NetworkMetrics
	RateLimit  string
	Confidence float64
	Duration   float64
}

// Recognizer turns one encoded clip into text. Implementations must honor
// ctx cancellation and be safe for concurrent use.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, audio Audio) (*Result, error)
}

const (
	ProviderGroq     = "groq"
	ProviderOpenAI   = "openai"
	ProviderDeepgram = "deepgram"
	ProviderGoogle   = "google"
	ProviderFake     = "fake"
)

// New builds the named recognizer. An empty provider picks the first
// backend whose credentials are present in the environment.
func New(ctx context.Context, provider string) (Recognizer, error) {
	if provider == "" {
		provider = detectProvider()
	}

	switch provider {
	case ProviderGroq:
		key := os.Getenv("GROQ_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("groq: GROQ_API_KEY not set")
		}
		return NewGroq(key), nil
	case ProviderOpenAI:
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("openai: OPENAI_API_KEY not set")
		}
		return NewOpenAI(key), nil
	case ProviderDeepgram:
		key := os.Getenv("DEEPGRAM_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("deepgram: DEEPGRAM_API_KEY not set")
		}
		return NewDeepgram(key), nil
	case ProviderGoogle:
		g, err := NewGoogle(ctx)
		if err != nil {
			return nil, err
		}
		return g, nil
	case ProviderFake:
		return NewFake(), nil
	case "":
		return nil, fmt.Errorf("set GROQ_API_KEY, OPENAI_API_KEY, DEEPGRAM_API_KEY or GOOGLE_APPLICATION_CREDENTIALS")
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", provider)
	}
}

func detectProvider() string {
	for _, c := range []struct{ env, provider string }{
		{"GROQ_API_KEY", ProviderGroq},
		{"OPENAI_API_KEY", ProviderOpenAI},
		{"DEEPGRAM_API_KEY", ProviderDeepgram},
		{"GOOGLE_APPLICATION_CREDENTIALS", ProviderGoogle},
	} {
		if os.Getenv(c.env) != "" {
			return c.provider
		}
	}
	return ""
}

func contentType(format string) string {
	if format == "wav" {
		return "audio/wav"
	}
	return "audio/flac"
}
