package transcriber

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/speech/apiv1/speechpb"
)

func TestNetworkMetricsSum(t *testing.T) {
	m := &NetworkMetrics{
		ConnWait:   10 * time.Millisecond,
		DNS:        20 * time.Millisecond,
		TCP:        30 * time.Millisecond,
		TLS:        40 * time.Millisecond,
		ReqHeaders: 5 * time.Millisecond,
		ReqBody:    15 * time.Millisecond,
		TTFB:       50 * time.Millisecond,
		Download:   25 * time.Millisecond,
	}
	got := m.Sum()
	want := 195 * time.Millisecond
	if got != want {
		t.Errorf("Sum() = %v, want %v", got, want)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	h := http.Header{}
	h.Set("X-Rate-Limit", "100")

	if got := firstNonEmpty(h, "X-Missing", "X-Rate-Limit"); got != "100" {
		t.Errorf("got %q, want %q", got, "100")
	}
	if got := firstNonEmpty(h, "X-A", "X-B"); got != "?" {
		t.Errorf("got %q, want %q", got, "?")
	}
}

func TestNewProviderSelection(t *testing.T) {
	for _, env := range []string{"GROQ_API_KEY", "OPENAI_API_KEY", "DEEPGRAM_API_KEY", "GOOGLE_APPLICATION_CREDENTIALS"} {
		t.Setenv(env, "")
	}

	if _, err := New(context.Background(), ""); err == nil {
		t.Error("expected error with no credentials")
	}
	if _, err := New(context.Background(), "whisper.cpp"); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, err := New(context.Background(), ProviderGroq); err == nil {
		t.Error("expected error for groq without key")
	}

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DEEPGRAM_API_KEY", "dg-test")
	rec, err := New(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Name() != ProviderOpenAI {
		t.Errorf("auto-detected %q, want openai", rec.Name())
	}

	t.Setenv("GROQ_API_KEY", "gsk-test")
	rec, err = New(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Name() != ProviderGroq {
		t.Errorf("auto-detected %q, want groq", rec.Name())
	}

	rec, err = New(context.Background(), ProviderFake)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Name() != ProviderFake {
		t.Errorf("got %q, want fake", rec.Name())
	}
}

func TestGroqRecognize(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantText string
		wantNone bool
	}{
		{
			name:     "speech",
			body:     `{"text":" Hello there.","duration":3.0,"segments":[{"text":" Hello there.","no_speech_prob":0.02}]}`,
			wantText: " Hello there.",
		},
		{
			name:     "all segments silent",
			body:     `{"text":" Thank you.","duration":3.0,"segments":[{"no_speech_prob":0.9},{"no_speech_prob":0.61}]}`,
			wantText: " Thank you.",
			wantNone: true,
		},
		{
			name:     "one segment with speech",
			body:     `{"text":"ok","segments":[{"no_speech_prob":0.9},{"no_speech_prob":0.1}]}`,
			wantText: "ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Authorization"); got != "Bearer gsk-test" {
					t.Errorf("Authorization = %q", got)
				}
				if err := r.ParseMultipartForm(1 << 20); err != nil {
					t.Errorf("ParseMultipartForm: %v", err)
				}
				if got := r.FormValue("language"); got != "en" {
					t.Errorf("language = %q, want en", got)
				}
				if got := r.FormValue("response_format"); got != "verbose_json" {
					t.Errorf("response_format = %q", got)
				}
				w.Header().Set("x-ratelimit-remaining-requests", "9")
				w.Header().Set("x-ratelimit-limit-requests", "10")
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			g := NewGroq("gsk-test")
			g.apiURL = srv.URL

			res, err := g.Recognize(context.Background(), Audio{Data: []byte("fLaC"), Format: "flac", Language: "en"})
			if err != nil {
				t.Fatal(err)
			}
			if res.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", res.Text, tt.wantText)
			}
			if res.NoSpeech != tt.wantNone {
				t.Errorf("NoSpeech = %v, want %v", res.NoSpeech, tt.wantNone)
			}
			if res.RateLimit != "9/10" {
				t.Errorf("RateLimit = %q, want 9/10", res.RateLimit)
			}
		})
	}
}

func TestGroqHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewGroq("k")
	g.apiURL = srv.URL
	_, err := g.Recognize(context.Background(), Audio{Data: []byte("x"), Format: "flac"})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("err = %v, want 429 error", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Provider != ProviderGroq || apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("err = %#v, want groq APIError 429", err)
	}
}

func TestAPIErrorTruncatesBody(t *testing.T) {
	err := &APIError{Provider: "openai", StatusCode: 500, Body: strings.Repeat("x", 500) + "\n"}
	msg := err.Error()
	if !strings.HasPrefix(msg, "openai API error 500: ") || !strings.HasSuffix(msg, "...") {
		t.Errorf("Error() = %q", msg)
	}
	if len(msg) > 240 {
		t.Errorf("Error() is %d bytes, want truncated", len(msg))
	}
}

func TestOpenAIRecognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		if got := r.FormValue("model"); got != "gpt-4o-transcribe" {
			t.Errorf("model = %q", got)
		}
		_, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		if hdr.Filename != "audio.wav" {
			t.Errorf("filename = %q, want audio.wav", hdr.Filename)
		}
		io.WriteString(w, `{"text":"I led the migration."}`)
	}))
	defer srv.Close()

	o := NewOpenAI("sk")
	o.apiURL = srv.URL
	res, err := o.Recognize(context.Background(), Audio{Data: []byte("RIFF"), Format: "wav"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "I led the migration." {
		t.Errorf("Text = %q", res.Text)
	}
}

func TestDeepgramRecognize(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantText string
		wantNone bool
	}{
		{"speech", `{"results":{"channels":[{"alternatives":[{"transcript":"yes","confidence":0.93}]}]}}`, "yes", false},
		{"silence", `{"results":{"channels":[{"alternatives":[{"transcript":"","confidence":0}]}]}}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Content-Type"); got != "audio/flac" {
					t.Errorf("Content-Type = %q", got)
				}
				if got := r.URL.Query().Get("model"); got != "nova-3" {
					t.Errorf("model = %q", got)
				}
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			d := NewDeepgram("dg")
			d.apiURL = srv.URL
			res, err := d.Recognize(context.Background(), Audio{Data: []byte("fLaC"), Format: "flac"})
			if err != nil {
				t.Fatal(err)
			}
			if res.Text != tt.wantText || res.NoSpeech != tt.wantNone {
				t.Errorf("got (%q, %v), want (%q, %v)", res.Text, res.NoSpeech, tt.wantText, tt.wantNone)
			}
		})
	}
}

func TestGoogleRequest(t *testing.T) {
	req := googleRequest(Audio{Data: []byte("x"), Format: "wav", SampleRate: 16000})
	cfg := req.GetConfig()
	if cfg.GetEncoding() != speechpb.RecognitionConfig_LINEAR16 {
		t.Errorf("encoding = %v, want LINEAR16", cfg.GetEncoding())
	}
	if cfg.GetSampleRateHertz() != 16000 {
		t.Errorf("sample rate = %d", cfg.GetSampleRateHertz())
	}
	if cfg.GetLanguageCode() != "en-US" {
		t.Errorf("language = %q, want en-US default", cfg.GetLanguageCode())
	}

	req = googleRequest(Audio{Format: "flac", Language: "de-DE"})
	if req.GetConfig().GetEncoding() != speechpb.RecognitionConfig_FLAC {
		t.Errorf("encoding = %v, want FLAC", req.GetConfig().GetEncoding())
	}
}

func TestGoogleResult(t *testing.T) {
	empty := googleResult(&speechpb.RecognizeResponse{})
	if !empty.NoSpeech {
		t.Error("empty result list should be NoSpeech")
	}

	res := googleResult(&speechpb.RecognizeResponse{
		Results: []*speechpb.SpeechRecognitionResult{
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "first part", Confidence: 0.8}}},
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: " second part ", Confidence: 0.6}}},
		},
	})
	if res.NoSpeech {
		t.Error("unexpected NoSpeech")
	}
	if res.Text != "first part second part" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.Confidence < 0.69 || res.Confidence > 0.71 {
		t.Errorf("Confidence = %v, want 0.7", res.Confidence)
	}
}

func TestTracedClientWarm(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			hits.Add(1)
		}
	}))
	defer srv.Close()

	NewTracedClient(srv.URL).Warm(context.Background())
	NewTracedClient("").Warm(context.Background())
	if n := hits.Load(); n != 1 {
		t.Errorf("HEAD hits = %d, want 1", n)
	}
}
