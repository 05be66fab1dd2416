package transcriber

import "context"

// noSpeechThreshold marks a Whisper segment as silence.
const noSpeechThreshold = 0.6

type Groq struct {
	client *TracedClient
	apiURL string
	apiKey string
}

func NewGroq(apiKey string) *Groq {
	apiURL := "https://api.groq.com/openai/v1/audio/transcriptions"
	return &Groq{
		client: NewTracedClient(apiURL),
		apiURL: apiURL,
		apiKey: apiKey,
	}
}

func (g *Groq) Name() string { return ProviderGroq }

func (g *Groq) Warm(ctx context.Context) { g.client.Warm(ctx) }

type groqResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text         string  `json:"text"`
		NoSpeechProb float64 `json:"no_speech_prob"`
		AvgLogProb   float64 `json:"avg_logprob"`
	} `json:"segments"`
}

// noSpeech reports whether every segment was flagged as silence. A response
// without segments is judged by its text alone.
func (r *groqResponse) noSpeech() bool {
	if len(r.Segments) == 0 {
		return false
	}
	for _, seg := range r.Segments {
		if seg.NoSpeechProb < noSpeechThreshold {
			return false
		}
	}
	return true
}

func (g *Groq) Recognize(ctx context.Context, audio Audio) (*Result, error) {
	req, err := whisperRequest(ctx, g.apiURL, g.apiKey, audio,
		"model", "whisper-large-v3-turbo",
		"response_format", "verbose_json",
	)
	if err != nil {
		return nil, err
	}

	var gResp groqResponse
	resp, err := g.client.doJSON(req, ProviderGroq, &gResp)
	if err != nil {
		return nil, err
	}

	return &Result{
		Text:      gResp.Text,
		NoSpeech:  gResp.noSpeech(),
		Metrics:   resp.Metrics,
		RateLimit: rateLimit(resp.Header, []string{"x-ratelimit-remaining-requests"}, []string{"x-ratelimit-limit-requests"}),
		Duration:  gResp.Duration,
	}, nil
}
