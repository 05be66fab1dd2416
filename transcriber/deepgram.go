package transcriber

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
)

const deepgramAPIURL = "https://api.deepgram.com/v1/listen"

type Deepgram struct {
	client *TracedClient
	apiURL string
	apiKey string
}

func NewDeepgram(apiKey string) *Deepgram {
	return &Deepgram{
		client: NewTracedClient("https://api.deepgram.com"),
		apiURL: deepgramAPIURL,
		apiKey: apiKey,
	}
}

func (d *Deepgram) Name() string { return ProviderDeepgram }

func (d *Deepgram) Warm(ctx context.Context) { d.client.Warm(ctx) }

type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (d *Deepgram) Recognize(ctx context.Context, audio Audio) (*Result, error) {
	q := url.Values{}
	q.Set("model", "nova-3")
	q.Set("smart_format", "true")
	if audio.Language != "" {
		q.Set("language", audio.Language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.apiURL+"?"+q.Encode(), bytes.NewReader(audio.Data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", contentType(audio.Format))

	var dgResp deepgramResponse
	resp, err := d.client.doJSON(req, ProviderDeepgram, &dgResp)
	if err != nil {
		return nil, err
	}

	var text string
	var confidence float64
	if len(dgResp.Results.Channels) > 0 && len(dgResp.Results.Channels[0].Alternatives) > 0 {
		alt := dgResp.Results.Channels[0].Alternatives[0]
		text = alt.Transcript
		confidence = alt.Confidence
	}

	return &Result{
		Text:     text,
		NoSpeech: text == "" && confidence == 0,
		Metrics:  resp.Metrics,
		RateLimit: rateLimit(resp.Header,
			[]string{"x-dg-ratelimit-remaining", "x-ratelimit-remaining", "ratelimit-remaining"},
			[]string{"x-dg-ratelimit-limit", "x-ratelimit-limit", "ratelimit-limit"}),
		Confidence: confidence,
		Duration:   dgResp.Metadata.Duration,
	}, nil
}
