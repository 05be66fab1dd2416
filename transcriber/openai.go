package transcriber

import "context"

type OpenAI struct {
	client *TracedClient
	apiURL string
	apiKey string
}

func NewOpenAI(apiKey string) *OpenAI {
	apiURL := "https://api.openai.com/v1/audio/transcriptions"
	return &OpenAI{
		client: NewTracedClient(apiURL),
		apiURL: apiURL,
		apiKey: apiKey,
	}
}

func (o *OpenAI) Name() string { return ProviderOpenAI }

func (o *OpenAI) Warm(ctx context.Context) { o.client.Warm(ctx) }

// Recognize uploads one clip. gpt-4o-transcribe has no no-speech signal,
// so silence shows up as empty text.
func (o *OpenAI) Recognize(ctx context.Context, audio Audio) (*Result, error) {
	req, err := whisperRequest(ctx, o.apiURL, o.apiKey, audio,
		"model", "gpt-4o-transcribe",
		"response_format", "json",
	)
	if err != nil {
		return nil, err
	}

	var oResp struct {
		Text string `json:"text"`
	}
	resp, err := o.client.doJSON(req, ProviderOpenAI, &oResp)
	if err != nil {
		return nil, err
	}

	return &Result{
		Text:      oResp.Text,
		Metrics:   resp.Metrics,
		RateLimit: rateLimit(resp.Header, []string{"x-ratelimit-remaining-requests"}, []string{"x-ratelimit-limit-requests"}),
	}, nil
}
