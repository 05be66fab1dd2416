package transcriber

import (
	"context"
	"fmt"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
)

// GoogleMaxClip is the longest inline audio synchronous Recognize accepts.
const GoogleMaxClip = time.Minute

// Google recognizes clips with Cloud Speech-to-Text v1. Credentials come
// from GOOGLE_APPLICATION_CREDENTIALS.
//
// Audio travels inline through synchronous Recognize, so clips longer than
// GoogleMaxClip are rejected by the service. The dispatcher checks MaxClip
// before sending a whole-session fallback.
type Google struct {
	client *speech.Client
}

func NewGoogle(ctx context.Context) (*Google, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("google speech client: %w", err)
	}
	return &Google{client: c}, nil
}

func (g *Google) Name() string { return ProviderGoogle }

func (g *Google) Close() error { return g.client.Close() }

func (g *Google) MaxClip() time.Duration { return GoogleMaxClip }

func (g *Google) Recognize(ctx context.Context, audio Audio) (*Result, error) {
	resp, err := g.client.Recognize(ctx, googleRequest(audio))
	if err != nil {
		return nil, fmt.Errorf("google recognize: %w", err)
	}
	return googleResult(resp), nil
}

func googleRequest(audio Audio) *speechpb.RecognizeRequest {
	encoding := speechpb.RecognitionConfig_FLAC
	if audio.Format == "wav" {
		encoding = speechpb.RecognitionConfig_LINEAR16
	}
	lang := audio.Language
	if lang == "" {
		lang = "en-US"
	}
	return &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   encoding,
			SampleRateHertz:            int32(audio.SampleRate),
			LanguageCode:               lang,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio.Data},
		},
	}
}

// googleResult joins the top alternative of each result. An empty result
// list is the service's way of saying it heard nothing.
func googleResult(resp *speechpb.RecognizeResponse) *Result {
	if len(resp.GetResults()) == 0 {
		return &Result{NoSpeech: true}
	}

	var parts []string
	var confSum float64
	var n int
	for _, r := range resp.GetResults() {
		if len(r.GetAlternatives()) == 0 {
			continue
		}
		alt := r.GetAlternatives()[0]
		if t := strings.TrimSpace(alt.GetTranscript()); t != "" {
			parts = append(parts, t)
		}
		confSum += float64(alt.GetConfidence())
		n++
	}

	res := &Result{Text: strings.Join(parts, " ")}
	if n > 0 {
		res.Confidence = confSum / float64(n)
	}
	if d := resp.GetTotalBilledTime(); d != nil {
		res.Duration = d.AsDuration().Seconds()
	}
	return res
}
