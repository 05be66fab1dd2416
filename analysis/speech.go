package analysis

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"

	"interviewcap/encoder"
)

const (
	MinAudioBytes = 1024

	wavHeaderBytes = 44
)

type SpeechMetrics struct {
	SpeakingPaceWPM  float64 `json:"speaking_pace_wpm"`
	PauseFrequency   float64 `json:"pause_frequency"`
	ClarityScore     float64 `json:"clarity_score"`
	RMS              float64 `json:"rms"`
	ZeroCrossingRate float64 `json:"zero_crossing_rate"`
	DurationS        float64 `json:"duration_s"`
	SampleRate       int     `json:"sample_rate"`
}

// SpeechAnalyzer derives proxy speech metrics from a FLAC or WAV artifact.
// The formulas are fixed; downstream scoring depends on their exact values.
type SpeechAnalyzer struct {
	MinBytes int64 // zero means MinAudioBytes
}

func AnalyzeSpeech(path string) (SpeechMetrics, error) {
	return SpeechAnalyzer{}.Analyze(path)
}

func (a SpeechAnalyzer) Analyze(path string) (SpeechMetrics, error) {
	minBytes := a.MinBytes
	if minBytes <= 0 {
		minBytes = MinAudioBytes
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return SpeechMetrics{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return SpeechMetrics{}, err
	}
	if info.Size() == 0 {
		return SpeechMetrics{}, fmt.Errorf("%w: %s is empty", ErrInsufficientData, path)
	}
	// A WAV is already its decoded size; reject small ones before decoding.
	if format, _ := encoder.FormatFromPath(path); format == encoder.FormatWAV && info.Size() < minBytes {
		return SpeechMetrics{}, fmt.Errorf("%w: %s is %d bytes", ErrInsufficientData, path, info.Size())
	}

	pcm, err := encoder.DecodeFile(path)
	if err != nil {
		return SpeechMetrics{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	if len(pcm.Samples) == 0 || pcm.SampleRate <= 0 {
		return SpeechMetrics{}, fmt.Errorf("%w: %s", ErrZeroDuration, path)
	}
	// Compressed containers shrink silence to a few bytes per second, so the
	// minimum applies to the decoded size as a 16-bit mono WAV.
	if size := pcmSize(len(pcm.Samples)); size < minBytes {
		return SpeechMetrics{}, fmt.Errorf("%w: %s decodes to %d bytes", ErrInsufficientData, path, size)
	}

	m := speechMetrics(pcm.Samples)
	m.DurationS = pcm.Duration().Seconds()
	m.SampleRate = pcm.SampleRate
	return m, nil
}

// pcmSize is the size of n samples stored as a 16-bit mono WAV.
func pcmSize(n int) int64 {
	return wavHeaderBytes + int64(n)*encoder.BitsPerSample/8
}

// speechMetrics applies the proxy formulas to mono samples in int16
// amplitude units. samples must be non-empty.
func speechMetrics(samples []float64) SpeechMetrics {
	n := float64(len(samples))

	var sumSq float64
	changes := 0
	for i, s := range samples {
		sumSq += s * s
		if i > 0 && sign(s) != sign(samples[i-1]) {
			changes++
		}
	}
	rms := math.Sqrt(sumSq / n)
	zcr := float64(changes) / n

	return SpeechMetrics{
		SpeakingPaceWPM:  clamp(zcr*1000, 80, 200),
		PauseFrequency:   max(5-zcr*10, 0.5),
		ClarityScore:     clamp(rms/1000*8, 1, 10),
		RMS:              rms,
		ZeroCrossingRate: zcr,
	}
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
