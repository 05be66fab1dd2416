// Package beep plays short audible cues at session transitions.
package beep

import (
	"math"
	"sync"
	"sync/atomic"
)

type Cue int

const (
	CueStart Cue = iota
	CueComplete
	CueFailed
	CueNoVoice
)

const sampleRate = 44100

type tone struct {
	freq     float64
	duration float64
	volume   float64
	decay    float64
	repeat   int
	gap      float64
}

var tones = map[Cue]tone{
	CueStart:    {freq: 1200, duration: 0.12, volume: 0.5, decay: 60, repeat: 1},
	CueComplete: {freq: 900, duration: 0.2, volume: 0.5, decay: 40, repeat: 1},
	CueFailed:   {freq: 350, duration: 0.08, volume: 0.6, decay: 30, repeat: 2, gap: 0.05},
	CueNoVoice:  {freq: 600, duration: 0.05, volume: 0.35, decay: 50, repeat: 3, gap: 0.04},
}

var (
	disabled atomic.Bool
	rendered = map[Cue][]int16{}
	renderMu sync.Mutex
)

func Disable() { disabled.Store(true) }

// Play renders the cue once and plays it without blocking.
func Play(c Cue) {
	if disabled.Load() {
		return
	}
	samples := cached(c)
	if len(samples) == 0 {
		return
	}
	go play(samples)
}

func cached(c Cue) []int16 {
	renderMu.Lock()
	defer renderMu.Unlock()
	if s, ok := rendered[c]; ok {
		return s
	}
	t, ok := tones[c]
	if !ok {
		return nil
	}
	s := render(t, sampleRate, playbackChannels)
	rendered[c] = s
	return s
}

// render produces interleaved 16-bit PCM: repeat decaying sine ticks
// separated by gap seconds of silence.
func render(t tone, rate, channels int) []int16 {
	n := int(float64(rate) * t.duration)
	gap := int(float64(rate) * t.gap)
	out := make([]int16, 0, (n*t.repeat+gap*max(t.repeat-1, 0))*channels)
	for r := 0; r < t.repeat; r++ {
		if r > 0 {
			out = append(out, make([]int16, gap*channels)...)
		}
		for i := 0; i < n; i++ {
			x := float64(i) / float64(rate)
			envelope := math.Exp(-x * t.decay)
			s := int16(math.Sin(2*math.Pi*t.freq*x) * 32767 * t.volume * envelope)
			for ch := 0; ch < channels; ch++ {
				out = append(out, s)
			}
		}
	}
	return out
}
