// Package vad wraps the WebRTC voice activity detector for 16-bit mono PCM.
package vad

import (
	"encoding/binary"
	"fmt"
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

const (
	mode     = 3
	frameMs  = 20
	debounce = 3 // consecutive speech frames to confirm voice

	// SpeechThreshold is the fraction of frames that must carry speech for
	// a stretch of audio to count as speaking.
	SpeechThreshold = 0.10
)

// Processor classifies a live PCM stream frame by frame. It is safe for
// one producer calling Process and any number of readers.
type Processor struct {
	vad        *webrtcvad.VAD
	sampleRate int
	frameBytes int

	mu            sync.Mutex
	buf           []byte
	voiceDetected bool
	speechRun     int
	totalFrames   int
	speechFrames  int
	tickTotal     int
	tickSpeech    int
}

func New(sampleRate int) (*Processor, error) {
	v, err := newDetector(sampleRate)
	if err != nil {
		return nil, err
	}
	return &Processor{
		vad:        v,
		sampleRate: sampleRate,
		frameBytes: frameBytes(sampleRate),
	}, nil
}

func newDetector(sampleRate int) (*webrtcvad.VAD, error) {
	if !(*webrtcvad.VAD)(nil).ValidRateAndFrameLength(sampleRate, frameBytes(sampleRate)) {
		return nil, fmt.Errorf("vad: unsupported sample rate %d", sampleRate)
	}
	v, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	if err := v.SetMode(mode); err != nil {
		return nil, err
	}
	return v, nil
}

func frameBytes(sampleRate int) int {
	return sampleRate * frameMs / 1000 * 2
}

func (p *Processor) Process(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf = append(p.buf, data...)
	for len(p.buf) >= p.frameBytes {
		frame := p.buf[:p.frameBytes]
		p.buf = p.buf[p.frameBytes:]

		active, err := p.vad.Process(p.sampleRate, frame)
		if err != nil {
			continue
		}
		p.totalFrames++
		if active {
			p.speechFrames++
			p.speechRun++
			if p.speechRun >= debounce {
				p.voiceDetected = true
			}
		} else {
			p.speechRun = 0
		}
	}
}

func (p *Processor) VoiceDetected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.voiceDetected
}

func (p *Processor) Stats() (total, speech int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalFrames, p.speechFrames
}

// HasSpeechTick reports whether the frames seen since the previous call
// reach SpeechThreshold.
func (p *Processor) HasSpeechTick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.totalFrames - p.tickTotal
	s := p.speechFrames - p.tickSpeech
	p.tickTotal, p.tickSpeech = p.totalFrames, p.speechFrames
	if t == 0 {
		return false
	}
	return float64(s)/float64(t) >= SpeechThreshold
}

// SpeechRatio classifies samples with a fresh detector and returns the
// fraction of whole frames that carry speech. Trailing partial frames are
// ignored; fewer samples than one frame yield 0.
func SpeechRatio(samples []int16, sampleRate int) (float64, error) {
	v, err := newDetector(sampleRate)
	if err != nil {
		return 0, err
	}

	fb := frameBytes(sampleRate)
	frameSamples := fb / 2
	frame := make([]byte, fb)
	var total, speech int
	for off := 0; off+frameSamples <= len(samples); off += frameSamples {
		for i, s := range samples[off : off+frameSamples] {
			binary.LittleEndian.PutUint16(frame[i*2:], uint16(s))
		}
		active, err := v.Process(sampleRate, frame)
		if err != nil {
			return 0, fmt.Errorf("vad: %w", err)
		}
		total++
		if active {
			speech++
		}
	}
	if total == 0 {
		return 0, nil
	}
	return float64(speech) / float64(total), nil
}
