package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"interviewcap/encoder"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeOptions controls how a FakeCapture delivers its samples.
type FakeOptions struct {
	// Realtime paces chunks at the 16 kHz wall-clock rate; otherwise the
	// whole clip is delivered inside Start.
	Realtime bool
	// PadSilence keeps delivering silent chunks after the clip runs out,
	// like a live microphone in a quiet room.
	PadSilence bool
	// StartErr makes Start fail, simulating a missing microphone.
	StartErr error
}

type FakeContext struct {
	samples []int16
	opts    FakeOptions
}

// NewFakeContext serves the samples of a 16 kHz mono FLAC or WAV file.
func NewFakeContext(path string, opts FakeOptions) (*FakeContext, error) {
	pcm, err := encoder.DecodeFile(path)
	if err != nil {
		return nil, err
	}
	if pcm.SampleRate != encoder.SampleRate {
		return nil, fmt.Errorf("%s: sample rate %d, want %d", path, pcm.SampleRate, encoder.SampleRate)
	}
	samples := make([]int16, len(pcm.Samples))
	for i, s := range pcm.Samples {
		samples[i] = int16(math.Max(math.MinInt16, math.Min(math.MaxInt16, math.Round(s))))
	}
	return &FakeContext{samples: samples, opts: opts}, nil
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	return NewFakeCapture(f.samples, f.opts), nil
}

type FakeCapture struct {
	pcm       []byte
	opts      FakeOptions
	audioDone chan struct{}
	doneOnce  sync.Once

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}
	started  bool
}

func NewFakeCapture(samples []int16, opts FakeOptions) *FakeCapture {
	pcm := make([]byte, len(samples)*fakeBytesPerFrame)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return &FakeCapture{pcm: pcm, opts: opts, audioDone: make(chan struct{})}
}

// AudioDone is closed once every clip sample has been delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) finish() {
	f.doneOnce.Do(func() { close(f.audioDone) })
}

func (f *FakeCapture) feedChunk(cb DataCallback, pos, chunkBytes int) int {
	end := min(pos+chunkBytes, len(f.pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
	return end
}

func (f *FakeCapture) Start() error {
	if f.opts.StartErr != nil {
		return f.opts.StartErr
	}

	f.mu.Lock()
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	f.started = true
	f.mu.Unlock()

	chunkBytes := fakeFrameSize * fakeBytesPerFrame
	interval := time.Duration(fakeFrameSize) * time.Second / time.Duration(encoder.SampleRate)

	pos := 0
	if !f.opts.Realtime {
		if cb := f.callback(); cb != nil {
			for pos < len(f.pcm) {
				pos = f.feedChunk(cb, pos, chunkBytes)
			}
		}
		pos = len(f.pcm)
	}

	go func() {
		defer close(f.feedDone)
		silence := make([]byte, chunkBytes)
		for {
			if pos >= len(f.pcm) {
				f.finish()
				if !f.opts.PadSilence {
					<-f.stopCh
					return
				}
			}

			if cb := f.callback(); cb != nil {
				if pos < len(f.pcm) {
					pos = f.feedChunk(cb, pos, chunkBytes)
				} else {
					cb(silence, fakeFrameSize)
				}
			}

			select {
			case <-f.stopCh:
				return
			case <-time.After(interval):
			}
		}
	}()

	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	if !f.started {
		f.mu.Unlock()
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	done := f.feedDone
	f.mu.Unlock()
	<-done
}

func (f *FakeCapture) Close() { f.Stop() }
