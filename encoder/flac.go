package encoder

import (
	"fmt"
	"io"
	"sync"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// FlacEncoder writes mono 16-bit samples to w as verbatim FLAC frames of
// at most BlockSize samples.
type FlacEncoder struct {
	mu         sync.Mutex
	enc        *flac.Encoder
	sampleRate int
	samples    uint64
}

func NewFlac(w io.Writer, sampleRate int) (*FlacEncoder, error) {
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}
	info := &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    uint32(sampleRate),
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
	}
	enc, err := flac.NewEncoder(w, info)
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)
	return &FlacEncoder{enc: enc, sampleRate: sampleRate}, nil
}

// Write encodes samples of any length, splitting them into blocks.
func (e *FlacEncoder) Write(samples []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for len(samples) > 0 {
		n := min(len(samples), BlockSize)
		if err := e.writeFrame(samples[:n]); err != nil {
			return err
		}
		samples = samples[n:]
	}
	return nil
}

func (e *FlacEncoder) writeFrame(block []int16) error {
	wide := make([]int32, len(block))
	for i, s := range block {
		wide[i] = int32(s)
	}
	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(len(block)),
			SampleRate:    uint32(e.sampleRate),
			Channels:      frame.ChannelsMono,
			BitsPerSample: BitsPerSample,
		},
		Subframes: []*frame.Subframe{{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   wide,
			NSamples:  len(block),
		}},
	}
	if err := e.enc.WriteFrame(f); err != nil {
		return fmt.Errorf("writing flac frame: %w", err)
	}
	e.samples += uint64(len(block))
	return nil
}

func (e *FlacEncoder) Close() error {
	return e.enc.Close()
}

// Samples returns how many samples have been encoded.
func (e *FlacEncoder) Samples() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.samples
}
