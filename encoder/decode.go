package encoder

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mewkiz/flac"
)

// PCM is a decoded artifact reduced to one channel. Samples keep 16-bit
// amplitude units regardless of the source bit depth.
type PCM struct {
	Samples    []float64
	SampleRate int
	Channels   int
}

func (p *PCM) Duration() time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(p.Samples)) * time.Second / time.Duration(p.SampleRate)
}

// DecodeFile reads a FLAC or WAV artifact, sniffing the container from its magic bytes.
func DecodeFile(path string) (*PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	magic := make([]byte, 4)
	_, err = io.ReadFull(f, magic)
	f.Close()
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: file too short to identify", path)
		}
		return nil, err
	}

	switch {
	case bytes.Equal(magic, []byte("fLaC")):
		return decodeFLAC(path)
	case bytes.Equal(magic, []byte("RIFF")):
		return decodeWAV(path)
	default:
		return nil, fmt.Errorf("%s: unknown audio container", path)
	}
}

func decodeFLAC(path string) (*PCM, error) {
	stream, err := flac.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening flac: %w", err)
	}
	defer stream.Close()

	shift := int(stream.Info.BitsPerSample) - BitsPerSample
	var mono []float64
	for {
		f, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing flac frame: %w", err)
		}
		if len(f.Subframes) == 0 {
			continue
		}
		n := f.Subframes[0].NSamples
		for i := 0; i < n; i++ {
			var sum float64
			for _, sf := range f.Subframes {
				sum += rescale(sf.Samples[i], shift)
			}
			mono = append(mono, sum/float64(len(f.Subframes)))
		}
	}

	return &PCM{
		Samples:    mono,
		SampleRate: int(stream.Info.SampleRate),
		Channels:   int(stream.Info.NChannels),
	}, nil
}

func rescale(s int32, shift int) float64 {
	switch {
	case shift > 0:
		return float64(s) / float64(int64(1)<<shift)
	case shift < 0:
		return float64(s) * float64(int64(1)<<-shift)
	default:
		return float64(s)
	}
}
