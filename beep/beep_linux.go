//go:build linux

package beep

import (
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

const playbackChannels = 1

var (
	clientOnce sync.Once
	client     *pulse.Client

	// playMu keeps overlapping cues from sounding at once.
	playMu sync.Mutex
)

// sharedClient connects once per process. A failed connect stays failed;
// cues are best effort.
func sharedClient() *pulse.Client {
	clientOnce.Do(func() {
		c, err := pulse.NewClient(pulse.ClientApplicationName("interviewcap"))
		if err == nil {
			client = c
		}
	})
	return client
}

func play(samples []int16) {
	c := sharedClient()
	if c == nil {
		return
	}
	playMu.Lock()
	defer playMu.Unlock()

	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n, nil
	})
	stream, err := c.NewPlayback(reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		return
	}
	defer stream.Close()
	stream.Start()
	stream.Drain()
	stream.Stop()
}
