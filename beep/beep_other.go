//go:build !linux

package beep

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

const playbackChannels = 1

var (
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	initOnce sync.Once
	playMu   sync.Mutex
	current  atomic.Pointer[[]byte]
	playPos  atomic.Uint32
)

func initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = playbackChannels
	config.SampleRate = sampleRate

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, config, malgo.DeviceCallbacks{Data: dataCallback})
	return err
}

func initPlayer() {
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}
	if err := initDevice(); err != nil {
		malgoCtx.Uninit()
		malgoCtx = nil
	}
}

func dataCallback(out, _ []byte, frameCount uint32) {
	want := frameCount * 2 * playbackChannels
	written := uint32(0)
	if buf := current.Load(); buf != nil {
		pos := playPos.Load()
		if remaining := uint32(len(*buf)) - pos; remaining > 0 {
			written = min(want, remaining)
			copy(out[:written], (*buf)[pos:pos+written])
			playPos.Store(pos + written)
		} else {
			current.Store(nil)
		}
	}
	for i := written; i < uint32(len(out)); i++ {
		out[i] = 0
	}
}

func play(samples []int16) {
	initOnce.Do(initPlayer)
	if malgoCtx == nil {
		return
	}

	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}

	playMu.Lock()
	defer playMu.Unlock()
	if device == nil {
		return
	}
	device.Stop()
	playPos.Store(0)
	current.Store(&buf)
	if err := device.Start(); err != nil {
		// device may be stale after sleep/wake; rebuild once
		device.Uninit()
		if err := initDevice(); err != nil || device.Start() != nil {
			current.Store(nil)
		}
	}
}
