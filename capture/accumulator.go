package capture

import (
	"encoding/binary"
	"sync"
)

// Accumulator holds every sample captured in a session plus the pending
// tail that has not yet been handed out as a transcription window.
//
// The device callback calls Push/PushPCM from its own goroutine while the
// scheduler drains and snapshots; the critical section is a slice append.
type Accumulator struct {
	mu      sync.Mutex
	all     []int16
	pending int // index into all where the pending tail starts
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

func (a *Accumulator) Push(samples []int16) {
	if len(samples) == 0 {
		return
	}
	a.mu.Lock()
	a.all = append(a.all, samples...)
	a.mu.Unlock()
}

// PushPCM decodes little-endian 16-bit mono PCM as delivered by audio.DataCallback.
func (a *Accumulator) PushPCM(data []byte) {
	if len(data) < 2 {
		return
	}
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	a.Push(samples)
}

// DrainPending returns the samples pushed since the previous drain and
// clears the pending view. An empty result means silence, not an error.
func (a *Accumulator) DrainPending() []int16 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]int16, len(a.all)-a.pending)
	copy(out, a.all[a.pending:])
	a.pending = len(a.all)
	return out
}

// SnapshotAll returns a copy of the full session trace.
func (a *Accumulator) SnapshotAll() []int16 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]int16, len(a.all))
	copy(out, a.all)
	return out
}

func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.all)
}

func (a *Accumulator) PendingLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.all) - a.pending
}
