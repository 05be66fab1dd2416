package transcriber

import "time"

const DefaultWindow = 3 * time.Second

// Window is one slice of audio dispatched to recognition as a unit.
// Start and End are offsets from the beginning of the session.
type Window struct {
	Index   int
	Samples []int16
	Start   time.Duration
	End     time.Duration
}

func NewWindow(index int, samples []int16, startSample, sampleRate int) Window {
	return Window{
		Index:   index,
		Samples: samples,
		Start:   samplesToDuration(startSample, sampleRate),
		End:     samplesToDuration(startSample+len(samples), sampleRate),
	}
}

func (w Window) Duration() time.Duration {
	return w.End - w.Start
}

func samplesToDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(sampleRate)
}
