package capture

import "time"

// Progress is a best-effort snapshot emitted after every tick.
type Progress struct {
	Elapsed           time.Duration
	Remaining         time.Duration
	Partial           string
	State             State
	NoVoice           bool
	FramesCaptured    int
	WindowsDispatched int
	WindowsDone       int
}

type ProgressSink interface {
	Progress(p Progress)
}

type ProgressFunc func(p Progress)

func (f ProgressFunc) Progress(p Progress) { f(p) }
