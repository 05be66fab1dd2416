package transcriber

import (
	"context"
	"sync"
	"time"
)

// FakeReply is one scripted recognizer answer.
type FakeReply struct {
	Text     string
	NoSpeech bool
	Err      error
	Delay    time.Duration
	Panic    bool
}

// FakeRecognizer answers calls from a script in call order. Once the script
// runs out it repeats Default.
type FakeRecognizer struct {
	Default FakeReply
	Limit   time.Duration // reported by MaxClip

	mu     sync.Mutex
	script []FakeReply
	calls  []Audio
}

func NewFake(script ...FakeReply) *FakeRecognizer {
	return &FakeRecognizer{script: script}
}

func (f *FakeRecognizer) Name() string { return ProviderFake }

func (f *FakeRecognizer) MaxClip() time.Duration { return f.Limit }

func (f *FakeRecognizer) Recognize(ctx context.Context, audio Audio) (*Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, audio)
	reply := f.Default
	if len(f.script) > 0 {
		reply = f.script[0]
		f.script = f.script[1:]
	}
	f.mu.Unlock()

	if reply.Panic {
		panic("fake recognizer panic")
	}
	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	return &Result{Text: reply.Text, NoSpeech: reply.NoSpeech}, nil
}

func (f *FakeRecognizer) Calls() []Audio {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Audio(nil), f.calls...)
}
