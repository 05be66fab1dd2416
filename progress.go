package main

import (
	"fmt"
	"io"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"interviewcap/beep"
	"interviewcap/capture"
	"interviewcap/config"
	"interviewcap/log"
)

// progressUI shows a running session. start is called just before the
// scheduler runs and finish right after it returns.
type progressUI interface {
	capture.ProgressSink
	start(stop, abort func())
	finish(res *capture.Result)
}

func newProgressUI(cfg config.Config, opts options, env *environment, provider string) progressUI {
	if opts.headless || opts.testFile != "" {
		return &linePrinter{w: os.Stderr}
	}
	m := newTUIModel(cfg.SchedulerConfig().TargetDuration, nil, nil)
	m.modeLine = fmt.Sprintf("[%s | %s (%s)]", cfg.Capture.AudioFormat, provider, cfg.Transcription.Language)
	m.deviceLine = env.deviceLine
	m.camera = cfg.Video.Enabled
	return &tuiProgress{model: m}
}

// noVoiceCue plays the warning cue once each time the no-voice flag rises.
type noVoiceCue struct {
	mu     sync.Mutex
	warned bool
}

func (c *noVoiceCue) update(p capture.Progress) {
	c.mu.Lock()
	rising := p.NoVoice && !c.warned
	c.warned = p.NoVoice
	c.mu.Unlock()
	if rising {
		beep.Play(beep.CueNoVoice)
	}
}

type tuiProgress struct {
	model   tuiModel
	program *tea.Program
	done    chan struct{}
	cue     noVoiceCue
}

func (t *tuiProgress) start(stop, abort func()) {
	t.model.stop, t.model.abort = stop, abort
	t.program = NewTUIProgram(t.model)
	t.done = make(chan struct{})
	go func() {
		defer close(t.done)
		if _, err := t.program.Run(); err != nil {
			log.Errorf("tui: %v", err)
		}
	}()
}

func (t *tuiProgress) Progress(p capture.Progress) {
	t.cue.update(p)
	if t.program != nil {
		t.program.Send(ProgressMsg{p})
	}
}

func (t *tuiProgress) finish(res *capture.Result) {
	if t.program == nil {
		return
	}
	t.program.Send(SessionDoneMsg{Result: res})
	<-t.done
}

// linePrinter writes one line per elapsed second and per state change.
type linePrinter struct {
	w   io.Writer
	cue noVoiceCue

	mu      sync.Mutex
	lastSec int
	last    capture.State
	noVoice bool
}

func (l *linePrinter) start(stop, abort func()) {
	l.lastSec = -1
}

func (l *linePrinter) Progress(p capture.Progress) {
	l.cue.update(p)
	l.mu.Lock()
	defer l.mu.Unlock()

	sec := int(p.Elapsed.Seconds())
	if sec == l.lastSec && p.State == l.last && p.NoVoice == l.noVoice {
		return
	}
	l.lastSec, l.last, l.noVoice = sec, p.State, p.NoVoice

	line := fmt.Sprintf("[%5.1fs] %-10s windows %d/%d frames %d", p.Elapsed.Seconds(), p.State, p.WindowsDone, p.WindowsDispatched, p.FramesCaptured)
	if p.NoVoice {
		line += " (no voice)"
	}
	fmt.Fprintln(l.w, line)
}

func (l *linePrinter) finish(res *capture.Result) {
	if res == nil {
		return
	}
	fmt.Fprintf(l.w, "session %s %s\n", res.SessionID, res.State)
}
