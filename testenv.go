package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"interviewcap/audio"
	"interviewcap/beep"
	"interviewcap/config"
	"interviewcap/log"
	"interviewcap/video"
)

// newTestEnvironment replays an audio file as the microphone and serves
// synthetic camera frames. Commands on stdin drive the session.
func newTestEnvironment(path string, cfg config.Config) (*environment, error) {
	beep.Disable()

	fakeCtx, err := audio.NewFakeContext(path, audio.FakeOptions{Realtime: true, PadSilence: true})
	if err != nil {
		return nil, fmt.Errorf("loading test audio: %w", err)
	}
	mic, err := fakeCtx.NewCapture(nil, cfg.AudioConfig())
	if err != nil {
		return nil, fmt.Errorf("creating capture: %w", err)
	}
	fake := mic.(*audio.FakeCapture)

	env := &environment{
		mic:        mic,
		camera:     video.FakeOpener(cfg.Video.Width, cfg.Video.Height, nil),
		deviceLine: "mic: fake (" + path + ")",
		cleanup:    fakeCtx.Close,
	}
	env.attach = func(stop, abort func()) {
		go driveSession(os.Stdin, fake.AudioDone(), stop, abort)
	}
	return env, nil
}

// driveSession reads one command per line:
//
//	STOP             finish recording early
//	QUIT             abort the session
//	WAIT_AUDIO_DONE  block until the clip has been delivered
//	SLEEP <ms>       pause the driver
func driveSession(r io.Reader, audioDone <-chan struct{}, stop, abort func()) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch {
		case cmd == "STOP":
			stop()
		case cmd == "QUIT":
			abort()
			return
		case cmd == "WAIT_AUDIO_DONE":
			<-audioDone
		case strings.HasPrefix(cmd, "SLEEP "):
			if ms, err := strconv.Atoi(strings.TrimSpace(cmd[6:])); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		case cmd == "":
		default:
			log.Warnf("test driver: unknown command %q", cmd)
		}
	}
}
