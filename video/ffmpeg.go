package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	startTimeout = 5 * time.Second
	stderrLimit  = 4096
)

// FFmpegCamera reads raw RGB24 frames from an ffmpeg child process. A
// reader goroutine keeps only the newest frame so Grab never waits on the
// device.
type FFmpegCamera struct {
	cfg    CameraConfig
	cmd    *exec.Cmd
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	latest []byte
	err    error
}

// FFmpegOpener returns an OpenFunc that starts ffmpeg with cfg.
func FFmpegOpener(cfg CameraConfig) OpenFunc {
	return func(deviceIndex int) (Camera, error) {
		return OpenFFmpeg(cfg, deviceIndex)
	}
}

func OpenFFmpeg(cfg CameraConfig, deviceIndex int) (*FFmpegCamera, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid camera size %dx%d", cfg.Width, cfg.Height)
	}
	args, err := ffmpegArgs(cfg, runtime.GOOS, deviceIndex)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	stderr := &tailBuffer{limit: stderrLimit}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}

	c := &FFmpegCamera{cfg: cfg, cmd: cmd, cancel: cancel, done: make(chan struct{})}
	first := make(chan struct{})
	go func() {
		defer close(c.done)
		c.readFrames(stdout, first)
		cmd.Wait()
	}()

	select {
	case <-first:
		return c, nil
	case <-c.done:
		cancel()
		return nil, exitError(c.readErr(), stderr.String())
	case <-time.After(startTimeout):
		c.Close()
		return nil, fmt.Errorf("no frame from camera %d within %s", deviceIndex, startTimeout)
	}
}

// exitError reports ffmpeg quitting before the first frame, with the tail
// of its stderr when it printed anything.
func exitError(readErr error, stderr string) error {
	if msg := strings.TrimSpace(stderr); msg != "" {
		return fmt.Errorf("ffmpeg exited before first frame: %s: %w", msg, readErr)
	}
	return fmt.Errorf("ffmpeg exited before first frame: %w", readErr)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int

	mu  sync.Mutex
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

func ffmpegArgs(cfg CameraConfig, goos string, deviceIndex int) ([]string, error) {
	format := cfg.InputFormat
	device := cfg.Device
	switch goos {
	case "linux":
		if format == "" {
			format = "v4l2"
		}
		if device == "" {
			device = "/dev/video" + strconv.Itoa(deviceIndex)
		}
	case "darwin":
		if format == "" {
			format = "avfoundation"
		}
		if device == "" {
			device = strconv.Itoa(deviceIndex) + ":none"
		}
	case "windows":
		if format == "" {
			format = "dshow"
		}
		if device == "" {
			return nil, errors.New("dshow needs video.device set to the camera name")
		}
		device = "video=" + device
	default:
		if format == "" || device == "" {
			return nil, fmt.Errorf("no default camera input on %s", goos)
		}
	}

	fps := cfg.FPS
	if fps <= 0 {
		fps = DefaultCameraConfig().FPS
	}
	size := fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", format,
		"-framerate", strconv.Itoa(fps),
		"-video_size", size,
		"-i", device,
		"-vf", fmt.Sprintf("scale=%d:%d", cfg.Width, cfg.Height),
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-",
	}, nil
}

func (c *FFmpegCamera) frameSize() int {
	return c.cfg.Width * c.cfg.Height * 3
}

// readFrames fills the latest-frame slot until r ends. first is closed
// after the first complete frame.
func (c *FFmpegCamera) readFrames(r io.Reader, first chan struct{}) {
	var once sync.Once
	for {
		buf := make([]byte, c.frameSize())
		if _, err := io.ReadFull(r, buf); err != nil {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			return
		}
		c.mu.Lock()
		c.latest = buf
		c.mu.Unlock()
		once.Do(func() { close(first) })
	}
}

func (c *FFmpegCamera) readErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *FFmpegCamera) Grab() (image.Image, error) {
	c.mu.Lock()
	frame, err := c.latest, c.err
	c.mu.Unlock()
	if frame == nil {
		if err != nil {
			return nil, err
		}
		return nil, ErrNoFrame
	}
	select {
	case <-c.done:
		return nil, ErrCameraClosed
	default:
	}
	return rgb24ToRGBA(frame, c.cfg.Width, c.cfg.Height), nil
}

func (c *FFmpegCamera) Close() error {
	c.cancel()
	<-c.done
	return nil
}

func rgb24ToRGBA(frame []byte, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, j := 0, 0; i+2 < len(frame) && j+3 < len(img.Pix); i, j = i+3, j+4 {
		img.Pix[j] = frame[i]
		img.Pix[j+1] = frame[i+1]
		img.Pix[j+2] = frame[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}
