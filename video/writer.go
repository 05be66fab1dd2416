package video

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// FrameWriter grabs camera frames and appends them to an MJPEG artifact.
// When the camera cannot be opened every CaptureFrame is a no-op and the
// session runs audio-only.
type FrameWriter struct {
	path    string
	open    OpenFunc
	quality int
	log     zerolog.Logger

	cam    Camera
	file   *os.File
	mjpeg  *MJPEGWriter
	closed bool

	attempted int
	captured  int
}

type WriterOption func(*FrameWriter)

func WithQuality(q int) WriterOption {
	return func(w *FrameWriter) { w.quality = q }
}

func WithLogger(l zerolog.Logger) WriterOption {
	return func(w *FrameWriter) { w.log = l }
}

func NewFrameWriter(path string, open OpenFunc, opts ...WriterOption) *FrameWriter {
	w := &FrameWriter{
		path:    path,
		open:    open,
		quality: DefaultJPEGQuality,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Open acquires the camera and creates the artifact. It reports whether
// frames will be captured.
func (w *FrameWriter) Open(deviceIndex int) bool {
	if w.open == nil {
		return false
	}
	cam, err := w.open(deviceIndex)
	if err != nil {
		w.log.Warn().Err(err).Int("camera", deviceIndex).Msg("camera unavailable")
		return false
	}
	f, err := os.Create(w.path)
	if err != nil {
		w.log.Warn().Err(err).Str("path", w.path).Msg("creating video artifact")
		cam.Close()
		return false
	}
	w.cam = cam
	w.file = f
	w.mjpeg = NewMJPEGWriter(f, w.quality)
	w.log.Info().Int("camera", deviceIndex).Str("path", w.path).Msg("camera open")
	return true
}

func (w *FrameWriter) CaptureFrame() {
	if w.cam == nil || w.closed {
		return
	}
	w.attempted++
	img, err := w.cam.Grab()
	if err != nil {
		w.log.Debug().Err(err).Int("attempt", w.attempted).Msg("frame grab")
		return
	}
	if err := w.mjpeg.WriteFrame(img); err != nil {
		w.log.Warn().Err(err).Msg("frame write")
		return
	}
	w.captured++
}

// Close releases the camera and finalizes the artifact. An artifact with
// no frames is removed. Close is idempotent.
func (w *FrameWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.cam == nil {
		return nil
	}

	var firstErr error
	if err := w.cam.Close(); err != nil {
		firstErr = fmt.Errorf("closing camera: %w", err)
	}
	if err := w.mjpeg.Flush(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("flushing video artifact: %w", err)
	}
	if err := w.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing video artifact: %w", err)
	}
	if w.captured == 0 {
		os.Remove(w.path)
	}
	w.log.Info().Int("attempted", w.attempted).Int("captured", w.captured).Msg("video closed")
	return firstErr
}

// Path returns the artifact path, or "" if no frame was written.
func (w *FrameWriter) Path() string {
	if w.captured == 0 {
		return ""
	}
	return w.path
}

func (w *FrameWriter) Stats() (attempted, captured int) {
	return w.attempted, w.captured
}
