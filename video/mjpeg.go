package video

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
)

const DefaultJPEGQuality = 80

// MJPEGWriter appends JPEG frames back to back, the layout ffmpeg reads
// with -f mjpeg.
type MJPEGWriter struct {
	w       *bufio.Writer
	quality int
	frames  int
}

func NewMJPEGWriter(w io.Writer, quality int) *MJPEGWriter {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &MJPEGWriter{w: bufio.NewWriter(w), quality: quality}
}

func (m *MJPEGWriter) WriteFrame(img image.Image) error {
	if err := jpeg.Encode(m.w, img, &jpeg.Options{Quality: m.quality}); err != nil {
		return fmt.Errorf("encoding frame %d: %w", m.frames, err)
	}
	m.frames++
	return nil
}

func (m *MJPEGWriter) Frames() int { return m.frames }

func (m *MJPEGWriter) Flush() error { return m.w.Flush() }

var errTruncated = errors.New("truncated jpeg frame")

// ReadFrames decodes every frame of an MJPEG file in order. A truncated
// final frame, as left by an interrupted writer, is ignored.
func ReadFrames(path string, fn func(index int, img image.Image) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for i := 0; ; i++ {
		frame, err := nextJPEG(r)
		if err == io.EOF || errors.Is(err, errTruncated) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		img, err := jpeg.Decode(bytes.NewReader(frame))
		if err != nil {
			return fmt.Errorf("decoding frame %d: %w", i, err)
		}
		if err := fn(i, img); err != nil {
			return err
		}
	}
}

// nextJPEG returns the bytes of the next SOI..EOI image by walking marker
// segments, so marker-like bytes inside headers are never mistaken for EOI.
func nextJPEG(r *bufio.Reader) ([]byte, error) {
	// seek to SOI
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, io.EOF
		}
		if b != 0xff {
			continue
		}
		b2, err := r.ReadByte()
		if err != nil {
			return nil, io.EOF
		}
		if b2 == 0xd8 {
			break
		}
		r.UnreadByte()
	}

	var buf bytes.Buffer
	buf.Write([]byte{0xff, 0xd8})
	for {
		marker, err := readMarker(r, &buf)
		if err != nil {
			return nil, errTruncated
		}
		switch {
		case marker == 0xd9: // EOI
			return buf.Bytes(), nil
		case marker >= 0xd0 && marker <= 0xd7, marker == 0x01:
			// standalone
		default:
			var lenBytes [2]byte
			if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
				return nil, errTruncated
			}
			buf.Write(lenBytes[:])
			n := int(lenBytes[0])<<8 | int(lenBytes[1])
			if n < 2 {
				return nil, fmt.Errorf("bad segment length %d", n)
			}
			if _, err := io.CopyN(&buf, r, int64(n-2)); err != nil {
				return nil, errTruncated
			}
			if marker == 0xda { // SOS: entropy-coded data follows
				if err := copyScan(r, &buf); err != nil {
					return nil, errTruncated
				}
			}
		}
	}
}

// readMarker reads 0xFF, any fill bytes and the marker code.
func readMarker(r *bufio.Reader, buf *bytes.Buffer) (byte, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if b != 0xff {
		return 0, fmt.Errorf("expected marker, got %#x", b)
	}
	for {
		c, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if c != 0xff {
			buf.Write([]byte{0xff, c})
			return c, nil
		}
	}
}

// copyScan copies entropy-coded bytes up to, not including, the next
// marker that is neither a stuffed zero nor a restart marker.
func copyScan(r *bufio.Reader, buf *bytes.Buffer) error {
	for {
		p, err := r.Peek(2)
		if err != nil {
			return err
		}
		if p[0] != 0xff {
			b, _ := r.ReadByte()
			buf.WriteByte(b)
			continue
		}
		if p[1] == 0x00 || (p[1] >= 0xd0 && p[1] <= 0xd7) {
			buf.Write(p)
			r.Discard(2)
			continue
		}
		return nil
	}
}
