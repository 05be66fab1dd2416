package video

import (
	"image"
	"image/color"
	"sync"
)

// FakeCamera renders a bright square drifting across a dark frame.
type FakeCamera struct {
	Width, Height int

	mu     sync.Mutex
	n      int
	closed bool
}

// FakeOpener returns an OpenFunc producing FakeCameras, or failing with
// openErr when it is non-nil.
func FakeOpener(width, height int, openErr error) OpenFunc {
	return func(int) (Camera, error) {
		if openErr != nil {
			return nil, openErr
		}
		return &FakeCamera{Width: width, Height: height}, nil
	}
}

func (f *FakeCamera) Grab() (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrCameraClosed
	}
	f.n++

	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	side := max(f.Height/4, 1)
	x0 := (f.n * 4) % max(f.Width-side, 1)
	y0 := (f.Height - side) / 2
	bright := color.RGBA{R: 220, G: 180, B: 160, A: 255}
	dark := color.RGBA{R: 20, G: 20, B: 30, A: 255}
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			c := dark
			if x >= x0 && x < x0+side && y >= y0 && y < y0+side {
				c = bright
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img, nil
}

func (f *FakeCamera) Frames() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

func (f *FakeCamera) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}
