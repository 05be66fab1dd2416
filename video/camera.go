// Package video captures camera frames into an MJPEG artifact.
package video

import (
	"errors"
	"image"
)

var (
	ErrNoFrame      = errors.New("camera has no frame yet")
	ErrCameraClosed = errors.New("camera closed")
)

// Camera yields the most recent frame on demand. Grab must not block for
// longer than a frame interval.
type Camera interface {
	Grab() (image.Image, error)
	Close() error
}

// OpenFunc acquires the camera at deviceIndex.
type OpenFunc func(deviceIndex int) (Camera, error)

type CameraConfig struct {
	Width       int
	Height      int
	FPS         int
	InputFormat string // ffmpeg demuxer; empty picks one for the OS
	Device      string // overrides the device derived from the index
}

func DefaultCameraConfig() CameraConfig {
	return CameraConfig{Width: 640, Height: 480, FPS: 10}
}
