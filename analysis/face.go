package analysis

import (
	"fmt"
	"image"
	"os"
	"sort"

	pigo "github.com/esimov/pigo/core"
)

// Face is one detection, centered at (X, Y) in pixel coordinates.
type Face struct {
	X, Y  float64
	Size  float64
	Score float64
}

// FaceDetector finds faces in a frame, best detection first.
type FaceDetector interface {
	Detect(img image.Image) ([]Face, error)
}

// PigoDetector runs a pixel-intensity-comparison cascade over grayscale
// frames.
type PigoDetector struct {
	classifier *pigo.Pigo

	MinSize     int
	MaxSize     int
	ShiftFactor float64
	ScaleFactor float64
	IoU         float64
	MinScore    float32
}

// NewPigoDetector loads a face cascade such as pigo's facefinder file.
func NewPigoDetector(cascadePath string) (*PigoDetector, error) {
	data, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, fmt.Errorf("reading face cascade: %w", err)
	}
	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpacking face cascade: %w", err)
	}
	return &PigoDetector{
		classifier:  classifier,
		MinSize:     40,
		MaxSize:     1000,
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		IoU:         0.2,
		MinScore:    5.0,
	}, nil
}

func (d *PigoDetector) Detect(img image.Image) ([]Face, error) {
	b := img.Bounds()
	rows, cols := b.Dy(), b.Dx()
	if rows == 0 || cols == 0 {
		return nil, nil
	}

	params := pigo.CascadeParams{
		MinSize:     d.MinSize,
		MaxSize:     min(d.MaxSize, max(rows, cols)),
		ShiftFactor: d.ShiftFactor,
		ScaleFactor: d.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(img),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, d.IoU)
	sort.Slice(dets, func(i, j int) bool { return dets[i].Q > dets[j].Q })

	var faces []Face
	for _, det := range dets {
		if det.Q < d.MinScore {
			continue
		}
		faces = append(faces, Face{
			X:     float64(det.Col),
			Y:     float64(det.Row),
			Size:  float64(det.Scale),
			Score: float64(det.Q),
		})
	}
	return faces, nil
}
