package analysis

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"math"
	"os"

	"github.com/rs/zerolog"

	"interviewcap/video"
)

const (
	MinVideoBytes = 1024

	defaultEngagement = 0.5
	engagedThreshold  = 0.7
)

type VideoMetrics struct {
	FaceDetectionRatio float64 `json:"face_detection_ratio"`
	EngagementScore    float64 `json:"engagement_score"`
	FacialExpression   string  `json:"facial_expression"`
	AnalysisConfidence float64 `json:"analysis_confidence"`
	TotalFrames        int     `json:"total_frames"`
	FaceFrames         int     `json:"face_frames"`
}

// VideoAnalyzer scores face position in an MJPEG artifact. Engagement is
// a geometric proxy: how close the first face sits to the frame center.
type VideoAnalyzer struct {
	Detector FaceDetector
	MinBytes int64 // zero means MinVideoBytes
	Log      zerolog.Logger
}

func AnalyzeVideo(path string, d FaceDetector) (VideoMetrics, error) {
	return VideoAnalyzer{Detector: d, Log: zerolog.Nop()}.Analyze(path)
}

func (a VideoAnalyzer) Analyze(path string) (VideoMetrics, error) {
	minBytes := a.MinBytes
	if minBytes <= 0 {
		minBytes = MinVideoBytes
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return VideoMetrics{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return VideoMetrics{}, err
	}
	// An empty container holds no frames at all.
	if info.Size() == 0 {
		return VideoMetrics{}, fmt.Errorf("%w: %s is empty", ErrNoFrames, path)
	}
	if info.Size() < minBytes {
		return VideoMetrics{}, fmt.Errorf("%w: %s is %d bytes", ErrInsufficientData, path, info.Size())
	}

	var total, faceFrames int
	var engagement []float64
	err = video.ReadFrames(path, func(i int, img image.Image) error {
		total++
		if a.Detector == nil {
			return nil
		}
		faces, err := a.Detector.Detect(img)
		if err != nil {
			a.Log.Debug().Err(err).Int("frame", i).Msg("face detection")
			return nil
		}
		if len(faces) == 0 {
			return nil
		}
		faceFrames++
		engagement = append(engagement, frameEngagement(faces[0], img.Bounds()))
		return nil
	})
	if err != nil {
		return VideoMetrics{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if total == 0 {
		return VideoMetrics{}, fmt.Errorf("%w: %s", ErrNoFrames, path)
	}

	return videoMetrics(total, faceFrames, engagement), nil
}

func videoMetrics(total, faceFrames int, engagement []float64) VideoMetrics {
	ratio := float64(faceFrames) / float64(total)
	score := defaultEngagement
	if len(engagement) > 0 {
		var sum float64
		for _, e := range engagement {
			sum += e
		}
		score = sum / float64(len(engagement))
	}
	expression := "neutral"
	if score > engagedThreshold {
		expression = "engaged"
	}
	return VideoMetrics{
		FaceDetectionRatio: ratio,
		EngagementScore:    score,
		FacialExpression:   expression,
		AnalysisConfidence: math.Min(1.0, ratio*1.5),
		TotalFrames:        total,
		FaceFrames:         faceFrames,
	}
}

// frameEngagement is 1 at the frame center and falls off linearly with
// the mean normalized offset, floored at 0.
func frameEngagement(f Face, bounds image.Rectangle) float64 {
	cx := float64(bounds.Dx()) / 2
	cy := float64(bounds.Dy()) / 2
	x := f.X - float64(bounds.Min.X)
	y := f.Y - float64(bounds.Min.Y)
	return max(0, 1-(math.Abs(x-cx)/cx+math.Abs(y-cy)/cy)/2)
}
