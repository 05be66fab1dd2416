package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"interviewcap/analysis"
	"interviewcap/capture"
	"interviewcap/log"
	"interviewcap/metrics"
)

var errNoDetector = errors.New("face detector not configured (set analysis.cascade_path)")

// Report is the JSON document written and published for every session.
type Report struct {
	*capture.Result
	Provider    string                  `json:"provider"`
	CreatedAt   time.Time               `json:"created_at"`
	Speech      *analysis.SpeechMetrics `json:"speech,omitempty"`
	Video       *analysis.VideoMetrics  `json:"video,omitempty"`
	SpeechError string                  `json:"speech_error,omitempty"`
	VideoError  string                  `json:"video_error,omitempty"`
}

type analyzers struct {
	speech  analysis.SpeechAnalyzer
	video   analysis.VideoAnalyzer
	metrics *metrics.Metrics
}

// analyze runs both analyzers over a finished session. Failed sessions
// and analyzer errors still produce a report; errors are recorded by name.
func (a analyzers) analyze(res *capture.Result, provider string) Report {
	rep := Report{Result: res, Provider: provider, CreatedAt: time.Now().UTC()}
	if res.State != capture.StateComplete {
		return rep
	}

	var g errgroup.Group
	g.Go(func() error {
		m, err := a.speech.Analyze(res.AudioPath)
		log.Analysis("speech", err)
		if err != nil {
			rep.SpeechError = err.Error()
			a.metrics.RecordAnalysisError("speech", analysis.ErrorName(err))
			return nil
		}
		rep.Speech = &m
		return nil
	})
	if res.VideoPath != "" {
		g.Go(func() error {
			if a.video.Detector == nil {
				rep.VideoError = errNoDetector.Error()
				return nil
			}
			m, err := a.video.Analyze(res.VideoPath)
			log.Analysis("video", err)
			if err != nil {
				rep.VideoError = err.Error()
				a.metrics.RecordAnalysisError("video", analysis.ErrorName(err))
				return nil
			}
			rep.Video = &m
			return nil
		})
	}
	g.Wait()
	return rep
}

func writeReport(path string, rep Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	data = append(data, '\n')
	if path == "" || path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// printSummary writes the human-readable outcome shown after the TUI exits.
func printSummary(w io.Writer, rep Report) {
	res := rep.Result
	if res.State == capture.StateFailed {
		fmt.Fprintf(w, "Recording failed (%s).\n%s\n", res.Reason, res.FallbackMessage)
		return
	}

	fmt.Fprintf(w, "Session %s: %.1fs recorded, %d window(s)\n", res.SessionID, res.Duration.Seconds(), len(res.Windows))
	fmt.Fprintf(w, "\n%s\n\n", strings.Join(wrapText(res.Transcript, 72), "\n"))

	if s := rep.Speech; s != nil {
		fmt.Fprintf(w, "speech  pace %.0f wpm, pauses %.1f, clarity %.1f/10\n", s.SpeakingPaceWPM, s.PauseFrequency, s.ClarityScore)
	} else if rep.SpeechError != "" {
		fmt.Fprintf(w, "speech  unavailable: %s\n", rep.SpeechError)
	}
	if v := rep.Video; v != nil {
		fmt.Fprintf(w, "video   face %.0f%%, engagement %.2f (%s), confidence %.2f\n",
			v.FaceDetectionRatio*100, v.EngagementScore, v.FacialExpression, v.AnalysisConfidence)
	} else if rep.VideoError != "" {
		fmt.Fprintf(w, "video   unavailable: %s\n", rep.VideoError)
	} else if res.VideoPath == "" {
		fmt.Fprintln(w, "video   audio-only session")
	}
}

// wrapText breaks text on spaces so no line exceeds width, except single
// words longer than width.
func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
