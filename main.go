package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"interviewcap/analysis"
	"interviewcap/audio"
	"interviewcap/beep"
	"interviewcap/capture"
	"interviewcap/clipboard"
	"interviewcap/config"
	"interviewcap/doctor"
	"interviewcap/events"
	"interviewcap/hotkey"
	"interviewcap/log"
	"interviewcap/metrics"
	"interviewcap/shutdown"
	"interviewcap/transcriber"
	"interviewcap/vad"
	"interviewcap/video"
)

var version = "dev"

const (
	exitOK      = 0
	exitSetup   = 1
	exitFailed  = 2
	publishWait = 10 * time.Second
)

type options struct {
	configPath string
	logPath    string
	output     string
	setup      bool
	copy       bool
	keep       bool
	headless   bool
	doctor     bool
	testFile   string
}

// environment is where a session gets its devices: live hardware or the
// file-backed fakes used by -test.
type environment struct {
	mic        audio.CaptureDevice
	camera     video.OpenFunc
	deviceLine string
	cleanup    func()
	attach     func(stop, abort func()) // optional session driver
}

func run() int {
	cfg, opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitSetup
	}

	logPath, err := log.ResolveDir(firstSet(opts.logPath, cfg.Log.Path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return exitSetup
	}
	log.SetDir(logPath)
	if err := log.SetLevel(cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	if crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	ctx, cancel := shutdown.Context(context.Background())
	defer cancel()

	rec, recErr := transcriber.New(ctx, cfg.Transcription.Provider)
	if recErr != nil && opts.testFile != "" {
		log.Warnf("no transcription provider (%v), using fake recognizer", recErr)
		fake := transcriber.NewFake()
		fake.Default = transcriber.FakeReply{Text: "[test transcript]"}
		rec = fake
		recErr = nil
	}
	if g, ok := rec.(*transcriber.Google); ok {
		defer g.Close()
	}

	if opts.doctor {
		return runDoctor(ctx, cfg, rec)
	}
	if recErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", recErr)
		return exitSetup
	}
	if w, ok := rec.(interface{ Warm(context.Context) }); ok {
		go w.Warm(ctx)
	}

	m := metrics.New()
	if cfg.Metrics.Bind != "" {
		go serveMetrics(cfg.Metrics.Bind, m)
	}

	var env *environment
	if opts.testFile != "" {
		env, err = newTestEnvironment(opts.testFile, cfg)
	} else {
		env, err = newLiveEnvironment(cfg, opts.setup)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitSetup
	}
	defer env.cleanup()

	pub := events.New(&events.Config{
		Brokers: cfg.Events.Brokers,
		Topic:   cfg.Events.Topic,
		Enabled: cfg.Events.Enabled,
	}, m, log.Component("events"))
	defer pub.Close()

	rep, err := runSession(ctx, cfg, opts, env, rec, m)
	if rep.Result == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitSetup
	}

	pubCtx, pubCancel := context.WithTimeout(context.WithoutCancel(ctx), publishWait)
	if err := pub.Publish(pubCtx, rep.SessionID, rep); err != nil {
		log.Warnf("publishing report: %v", err)
	}
	pubCancel()

	if err := writeReport(opts.output, rep); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	if rep.State == capture.StateFailed {
		return exitFailed
	}
	return exitOK
}

func firstSet(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseFlags loads the config file and applies any flags set on the
// command line over it.
func parseFlags(args []string) (config.Config, options, error) {
	fs := flag.NewFlagSet("interviewcap", flag.ContinueOnError)
	var opts options
	fs.StringVar(&opts.configPath, "config", "", "YAML config file")
	fs.StringVar(&opts.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	fs.StringVar(&opts.output, "o", "", "write the JSON report to this file (default: stdout)")
	fs.BoolVar(&opts.setup, "setup", false, "Select microphone device interactively")
	fs.BoolVar(&opts.copy, "copy", false, "Copy the transcript to the clipboard")
	fs.BoolVar(&opts.keep, "keep", false, "Keep audio and video artifacts after analysis")
	fs.BoolVar(&opts.headless, "headless", false, "Print progress lines instead of the terminal UI")
	fs.BoolVar(&opts.doctor, "doctor", false, "Run system diagnostics and exit")
	fs.StringVar(&opts.testFile, "test", "", "Test mode: replay a 16kHz WAV/FLAC file as the microphone")
	device := fs.String("device", "", "Use named microphone device")
	duration := fs.Duration("duration", 0, "Target recording duration (e.g. 90s)")
	camera := fs.Int("camera", 0, "Camera index, -1 for audio-only")
	provider := fs.String("provider", "", "Transcription provider: groq, openai, deepgram, google, fake")
	lang := fs.String("lang", "", "Language code for transcription (e.g., en, es, fr)")
	format := fs.String("format", "", "Audio artifact format: flac or wav")
	metricsBind := fs.String("metrics", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	versionFlag := fs.Bool("version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return config.Config{}, opts, err
	}
	if *versionFlag {
		fmt.Printf("interviewcap %s\n", version)
		os.Exit(exitOK)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, opts, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Capture.Device = *device
		case "duration":
			cfg.Capture.DurationS = int(duration.Round(time.Second) / time.Second)
		case "camera":
			cfg.Video.Enabled = *camera >= 0
			cfg.Video.DeviceIndex = max(*camera, 0)
		case "provider":
			cfg.Transcription.Provider = *provider
		case "lang":
			cfg.Transcription.Language = *lang
		case "format":
			cfg.Capture.AudioFormat = *format
		case "metrics":
			cfg.Metrics.Bind = *metricsBind
		}
	})
	if err := cfg.Validate(); err != nil {
		return cfg, opts, err
	}
	return cfg, opts, nil
}

func serveMetrics(addr string, m *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	log.Infof("metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorf("metrics server: %v", err)
	}
}

func newLiveEnvironment(cfg config.Config, setup bool) (*environment, error) {
	env := &environment{
		camera:     video.FFmpegOpener(cfg.CameraConfig()),
		deviceLine: "mic: system default",
		cleanup:    func() {},
	}

	actx, err := audio.NewContext()
	if err != nil {
		// The session reports NoMicrophone; nothing else to set up.
		log.Errorf("audio context init error: %v", err)
		return env, nil
	}
	env.cleanup = actx.Close

	var dev *audio.DeviceInfo
	if setup && cfg.Capture.Device == "" {
		dev, err = audio.SelectDevice(actx)
	} else {
		dev, err = audio.FindDevice(actx, cfg.Capture.Device)
	}
	if err != nil {
		return nil, err
	}
	if dev != nil {
		env.deviceLine = "mic: " + dev.Name
		if audio.IsBluetooth(dev.Name) {
			env.deviceLine += " (BT! expect reduced quality)"
		}
	}

	mic, err := actx.NewCapture(dev, cfg.AudioConfig())
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		return env, nil
	}
	env.mic = mic
	return env, nil
}

func runSession(ctx context.Context, cfg config.Config, opts options, env *environment, rec transcriber.Recognizer, m *metrics.Metrics) (Report, error) {
	sc := cfg.SchedulerConfig()
	sc.SessionID = uuid.NewString()
	if sc.ArtifactDir == "" {
		dir, err := os.MkdirTemp("", "interviewcap-")
		if err != nil {
			return Report{}, fmt.Errorf("creating artifact directory: %w", err)
		}
		sc.ArtifactDir = dir
	} else if err := os.MkdirAll(sc.ArtifactDir, 0755); err != nil {
		return Report{}, fmt.Errorf("creating artifact directory: %w", err)
	}

	dispatcher := transcriber.NewDispatcher(rec, cfg.DispatcherConfig(),
		transcriber.WithLogger(log.Component("dispatcher")),
		transcriber.WithMetrics(m),
	)

	schedOpts := []capture.Option{
		capture.WithLogger(log.Component("scheduler")),
		capture.WithMetrics(m),
		capture.WithVideo(func(path string) capture.VideoRecorder {
			return video.NewFrameWriter(path, env.camera,
				video.WithQuality(cfg.Video.JPEGQuality),
				video.WithLogger(log.Component("video")),
			)
		}),
	}
	if det, err := vad.New(cfg.Capture.SampleRate); err == nil {
		schedOpts = append(schedOpts, capture.WithSpeechDetector(det))
	} else {
		log.Warnf("voice activity detection unavailable: %v", err)
	}

	ui := newProgressUI(cfg, opts, env, rec.Name())
	schedOpts = append(schedOpts, capture.WithProgress(ui))

	sched := capture.NewScheduler(sc, env.mic, loggedDispatcher{dispatcher}, schedOpts...)

	sessCtx, abort := context.WithCancel(ctx)
	defer abort()

	if opts.testFile == "" {
		unwatch, err := hotkey.WatchStop(sessCtx, hotkey.New(), sched.Stop)
		if err != nil {
			log.Warnf("stop hotkey unavailable: %v", err)
		} else {
			defer unwatch()
		}
	}

	if env.attach != nil {
		env.attach(sched.Stop, abort)
	}

	log.SessionStart(sc.SessionID, rec.Name(), sc.AudioFormat, sc.TargetDuration, sc.CameraIndex >= 0)
	beep.Play(beep.CueStart)
	ui.start(sched.Stop, abort)

	res, runErr := sched.Run(sessCtx)
	ui.finish(res)

	if res == nil {
		return Report{}, runErr
	}
	if runErr != nil {
		beep.Play(beep.CueFailed)
	} else {
		beep.Play(beep.CueComplete)
		log.TranscriptionText(res.SessionID, res.Transcript)
	}
	log.SessionEnd(log.SessionSummary{
		ID:              res.SessionID,
		State:           res.State.String(),
		Reason:          res.Reason.String(),
		DurationS:       res.Duration.Seconds(),
		Samples:         res.Samples,
		Windows:         len(res.Windows),
		FramesAttempted: res.FramesAttempted,
		FramesCaptured:  res.FramesCaptured,
	})

	rep := newAnalyzers(cfg, m).analyze(res, rec.Name())
	printSummary(os.Stderr, rep)

	if opts.copy && res.State == capture.StateComplete && !res.NoSpeech {
		if err := clipboard.Copy(res.Transcript); err != nil {
			log.Warnf("clipboard copy: %v", err)
		} else {
			fmt.Fprintln(os.Stderr, "(transcript copied to clipboard)")
		}
	}

	if !opts.keep {
		if err := res.Cleanup(); err != nil {
			log.Warnf("removing artifacts: %v", err)
		}
		res.AudioPath, res.VideoPath = "", ""
		if cfg.Capture.ArtifactDir == "" {
			os.Remove(sc.ArtifactDir)
		}
	}
	return rep, runErr
}

func newAnalyzers(cfg config.Config, m *metrics.Metrics) analyzers {
	a := analyzers{
		speech:  analysis.SpeechAnalyzer{MinBytes: cfg.Analysis.MinAudioBytes},
		video:   analysis.VideoAnalyzer{MinBytes: cfg.Analysis.MinVideoBytes, Log: log.Component("analysis")},
		metrics: m,
	}
	if cfg.Analysis.CascadePath != "" {
		det, err := analysis.NewPigoDetector(cfg.Analysis.CascadePath)
		if err != nil {
			log.Warnf("face detector: %v", err)
		} else {
			a.video.Detector = det
		}
	}
	return a
}

func runDoctor(ctx context.Context, cfg config.Config, rec transcriber.Recognizer) int {
	openMic := func() (audio.CaptureDevice, error) {
		actx, err := audio.NewContext()
		if err != nil {
			return nil, err
		}
		dev, err := audio.FindDevice(actx, cfg.Capture.Device)
		if err != nil {
			actx.Close()
			return nil, err
		}
		mic, err := actx.NewCapture(dev, cfg.AudioConfig())
		if err != nil {
			actx.Close()
			return nil, errors.Join(audio.ErrNoDevice, err)
		}
		return mic, nil
	}

	checks := []doctor.Check{
		doctor.MicrophoneCheck(openMic, cfg.Capture.SampleRate, 3*time.Second),
		doctor.RecognizerCheck(rec, cfg.Transcription.UploadFormat, time.Duration(cfg.Transcription.FallbackTimeoutMS)*time.Millisecond),
		doctor.CameraCheck(video.FFmpegOpener(cfg.CameraConfig()), cfg.Video.DeviceIndex),
		doctor.HotkeyCheck(hotkey.New()),
		doctor.ClipboardCheck(),
	}
	fmt.Println("Speak for a few seconds when the microphone check starts.")
	return doctor.Run(ctx, os.Stdout, checks)
}
