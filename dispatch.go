package main

import (
	"context"
	"time"

	"interviewcap/capture"
	"interviewcap/log"
	"interviewcap/transcriber"
)

// loggedDispatcher writes one diagnostics line per recognized window.
type loggedDispatcher struct {
	capture.Dispatcher
}

func (d loggedDispatcher) Dispatch(ctx context.Context, w transcriber.Window) transcriber.Recognition {
	start := time.Now()
	rec := d.Dispatcher.Dispatch(ctx, w)
	log.WindowResult(w.Index, rec.Kind.String(), rec.Detail, time.Since(start))
	return rec
}

func (d loggedDispatcher) RecognizeFile(ctx context.Context, path string) transcriber.Recognition {
	start := time.Now()
	rec := d.Dispatcher.RecognizeFile(ctx, path)
	log.WindowResult(-1, rec.Kind.String(), rec.Detail, time.Since(start))
	return rec
}
