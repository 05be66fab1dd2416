package hotkey

import (
	"context"
	"sync"
)

// WatchStop calls stop once when the combination is pressed and released,
// or returns when ctx ends. The returned function unregisters the key and
// waits for the watcher to exit.
func WatchStop(ctx context.Context, hk Hotkey, stop func()) (func(), error) {
	if err := hk.Register(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-hk.Keydown():
			}
			select {
			case <-ctx.Done():
				return
			case <-hk.Keyup():
				stop()
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
			hk.Unregister()
		})
	}, nil
}
