// Package schedule runs periodic work with explicit start/stop control.
package schedule

import (
	"context"
	"sync"
	"time"

	"iot-traffic-sim/internal/log"
)

// Loop calls fn on every interval until stopped or until the context passed
// to Start ends. Start and Stop are idempotent.
type Loop struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
	wg     sync.WaitGroup
}

// NewLoop creates a stopped loop.
func NewLoop(name string, interval time.Duration, fn func(ctx context.Context)) *Loop {
	return &Loop{
		name:     name,
		interval: interval,
		fn:       fn,
	}
}

// Start launches the ticker goroutine. Returns false when already running.
func (l *Loop) Start(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		return false
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.gen++
	l.wg.Add(1)
	go l.run(runCtx, l.gen)
	log.Debug("Loop started", "loop", l.name, "interval", l.interval)
	return true
}

// Stop halts the loop and waits for an in-flight call to finish. Returns
// false when the loop was not running.
func (l *Loop) Stop() bool {
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	l.wg.Wait()
	log.Debug("Loop stopped", "loop", l.name)
	return true
}

// Running reports whether the loop is started.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

func (l *Loop) run(ctx context.Context, gen uint64) {
	defer l.wg.Done()
	defer l.exited(gen)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.fn(ctx)
		}
	}
}

// exited clears the running state when the parent context ended the loop.
// A Stop or a newer Start owns the state otherwise.
func (l *Loop) exited(gen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen == gen && l.cancel != nil {
		l.cancel()
		l.cancel = nil
		log.Debug("Loop ended with its context", "loop", l.name)
	}
}
