package main

import "time"

// idleWatchdog fires onIdle after a quiet period with no staff activity.
// Touch restarts the countdown; the flow machine itself decides whether a
// reset is safe (it refuses while a payment is processing).
type idleWatchdog struct {
	timeout   time.Duration
	onIdle    func()
	touchChan chan struct{}
	closeChan chan struct{}
}

func newIdleWatchdog(timeout time.Duration, onIdle func()) *idleWatchdog {
	return &idleWatchdog{
		timeout:   timeout,
		onIdle:    onIdle,
		touchChan: make(chan struct{}, 1),
		closeChan: make(chan struct{}),
	}
}

func (w *idleWatchdog) Start() {
	go w.loop()
}

func (w *idleWatchdog) loop() {
	timer := time.NewTimer(w.timeout)
	defer timer.Stop()
	for {
		select {
		case <-w.touchChan:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.timeout)
		case <-timer.C:
			w.onIdle()
			timer.Reset(w.timeout)
		case <-w.closeChan:
			return
		}
	}
}

// Touch never blocks; a pending touch already covers the caller.
func (w *idleWatchdog) Touch() {
	select {
	case w.touchChan <- struct{}{}:
	default:
	}
}

func (w *idleWatchdog) Close() {
	close(w.closeChan)
}
