//go:build unix

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// resumeSignals reports SIGCONT, which arrives when a stopped process is
// resumed and every tick in between was missed.
func resumeSignals() (<-chan struct{}, func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGCONT)
	out := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-sigs:
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, func() {
		signal.Stop(sigs)
		close(done)
	}
}
