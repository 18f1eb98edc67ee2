// Package cputime reads CPU time consumed by the calling thread or process.
//
// Thread readings are only meaningful from a goroutine that called
// runtime.LockOSThread.
package cputime

import "time"

var start = time.Now()

// Stopwatch measures CPU seconds spent by the calling thread between Start
// and Elapsed.
type Stopwatch struct {
	begin float64
}

func Start() Stopwatch { return Stopwatch{begin: Thread()} }

func (s Stopwatch) Elapsed() float64 {
	if d := Thread() - s.begin; d > 0 {
		return d
	}
	return 0
}

func wallSeconds() float64 { return time.Since(start).Seconds() }
