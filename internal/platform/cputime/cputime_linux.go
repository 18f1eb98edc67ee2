//go:build linux

package cputime

import "golang.org/x/sys/unix"

// Thread returns the user+system CPU seconds of the calling OS thread.
func Thread() float64 { return rusage(unix.RUSAGE_THREAD) }

// Process returns the user+system CPU seconds of the whole process.
func Process() float64 { return rusage(unix.RUSAGE_SELF) }

func rusage(who int) float64 {
	var ru unix.Rusage
	if err := unix.Getrusage(who, &ru); err != nil {
		return wallSeconds()
	}
	return seconds(ru.Utime) + seconds(ru.Stime)
}

func seconds(tv unix.Timeval) float64 {
	return float64(tv.Sec) + float64(tv.Usec)/1e6
}
