//go:build !linux

package cputime

// Thread falls back to wall time where per-thread usage is unavailable.
func Thread() float64 { return wallSeconds() }

func Process() float64 { return wallSeconds() }
