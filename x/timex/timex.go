// Package timex holds small timing helpers usable from firmware and host
// builds alike.
package timex

import "time"

// Spinner is a bounded busy-wait: it polls a condition a fixed number of
// times, sleeping Step between polls. Sleep defaults to time.Sleep; tests
// replace it to run without real delays or to inject events between polls.
type Spinner struct {
	Step  time.Duration
	Sleep func(time.Duration)
}

// Until polls cond up to n times (at least once) and reports whether it
// became true. The condition is checked before any sleep, so a condition
// that already holds never costs a delay. A condition that first holds on
// the n-th poll still succeeds.
func (s Spinner) Until(n int, cond func() bool) bool {
	if n < 1 {
		n = 1
	}
	sleep := s.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	for i := 0; i < n; i++ {
		if cond() {
			return true
		}
		if i+1 < n {
			sleep(s.Step)
		}
	}
	return false
}
