// Package history implements the pure lookup helpers for snapshot
// time series. Sequences are always ordered newest-first, matching
// how the repositories return snapshot history.
package history

import "time"

// Nearest returns the index i in [1, len(timestamps)) whose age
// relative to timestamps[0] is closest to target. Ties resolve to the
// smaller index, i.e. the first minimum found scanning upward from 1.
// With fewer than two entries there is no delta to compute and 0 is
// returned.
func Nearest(timestamps []time.Time, target time.Duration) int {
	if len(timestamps) < 2 {
		return 0
	}
	best := 1
	bestErr := absDuration(target - timestamps[0].Sub(timestamps[1]))
	for i := 2; i < len(timestamps); i++ {
		err := absDuration(target - timestamps[0].Sub(timestamps[i]))
		if err < bestErr {
			best, bestErr = i, err
		}
	}
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
