package connection

import (
	"math/rand"
	"time"
)

// reconnectBackoff is the schedule of §4.4's Idle-after-close transition,
// indexed by reconnectAttempt (1-based); attempts beyond the table length
// hold at the last value.
var reconnectBackoff = []time.Duration{
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
	20 * time.Second,
	40 * time.Second,
	60 * time.Second,
}

// BackoffFor returns the reconnect delay for the given 1-based attempt number.
func BackoffFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(reconnectBackoff) {
		attempt = len(reconnectBackoff)
	}
	return reconnectBackoff[attempt-1]
}

// Restart515Delay returns a random delay in [2s,5s] for a stream-515 restart.
func Restart515Delay() time.Duration {
	const lo = 2 * time.Second
	const hi = 5 * time.Second
	return lo + time.Duration(rand.Int63n(int64(hi-lo)))
}
