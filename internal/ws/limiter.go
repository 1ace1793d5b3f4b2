package ws

import "sync/atomic"

// connLimiter caps concurrent connections with a lock-free counter.
// A max of zero means unlimited.
type connLimiter struct {
	current atomic.Int64
	max     int64
}

func newConnLimiter(max int) *connLimiter {
	return &connLimiter{max: int64(max)}
}

// acquire reserves a slot and reports whether one was available.
func (l *connLimiter) acquire() bool {
	for {
		cur := l.current.Load()
		if l.max > 0 && cur >= l.max {
			return false
		}
		if l.current.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

func (l *connLimiter) release() {
	l.current.Add(-1)
}
