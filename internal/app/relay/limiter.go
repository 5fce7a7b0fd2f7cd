/*
Package relay contains the core logic of the session relay.

This file implements the per-connection, per-event throttle applied to relayed
events. Unlike the token bucket guarding connection attempts, this limiter has
no burst allowance: an event inside the minimum interval is rejected outright
and the interval restarts from the last accepted event. Dropped events are
superseded by the next one, so rejections stay silent.
*/
package relay

import (
	"sync"
	"time"
)

type limiterKey struct {
	connID string
	event  string
}

// EventLimiter tracks the last accepted timestamp per (connection, event kind).
type EventLimiter struct {
	mu   sync.Mutex
	last map[limiterKey]time.Time

	// now is the clock, overridable in tests.
	now func() time.Time
}

// NewEventLimiter creates an empty EventLimiter.
func NewEventLimiter() *EventLimiter {
	return &EventLimiter{
		last: make(map[limiterKey]time.Time),
		now:  time.Now,
	}
}

// Allow reports whether an event of the given kind may be accepted for the
// connection. Acceptance records the current time as the new interval start.
func (l *EventLimiter) Allow(connID, event string, minInterval time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := limiterKey{connID: connID, event: event}
	now := l.now()

	if last, ok := l.last[key]; ok && now.Sub(last) < minInterval {
		return false
	}

	l.last[key] = now
	return true
}

// Forget purges all entries for a connection. Called on disconnect so limiter
// memory stays bounded by concurrently open connections under churn.
func (l *EventLimiter) Forget(connID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key := range l.last {
		if key.connID == connID {
			delete(l.last, key)
		}
	}
}
