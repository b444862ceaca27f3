// Package ratelimit enforces per-action rolling-window call budgets.
//
// Windows live in memory only; a cold start conservatively assumes zero prior
// usage. One limiter instance is shared process-wide so concurrent jobs doing
// the same action draw from one budget.
package ratelimit

import (
	"sync"
	"time"

	"telegram-bulk-ops/internal/config"
	"telegram-bulk-ops/internal/infra/metrics"
)

type Limiter struct {
	mu         sync.Mutex
	thresholds map[string][]config.Threshold
	calls      map[string][]time.Time

	now func() time.Time // injectable for tests
}

func New(thresholds map[string][]config.Threshold) *Limiter {
	return &Limiter{
		thresholds: thresholds,
		calls:      make(map[string][]time.Time),
		now:        time.Now,
	}
}

// Reserve records one call of the given action if every configured threshold
// has headroom, returning (true, 0). Otherwise it records nothing and returns
// (false, wait) where wait is the time until the most constrained window
// frees a slot. Actions with no configured thresholds are always allowed.
func (l *Limiter) Reserve(action string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ths := l.thresholds[action]
	if len(ths) == 0 {
		return true, 0
	}

	now := l.now()
	l.prune(action, now, ths)

	var wait time.Duration
	for _, th := range ths {
		inWindow := 0
		var oldest time.Time
		for _, ts := range l.calls[action] {
			if now.Sub(ts) < th.Window {
				if inWindow == 0 {
					oldest = ts
				}
				inWindow++
			}
		}
		if inWindow >= th.Max {
			// slot frees when the oldest in-window call ages out
			if w := oldest.Add(th.Window).Sub(now); w > wait {
				wait = w
			}
		}
	}
	if wait > 0 {
		metrics.IncLimiterDenied(action)
		return false, wait
	}

	l.calls[action] = append(l.calls[action], now)
	return true, 0
}

// prune drops timestamps older than the largest window; calls are appended in
// order, so the slice stays sorted.
func (l *Limiter) prune(action string, now time.Time, ths []config.Threshold) {
	var max time.Duration
	for _, th := range ths {
		if th.Window > max {
			max = th.Window
		}
	}
	calls := l.calls[action]
	cut := 0
	for cut < len(calls) && now.Sub(calls[cut]) >= max {
		cut++
	}
	if cut > 0 {
		l.calls[action] = append(calls[:0:0], calls[cut:]...)
	}
}
