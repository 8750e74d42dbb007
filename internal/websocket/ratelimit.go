package websocket

import "time"

// RateWindow is a sliding-window limiter: at most limit events within any
// window-long span. Only the owning connection's read loop touches it.
type RateWindow struct {
	limit  int
	window time.Duration
	times  []time.Time
}

func NewRateWindow(limit int, window time.Duration) *RateWindow {
	return &RateWindow{
		limit:  limit,
		window: window,
		times:  make([]time.Time, 0, limit),
	}
}

// Allow drops timestamps at least window old, then accepts and records now
// if fewer than limit remain.
func (w *RateWindow) Allow(now time.Time) bool {
	kept := w.times[:0]
	for _, t := range w.times {
		if now.Sub(t) < w.window {
			kept = append(kept, t)
		}
	}
	w.times = kept

	if len(w.times) >= w.limit {
		return false
	}
	w.times = append(w.times, now)
	return true
}
