package toast

import (
	"time"

	"golang.org/x/time/rate"
)

// pacer hands out display start slots at least interval apart. It is a token
// bucket of size one, driven by the engine clock rather than wall time.
type pacer struct {
	lim *rate.Limiter
}

func newPacer(interval time.Duration, now time.Time) *pacer {
	lim := rate.NewLimiter(rate.Every(interval), 1)
	// Start full: the first toast shows immediately.
	lim.SetBurstAt(now, 1)
	return &pacer{lim: lim}
}

// reserve claims the next slot and returns how long to wait for it.
func (p *pacer) reserve(now time.Time) time.Duration {
	r := p.lim.ReserveN(now, 1)
	if !r.OK() {
		return 0
	}
	// The limiter works in float seconds; round off its nanosecond noise.
	return r.DelayFrom(now).Round(time.Millisecond)
}

func (p *pacer) setInterval(now time.Time, interval time.Duration) {
	p.lim.SetLimitAt(now, rate.Every(interval))
}
