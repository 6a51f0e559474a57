package ws

import "golang.org/x/time/rate"

// newEventLimiter caps inbound events per connection. Frames count like any
// other event. A non-positive rate disables the limit.
func newEventLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = int(perSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
