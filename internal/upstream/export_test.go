package upstream

import "time"

// SetRetryDelay shortens the rate-limit backoff so tests don't sleep.
func (g *Gateway) SetRetryDelay(d time.Duration) {
	g.retryDelay = d
}
