package llm

import (
	"time"

	"github.com/opinari/interviewer/internal/config"
)

// backoffFor returns the wait after a failed attempt (1-based): base*2^attempt,
// capped at 60s for rate limits and 30s for timeouts and server errors.
func backoffFor(attempt int, class failureClass, base time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}

	wait := base
	for i := 0; i < attempt; i++ {
		wait *= 2
		if wait > config.RateLimitBackoffCap {
			wait = config.RateLimitBackoffCap
			break
		}
	}

	cap := config.TransientBackoffCap
	if class == classRateLimit {
		cap = config.RateLimitBackoffCap
	}
	if wait > cap {
		wait = cap
	}
	return wait
}
