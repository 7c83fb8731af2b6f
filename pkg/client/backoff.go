package client

import (
	"math/rand/v2"
	"time"
)

// backoff returns the full-jitter delay before reconnect attempt n
// (0-based).
func backoff(base, max time.Duration, n int) time.Duration {
	ceiling := base
	for i := 0; i < n && ceiling < max; i++ {
		ceiling *= 2
	}
	if ceiling > max {
		ceiling = max
	}
	if ceiling <= 0 {
		return 0
	}
	return rand.N(ceiling)
}
