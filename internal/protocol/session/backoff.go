package session

import (
	"math/rand"
	"time"
)

// NextBackoffDelay returns the sleep before reconnect attempt n (1-based):
// InitialDelay grown by Multiplier per attempt and capped at MaxDelay. With
// Jitter and a non-nil rng the result is scaled by a factor in [0.5, 1.5).
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	// 1<<62 leaves room for the jitter factor below the int64 limit.
	limit := float64(int64(1) << 62)
	if cfg.MaxDelay > 0 {
		limit = min(float64(cfg.MaxDelay), limit)
	}
	mult := max(cfg.Multiplier, 1)

	delay := float64(cfg.InitialDelay)
	for n := 1; n < attempt && mult > 1 && delay < limit; n++ {
		delay *= mult
	}
	delay = min(delay, limit)

	if cfg.Jitter && rng != nil {
		delay *= 0.5 + rng.Float64()
	}
	return time.Duration(delay)
}
