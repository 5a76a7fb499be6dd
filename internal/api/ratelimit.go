package api

import (
	"os"
	"strconv"

	"golang.org/x/time/rate"
)

// ingestLimiter throttles location ingest across all callers. GPS units
// retry on 429, so shedding here is safe.
type ingestLimiter struct {
	l *rate.Limiter
}

// newIngestLimiterFromEnv reads RATE_RPS and RATE_BURST. RATE_RPS=0
// disables the limiter.
func newIngestLimiterFromEnv() *ingestLimiter {
	rps := 200.0
	if v := os.Getenv("RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			rps = f
		}
	}
	burst := 400
	if v := os.Getenv("RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			burst = n
		}
	}
	if rps == 0 {
		return &ingestLimiter{}
	}
	return &ingestLimiter{l: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (il *ingestLimiter) Allow() bool {
	if il == nil || il.l == nil {
		return true
	}
	return il.l.Allow()
}
