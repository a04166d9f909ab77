package transport

import (
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// jitter computes full-jitter exponential backoff delays.
type jitter struct {
	base time.Duration
	max  time.Duration
	rng  *rand.Rand
}

func newJitter(base, max time.Duration) jitter {
	return jitter{
		base: base,
		max:  max,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// next returns the delay before the attempt-th retry (1-based): the base
// grows as base * 2^(attempt-1), a uniform random component in [0, grown
// base] is added, and the sum is capped at max.
func (j jitter) next(attempt int) time.Duration {
	grown := j.base << (attempt - 1)
	if grown <= 0 || grown > j.max {
		return j.max
	}
	sleep := grown + time.Duration(j.rng.Int63n(int64(grown)+1))
	if sleep > j.max {
		sleep = j.max
	}
	return sleep
}

// retryAfterHint reads a server Retry-After header, which carries either a
// relative delay in seconds or an HTTP-date. Absent or unparseable values
// report no hint; dates in the past report zero.
func retryAfterHint(header http.Header, now time.Time) (time.Duration, bool) {
	value := header.Get("Retry-After")
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}
