package resilience

import (
	"strings"
	"time"
)

// Config bounds retries and breaker trips. Every operation shares the same
// breaker thresholds; AttemptsByPrefix narrows the retry budget for
// operations whose name starts with a given prefix, e.g. "ocr." for local
// binaries that fail the same way on every run.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64
	AttemptsByPrefix    map[string]int

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// DefaultConfig is tuned for the network collaborators of the pipeline:
// three quick attempts, then a breaker that opens at a 50% failure rate
// once it has seen ten calls.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

// WithAttempts returns a copy of c whose operations under prefix get at most
// attempts tries.
func (c Config) WithAttempts(prefix string, attempts int) Config {
	out := c
	out.AttemptsByPrefix = make(map[string]int, len(c.AttemptsByPrefix)+1)
	for k, v := range c.AttemptsByPrefix {
		out.AttemptsByPrefix[k] = v
	}
	out.AttemptsByPrefix[prefix] = attempts
	return out
}

// attemptsFor picks the longest matching prefix override.
func (c Config) attemptsFor(operation string) int {
	attempts, matched := c.RetryMaxAttempts, -1
	for prefix, n := range c.AttemptsByPrefix {
		if n > 0 && strings.HasPrefix(operation, prefix) && len(prefix) > matched {
			attempts, matched = n, len(prefix)
		}
	}
	return attempts
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	out := c

	out.RetryMaxAttempts = orDefault(out.RetryMaxAttempts, def.RetryMaxAttempts)
	out.RetryInitialBackoff = orDefault(out.RetryInitialBackoff, def.RetryInitialBackoff)
	out.RetryMaxBackoff = max(orDefault(out.RetryMaxBackoff, def.RetryMaxBackoff), out.RetryInitialBackoff)
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}

	out.BreakerMinRequests = orDefault(out.BreakerMinRequests, def.BreakerMinRequests)
	out.BreakerHalfOpenMaxCalls = orDefault(out.BreakerHalfOpenMaxCalls, def.BreakerHalfOpenMaxCalls)
	out.BreakerOpenTimeout = orDefault(out.BreakerOpenTimeout, def.BreakerOpenTimeout)
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	return out
}

func orDefault[T int | uint32 | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}
