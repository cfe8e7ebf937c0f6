package http

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per host and slows a host down after it
// throttles us.
type RateLimiter struct {
	limiters     map[string]*rate.Limiter
	backoffState map[string]*BackoffState
	mu           sync.RWMutex
	config       RateLimiterConfig
}

// BackoffState tracks throttling for a host.
type BackoffState struct {
	CurrentBackoff    time.Duration
	LastError         time.Time
	ConsecutiveErrors int
	OriginalRPS       float64
	// ReducedRPS is the rate currently in force; 0 means OriginalRPS.
	ReducedRPS float64
}

const (
	InitialBackoff        = 1 * time.Second
	MaxBackoff            = 60 * time.Second
	BackoffMultiplier     = 2.0
	BackoffCooldownPeriod = 5 * time.Minute
	// MinRPSMultiplier is the floor for a throttled host's rate.
	MinRPSMultiplier = 0.25
)

// RateLimiterConfig defines per-host request rates.
type RateLimiterConfig struct {
	// DefaultRPS applies to hosts missing from HostRates. 0 means unlimited.
	DefaultRPS float64
	// HostRates maps a host name to requests per second. 0 means unlimited.
	HostRates map[string]float64
	// EnableDynamicBackoff lowers a host's rate after it throttles us.
	EnableDynamicBackoff bool
}

// DefaultRateLimiterConfig returns conservative rates for the site's API hosts.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		DefaultRPS: 4,
		HostRates: map[string]float64{
			"ext.nicovideo.jp":    2,
			"flapi.nicovideo.jp":  1,
			"nmsg.nicovideo.jp":   1,
			"www.nicovideo.jp":    2,
			"secure.nicovideo.jp": 1,
		},
		EnableDynamicBackoff: true,
	}
}

// NewRateLimiter creates a rate limiter.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.HostRates == nil {
		cfg.HostRates = make(map[string]float64)
	}
	return &RateLimiter{
		limiters:     make(map[string]*rate.Limiter),
		backoffState: make(map[string]*BackoffState),
		config:       cfg,
	}
}

// Wait blocks until urlStr's host may receive another request.
func (rl *RateLimiter) Wait(ctx context.Context, urlStr string) error {
	if rl == nil {
		return nil
	}
	limiter := rl.getLimiter(urlStr)
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

func (rl *RateLimiter) getLimiter(urlStr string) *rate.Limiter {
	domain := extractDomain(urlStr)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rps := rl.getRPS(domain)
	if rps == 0 {
		return nil
	}
	if limiter, ok := rl.limiters[domain]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(rate.Limit(rps), 1)
	rl.limiters[domain] = limiter
	return limiter
}

// getRPS must be called with mu held.
func (rl *RateLimiter) getRPS(domain string) float64 {
	if rps, ok := rl.config.HostRates[domain]; ok {
		return rps
	}
	return rl.config.DefaultRPS
}

// SetHostRate overrides the rate for one host.
func (rl *RateLimiter) SetHostRate(domain string, rps float64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.config.HostRates[domain] = rps
	delete(rl.limiters, domain)
}

// RecordRateLimitError notes a 429/503 and returns how long to back off.
func (rl *RateLimiter) RecordRateLimitError(urlStr string, retryAfter time.Duration) time.Duration {
	if rl == nil || !rl.config.EnableDynamicBackoff {
		if retryAfter > 0 {
			return retryAfter
		}
		return InitialBackoff
	}

	domain := extractDomain(urlStr)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, ok := rl.backoffState[domain]
	if !ok {
		state = &BackoffState{
			CurrentBackoff: InitialBackoff,
			OriginalRPS:    rl.getRPS(domain),
		}
		rl.backoffState[domain] = state
	}

	state.LastError = time.Now()
	state.ConsecutiveErrors++
	if state.ConsecutiveErrors > 1 {
		state.CurrentBackoff = time.Duration(float64(state.CurrentBackoff) * BackoffMultiplier)
		if state.CurrentBackoff > MaxBackoff {
			state.CurrentBackoff = MaxBackoff
		}
	}
	if retryAfter > state.CurrentBackoff {
		state.CurrentBackoff = retryAfter
	}

	rl.reduceRate(domain, state)
	return state.CurrentBackoff
}

// reduceRate must be called with mu held.
func (rl *RateLimiter) reduceRate(domain string, state *BackoffState) {
	if state.OriginalRPS == 0 {
		return
	}
	factor := 0.75
	switch {
	case state.ConsecutiveErrors >= 3:
		factor = MinRPSMultiplier
	case state.ConsecutiveErrors == 2:
		factor = 0.5
	}
	state.ReducedRPS = state.OriginalRPS * factor
	if limiter, ok := rl.limiters[domain]; ok {
		limiter.SetLimit(rate.Limit(state.ReducedRPS))
	}
}

// RecordSuccess lets a throttled host recover.
func (rl *RateLimiter) RecordSuccess(urlStr string) {
	if rl == nil || !rl.config.EnableDynamicBackoff {
		return
	}

	domain := extractDomain(urlStr)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, ok := rl.backoffState[domain]
	if !ok {
		return
	}

	if time.Since(state.LastError) > BackoffCooldownPeriod {
		if limiter, ok := rl.limiters[domain]; ok && state.ReducedRPS > 0 {
			limiter.SetLimit(rate.Limit(state.OriginalRPS))
		}
		delete(rl.backoffState, domain)
		return
	}

	if state.ConsecutiveErrors > 0 {
		state.ConsecutiveErrors--
		if state.ConsecutiveErrors == 0 && state.ReducedRPS > 0 {
			if half := state.OriginalRPS * 0.5; half > state.ReducedRPS {
				state.ReducedRPS = half
				if limiter, ok := rl.limiters[domain]; ok {
					limiter.SetLimit(rate.Limit(half))
				}
			}
		}
	}
}

// GetBackoffState returns a copy of the host's backoff state, or nil.
func (rl *RateLimiter) GetBackoffState(urlStr string) *BackoffState {
	if rl == nil {
		return nil
	}
	domain := extractDomain(urlStr)

	rl.mu.RLock()
	defer rl.mu.RUnlock()

	if state, ok := rl.backoffState[domain]; ok {
		cp := *state
		return &cp
	}
	return nil
}

// WaitForBackoff sleeps out any backoff still pending for urlStr's host.
func (rl *RateLimiter) WaitForBackoff(ctx context.Context, urlStr string) error {
	state := rl.GetBackoffState(urlStr)
	if state == nil {
		return nil
	}
	remaining := state.CurrentBackoff - time.Since(state.LastError)
	if remaining <= 0 {
		return nil
	}
	select {
	case <-time.After(remaining):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// extractDomain returns urlStr's host without port, or "unknown".
func extractDomain(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}
