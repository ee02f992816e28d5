package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Service names used for budgets.
const (
	ServiceLLM     = "llm"
	ServiceTTS     = "tts"
	ServiceSuggest = "suggest"
)

// ErrBudgetExceeded is returned by Use once a service spent its allowance.
type ErrBudgetExceeded struct {
	Service string
	Limit   int
}

func (e *ErrBudgetExceeded) Error() string {
	return fmt.Sprintf("%s call budget exceeded (%d)", e.Service, e.Limit)
}

// Limiter keeps per-service call budgets that reset daily, plus optional
// request pacing for services that must not be hammered.
type Limiter struct {
	mu        sync.Mutex
	limits    map[string]int
	used      map[string]int
	pacers    map[string]*rate.Limiter
	resetTime time.Time
	now       func() time.Time
}

// NewLimiter creates a limiter. A limit of 0 means unlimited.
func NewLimiter(limits map[string]int) *Limiter {
	l := &Limiter{
		limits: map[string]int{},
		used:   map[string]int{},
		pacers: map[string]*rate.Limiter{},
		now:    time.Now,
	}
	for k, v := range limits {
		l.limits[k] = v
	}
	l.resetTime = l.now().Add(24 * time.Hour)
	return l
}

// Pace limits service to perSecond requests with a burst of one.
func (l *Limiter) Pace(service string, perSecond float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pacers[service] = rate.NewLimiter(rate.Limit(perSecond), 1)
}

// Use spends one call of service's budget.
func (l *Limiter) Use(service string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.checkReset()

	max := l.limits[service]
	if max > 0 && l.used[service] >= max {
		slog.Warn("call budget reached", "service", service, "used", l.used[service], "limit", max)
		return &ErrBudgetExceeded{Service: service, Limit: max}
	}
	l.used[service]++
	slog.Debug("call budget", "service", service, "used", l.used[service], "limit", max)
	return nil
}

// Wait blocks until a paced service may make its next request.
// Services without a pacer return immediately.
func (l *Limiter) Wait(ctx context.Context, service string) error {
	l.mu.Lock()
	p := l.pacers[service]
	l.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.Wait(ctx)
}

func (l *Limiter) GetStats() map[string]interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := map[string]interface{}{"reset_time": l.resetTime}
	for service, n := range l.used {
		stats[service+"_used"] = n
	}
	for service, max := range l.limits {
		stats[service+"_limit"] = max
	}
	return stats
}

// checkReset clears the counters once a day. Callers hold mu.
func (l *Limiter) checkReset() {
	if l.now().After(l.resetTime) {
		slog.Info("resetting call budgets", "used", l.used)
		l.used = map[string]int{}
		l.resetTime = l.now().Add(24 * time.Hour)
	}
}
