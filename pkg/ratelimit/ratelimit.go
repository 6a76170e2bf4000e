// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package ratelimit provides token-bucket rate limiting with per-session state.
package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimitExceeded is returned when a rate limit is exceeded.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// TokenBucket is a token bucket limiter. capacity bounds the burst;
// refillRate tokens are added per second.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   int64
	tokens     int64
	refillRate int64
	lastRefill time.Time
}

// NewTokenBucket creates a full bucket.
func NewTokenBucket(capacity, refillRate int64) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow consumes one token if available.
func (tb *TokenBucket) Allow() bool {
	return tb.AllowN(1)
}

// AllowN consumes n tokens if available.
func (tb *TokenBucket) AllowN(n int64) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens < n {
		return false
	}
	tb.tokens -= n
	return true
}

// Available returns the number of tokens currently available.
func (tb *TokenBucket) Available() int64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return tb.tokens
}

func (tb *TokenBucket) refill() {
	now := time.Now()
	added := int64(now.Sub(tb.lastRefill).Seconds() * float64(tb.refillRate))
	if added <= 0 {
		return
	}
	tb.tokens += added
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}

// Limiter tracks one token bucket per session. Buckets are created lazily
// on first use and must be removed when the session closes; the periodic
// cleanup is only a guard against callers that forget eviction.
type Limiter struct {
	mu          sync.RWMutex
	buckets     map[string]*TokenBucket
	capacity    int64
	refillRate  int64
	maxSessions int
	cleanup     *time.Timer
}

// NewLimiter creates a per-session limiter. maxSessions caps the number of
// tracked buckets; 0 means the default of 10000.
func NewLimiter(capacity, refillRate int64, maxSessions int) *Limiter {
	if maxSessions == 0 {
		maxSessions = 10000
	}
	l := &Limiter{
		buckets:     make(map[string]*TokenBucket),
		capacity:    capacity,
		refillRate:  refillRate,
		maxSessions: maxSessions,
	}
	l.cleanup = time.AfterFunc(5*time.Minute, l.evictOverflow)
	return l
}

// Allow consumes one token from the session's bucket.
func (l *Limiter) Allow(sessionID string) bool {
	return l.AllowN(sessionID, 1)
}

// AllowN consumes n tokens from the session's bucket. Sessions beyond the
// tracking cap are denied outright.
func (l *Limiter) AllowN(sessionID string, n int64) bool {
	l.mu.RLock()
	tb, ok := l.buckets[sessionID]
	l.mu.RUnlock()

	if !ok {
		l.mu.Lock()
		tb, ok = l.buckets[sessionID]
		if !ok {
			if len(l.buckets) >= l.maxSessions {
				l.mu.Unlock()
				return false
			}
			tb = NewTokenBucket(l.capacity, l.refillRate)
			l.buckets[sessionID] = tb
		}
		l.mu.Unlock()
	}

	return tb.AllowN(n)
}

// Remove evicts the session's bucket. Call this when the session closes so
// per-session state does not accumulate.
func (l *Limiter) Remove(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, sessionID)
}

// Len returns the number of tracked sessions.
func (l *Limiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

// evictOverflow trims the bucket map when it grows far past the cap.
func (l *Limiter) evictOverflow() {
	l.mu.Lock()
	if len(l.buckets) > l.maxSessions*2 {
		kept := make(map[string]*TokenBucket, l.maxSessions)
		for k, v := range l.buckets {
			if len(kept) >= l.maxSessions {
				break
			}
			kept[k] = v
		}
		l.buckets = kept
	}
	l.mu.Unlock()

	l.cleanup = time.AfterFunc(5*time.Minute, l.evictOverflow)
}

// Close stops the cleanup timer.
func (l *Limiter) Close() {
	if l.cleanup != nil {
		l.cleanup.Stop()
	}
}
