// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"testing"
	"time"
)

func TestTokenBucketExhaustion(t *testing.T) {
	tb := NewTokenBucket(2, 1)

	if !tb.Allow() {
		t.Error("first Allow() = false, want true")
	}
	if !tb.Allow() {
		t.Error("second Allow() = false, want true")
	}
	if tb.Allow() {
		t.Error("Allow() with empty bucket = true, want false")
	}
}

func TestTokenBucketRefill(t *testing.T) {
	tb := NewTokenBucket(1, 1)

	if !tb.Allow() {
		t.Fatal("initial Allow() = false, want true")
	}
	if tb.Allow() {
		t.Fatal("Allow() within window = true, want false")
	}

	time.Sleep(1100 * time.Millisecond)

	if !tb.Allow() {
		t.Error("Allow() after refill window = false, want true")
	}
}

func TestTokenBucketCapacityCap(t *testing.T) {
	tb := NewTokenBucket(2, 100)
	time.Sleep(50 * time.Millisecond)
	if got := tb.Available(); got > 2 {
		t.Errorf("Available() = %d, want at most capacity 2", got)
	}
}

func TestLimiterSessionIsolation(t *testing.T) {
	l := NewLimiter(1, 1, 0)
	defer l.Close()

	if !l.Allow("session-a") {
		t.Fatal("session-a first Allow() = false, want true")
	}
	if l.Allow("session-a") {
		t.Error("session-a second Allow() = true, want false")
	}

	// Exhausting one session's bucket must not affect another session.
	if !l.Allow("session-b") {
		t.Error("session-b Allow() = false, want true")
	}
}

func TestLimiterRemoveResetsState(t *testing.T) {
	l := NewLimiter(1, 1, 0)
	defer l.Close()

	l.Allow("session-a")
	if l.Allow("session-a") {
		t.Fatal("bucket should be exhausted")
	}

	l.Remove("session-a")
	if l.Len() != 0 {
		t.Errorf("Len() = %d after Remove, want 0", l.Len())
	}
	if !l.Allow("session-a") {
		t.Error("Allow() after Remove = false, want a fresh bucket")
	}
}

func TestLimiterMaxSessions(t *testing.T) {
	l := NewLimiter(10, 10, 2)
	defer l.Close()

	l.Allow("s1")
	l.Allow("s2")
	if l.Allow("s3") {
		t.Error("Allow() beyond maxSessions = true, want false")
	}
}
