// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/absmach/wsproxy/pkg/ratelimit"
)

func TestRateLimitWindow(t *testing.T) {
	// 1 message per 1000ms window.
	limiter := ratelimit.NewLimiter(1, 1, 0)
	defer limiter.Close()

	p := NewPipeline()
	p.Use(RateLimit(limiter))

	run := func() Verdict {
		t.Helper()
		v, err := p.Run(context.Background(), NewContext("sid", Upstream, Text, []byte("m"), nil))
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		return v
	}

	if v := run(); v != VerdictForward {
		t.Fatalf("first message verdict = %v, want %v", v, VerdictForward)
	}
	if v := run(); v != VerdictDropped {
		t.Fatalf("second message within window verdict = %v, want %v", v, VerdictDropped)
	}

	time.Sleep(1100 * time.Millisecond)

	if v := run(); v != VerdictForward {
		t.Errorf("message after window reset verdict = %v, want %v", v, VerdictForward)
	}
}

func TestRateLimitIsPerSession(t *testing.T) {
	limiter := ratelimit.NewLimiter(1, 1, 0)
	defer limiter.Close()

	p := NewPipeline()
	p.Use(RateLimit(limiter))

	if v, _ := p.Run(context.Background(), NewContext("a", Upstream, Text, nil, nil)); v != VerdictForward {
		t.Fatalf("session a verdict = %v, want forward", v)
	}
	if v, _ := p.Run(context.Background(), NewContext("a", Upstream, Text, nil, nil)); v != VerdictDropped {
		t.Fatalf("session a second verdict = %v, want dropped", v)
	}
	// Session b has its own bucket.
	if v, _ := p.Run(context.Background(), NewContext("b", Upstream, Text, nil, nil)); v != VerdictForward {
		t.Errorf("session b verdict = %v, want forward", v)
	}
}

func TestAuthRejectsAndAllows(t *testing.T) {
	denied := errors.New("bad token")
	p := NewPipeline()
	p.Use(Auth(func(ctx context.Context, mctx *Context) error {
		if string(mctx.Payload) == "bad" {
			return denied
		}
		return nil
	}))

	v, err := p.Run(context.Background(), NewContext("sid", Upstream, Text, []byte("bad"), nil))
	if !errors.Is(err, denied) {
		t.Fatalf("Run() error = %v, want %v", err, denied)
	}
	if v != VerdictFailed {
		t.Errorf("rejected message verdict = %v, want %v", v, VerdictFailed)
	}

	v, err = p.Run(context.Background(), NewContext("sid", Upstream, Text, []byte("good"), nil))
	if err != nil || v != VerdictForward {
		t.Errorf("accepted message = (%v, %v), want (%v, nil)", v, err, VerdictForward)
	}
}

func TestJSONTransformRewritesTextPayload(t *testing.T) {
	p := NewPipeline()
	p.Use(JSONTransform(func(doc map[string]any) map[string]any {
		doc["seen"] = true
		return doc
	}))

	mctx := NewContext("sid", Upstream, Text, []byte(`{"action":"ping"}`), nil)
	v, err := p.Run(context.Background(), mctx)
	if err != nil || v != VerdictForward {
		t.Fatalf("Run() = (%v, %v), want (%v, nil)", v, err, VerdictForward)
	}

	var doc map[string]any
	if err := json.Unmarshal(mctx.Payload, &doc); err != nil {
		t.Fatalf("transformed payload is not JSON: %v", err)
	}
	if doc["action"] != "ping" || doc["seen"] != true {
		t.Errorf("transformed doc = %v", doc)
	}
}

func TestJSONTransformPassesNonJSONThrough(t *testing.T) {
	p := NewPipeline()
	p.Use(JSONTransform(func(doc map[string]any) map[string]any {
		t.Error("transform called for non-JSON payload")
		return doc
	}))

	mctx := NewContext("sid", Upstream, Text, []byte("plain ping"), nil)
	v, err := p.Run(context.Background(), mctx)
	if err != nil || v != VerdictForward {
		t.Fatalf("Run() = (%v, %v), want (%v, nil)", v, err, VerdictForward)
	}
	if string(mctx.Payload) != "plain ping" {
		t.Errorf("non-JSON payload changed: %q", mctx.Payload)
	}
}

func TestJSONTransformIgnoresBinary(t *testing.T) {
	p := NewPipeline()
	p.Use(JSONTransform(func(doc map[string]any) map[string]any {
		t.Error("transform called for binary payload")
		return doc
	}))

	payload := []byte(`{"looks":"like json"}`)
	mctx := NewContext("sid", Upstream, Binary, payload, nil)
	if _, err := p.Run(context.Background(), mctx); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if string(mctx.Payload) != string(payload) {
		t.Errorf("binary payload changed: %q", mctx.Payload)
	}
}
