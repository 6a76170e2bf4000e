// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"sync"
	"testing"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	s := New("sid-1", "/ocpp/42", "", "127.0.0.1:1234", "ws://backend/42", nil)

	r.Register(s)

	got, ok := r.Lookup("sid-1")
	if !ok {
		t.Fatal("Lookup() after Register returned no session")
	}
	if got.ID != "sid-1" || got.Target != "ws://backend/42" {
		t.Errorf("Lookup() returned wrong session: %+v", got)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	if !r.Unregister("sid-1") {
		t.Error("Unregister() = false, want true")
	}
	if r.Unregister("sid-1") {
		t.Error("Unregister() of absent ID = true, want false")
	}
	if _, ok := r.Lookup("sid-1"); ok {
		t.Error("Lookup() found an unregistered session")
	}
}

func TestRegistryDuplicateRegisterOverwrites(t *testing.T) {
	r := NewRegistry()
	first := New("sid-1", "/a", "", "", "ws://first", nil)
	second := New("sid-1", "/b", "", "", "ws://second", nil)

	r.Register(first)
	r.Register(second)

	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
	got, _ := r.Lookup("sid-1")
	if got.Target != "ws://second" {
		t.Errorf("duplicate Register did not overwrite: target = %q", got.Target)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("sid-%d", i)
			r.Register(New(id, "/x", "", "", "ws://backend", nil))
			if _, ok := r.Lookup(id); !ok {
				t.Errorf("Lookup(%s) failed after Register", id)
			}
			r.Unregister(id)
		}(i)
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Errorf("Len() = %d after all sessions unregistered, want 0", r.Len())
	}
}

func TestSessionStateMachine(t *testing.T) {
	s := New("sid-1", "/ocpp/42", "ocpp1.6", "127.0.0.1:1234", "ws://backend/42", nil)

	if s.State() != StateConnecting {
		t.Fatalf("new session state = %v, want %v", s.State(), StateConnecting)
	}

	if !s.Activate() {
		t.Error("Activate() from CONNECTING = false, want true")
	}
	if s.Activate() {
		t.Error("Activate() from ACTIVE = true, want false")
	}
	if s.State() != StateActive {
		t.Errorf("state = %v, want %v", s.State(), StateActive)
	}

	if !s.BeginClose() {
		t.Error("first BeginClose() = false, want true")
	}
	if s.BeginClose() {
		t.Error("second BeginClose() = true, want false")
	}
	if s.State() != StateClosing {
		t.Errorf("state = %v, want %v", s.State(), StateClosing)
	}

	s.FinishClose()
	if s.State() != StateClosed {
		t.Errorf("state = %v, want %v", s.State(), StateClosed)
	}
	if s.BeginClose() {
		t.Error("BeginClose() after FinishClose = true, want false")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateConnecting, "connecting"},
		{StateActive, "active"},
		{StateClosing, "closing"},
		{StateClosed, "closed"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
