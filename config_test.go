// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package wsproxy

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig(env.Options{Prefix: "TEST_UNSET_"})
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if cfg.ConnectTimeout != 10*time.Second {
		t.Errorf("ConnectTimeout = %v, want 10s", cfg.ConnectTimeout)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 30s", cfg.ShutdownTimeout)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Errorf("log defaults = (%q, %q), want (info, json)", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.TLSConfig != nil {
		t.Error("TLSConfig set without certificate files")
	}
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("WSPROXY_PORT", "8080")
	t.Setenv("WSPROXY_CONNECT_TIMEOUT", "2s")
	t.Setenv("WSPROXY_ROUTES", "/ocpp/:id=ws://backend:9000/:id,/ws=ws://other:9001")
	t.Setenv("WSPROXY_RATE_LIMIT", "5")

	cfg, err := NewConfig(env.Options{Prefix: "WSPROXY_"})
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.ConnectTimeout != 2*time.Second {
		t.Errorf("ConnectTimeout = %v, want 2s", cfg.ConnectTimeout)
	}
	if len(cfg.Routes) != 2 {
		t.Fatalf("Routes = %v, want 2 entries", cfg.Routes)
	}
	if cfg.RateLimit != 5 {
		t.Errorf("RateLimit = %d, want 5", cfg.RateLimit)
	}
}

func TestRoutePairs(t *testing.T) {
	tests := []struct {
		name    string
		routes  []string
		want    [][2]string
		wantErr bool
	}{
		{
			name:   "single route",
			routes: []string{"/ocpp/:id=ws://backend:9000/:id"},
			want:   [][2]string{{"/ocpp/:id", "ws://backend:9000/:id"}},
		},
		{
			name:   "multiple routes with whitespace",
			routes: []string{"/a=ws://x:1", " /b=ws://y:2 "},
			want:   [][2]string{{"/a", "ws://x:1"}, {"/b", "ws://y:2"}},
		},
		{
			name:   "empty entries skipped",
			routes: []string{"", "/a=ws://x:1", ""},
			want:   [][2]string{{"/a", "ws://x:1"}},
		},
		{
			name:    "missing separator",
			routes:  []string{"/a"},
			wantErr: true,
		},
		{
			name:    "empty target",
			routes:  []string{"/a="},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Routes: tt.routes}
			got, err := cfg.RoutePairs()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("RoutePairs: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d pairs, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("pair %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
