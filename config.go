// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package wsproxy provides environment-driven configuration for the
// WebSocket reverse proxy.
package wsproxy

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the proxy service configuration, loaded from the
// environment.
type Config struct {
	Host string `env:"HOST" envDefault:""`
	Port string `env:"PORT" envDefault:""`

	// OpsPort serves metrics and health endpoints. Empty disables the
	// ops server.
	OpsPort string `env:"OPS_PORT" envDefault:""`

	ConnectTimeout  time.Duration `env:"CONNECT_TIMEOUT"  envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Routes lists static routes as "pattern=target" pairs, e.g.
	// "/ocpp/:id=ws://backend:9000/:id".
	Routes []string `env:"ROUTES" envSeparator:","`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	CertFile     string `env:"CERT_FILE"      envDefault:""`
	KeyFile      string `env:"KEY_FILE"       envDefault:""`
	ServerCAFile string `env:"SERVER_CA_FILE" envDefault:""`

	// RateLimit caps messages per session per second. Zero disables
	// rate limiting. RateBurst defaults to RateLimit when unset.
	RateLimit int64 `env:"RATE_LIMIT" envDefault:"0"`
	RateBurst int64 `env:"RATE_BURST" envDefault:"0"`

	TLSConfig *tls.Config
}

// NewConfig loads a Config from the environment using the given options,
// then assembles the TLS configuration if certificate files are set.
func NewConfig(opts env.Options) (Config, error) {
	c := Config{}
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return Config{}, err
	}

	if c.CertFile != "" && c.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return Config{}, fmt.Errorf("failed to load certificate: %w", err)
		}
		c.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
		}

		if c.ServerCAFile != "" {
			ca, err := os.ReadFile(c.ServerCAFile)
			if err != nil {
				return Config{}, fmt.Errorf("failed to load server CA: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(ca) {
				return Config{}, fmt.Errorf("failed to parse server CA %s", c.ServerCAFile)
			}
			c.TLSConfig.ClientCAs = pool
			c.TLSConfig.ClientAuth = tls.RequireAndVerifyClientCert
		}
	}

	return c, nil
}

// RoutePairs parses the Routes entries into (pattern, target) pairs.
func (c Config) RoutePairs() ([][2]string, error) {
	pairs := make([][2]string, 0, len(c.Routes))
	for _, r := range c.Routes {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		pattern, target, ok := strings.Cut(r, "=")
		if !ok || pattern == "" || target == "" {
			return nil, fmt.Errorf("malformed route entry %q, want pattern=target", r)
		}
		pairs = append(pairs, [2]string{pattern, target})
	}
	return pairs, nil
}
