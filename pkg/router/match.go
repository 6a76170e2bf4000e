// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package router

import (
	"net/url"
	"strings"
)

// Match checks a request path against a route pattern and captures `:name`
// parameters. Patterns and paths are compared segment by segment; empty
// segments are ignored, so leading and trailing slashes are insignificant.
// A match requires equal segment counts. There are no wildcard or regex
// segments.
//
// Match is total: a pattern or path that fails to parse as a URL is simply
// a non-match, never an error.
func Match(pattern, path string) (map[string]string, bool) {
	pu, err := url.Parse(pattern)
	if err != nil {
		return nil, false
	}
	ru, err := url.Parse(path)
	if err != nil {
		return nil, false
	}

	want := segments(pu.Path)
	have := segments(ru.Path)
	if len(want) != len(have) {
		return nil, false
	}

	params := make(map[string]string)
	for i, seg := range want {
		if strings.HasPrefix(seg, ":") {
			params[seg[1:]] = have[i]
			continue
		}
		if seg != have[i] {
			return nil, false
		}
	}
	return params, true
}

// Resolve substitutes captured parameters into a target URL template and
// carries the original request's query string over verbatim. Template
// segments that reference no captured parameter are left unchanged.
func Resolve(target string, params map[string]string, rawQuery string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}

	segs := segments(u.Path)
	for i, seg := range segs {
		if !strings.HasPrefix(seg, ":") {
			continue
		}
		if v, ok := params[seg[1:]]; ok {
			segs[i] = v
		}
	}
	if len(segs) > 0 {
		u.Path = "/" + strings.Join(segs, "/")
	}
	if rawQuery != "" {
		u.RawQuery = rawQuery
	}
	return u.String(), nil
}

// segments splits a path on "/" and discards empty segments.
func segments(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
