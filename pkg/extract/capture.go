/*
 * channel-resolver keeps live channel manifest URLs fresh and serves them.
 * Copyright (C) 2025  Lucas Duport
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

// Package extract decides whether an observed page surface carries an HLS
// manifest reference and which one to report.
package extract

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ManifestExtension is the path marker of an HLS playlist.
const ManifestExtension = ".m3u8"

// DefaultCaptureLimit bounds how many manifest-bearing URLs a capture keeps.
const DefaultCaptureLimit = 64

// IsManifestURL reports whether the path of rawURL contains the manifest extension.
func IsManifestURL(rawURL string) bool {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return strings.Contains(strings.ToLower(u.Path), ManifestExtension)
	}
	p := rawURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return strings.Contains(strings.ToLower(p), ManifestExtension)
}

// Capture is the single-slot result of a browser resolution. The first
// manifest-bearing URL offered wins; later ones are recorded but never
// replace it. Done is closed exactly once, when the slot is filled.
type Capture struct {
	mu        sync.Mutex
	limit     int
	seen      int
	manifests []string
	candidate string
	done      chan struct{}
}

// NewCapture returns an empty capture keeping at most limit manifest URLs.
func NewCapture(limit int) *Capture {
	if limit <= 0 {
		limit = DefaultCaptureLimit
	}
	return &Capture{limit: limit, done: make(chan struct{})}
}

// Observe records one outbound request. It reports whether the URL is a
// manifest and whether it became the candidate.
func (c *Capture) Observe(rawURL string) (manifest, first bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seen++
	if !IsManifestURL(rawURL) {
		return false, false
	}
	if len(c.manifests) < c.limit {
		c.manifests = append(c.manifests, rawURL)
	}
	if c.candidate != "" {
		return true, false
	}
	c.candidate = rawURL
	close(c.done)
	return true, true
}

// Candidate returns the first manifest URL observed, if any.
func (c *Capture) Candidate() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.candidate, c.candidate != ""
}

// Done is closed once a candidate has been captured.
func (c *Capture) Done() <-chan struct{} {
	return c.done
}

// Manifests returns the manifest-bearing URLs seen so far, in order.
func (c *Capture) Manifests() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.manifests))
	copy(out, c.manifests)
	return out
}

// Seen returns the number of requests observed, manifest or not.
func (c *Capture) Seen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen
}

// Wait blocks until a candidate is captured or ctx ends. onTick, when not nil,
// runs every interval while waiting.
func (c *Capture) Wait(ctx context.Context, interval time.Duration, onTick func(elapsed time.Duration)) (string, error) {
	if u, ok := c.Candidate(); ok {
		return u, nil
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	started := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			u, _ := c.Candidate()
			return u, nil
		case <-ctx.Done():
			// a capture racing the deadline still counts
			if u, ok := c.Candidate(); ok {
				return u, nil
			}
			return "", ctx.Err()
		case <-ticker.C:
			if onTick != nil {
				onTick(time.Since(started))
			}
		}
	}
}
