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

package types

import (
	"fmt"
	"strings"
)

// UnknownChannelError is returned for a channel id missing from the table.
type UnknownChannelError struct {
	ChannelID string
}

func (e *UnknownChannelError) Error() string {
	return fmt.Sprintf("unknown channel %q", e.ChannelID)
}

// NavigationError means the embed page did not finish loading in time. It is
// not fatal: rendering continues with whatever state the page reached.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s did not complete: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// HTTPStatusError is a non-2xx answer to the raw page fetch.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("fetching %s: unexpected status %d", e.URL, e.StatusCode)
}

// ExtractionError means the fetched markup holds no manifest reference.
// Iframes and Scripts summarize the page to help diagnose layout changes.
type ExtractionError struct {
	URL     string
	Iframes []string
	Scripts int
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("no manifest URL found in markup of %s", e.URL)
	if len(e.Iframes) > 0 || e.Scripts > 0 {
		msg += fmt.Sprintf(" (scripts=%d iframes=[%s])", e.Scripts, strings.Join(e.Iframes, ", "))
	}
	return msg
}

// ManifestNotFoundError means no manifest request was observed within the
// resolution budget.
type ManifestNotFoundError struct {
	ChannelID string
	Observed  int // requests seen by the observer (all non-manifest)
	Err       error
}

func (e *ManifestNotFoundError) Error() string {
	return fmt.Sprintf("no manifest request observed for channel %s", e.ChannelID)
}

func (e *ManifestNotFoundError) Unwrap() error { return e.Err }
