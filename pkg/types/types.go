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
	"time"
)

// ChannelDescriptor is one entry of the compiled-in channel table.
type ChannelDescriptor struct {
	ID        string // stable channel id, e.g. "12"
	SourceURL string // embed page that hosts the channel's player
}

// RenderedSurface is what one rendering pass could observe of an embed page:
// the manifest-bearing request URLs seen on the wire (browser mode) or the raw
// response body (fetch mode).
type RenderedSurface struct {
	Requests []string
	Markup   string
}

// ResolutionResult is produced once per resolve attempt and owned by it.
type ResolutionResult struct {
	ResolutionID         string
	ChannelID            string
	ManifestURL          string // empty when the resolution failed
	ObservedRequestCount int
	Interactions         int // simulated interaction attempts (browser mode)
	StartedAt            time.Time
	Duration             time.Duration
	Err                  error
}

// Succeeded reports whether a manifest URL was found.
func (r *ResolutionResult) Succeeded() bool {
	return r != nil && r.Err == nil && r.ManifestURL != ""
}

// CacheEntry is the last known state of one channel. A failed refresh only
// sets LastError; URL and LastUpdatedAt keep the last known-good values.
type CacheEntry struct {
	URL           string
	LastUpdatedAt time.Time
	LastError     string
}

// HasURL reports whether a manifest URL has ever been resolved.
func (e CacheEntry) HasURL() bool {
	return e.URL != ""
}

// ChannelStatus is the answer to a channel lookup.
type ChannelStatus struct {
	ID          string     `json:"id"`
	URL         *string    `json:"url"`
	LastUpdated *time.Time `json:"lastUpdated"`
	Cached      bool       `json:"cached"`
	LastError   *string    `json:"lastError"`
}

// CacheView is the JSON shape of one entry in a cache dump.
type CacheView struct {
	URL         *string    `json:"url"`
	LastUpdated *time.Time `json:"lastUpdated"`
	LastError   *string    `json:"lastError"`
}

// NewCacheView converts an entry into its nullable JSON form.
func NewCacheView(e CacheEntry) CacheView {
	return CacheView{
		URL:         optionalString(e.URL),
		LastUpdated: optionalTime(e.LastUpdatedAt),
		LastError:   optionalString(e.LastError),
	}
}

// NewChannelStatus builds the lookup answer for id from its cache entry.
func NewChannelStatus(id string, e CacheEntry, cached bool) ChannelStatus {
	v := NewCacheView(e)
	return ChannelStatus{
		ID:          id,
		URL:         v.URL,
		LastUpdated: v.LastUpdated,
		Cached:      cached,
		LastError:   v.LastError,
	}
}

// ResolutionRecord is one row of the resolution history journal.
type ResolutionRecord struct {
	ResolutionID         string    `json:"resolutionId"`
	ChannelID            string    `json:"channelId"`
	ManifestURL          string    `json:"manifestUrl,omitempty"`
	Error                string    `json:"error,omitempty"`
	ObservedRequestCount int       `json:"observedRequestCount"`
	DurationMS           int64     `json:"durationMs"`
	Trigger              string    `json:"trigger"` // "api" | "sweep"
	CreatedAt            time.Time `json:"createdAt"`
}

// NewResolutionRecord flattens a result for the journal.
func NewResolutionRecord(r *ResolutionResult, trigger string) ResolutionRecord {
	rec := ResolutionRecord{
		ResolutionID:         r.ResolutionID,
		ChannelID:            r.ChannelID,
		ManifestURL:          r.ManifestURL,
		ObservedRequestCount: r.ObservedRequestCount,
		DurationMS:           r.Duration.Milliseconds(),
		Trigger:              trigger,
		CreatedAt:            r.StartedAt.Add(r.Duration),
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	return rec
}

// ErrorResponse is the body of every non-2xx JSON answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RefreshResponse is the body of a successful admin refresh.
type RefreshResponse struct {
	OK    bool                 `json:"ok"`
	Cache map[string]CacheView `json:"cache"`
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
