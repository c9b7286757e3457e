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

// Package cache keeps the last known-good manifest URL of every channel and
// decides when a lookup has to trigger a resolution.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lucasduport/channel-resolver/pkg/channels"
	"github.com/lucasduport/channel-resolver/pkg/types"
	"github.com/lucasduport/channel-resolver/pkg/utils"
)

// Refresh triggers recorded in the history journal.
const (
	TriggerAPI   = "api"
	TriggerSweep = "sweep"
)

// Resolver performs one resolution of a channel.
type Resolver interface {
	Resolve(ctx context.Context, channelID string) (*types.ResolutionResult, error)
}

// Journal stores resolution outcomes. Failures to record are logged only.
type Journal interface {
	RecordResolution(ctx context.Context, rec types.ResolutionRecord) error
}

// Alerter is told about failed refreshes.
type Alerter interface {
	NotifyFailure(ctx context.Context, channelID string, err error) error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithJournal records every resolution in j.
func WithJournal(j Journal) Option {
	return func(c *Coordinator) { c.journal = j }
}

// WithAlerter reports every failed refresh to a.
func WithAlerter(a Alerter) Option {
	return func(c *Coordinator) { c.alerter = a }
}

// Coordinator owns the per-channel cache entries. Entries are created empty
// for every configured channel and only ever overwritten.
type Coordinator struct {
	channels *channels.Table
	resolver Resolver
	journal  Journal
	alerter  Alerter
	now      func() time.Time

	mu      sync.RWMutex
	entries map[string]types.CacheEntry

	// sweepMu keeps sweeps from overlapping
	sweepMu sync.Mutex
}

// NewCoordinator returns a coordinator with an empty entry per channel.
func NewCoordinator(table *channels.Table, resolver Resolver, opts ...Option) *Coordinator {
	c := &Coordinator{
		channels: table,
		resolver: resolver,
		now:      time.Now,
		entries:  make(map[string]types.CacheEntry, table.Len()),
	}
	for _, id := range table.IDs() {
		c.entries[id] = types.CacheEntry{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrRefresh serves the cached URL of channelID, resolving it first when
// none has been found yet. A cache hit never starts a resolution, however old
// the entry is. The error is non-nil only for unknown channels and for failed
// resolutions with nothing cached to fall back on.
func (c *Coordinator) GetOrRefresh(ctx context.Context, channelID string) (types.ChannelStatus, error) {
	if _, ok := c.channels.Lookup(channelID); !ok {
		return types.ChannelStatus{}, &types.UnknownChannelError{ChannelID: channelID}
	}

	if entry := c.Entry(channelID); entry.HasURL() {
		utils.DebugLog("Cache hit for channel %s (updated %s)", channelID, entry.LastUpdatedAt.Format(time.RFC3339))
		return types.NewChannelStatus(channelID, entry, true), nil
	}

	err := c.refresh(ctx, channelID, TriggerAPI)
	entry := c.Entry(channelID)
	if err != nil {
		if entry.HasURL() {
			// filled by a concurrent refresh meanwhile
			return types.NewChannelStatus(channelID, entry, true), nil
		}
		return types.NewChannelStatus(channelID, entry, false), err
	}
	return types.NewChannelStatus(channelID, entry, false), nil
}

// RefreshAll resolves every channel unconditionally, one at a time. A failing
// channel does not stop the sweep. It returns early only when ctx ends between
// two channels.
func (c *Coordinator) RefreshAll(ctx context.Context) (map[string]types.CacheView, error) {
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()

	sweepID := uuid.New().String()[:8]
	ids := c.channels.IDs()
	started := c.now()
	utils.InfoLog("[sweep %s] Refreshing %d channels", sweepID, len(ids))

	var ok, failed int
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			utils.WarnLog("[sweep %s] Stopped after %d/%d channels: %v", sweepID, i, len(ids), err)
			return c.Snapshot(), fmt.Errorf("refresh sweep interrupted: %w", err)
		}
		if err := c.refresh(ctx, id, TriggerSweep); err != nil {
			failed++
			continue
		}
		ok++
	}

	utils.InfoLog("[sweep %s] Done in %v: %d refreshed, %d failed",
		sweepID, c.now().Sub(started).Truncate(time.Millisecond), ok, failed)
	return c.Snapshot(), nil
}

// Snapshot returns every entry keyed by channel id.
func (c *Coordinator) Snapshot() map[string]types.CacheView {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]types.CacheView, len(c.entries))
	for id, e := range c.entries {
		out[id] = types.NewCacheView(e)
	}
	return out
}

// Entry returns the current entry of channelID.
func (c *Coordinator) Entry(channelID string) types.CacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[channelID]
}

// Channels returns the configured channel table.
func (c *Coordinator) Channels() *channels.Table { return c.channels }

// refresh runs one resolution and stores its outcome. The caller's
// cancellation is dropped; the resolver's own timeout bounds the call.
func (c *Coordinator) refresh(ctx context.Context, channelID, trigger string) error {
	ctx = context.WithoutCancel(ctx)

	res, err := c.resolver.Resolve(ctx, channelID)
	c.store(channelID, res, err)

	if res != nil && c.journal != nil {
		if jerr := c.journal.RecordResolution(ctx, types.NewResolutionRecord(res, trigger)); jerr != nil {
			utils.WarnLog("Failed to journal resolution of channel %s: %v", channelID, jerr)
		}
	}
	if err != nil && c.alerter != nil {
		if aerr := c.alerter.NotifyFailure(ctx, channelID, err); aerr != nil {
			utils.WarnLog("Failed to send alert for channel %s: %v", channelID, aerr)
		}
	}
	return err
}

// store applies a resolution outcome. Success replaces the URL and clears the
// error; failure only sets the error.
func (c *Coordinator) store(channelID string, res *types.ResolutionResult, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.entries[channelID]
	switch {
	case err == nil && res.Succeeded():
		entry.URL = res.ManifestURL
		entry.LastUpdatedAt = c.now()
		entry.LastError = ""
	case err != nil:
		entry.LastError = err.Error()
	default:
		entry.LastError = "resolution returned no manifest URL"
	}
	c.entries[channelID] = entry
}
