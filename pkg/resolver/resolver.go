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

// Package resolver turns a channel id into a fresh manifest URL by driving a
// renderer, the interaction simulator and the extractor under one deadline.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/satori/go.uuid"

	"github.com/lucasduport/channel-resolver/pkg/channels"
	"github.com/lucasduport/channel-resolver/pkg/extract"
	"github.com/lucasduport/channel-resolver/pkg/interact"
	"github.com/lucasduport/channel-resolver/pkg/render"
	"github.com/lucasduport/channel-resolver/pkg/types"
	"github.com/lucasduport/channel-resolver/pkg/utils"
)

// Default time budgets.
const (
	DefaultBrowserTimeout = 60 * time.Second
	DefaultFetchTimeout   = 15 * time.Second
	DefaultPollInterval   = 500 * time.Millisecond
	simulationPasses      = 2
)

// State is the phase a resolution is in.
type State int

const (
	StateIdle State = iota
	StateRendering
	StateSimulating
	StateWaiting
	StateResolved
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRendering:
		return "rendering"
	case StateSimulating:
		return "simulating"
	case StateWaiting:
		return "waiting"
	case StateResolved:
		return "resolved"
	case StateTimedOut:
		return "timed-out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options tune a Resolver. Zero values select the defaults for the
// renderer's mode.
type Options struct {
	Timeout      time.Duration
	PollInterval time.Duration
	Simulator    *interact.Simulator
}

// Resolver performs independent, bounded resolutions. It holds no per-channel
// state: two calls for the same channel are two full resolutions.
type Resolver struct {
	channels     *channels.Table
	renderer     render.Renderer
	simulator    *interact.Simulator
	timeout      time.Duration
	pollInterval time.Duration

	newID func() string
	now   func() time.Time
}

// New returns a resolver for the channels in table.
func New(table *channels.Table, renderer render.Renderer, opts Options) *Resolver {
	r := &Resolver{
		channels:     table,
		renderer:     renderer,
		simulator:    opts.Simulator,
		timeout:      opts.Timeout,
		pollInterval: opts.PollInterval,
		newID:        func() string { return uuid.NewV4().String()[:8] },
		now:          time.Now,
	}
	if r.timeout <= 0 {
		r.timeout = DefaultBrowserTimeout
		if renderer.Mode() == render.ModeFetch {
			r.timeout = DefaultFetchTimeout
		}
	}
	if r.pollInterval <= 0 {
		r.pollInterval = DefaultPollInterval
	}
	if r.simulator == nil && renderer.Mode() == render.ModeBrowser {
		r.simulator = interact.NewSimulator()
	}
	return r
}

// Channels returns the table the resolver serves.
func (r *Resolver) Channels() *channels.Table { return r.channels }

// Mode returns the active rendering strategy.
func (r *Resolver) Mode() render.Mode { return r.renderer.Mode() }

// Timeout returns the per-resolution budget.
func (r *Resolver) Timeout() time.Duration { return r.timeout }

// Resolve runs one resolution for channelID. Unknown ids fail with
// *types.UnknownChannelError and a nil result; any other failure comes back
// both as the error and in the result's Err.
func (r *Resolver) Resolve(ctx context.Context, channelID string) (*types.ResolutionResult, error) {
	desc, ok := r.channels.Lookup(channelID)
	if !ok {
		return nil, &types.UnknownChannelError{ChannelID: channelID}
	}

	run := &resolution{
		Resolver: r,
		desc:     desc,
		state:    StateIdle,
		result: &types.ResolutionResult{
			ResolutionID: r.newID(),
			ChannelID:    channelID,
			StartedAt:    r.now(),
		},
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	url, err := run.execute(ctx)
	return run.finish(url, err)
}

// Snapshot renders the channel's embed page and returns its markup, for
// diagnosing extraction failures.
func (r *Resolver) Snapshot(ctx context.Context, channelID string) (string, error) {
	desc, ok := r.channels.Lookup(channelID)
	if !ok {
		return "", &types.UnknownChannelError{ChannelID: channelID}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	sess, err := r.renderer.Render(ctx, desc.SourceURL)
	var navErr *types.NavigationError
	switch {
	case errors.As(err, &navErr):
		utils.WarnLog("Snapshot of channel %s continues after navigation error: %v", channelID, err)
	case err != nil:
		return "", err
	}
	defer sess.Close()

	return sess.HTML(ctx)
}

// resolution is the state of one Resolve call.
type resolution struct {
	*Resolver
	desc   types.ChannelDescriptor
	state  State
	result *types.ResolutionResult
}

func (run *resolution) enter(s State) {
	utils.DebugLog("[%s] channel %s: %s -> %s", run.result.ResolutionID, run.desc.ID, run.state, s)
	run.state = s
}

func (run *resolution) execute(ctx context.Context) (string, error) {
	utils.InfoLog("[%s] Resolving channel %s via %s (%s, budget %v)",
		run.result.ResolutionID, run.desc.ID, run.desc.SourceURL, run.renderer.Mode(), run.timeout)

	run.enter(StateRendering)
	sess, err := run.renderer.Render(ctx, run.desc.SourceURL)
	var navErr *types.NavigationError
	switch {
	case errors.As(err, &navErr):
		utils.WarnLog("[%s] %v; continuing with the partially loaded page", run.result.ResolutionID, err)
	case err != nil:
		return "", err
	}
	defer sess.Close()

	if capture := sess.Capture(); capture != nil {
		return run.observe(ctx, sess, capture)
	}
	return run.extractMarkup(sess)
}

// observe simulates interaction (twice, unless the first pass already
// produced a candidate) and then waits for the observer to fill the slot.
func (run *resolution) observe(ctx context.Context, sess render.Session, capture *extract.Capture) (string, error) {
	if page, ok := sess.(interact.Page); ok && run.simulator != nil {
		run.enter(StateSimulating)
		for pass := 1; pass <= simulationPasses; pass++ {
			if _, found := capture.Candidate(); found {
				utils.DebugLog("[%s] manifest already captured, skipping simulation pass %d", run.result.ResolutionID, pass)
				break
			}
			if ctx.Err() != nil {
				break
			}
			log := run.simulator.Simulate(ctx, page)
			run.result.Interactions += len(log)
			utils.DebugLog("[%s] simulation pass %d: %d attempts, %d clicks, %d failures",
				run.result.ResolutionID, pass, len(log), log.Clicks(), log.Failures())
		}
	}

	run.enter(StateWaiting)
	url, err := capture.Wait(ctx, run.pollInterval, func(elapsed time.Duration) {
		if elapsed%(5*time.Second) < run.pollInterval {
			utils.DebugLog("[%s] still waiting for a manifest request on channel %s (%v, %d requests seen)",
				run.result.ResolutionID, run.desc.ID, elapsed.Truncate(time.Second), capture.Seen())
		}
	})
	run.result.ObservedRequestCount = capture.Seen()
	if err != nil {
		run.enter(StateTimedOut)
		return "", &types.ManifestNotFoundError{
			ChannelID: run.desc.ID,
			Observed:  capture.Seen(),
			Err:       err,
		}
	}
	return url, nil
}

func (run *resolution) extractMarkup(sess render.Session) (string, error) {
	markup := sess.Surface().Markup
	url, err := extract.FromMarkup(run.desc.SourceURL, markup)
	if err != nil {
		if path := utils.SaveDebugSnapshot("channel-"+run.desc.ID, []byte(markup)); path != "" {
			utils.DebugLog("[%s] markup saved to %s", run.result.ResolutionID, path)
		}
		return "", err
	}
	return url, nil
}

func (run *resolution) finish(url string, err error) (*types.ResolutionResult, error) {
	res := run.result
	res.Duration = run.now().Sub(res.StartedAt)
	res.ManifestURL = url
	res.Err = err

	if err != nil {
		if run.state != StateTimedOut {
			run.enter(StateTimedOut)
		}
		utils.WarnLog("[%s] Channel %s failed after %v: %v",
			res.ResolutionID, res.ChannelID, res.Duration.Truncate(time.Millisecond), err)
		return res, err
	}

	run.enter(StateResolved)
	utils.InfoLog("[%s] Channel %s resolved in %v: %s",
		res.ResolutionID, res.ChannelID, res.Duration.Truncate(time.Millisecond), utils.MaskURL(url))
	return res, nil
}
