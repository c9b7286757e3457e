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

// Package interact nudges lazy embedded players into requesting their
// manifest. Every interaction is best effort: failures are recorded in the
// returned log and never stop the sequence.
package interact

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lucasduport/channel-resolver/pkg/utils"
)

// Document is one DOM document of a page: the top document or an iframe.
type Document interface {
	URL() string
	// ClickFirst clicks the first element matching selector.
	ClickFirst(ctx context.Context, selector string) (bool, error)
	// ClickAll clicks every element matching selector and returns the count.
	ClickAll(ctx context.Context, selector string) (int, error)
	// PlayVideos clicks and starts every <video> element.
	PlayVideos(ctx context.Context) (int, error)
	// Locate returns the centre of the first element matching selector in
	// page (viewport) coordinates.
	Locate(ctx context.Context, selector string) (x, y float64, found bool, err error)
}

// Page is an open browser tab.
type Page interface {
	Main() Document
	// Frames returns every sub-document reachable from the page.
	Frames(ctx context.Context) ([]Document, error)
	// Viewport returns the emulated viewport size in CSS pixels.
	Viewport() (width, height float64)
	// ClickAt dispatches a raw pointer move/down/up sequence at x, y.
	ClickAt(ctx context.Context, x, y float64) error
}

// FrameRecipe is a specialised path for one known third-party embed host.
type FrameRecipe struct {
	HostSuffix string // matched against the frame URL host
	Selector   string // container/class combination of the play target
}

// DefaultSelectors are common "play" affordances, most specific first.
var DefaultSelectors = []string{
	".vjs-big-play-button",
	".jw-icon-display",
	".jw-display-icon-container",
	".plyr__control--overlaid",
	".fp-ui",
	".play-wrapper",
	".ytp-large-play-button",
	"button[aria-label='Play']",
	"[aria-label*='play' i]",
	"[title*='play' i]",
	".play-button",
	".btn-play",
	".icon-play",
	"#play",
}

// DefaultRecipes hold the specialised frame paths.
var DefaultRecipes = []FrameRecipe{
	{HostSuffix: "dailymotion.com", Selector: ".np_Main .np_ButtonPlayback"},
}

// Simulator runs the interaction sweep against a page.
type Simulator struct {
	Selectors   []string
	Recipes     []FrameRecipe
	Pause       time.Duration // pause after a successful targeted click
	StepTimeout time.Duration // budget of a single interaction
}

// NewSimulator returns a simulator with the default selectors and recipes.
func NewSimulator() *Simulator {
	return &Simulator{
		Selectors:   DefaultSelectors,
		Recipes:     DefaultRecipes,
		Pause:       300 * time.Millisecond,
		StepTimeout: 3 * time.Second,
	}
}

// Attempt records the outcome of one interaction.
type Attempt struct {
	Step     string // center-click, targeted, sweep, video, recipe, recipe-pointer, frames
	Document string
	Target   string
	Clicked  int
	Err      error
}

func (a Attempt) String() string {
	s := fmt.Sprintf("%s %s on %s: clicked=%d", a.Step, a.Target, a.Document, a.Clicked)
	if a.Err != nil {
		s += " err=" + a.Err.Error()
	}
	return s
}

// Log is the ordered list of attempts made by one Simulate call.
type Log []Attempt

// Clicks returns the total number of elements clicked.
func (l Log) Clicks() int {
	n := 0
	for _, a := range l {
		n += a.Clicked
	}
	return n
}

// Failures returns the attempts that returned an error.
func (l Log) Failures() int {
	n := 0
	for _, a := range l {
		if a.Err != nil {
			n++
		}
	}
	return n
}

// Simulate runs one full pass: centre click, targeted selectors and a generic
// sweep on the top document, then the same inside every frame. It never fails;
// it stops early only when ctx ends.
func (s *Simulator) Simulate(ctx context.Context, page Page) Log {
	var log Log
	main := page.Main()

	w, h := page.Viewport()
	log = append(log, s.attempt(ctx, "center-click", "main", "viewport", func(ctx context.Context) (int, error) {
		if err := page.ClickAt(ctx, w/2, h/2); err != nil {
			return 0, err
		}
		return 1, nil
	}))

	log = append(log, s.sweepDocument(ctx, "main", main)...)

	if ctx.Err() != nil {
		return log
	}

	frames, err := page.Frames(ctx)
	if err != nil {
		log = append(log, Attempt{Step: "frames", Document: "main", Err: err})
		return log
	}
	for _, frame := range frames {
		if ctx.Err() != nil {
			break
		}
		label := frameLabel(frame.URL())
		if recipe, ok := s.recipeFor(frame.URL()); ok {
			log = append(log, s.runRecipe(ctx, page, label, frame, recipe)...)
		}
		log = append(log, s.sweepDocument(ctx, label, frame)...)
	}

	utils.DebugLog("Interaction pass done: %d attempts, %d clicks, %d failures, %d frames",
		len(log), log.Clicks(), log.Failures(), len(frames))
	return log
}

// sweepDocument runs the targeted selectors then the generic sweep on doc.
func (s *Simulator) sweepDocument(ctx context.Context, label string, doc Document) Log {
	var log Log

	for _, sel := range s.Selectors {
		if ctx.Err() != nil {
			return log
		}
		sel := sel
		a := s.attempt(ctx, "targeted", label, sel, func(ctx context.Context) (int, error) {
			ok, err := doc.ClickFirst(ctx, sel)
			if ok {
				return 1, err
			}
			return 0, err
		})
		log = append(log, a)
		if a.Clicked > 0 {
			sleepCtx(ctx, s.Pause)
		}
	}

	for _, sel := range s.Selectors {
		if ctx.Err() != nil {
			return log
		}
		sel := sel
		log = append(log, s.attempt(ctx, "sweep", label, sel, func(ctx context.Context) (int, error) {
			return doc.ClickAll(ctx, sel)
		}))
	}

	log = append(log, s.attempt(ctx, "video", label, "video", doc.PlayVideos))
	return log
}

// runRecipe clicks the known play target of a recognised embed host, then
// replays a raw pointer sequence at its position for players that ignore
// synthetic clicks.
func (s *Simulator) runRecipe(ctx context.Context, page Page, label string, frame Document, recipe FrameRecipe) Log {
	var log Log

	log = append(log, s.attempt(ctx, "recipe", label, recipe.Selector, func(ctx context.Context) (int, error) {
		ok, err := frame.ClickFirst(ctx, recipe.Selector)
		if ok {
			return 1, err
		}
		return 0, err
	}))

	log = append(log, s.attempt(ctx, "recipe-pointer", label, recipe.Selector, func(ctx context.Context) (int, error) {
		x, y, found, err := frame.Locate(ctx, recipe.Selector)
		if err != nil || !found {
			return 0, err
		}
		if err := page.ClickAt(ctx, x, y); err != nil {
			return 0, err
		}
		return 1, nil
	}))
	return log
}

// attempt runs fn under the step timeout and turns any failure, including a
// panic, into a logged Attempt.
func (s *Simulator) attempt(ctx context.Context, step, doc, target string, fn func(context.Context) (int, error)) (a Attempt) {
	a = Attempt{Step: step, Document: doc, Target: target}

	stepCtx := ctx
	if s.StepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, s.StepTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			a.Err = fmt.Errorf("panic: %v", r)
		}
		if a.Err != nil {
			utils.DebugLog("Interaction %s", a)
		}
	}()

	a.Clicked, a.Err = fn(stepCtx)
	return a
}

func (s *Simulator) recipeFor(frameURL string) (FrameRecipe, bool) {
	u, err := url.Parse(frameURL)
	if err != nil || u.Host == "" {
		return FrameRecipe{}, false
	}
	host := strings.ToLower(u.Hostname())
	for _, r := range s.Recipes {
		suffix := strings.ToLower(r.HostSuffix)
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return r, true
		}
	}
	return FrameRecipe{}, false
}

func frameLabel(frameURL string) string {
	if u, err := url.Parse(frameURL); err == nil && u.Host != "" {
		return "frame:" + u.Host
	}
	return "frame:" + utils.Truncate(frameURL, 40)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
