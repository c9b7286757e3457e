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

package interact

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeDoc struct {
	url      string
	matches  map[string]int // selector -> number of matching elements
	failOn   map[string]bool
	panicOn  string
	locateAt [2]float64

	mu      sync.Mutex
	firsts  []string
	alls    []string
	videos  int
	located []string
}

func (d *fakeDoc) URL() string { return d.url }

func (d *fakeDoc) ClickFirst(_ context.Context, sel string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if sel == d.panicOn {
		panic("detached node")
	}
	if d.failOn[sel] {
		return false, errors.New("click rejected")
	}
	if d.matches[sel] == 0 {
		return false, nil
	}
	d.firsts = append(d.firsts, sel)
	return true, nil
}

func (d *fakeDoc) ClickAll(_ context.Context, sel string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failOn[sel] {
		return 0, errors.New("click rejected")
	}
	n := d.matches[sel]
	if n > 0 {
		d.alls = append(d.alls, sel)
	}
	return n, nil
}

func (d *fakeDoc) PlayVideos(context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.videos++
	return d.matches["video"], nil
}

func (d *fakeDoc) Locate(_ context.Context, sel string) (float64, float64, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.located = append(d.located, sel)
	if d.matches[sel] == 0 {
		return 0, 0, false, nil
	}
	return d.locateAt[0], d.locateAt[1], true, nil
}

type fakePage struct {
	main      *fakeDoc
	frames    []*fakeDoc
	framesErr error

	mu     sync.Mutex
	clicks [][2]float64
}

func (p *fakePage) Main() Document { return p.main }

func (p *fakePage) Frames(context.Context) ([]Document, error) {
	if p.framesErr != nil {
		return nil, p.framesErr
	}
	out := make([]Document, len(p.frames))
	for i, f := range p.frames {
		out[i] = f
	}
	return out, nil
}

func (p *fakePage) Viewport() (float64, float64) { return 1366, 768 }

func (p *fakePage) ClickAt(_ context.Context, x, y float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks = append(p.clicks, [2]float64{x, y})
	return nil
}

func newTestSimulator() *Simulator {
	return &Simulator{
		Selectors:   []string{".big-play", "[aria-label='Play']", ".icon"},
		Recipes:     []FrameRecipe{{HostSuffix: "videohost.example", Selector: ".shell .play"}},
		Pause:       time.Millisecond,
		StepTimeout: time.Second,
	}
}

func TestSimulateMainDocument(t *testing.T) {
	main := &fakeDoc{url: "https://embed.example/12", matches: map[string]int{
		".big-play": 1,
		".icon":     3,
		"video":     1,
	}}
	page := &fakePage{main: main}

	log := newTestSimulator().Simulate(context.Background(), page)

	if len(page.clicks) == 0 || page.clicks[0] != [2]float64{683, 384} {
		t.Errorf("first interaction should click the viewport centre, got %v", page.clicks)
	}
	// every matching selector is clicked in the targeted pass, not only the first
	if len(main.firsts) != 2 || main.firsts[0] != ".big-play" || main.firsts[1] != ".icon" {
		t.Errorf("targeted clicks = %v", main.firsts)
	}
	if len(main.alls) != 2 {
		t.Errorf("sweep clicks = %v", main.alls)
	}
	if main.videos != 1 {
		t.Errorf("PlayVideos called %d times, want 1", main.videos)
	}
	// centre(1) + targeted(2) + sweep(1+3) + video(1)
	if got := log.Clicks(); got != 8 {
		t.Errorf("Clicks() = %d, want 8", got)
	}
}

func TestSimulateSwallowsFailures(t *testing.T) {
	main := &fakeDoc{
		url:     "https://embed.example/12",
		matches: map[string]int{".icon": 1},
		failOn:  map[string]bool{".big-play": true},
		panicOn: "[aria-label='Play']",
	}
	page := &fakePage{main: main, framesErr: errors.New("frame tree unavailable")}

	log := newTestSimulator().Simulate(context.Background(), page)

	if log.Failures() < 3 {
		t.Errorf("expected rejected click, panic and frame error to be logged, got %d failures", log.Failures())
	}
	if len(main.firsts) != 1 || main.firsts[0] != ".icon" {
		t.Errorf("later selectors should still run after failures, got %v", main.firsts)
	}
	last := log[len(log)-1]
	if last.Step != "frames" || last.Err == nil {
		t.Errorf("last attempt = %+v, want frames error", last)
	}
}

func TestSimulateFramesAndRecipe(t *testing.T) {
	main := &fakeDoc{url: "https://embed.example/12", matches: map[string]int{}}
	plain := &fakeDoc{url: "https://player.example/frame", matches: map[string]int{".big-play": 1}}
	special := &fakeDoc{
		url:      "https://www.videohost.example/embed/x1",
		matches:  map[string]int{".shell .play": 1},
		locateAt: [2]float64{410, 220},
	}
	page := &fakePage{main: main, frames: []*fakeDoc{plain, special}}

	log := newTestSimulator().Simulate(context.Background(), page)

	if len(plain.firsts) != 1 || len(plain.alls) != 1 {
		t.Errorf("plain frame clicks: targeted=%v sweep=%v", plain.firsts, plain.alls)
	}
	if len(special.firsts) == 0 || special.firsts[0] != ".shell .play" {
		t.Errorf("recipe target should be clicked first in its frame, got %v", special.firsts)
	}
	if len(page.clicks) != 2 || page.clicks[1] != [2]float64{410, 220} {
		t.Errorf("recipe pointer sequence should fire at the located target, got %v", page.clicks)
	}

	var sawRecipe bool
	for _, a := range log {
		if a.Step == "recipe-pointer" && a.Document == "frame:www.videohost.example" && a.Clicked == 1 {
			sawRecipe = true
		}
	}
	if !sawRecipe {
		t.Error("log is missing the recipe pointer attempt")
	}
}

func TestSimulateStopsWhenContextEnds(t *testing.T) {
	main := &fakeDoc{url: "https://embed.example/12", matches: map[string]int{}}
	page := &fakePage{main: main, frames: []*fakeDoc{{url: "https://player.example/f"}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	log := newTestSimulator().Simulate(ctx, page)
	if len(log) > 2 {
		t.Errorf("cancelled simulation should stop early, made %d attempts", len(log))
	}
}

func TestRecipeHostMatching(t *testing.T) {
	s := newTestSimulator()
	tests := []struct {
		url  string
		want bool
	}{
		{"https://videohost.example/embed", true},
		{"https://geo.videohost.example/embed", true},
		{"https://notvideohost.example/embed", false},
		{"about:blank", false},
	}
	for _, tt := range tests {
		if _, ok := s.recipeFor(tt.url); ok != tt.want {
			t.Errorf("recipeFor(%q) = %v, want %v", tt.url, ok, tt.want)
		}
	}
}
