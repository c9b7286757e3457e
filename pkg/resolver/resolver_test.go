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

package resolver

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lucasduport/channel-resolver/pkg/channels"
	"github.com/lucasduport/channel-resolver/pkg/extract"
	"github.com/lucasduport/channel-resolver/pkg/interact"
	"github.com/lucasduport/channel-resolver/pkg/render"
	"github.com/lucasduport/channel-resolver/pkg/types"
)

type fakeSession struct {
	capture *extract.Capture
	markup  string
	closed  int32
}

func (s *fakeSession) Surface() types.RenderedSurface {
	if s.capture != nil {
		return types.RenderedSurface{Requests: s.capture.Manifests()}
	}
	return types.RenderedSurface{Markup: s.markup}
}
func (s *fakeSession) Capture() *extract.Capture { return s.capture }
func (s *fakeSession) HTML(context.Context) (string, error) { return s.markup, nil }
func (s *fakeSession) Close() { atomic.AddInt32(&s.closed, 1) }

// pageSession is a browser session whose centre click makes the player
// request its manifest.
type pageSession struct {
	*fakeSession
	centerClicks int32
}

type noopDoc struct{}

func (noopDoc) URL() string { return "main" }
func (noopDoc) ClickFirst(context.Context, string) (bool, error) { return false, nil }
func (noopDoc) ClickAll(context.Context, string) (int, error) { return 0, nil }
func (noopDoc) PlayVideos(context.Context) (int, error) { return 0, nil }
func (noopDoc) Locate(context.Context, string) (float64, float64, bool, error) {
	return 0, 0, false, nil
}

func (p *pageSession) Main() interact.Document { return noopDoc{} }
func (p *pageSession) Frames(context.Context) ([]interact.Document, error) { return nil, nil }
func (p *pageSession) Viewport() (float64, float64) { return 1366, 768 }
func (p *pageSession) ClickAt(context.Context, float64, float64) error {
	atomic.AddInt32(&p.centerClicks, 1)
	p.capture.Observe("https://cdn.example/after-click/index.m3u8")
	return nil
}

type fakeRenderer struct {
	mode   render.Mode
	calls  int32
	render func(ctx context.Context, sourceURL string) (render.Session, error)
}

func (r *fakeRenderer) Mode() render.Mode { return r.mode }

func (r *fakeRenderer) Render(ctx context.Context, sourceURL string) (render.Session, error) {
	atomic.AddInt32(&r.calls, 1)
	return r.render(ctx, sourceURL)
}

func testTable() *channels.Table {
	return channels.New([]types.ChannelDescriptor{
		{ID: "12", SourceURL: "https://embed.example/12"},
		{ID: "13", SourceURL: "https://embed.example/13"},
	})
}

func quickSimulator() *interact.Simulator {
	return &interact.Simulator{Selectors: []string{".play"}, Pause: time.Millisecond, StepTimeout: time.Second}
}

func TestResolveUnknownChannel(t *testing.T) {
	r := &fakeRenderer{mode: render.ModeBrowser}
	res, err := New(testTable(), r, Options{}).Resolve(context.Background(), "99")

	var unknown *types.UnknownChannelError
	if !errors.As(err, &unknown) || unknown.ChannelID != "99" {
		t.Fatalf("Resolve error = %v, want UnknownChannelError", err)
	}
	if res != nil {
		t.Error("unknown channel should not produce a result")
	}
	if r.calls != 0 {
		t.Errorf("renderer called %d times", r.calls)
	}
}

func TestResolveObservedRequest(t *testing.T) {
	sess := &fakeSession{capture: extract.NewCapture(0)}
	r := &fakeRenderer{mode: render.ModeBrowser, render: func(ctx context.Context, sourceURL string) (render.Session, error) {
		go func() {
			time.Sleep(30 * time.Millisecond)
			sess.capture.Observe("https://embed.example/app.js")
			sess.capture.Observe("https://cdn.example/live/12/index.m3u8?token=abc")
			sess.capture.Observe("https://cdn.example/live/12/other.m3u8")
		}()
		return sess, nil
	}}

	res, err := New(testTable(), r, Options{Timeout: time.Second, PollInterval: 10 * time.Millisecond}).
		Resolve(context.Background(), "12")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.ManifestURL != "https://cdn.example/live/12/index.m3u8?token=abc" {
		t.Errorf("ManifestURL = %q", res.ManifestURL)
	}
	if !res.Succeeded() || res.ResolutionID == "" {
		t.Errorf("unexpected result %+v", res)
	}
	if sess.closed != 1 {
		t.Errorf("session closed %d times, want 1", sess.closed)
	}
}

func TestResolveTimesOut(t *testing.T) {
	sess := &fakeSession{capture: extract.NewCapture(0)}
	sess.capture.Observe("https://embed.example/app.js")
	r := &fakeRenderer{mode: render.ModeBrowser, render: func(context.Context, string) (render.Session, error) {
		return sess, nil
	}}

	started := time.Now()
	res, err := New(testTable(), r, Options{Timeout: 80 * time.Millisecond, PollInterval: 10 * time.Millisecond}).
		Resolve(context.Background(), "13")

	var notFound *types.ManifestNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Resolve error = %v, want ManifestNotFoundError", err)
	}
	if notFound.ChannelID != "13" || notFound.Observed != 1 {
		t.Errorf("error = %+v", notFound)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("timeout cause not wrapped")
	}
	if res == nil || res.Err != err || res.ObservedRequestCount != 1 {
		t.Errorf("result = %+v", res)
	}
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Errorf("resolution took %v, budget was 80ms", elapsed)
	}
	if sess.closed != 1 {
		t.Errorf("session closed %d times, want 1", sess.closed)
	}
}

func TestResolveContinuesAfterNavigationError(t *testing.T) {
	sess := &fakeSession{capture: extract.NewCapture(0)}
	sess.capture.Observe("https://cdn.example/early.m3u8")
	r := &fakeRenderer{mode: render.ModeBrowser, render: func(_ context.Context, u string) (render.Session, error) {
		return sess, &types.NavigationError{URL: u, Err: context.DeadlineExceeded}
	}}

	res, err := New(testTable(), r, Options{Timeout: time.Second}).Resolve(context.Background(), "12")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.ManifestURL != "https://cdn.example/early.m3u8" {
		t.Errorf("ManifestURL = %q", res.ManifestURL)
	}
}

func TestResolveSkipsSecondPassOnceCaptured(t *testing.T) {
	sess := &pageSession{fakeSession: &fakeSession{capture: extract.NewCapture(0)}}
	r := &fakeRenderer{mode: render.ModeBrowser, render: func(context.Context, string) (render.Session, error) {
		return sess, nil
	}}

	res, err := New(testTable(), r, Options{Timeout: time.Second, Simulator: quickSimulator()}).
		Resolve(context.Background(), "12")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.ManifestURL != "https://cdn.example/after-click/index.m3u8" {
		t.Errorf("ManifestURL = %q", res.ManifestURL)
	}
	if sess.centerClicks != 1 {
		t.Errorf("centre clicked %d times, want a single pass", sess.centerClicks)
	}
	if res.Interactions == 0 {
		t.Error("interaction attempts not recorded")
	}
}

func TestResolveRunsSecondPass(t *testing.T) {
	sess := &pageSession{fakeSession: &fakeSession{capture: extract.NewCapture(0)}}
	// clicks never trigger a manifest here
	quiet := &quietPage{pageSession: sess}
	r := &fakeRenderer{mode: render.ModeBrowser, render: func(context.Context, string) (render.Session, error) {
		return quiet, nil
	}}

	_, err := New(testTable(), r, Options{Timeout: 100 * time.Millisecond, PollInterval: 10 * time.Millisecond, Simulator: quickSimulator()}).
		Resolve(context.Background(), "12")
	if err == nil {
		t.Fatal("expected a timeout")
	}
	if quiet.clicks != 2 {
		t.Errorf("centre clicked %d times, want 2 passes", quiet.clicks)
	}
}

type quietPage struct {
	*pageSession
	clicks int32
}

func (q *quietPage) ClickAt(context.Context, float64, float64) error {
	atomic.AddInt32(&q.clicks, 1)
	return nil
}

func TestResolveFromMarkup(t *testing.T) {
	tests := []struct {
		name    string
		markup  string
		want    string
		wantErr bool
	}{
		{
			name:   "player config",
			markup: `<script>jwplayer("p").setup({file: "https://cdn.example/stream/master.m3u8?token=abc"});</script>`,
			want:   "https://cdn.example/stream/master.m3u8?token=abc",
		},
		{
			name:    "no player",
			markup:  `<html><body><iframe src="/frame"></iframe></body></html>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &fakeSession{markup: tt.markup}
			r := &fakeRenderer{mode: render.ModeFetch, render: func(context.Context, string) (render.Session, error) {
				return sess, nil
			}}
			res, err := New(testTable(), r, Options{}).Resolve(context.Background(), "12")
			if tt.wantErr {
				var extErr *types.ExtractionError
				if !errors.As(err, &extErr) {
					t.Fatalf("Resolve error = %v, want ExtractionError", err)
				}
				if len(extErr.Iframes) != 1 || extErr.Iframes[0] != "https://embed.example/frame" {
					t.Errorf("Iframes = %v", extErr.Iframes)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if res.ManifestURL != tt.want {
				t.Errorf("ManifestURL = %q, want %q", res.ManifestURL, tt.want)
			}
		})
	}
}

func TestResolveRenderFailure(t *testing.T) {
	r := &fakeRenderer{mode: render.ModeFetch, render: func(_ context.Context, u string) (render.Session, error) {
		return nil, &types.HTTPStatusError{URL: u, StatusCode: 403}
	}}
	res, err := New(testTable(), r, Options{}).Resolve(context.Background(), "12")

	var statusErr *types.HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != 403 {
		t.Fatalf("Resolve error = %v", err)
	}
	if res == nil || res.Succeeded() {
		t.Errorf("result = %+v", res)
	}
}

func TestResolveIsIndependentPerCall(t *testing.T) {
	r := &fakeRenderer{mode: render.ModeFetch, render: func(context.Context, string) (render.Session, error) {
		return &fakeSession{markup: `{"file":"https:\/\/cdn.example\/a.m3u8"}`}, nil
	}}
	res := New(testTable(), r, Options{})

	first, err := res.Resolve(context.Background(), "12")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := res.Resolve(context.Background(), "12")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if r.calls != 2 {
		t.Errorf("renderer called %d times, want 2", r.calls)
	}
	if first.ResolutionID == second.ResolutionID {
		t.Error("resolutions share an id")
	}
	if first.ManifestURL != "https://cdn.example/a.m3u8" {
		t.Errorf("ManifestURL = %q", first.ManifestURL)
	}
}

func TestSnapshot(t *testing.T) {
	r := &fakeRenderer{mode: render.ModeFetch, render: func(context.Context, string) (render.Session, error) {
		return &fakeSession{markup: "<html>12</html>"}, nil
	}}
	res := New(testTable(), r, Options{})

	html, err := res.Snapshot(context.Background(), "12")
	if err != nil || html != "<html>12</html>" {
		t.Errorf("Snapshot = %q, %v", html, err)
	}
	if _, err := res.Snapshot(context.Background(), "nope"); err == nil {
		t.Error("Snapshot of unknown channel should fail")
	}
}

func TestStateString(t *testing.T) {
	if StateTimedOut.String() != "timed-out" || StateWaiting.String() != "waiting" {
		t.Error("unexpected state names")
	}
}
