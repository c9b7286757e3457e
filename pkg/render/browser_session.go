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

package render

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/lucasduport/channel-resolver/pkg/extract"
	"github.com/lucasduport/channel-resolver/pkg/interact"
	"github.com/lucasduport/channel-resolver/pkg/types"
)

const isolatedWorldName = "channel-resolver"

// browserSession is one tab. It implements Session and interact.Page.
type browserSession struct {
	ctx     context.Context
	close   context.CancelFunc
	capture *extract.Capture

	width, height float64
	closeOnce     sync.Once
}

var _ interact.Page = (*browserSession)(nil)

func (s *browserSession) Surface() types.RenderedSurface {
	return types.RenderedSurface{Requests: s.capture.Manifests()}
}

func (s *browserSession) Capture() *extract.Capture { return s.capture }

func (s *browserSession) HTML(ctx context.Context) (string, error) {
	c, done := s.scoped(ctx)
	defer done()

	var html string
	if err := chromedp.Run(c, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading page markup: %w", err)
	}
	return html, nil
}

// Close closes the tab. The shared browser stays up.
func (s *browserSession) Close() {
	s.closeOnce.Do(s.close)
}

func (s *browserSession) Viewport() (float64, float64) { return s.width, s.height }

func (s *browserSession) Main() interact.Document {
	return &document{
		url:  "main",
		eval: s.evalMain,
	}
}

// Frames walks the frame tree and returns every sub-document.
func (s *browserSession) Frames(ctx context.Context) ([]interact.Document, error) {
	c, done := s.scoped(ctx)
	defer done()

	var tree *page.FrameTree
	err := chromedp.Run(c, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		tree, err = page.GetFrameTree().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("reading frame tree: %w", err)
	}

	var docs []interact.Document
	var walk func(t *page.FrameTree)
	walk = func(t *page.FrameTree) {
		for _, child := range t.ChildFrames {
			if child == nil || child.Frame == nil {
				continue
			}
			id := child.Frame.ID
			docs = append(docs, &document{
				url:    child.Frame.URL,
				eval:   s.evalInFrame(id),
				offset: s.frameOffset(id),
			})
			walk(child)
		}
	}
	if tree != nil {
		walk(tree)
	}
	return docs, nil
}

// ClickAt sends a raw pointer move, press and release at x, y.
func (s *browserSession) ClickAt(ctx context.Context, x, y float64) error {
	c, done := s.scoped(ctx)
	defer done()

	return chromedp.Run(c, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx); err != nil {
			return err
		}
		if err := input.DispatchMouseEvent(input.MousePressed, x, y).
			WithButton(input.Left).WithClickCount(1).Do(ctx); err != nil {
			return err
		}
		return input.DispatchMouseEvent(input.MouseReleased, x, y).
			WithButton(input.Left).WithClickCount(1).Do(ctx)
	}))
}

// scoped derives a tab context that also ends with ctx.
func (s *browserSession) scoped(ctx context.Context) (context.Context, context.CancelFunc) {
	c, cancel := context.WithCancel(s.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return c, func() {
		stop()
		cancel()
	}
}

func (s *browserSession) evalMain(ctx context.Context, script string, out interface{}) error {
	c, done := s.scoped(ctx)
	defer done()
	return chromedp.Run(c, chromedp.Evaluate(script, out))
}

// evalInFrame evaluates scripts in an isolated world of one frame, which
// works for cross-origin frames the top document cannot script.
func (s *browserSession) evalInFrame(frameID cdp.FrameID) func(context.Context, string, interface{}) error {
	var (
		mu     sync.Mutex
		execID runtime.ExecutionContextID
	)
	return func(ctx context.Context, script string, out interface{}) error {
		c, done := s.scoped(ctx)
		defer done()

		return chromedp.Run(c, chromedp.ActionFunc(func(ctx context.Context) error {
			mu.Lock()
			id := execID
			mu.Unlock()
			if id == 0 {
				var err error
				id, err = page.CreateIsolatedWorld(frameID).WithWorldName(isolatedWorldName).Do(ctx)
				if err != nil {
					return fmt.Errorf("creating isolated world in frame %s: %w", frameID, err)
				}
				mu.Lock()
				execID = id
				mu.Unlock()
			}

			res, exc, err := runtime.Evaluate(script).WithContextID(id).WithReturnByValue(true).Do(ctx)
			if err != nil {
				return err
			}
			if exc != nil {
				return fmt.Errorf("script exception in frame %s: %s", frameID, exc.Text)
			}
			if out == nil || res == nil || len(res.Value) == 0 {
				return nil
			}
			return json.Unmarshal(res.Value, out)
		}))
	}
}

// frameOffset returns the page position of a frame's content box.
func (s *browserSession) frameOffset(frameID cdp.FrameID) func(context.Context) (float64, float64, error) {
	return func(ctx context.Context) (float64, float64, error) {
		c, done := s.scoped(ctx)
		defer done()

		var x, y float64
		err := chromedp.Run(c, chromedp.ActionFunc(func(ctx context.Context) error {
			backendID, _, err := dom.GetFrameOwner(frameID).Do(ctx)
			if err != nil {
				return fmt.Errorf("locating owner of frame %s: %w", frameID, err)
			}
			box, err := dom.GetBoxModel().WithBackendNodeID(backendID).Do(ctx)
			if err != nil {
				return fmt.Errorf("measuring owner of frame %s: %w", frameID, err)
			}
			if box == nil || len(box.Content) < 2 {
				return fmt.Errorf("frame %s has no content box", frameID)
			}
			x, y = box.Content[0], box.Content[1]
			return nil
		}))
		return x, y, err
	}
}
