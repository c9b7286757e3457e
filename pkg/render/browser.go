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
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"

	"github.com/lucasduport/channel-resolver/pkg/utils"
)

// launchFunc starts a browser and returns its root context. Cancelling the
// returned func terminates the browser process.
type launchFunc func() (context.Context, context.CancelFunc, error)

// launch is a one-shot future for a browser start.
type launch struct {
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	err    error
}

// Browser is the process-wide headless browser. It is started on first use
// and shared by every resolution; concurrent first users wait for the same
// launch instead of starting a second process.
type Browser struct {
	launcher launchFunc

	mu      sync.Mutex
	current *launch
	closed  bool

	// tabMu serialises tab creation inside the shared browser.
	tabMu sync.Mutex
}

// BrowserOptions configure the browser process.
type BrowserOptions struct {
	ExecPath string
	Headless bool
}

// NewBrowser returns an unstarted shared browser.
func NewBrowser(opts BrowserOptions) *Browser {
	return &Browser{launcher: chromeLauncher(opts)}
}

func chromeLauncher(opts BrowserOptions) launchFunc {
	return func() (context.Context, context.CancelFunc, error) {
		allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		allocOpts = append(allocOpts,
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("mute-audio", true),
			chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
			// keep cross-origin frames in the page's renderer so their
			// requests reach the tab's observer and their DOM is reachable
			chromedp.Flag("disable-features", "IsolateOrigins,site-per-process"),
			chromedp.Flag("disable-site-isolation-trials", true),
			chromedp.UserAgent(DesktopUserAgent),
		)
		if opts.ExecPath != "" {
			allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
		}

		allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
		browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
			chromedp.WithLogf(utils.DebugLog),
			chromedp.WithErrorf(utils.DebugLog),
		)

		// the first Run on the root context starts the process
		if err := chromedp.Run(browserCtx); err != nil {
			cancelBrowser()
			cancelAlloc()
			return nil, nil, fmt.Errorf("starting browser: %w", err)
		}

		return browserCtx, func() {
			cancelBrowser()
			cancelAlloc()
		}, nil
	}
}

// ErrBrowserClosed is returned after Close.
var ErrBrowserClosed = errors.New("browser closed")

// acquire returns the root context of a running browser, starting one if
// needed. A failed or dead browser is relaunched on the next call.
func (b *Browser) acquire(ctx context.Context) (context.Context, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBrowserClosed
	}
	l := b.current
	if l == nil || l.finishedUnusable() {
		l = &launch{done: make(chan struct{})}
		b.current = l
		go b.run(l)
	}
	b.mu.Unlock()

	select {
	case <-l.done:
		if l.err != nil {
			return nil, l.err
		}
		return l.ctx, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for browser launch: %w", ctx.Err())
	}
}

func (b *Browser) run(l *launch) {
	utils.InfoLog("Launching shared headless browser")
	l.ctx, l.cancel, l.err = b.launcher()
	if l.err != nil {
		utils.ErrorLog("Browser launch failed: %v", l.err)
	} else {
		utils.InfoLog("Shared headless browser is ready")
	}
	close(l.done)

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed && l.cancel != nil {
		l.cancel()
	}
}

// finishedUnusable reports a launch that completed with an error or whose
// browser has since gone away. Must be called with Browser.mu held.
func (l *launch) finishedUnusable() bool {
	select {
	case <-l.done:
	default:
		return false
	}
	return l.err != nil || l.ctx.Err() != nil
}

// NewTab opens a fresh tab, attaches listener before the tab sees any
// traffic, and runs setup on it. The returned cancel closes the tab; the tab
// is also closed when ctx ends.
func (b *Browser) NewTab(ctx context.Context, listener func(ev interface{}), setup ...chromedp.Action) (context.Context, context.CancelFunc, error) {
	root, err := b.acquire(ctx)
	if err != nil {
		return nil, nil, err
	}

	b.tabMu.Lock()
	defer b.tabMu.Unlock()

	tabCtx, cancelTab := chromedp.NewContext(root)
	stop := context.AfterFunc(ctx, cancelTab)
	closeTab := func() {
		stop()
		cancelTab()
	}

	if listener != nil {
		chromedp.ListenTarget(tabCtx, listener)
	}
	if err := chromedp.Run(tabCtx, setup...); err != nil {
		closeTab()
		return nil, nil, fmt.Errorf("opening tab: %w", err)
	}
	return tabCtx, closeTab, nil
}

// Close terminates the browser process if one is running.
func (b *Browser) Close() {
	b.mu.Lock()
	b.closed = true
	l := b.current
	b.mu.Unlock()

	if l == nil {
		return
	}
	select {
	case <-l.done:
		if l.cancel != nil {
			l.cancel()
		}
	default:
		// run() cancels it once the launch finishes
	}
}
