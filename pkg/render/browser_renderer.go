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
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/lucasduport/channel-resolver/pkg/extract"
	"github.com/lucasduport/channel-resolver/pkg/types"
	"github.com/lucasduport/channel-resolver/pkg/utils"
)

// Default browser rendering parameters.
const (
	DefaultViewportWidth     = 1366
	DefaultViewportHeight    = 768
	DefaultNavigationTimeout = 45 * time.Second
)

// BrowserRenderer renders embed pages in tabs of a shared Browser.
type BrowserRenderer struct {
	browser           *Browser
	navigationTimeout time.Duration
	userAgent         string
	width, height     int64
	captureLimit      int
}

// NewBrowserRenderer returns a renderer using browser for every page.
func NewBrowserRenderer(browser *Browser, navigationTimeout time.Duration) *BrowserRenderer {
	if navigationTimeout <= 0 {
		navigationTimeout = DefaultNavigationTimeout
	}
	return &BrowserRenderer{
		browser:           browser,
		navigationTimeout: navigationTimeout,
		userAgent:         DesktopUserAgent,
		width:             DefaultViewportWidth,
		height:            DefaultViewportHeight,
		captureLimit:      extract.DefaultCaptureLimit,
	}
}

// Mode implements Renderer.
func (r *BrowserRenderer) Mode() Mode { return ModeBrowser }

// Render opens a tab with the request observer already installed, then
// navigates to sourceURL. A slow navigation is reported as a NavigationError
// alongside the still-open session.
func (r *BrowserRenderer) Render(ctx context.Context, sourceURL string) (Session, error) {
	capture := extract.NewCapture(r.captureLimit)

	tabCtx, closeTab, err := r.browser.NewTab(ctx, observeRequests(capture, sourceURL),
		network.Enable(),
		emulation.SetUserAgentOverride(r.userAgent).WithAcceptLanguage("en-US,en;q=0.9"),
		chromedp.EmulateViewport(r.width, r.height),
	)
	if err != nil {
		return nil, fmt.Errorf("opening page for %s: %w", sourceURL, err)
	}

	sess := &browserSession{
		ctx:     tabCtx,
		close:   closeTab,
		capture: capture,
		width:   float64(r.width),
		height:  float64(r.height),
	}

	navCtx, cancel := context.WithTimeout(tabCtx, r.navigationTimeout)
	defer cancel()

	started := time.Now()
	if err := chromedp.Run(navCtx, chromedp.Navigate(sourceURL)); err != nil {
		return sess, &types.NavigationError{URL: sourceURL, Err: err}
	}
	utils.DebugLog("Navigated to %s in %v (%d requests so far)",
		sourceURL, time.Since(started).Truncate(time.Millisecond), capture.Seen())
	return sess, nil
}

// observeRequests returns the tab listener feeding capture. Only the first
// manifest request becomes the candidate; later ones are logged.
func observeRequests(capture *extract.Capture, sourceURL string) func(ev interface{}) {
	return func(ev interface{}) {
		e, ok := ev.(*network.EventRequestWillBeSent)
		if !ok || e.Request == nil {
			return
		}
		manifest, first := capture.Observe(e.Request.URL)
		switch {
		case first:
			utils.InfoLog("Manifest request captured for %s: %s", sourceURL, utils.MaskURL(e.Request.URL))
		case manifest:
			utils.DebugLog("Ignoring later manifest request for %s: %s", sourceURL, utils.MaskURL(e.Request.URL))
		}
	}
}
