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

// Package render obtains the observable state of a remote embed page, either
// by driving a shared headless browser or by fetching the raw markup.
package render

import (
	"context"

	"github.com/lucasduport/channel-resolver/pkg/extract"
	"github.com/lucasduport/channel-resolver/pkg/types"
)

// DesktopUserAgent is sent by both renderers.
const DesktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Mode names a rendering strategy.
type Mode string

const (
	ModeBrowser Mode = "browser"
	ModeFetch   Mode = "fetch"
)

// Session is one rendered page. It lives for a single resolution and must be
// closed on every exit path.
type Session interface {
	// Surface snapshots what has been observed so far.
	Surface() types.RenderedSurface
	// Capture returns the request observer's slot, or nil when the session
	// only exposes markup.
	Capture() *extract.Capture
	// HTML returns the current document markup.
	HTML(ctx context.Context) (string, error)
	Close()
}

// Renderer opens a Session for an embed page. A *types.NavigationError comes
// back together with a usable Session; any other error leaves Session nil.
type Renderer interface {
	Mode() Mode
	Render(ctx context.Context, sourceURL string) (Session, error)
}
