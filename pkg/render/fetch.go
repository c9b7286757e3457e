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
	"io"
	"net/http"
	"time"

	"github.com/lucasduport/channel-resolver/pkg/extract"
	"github.com/lucasduport/channel-resolver/pkg/types"
	"github.com/lucasduport/channel-resolver/pkg/utils"
)

// Fetch rendering defaults.
const (
	DefaultFetchTimeout = 15 * time.Second
	maxPageBytes        = 5 << 20
)

// FetchRenderer retrieves embed pages with a plain HTTP GET. It sees the
// markup only; no scripts run and no sub-requests are observed.
type FetchRenderer struct {
	client    *http.Client
	userAgent string
}

// NewFetchRenderer returns a fetch renderer with the given request timeout.
func NewFetchRenderer(timeout time.Duration) *FetchRenderer {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &FetchRenderer{
		client:    utils.NewHTTPClient(timeout),
		userAgent: utils.GetUserAgent(DesktopUserAgent),
	}
}

// Mode implements Renderer.
func (r *FetchRenderer) Mode() Mode { return ModeFetch }

// Render implements Renderer. Non-2xx answers fail with *types.HTTPStatusError.
func (r *FetchRenderer) Render(ctx context.Context, sourceURL string) (Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", sourceURL, err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", sourceURL, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			utils.WarnLog("Failed to close response body for %s: %v", sourceURL, closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &types.HTTPStatusError{URL: sourceURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", sourceURL, err)
	}
	utils.DebugLog("Fetched %s (%d bytes)", sourceURL, len(body))

	return &fetchSession{markup: string(body)}, nil
}

type fetchSession struct {
	markup string
}

func (s *fetchSession) Surface() types.RenderedSurface {
	return types.RenderedSurface{Markup: s.markup}
}

func (s *fetchSession) Capture() *extract.Capture { return nil }

func (s *fetchSession) HTML(context.Context) (string, error) { return s.markup, nil }

func (s *fetchSession) Close() {}
