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
)

// clickHelper clicks an element, falling back to a dispatched MouseEvent for
// nodes without a click method (SVG icons).
const clickHelper = `const __click = (el) => {
  if (typeof el.click === "function") { el.click(); return; }
  el.dispatchEvent(new MouseEvent("click", {bubbles: true, cancelable: true, view: window}));
};`

// document runs the interaction scripts against one DOM document.
type document struct {
	url    string
	eval   func(ctx context.Context, script string, out interface{}) error
	offset func(ctx context.Context) (float64, float64, error) // nil for the top document
}

type locateResult struct {
	Found bool    `json:"found"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

func (d *document) URL() string { return d.url }

func (d *document) ClickFirst(ctx context.Context, selector string) (bool, error) {
	var clicked bool
	err := d.eval(ctx, clickFirstScript(selector), &clicked)
	return clicked, err
}

func (d *document) ClickAll(ctx context.Context, selector string) (int, error) {
	var n int
	err := d.eval(ctx, clickAllScript(selector), &n)
	return n, err
}

func (d *document) PlayVideos(ctx context.Context) (int, error) {
	var n int
	err := d.eval(ctx, playVideosScript, &n)
	return n, err
}

func (d *document) Locate(ctx context.Context, selector string) (float64, float64, bool, error) {
	var res locateResult
	if err := d.eval(ctx, locateScript(selector), &res); err != nil {
		return 0, 0, false, err
	}
	if !res.Found {
		return 0, 0, false, nil
	}
	if d.offset == nil {
		return res.X, res.Y, true, nil
	}
	ox, oy, err := d.offset(ctx)
	if err != nil {
		return 0, 0, false, err
	}
	return ox + res.X, oy + res.Y, true, nil
}

func clickFirstScript(selector string) string {
	return `(() => {` + clickHelper + `
  const el = document.querySelector(` + jsString(selector) + `);
  if (!el) return false;
  __click(el);
  return true;
})()`
}

func clickAllScript(selector string) string {
	return `(() => {` + clickHelper + `
  let n = 0;
  for (const el of document.querySelectorAll(` + jsString(selector) + `)) {
    try { __click(el); n++; } catch (e) {}
  }
  return n;
})()`
}

const playVideosScript = `(() => {` + clickHelper + `
  let n = 0;
  for (const v of document.querySelectorAll("video")) {
    try {
      __click(v);
      v.muted = true;
      const p = v.play();
      if (p && p.catch) p.catch(() => {});
      n++;
    } catch (e) {}
  }
  return n;
})()`

func locateScript(selector string) string {
	return `(() => {
  const el = document.querySelector(` + jsString(selector) + `);
  if (!el) return {found: false, x: 0, y: 0};
  const r = el.getBoundingClientRect();
  return {found: true, x: r.left + r.width / 2, y: r.top + r.height / 2};
})()`
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
