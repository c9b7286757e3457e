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

package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lucasduport/channel-resolver/pkg/types"
)

// playerFilePattern matches a player configuration "file" key followed by a
// quoted URL ending in .m3u8, optionally with a query string. JSON-escaped
// slashes are accepted and unescaped afterwards.
var playerFilePattern = regexp.MustCompile(`(?i)["']?\bfile["']?\s*[:=]\s*["'](https?:[^"'\s]+?\.m3u8(?:\?[^"'\s]*)?)["']`)

const maxReportedIframes = 5

// FromMarkup returns the manifest URL of the first player configuration in
// body. Only the first match is used; pages embedding several players report
// the first one.
func FromMarkup(sourceURL, body string) (string, error) {
	m := playerFilePattern.FindStringSubmatch(body)
	if m == nil {
		return "", describeMarkup(sourceURL, body)
	}
	return strings.ReplaceAll(m[1], `\/`, `/`), nil
}

// describeMarkup builds an ExtractionError that lists the page's iframes and
// script count, which usually shows where the player moved to.
func describeMarkup(sourceURL, body string) *types.ExtractionError {
	extErr := &types.ExtractionError{URL: sourceURL}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return extErr
	}

	base, _ := url.Parse(sourceURL)
	doc.Find("iframe[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		src = strings.TrimSpace(src)
		if src == "" {
			return true
		}
		if base != nil {
			if ref, err := url.Parse(src); err == nil {
				src = base.ResolveReference(ref).String()
			}
		}
		extErr.Iframes = append(extErr.Iframes, src)
		return len(extErr.Iframes) < maxReportedIframes
	})
	extErr.Scripts = doc.Find("script").Length()
	return extErr
}
