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

package utils

import (
	"net/url"
	"strings"
)

// sensitiveParams are query keys whose values are short-lived credentials on
// upstream manifest URLs.
var sensitiveParams = []string{"token", "auth", "key", "sig", "signature", "hdnts", "hdnea", "expires", "md5", "st", "e"}

// MaskString masks sensitive parts of strings for logging.
func MaskString(s string) string {
	if len(s) <= 8 {
		if len(s) <= 0 {
			return "[empty]"
		}
		return s[:1] + "******"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// MaskURL masks token-like query values of a manifest URL so logs never carry
// a replayable stream address. Unparseable input is masked as a whole.
func MaskURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return MaskString(urlStr)
	}
	if u.RawQuery == "" {
		return urlStr
	}

	q := u.Query()
	for key, values := range q {
		if !isSensitiveParam(key) {
			continue
		}
		for i := range values {
			values[i] = MaskString(values[i])
		}
		q[key] = values
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func isSensitiveParam(key string) bool {
	key = strings.ToLower(key)
	for _, p := range sensitiveParams {
		if key == p {
			return true
		}
	}
	return false
}

// Truncate shortens s to at most n bytes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
