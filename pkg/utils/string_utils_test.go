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
	"strings"
	"testing"
)

func TestMaskURL(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		want      string
		notInside string
	}{
		{
			name: "no query is untouched",
			in:   "https://cdn.example/live/master.m3u8",
			want: "https://cdn.example/live/master.m3u8",
		},
		{
			name:      "token is masked",
			in:        "https://cdn.example/live/master.m3u8?token=abcdefghijkl&q=1",
			want:      "https://cdn.example/live/master.m3u8?q=1&token=abcd...ijkl",
			notInside: "abcdefghijkl",
		},
		{
			name:      "short signature is masked",
			in:        "https://cdn.example/a.m3u8?sig=xyz",
			want:      "https://cdn.example/a.m3u8?sig=x%2A%2A%2A%2A%2A%2A",
			notInside: "xyz",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaskURL(tt.in)
			if got != tt.want {
				t.Errorf("MaskURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if tt.notInside != "" && strings.Contains(got, tt.notInside) {
				t.Errorf("MaskURL(%q) leaked %q", tt.in, tt.notInside)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		value string
		debug bool
		want  LogLevel
	}{
		{"debug", false, LevelDebug},
		{"WARN", false, LevelWarn},
		{"warning", false, LevelWarn},
		{"error", true, LevelError},
		{"", true, LevelDebug},
		{"bogus", false, LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.value, tt.debug); got != tt.want {
			t.Errorf("ParseLogLevel(%q, %v) = %v, want %v", tt.value, tt.debug, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdef", 3); got != "abc..." {
		t.Errorf("Truncate() = %q", got)
	}
	if got := Truncate("abc", 10); got != "abc" {
		t.Errorf("Truncate() = %q", got)
	}
}
