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
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// IsDebugEnabled reports whether debug logging is on.
func IsDebugEnabled() bool {
	return Config.DebugLoggingEnabled
}

// SaveDebugSnapshot writes a page body that failed extraction to the debug
// directory (DEBUG_DIR, default $TMPDIR/channel-resolver-debug) so it can be
// inspected later. Nothing is written unless debug logging is enabled.
func SaveDebugSnapshot(label string, body []byte) string {
	if !IsDebugEnabled() {
		return ""
	}

	debugDir := GetEnvOrDefault("DEBUG_DIR", filepath.Join(os.TempDir(), "channel-resolver-debug"))
	if err := os.MkdirAll(debugDir, 0755); err != nil {
		ErrorLog("Failed to create debug directory: %v", err)
		return ""
	}

	clean := unsafeFileChars.ReplaceAllString(label, "_")
	if clean == "" {
		clean = "snapshot"
	}
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(debugDir, fmt.Sprintf("%s_%s.html", clean, timestamp))

	if err := os.WriteFile(filename, body, 0644); err != nil {
		ErrorLog("Failed to save debug snapshot: %v", err)
		return ""
	}
	DebugLog("Saved debug snapshot for %s to %s (%d bytes)", label, filename, len(body))
	return filename
}
