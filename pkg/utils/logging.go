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
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Config holds the logging configuration
var Config = struct {
	DebugLoggingEnabled bool
	LogLevel            LogLevel
	LogToFile           bool
	LogFilePath         string
	logFile             *os.File
}{
	DebugLoggingEnabled: false,
	LogLevel:            LevelInfo,
	LogToFile:           false,
}

// LogLevel represents logging levels
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func init() {
	Config.DebugLoggingEnabled = os.Getenv("DEBUG_LOGGING") == "true"
	Config.LogLevel = ParseLogLevel(os.Getenv("LOG_LEVEL"), Config.DebugLoggingEnabled)

	if logFilePath := os.Getenv("LOG_FILE"); logFilePath != "" {
		if err := SetLogFile(logFilePath); err != nil {
			log.Printf("Error opening log file: %v", err)
		}
	}

	InfoLog("Logging initialized - Debug: %v, Level: %s",
		Config.DebugLoggingEnabled, levelToString(Config.LogLevel))
}

// ParseLogLevel maps a LOG_LEVEL value to a LogLevel. Unknown values fall back
// to debug when debug logging is enabled and info otherwise.
func ParseLogLevel(value string, debug bool) LogLevel {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	}
	if debug {
		return LevelDebug
	}
	return LevelInfo
}

// SetDebug toggles debug logging at runtime (used by the --debug flag).
func SetDebug(enabled bool) {
	Config.DebugLoggingEnabled = enabled
	if enabled {
		Config.LogLevel = LevelDebug
	} else if Config.LogLevel == LevelDebug {
		Config.LogLevel = LevelInfo
	}
}

// SetLogFile redirects log output to the given file, creating its directory.
func SetLogFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if Config.logFile != nil {
		Config.logFile.Close()
	}
	Config.LogToFile = true
	Config.LogFilePath = path
	Config.logFile = file
	log.SetOutput(file)
	return nil
}

// Close closes any open log files
func Close() {
	if Config.logFile != nil {
		Config.logFile.Close()
		Config.logFile = nil
	}
}

// InfoLog logs an info message
func InfoLog(format string, v ...interface{}) {
	if Config.LogLevel <= LevelInfo {
		logWithCaller(LevelInfo, format, v...)
	}
}

// WarnLog logs a warning message
func WarnLog(format string, v ...interface{}) {
	if Config.LogLevel <= LevelWarn {
		logWithCaller(LevelWarn, format, v...)
	}
}

// DebugLog logs a debug message if debug logging is enabled
func DebugLog(format string, v ...interface{}) {
	if Config.DebugLoggingEnabled {
		logWithCaller(LevelDebug, format, v...)
	}
}

// ErrorLog logs an error message
func ErrorLog(format string, v ...interface{}) {
	if Config.LogLevel <= LevelError {
		logWithCaller(LevelError, format, v...)
	}
}

// logWithCaller logs a message with caller information
func logWithCaller(level LogLevel, format string, v ...interface{}) {
	_, file, line, ok := runtime.Caller(2)
	caller := "unknown"
	if ok {
		caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	message := fmt.Sprintf(format, v...)

	log.Println(fmt.Sprintf("%s [%s] (%s) %s",
		timestamp, levelToString(level), caller, message))
}

// levelToString converts a LogLevel to its string representation
func levelToString(level LogLevel) string {
	switch level {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
