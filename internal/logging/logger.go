// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.

package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	clog "github.com/charmbracelet/log"
)

// L is the package-level logger. Components that want structured key/value
// output log through it directly; the printf helpers cover the rest.
var L = clog.NewWithOptions(os.Stderr, clog.Options{ReportTimestamp: true, TimeFormat: "15:04:05"})

// Setup applies the configured level and output format to L.
// An empty level keeps the current one.
func Setup(level string, json bool) error {
	if level != "" {
		lvl, err := clog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		L.SetLevel(lvl)
	}
	if json {
		L.SetFormatter(clog.JSONFormatter)
	} else {
		L.SetFormatter(clog.TextFormatter)
	}
	return nil
}

// SetOutput redirects L, mainly for tests.
func SetOutput(w io.Writer) {
	L.SetOutput(w)
}

// Debugf logs a debug-level formatted message.
func Debugf(format string, v ...interface{}) {
	L.Debug(fmt.Sprintf(format, v...))
}

// Infof logs an info-level formatted message.
func Infof(format string, v ...interface{}) {
	L.Info(fmt.Sprintf(format, v...))
}

// Warnf logs a warning-level formatted message.
func Warnf(format string, v ...interface{}) {
	L.Warn(fmt.Sprintf(format, v...))
}

// Errorf logs an error-level formatted message.
func Errorf(format string, v ...interface{}) {
	L.Error(fmt.Sprintf(format, v...))
}
