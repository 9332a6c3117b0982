// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package monitoring

import "log"

// Logf is the diagnostic logger used by the library packages. It defaults to
// log.Printf and may be replaced by SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Warnf logs a recoverable anomaly, such as a dropped sample.
func Warnf(format string, v ...interface{}) {
	Logf("warning: "+format, v...)
}
