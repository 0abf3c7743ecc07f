// Package monitoring holds the redirectable diagnostic logger used by
// the feed plumbing. The daemon leaves it on log.Printf; tests mute it
// or capture it.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to
// log.Printf and may be replaced with SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op
// logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
