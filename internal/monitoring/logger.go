// Package monitoring carries the module-wide diagnostic logger. Lock update
// and predict paths never log (they report through the events collector);
// logging happens at the boundaries: wire decoding, session storage, replay
// progress.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// may be replaced with SetLogger; embedding applications redirect it into
// their own sink, tests usually mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
