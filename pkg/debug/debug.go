// Package debug provides global debug logging flags for the terminal client
package debug

import "fmt"

// Enabled controls whether debug logging is active
var Enabled bool

// Wire controls whether raw websocket frames are printed.
// Use --debug-wire flag to enable these very verbose logs
var Wire bool

// Log prints a message only if debug mode is enabled
func Log(format string, args ...interface{}) {
	if Enabled {
		fmt.Printf(format, args...)
	}
}

// WireLog prints a message only if wire debug mode is enabled
func WireLog(format string, args ...interface{}) {
	if Wire {
		fmt.Printf(format, args...)
	}
}
