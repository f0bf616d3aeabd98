// Package livereload implements the browser notification side of the
// live-reload pipeline: a WebSocket hub speaking the LiveReload greeting,
// a registry of connected browser sessions, and a broadcaster that turns
// changed asset paths into refresh messages.
//
// The Registry is the only state shared between goroutines. It is created
// by the caller and injected into both the Hub (which adds and removes
// sessions as browsers connect and disconnect) and the Broadcaster (which
// iterates over a snapshot of it for every change).
package livereload
