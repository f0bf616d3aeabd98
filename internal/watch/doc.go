// Package watch provides file-watching capabilities for hoplareload's
// live-reload development workflow. It monitors asset directories for
// changes, either through native filesystem notifications or by polling,
// debounces rapid events into a single ChangeEvent, and hands each event
// to a handler sequentially.
package watch
