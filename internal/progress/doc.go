// Package progress carries job lifecycle events from the registry to
// pluggable sinks. Events are batched on a background goroutine so emitters
// never block on logging, metrics, persistence, or notifications.
package progress
