// Package sinks implements progress.Sink consumers for job lifecycle events:
// structured logs, Prometheus collectors, the job history repository, and
// settled-job notifications.
package sinks
