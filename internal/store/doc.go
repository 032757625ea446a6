// Package store declares the repository interfaces used to persist the
// history of tracked jobs.
package store
