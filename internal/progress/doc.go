// Package progress carries crawl progress events from workers to pluggable
// sinks. Workers emit through a non-blocking Hub that batches on a background
// goroutine and fans batches out to sinks such as structured logs or
// Prometheus collectors.
package progress
