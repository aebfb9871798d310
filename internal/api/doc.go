// Package api hosts the operator HTTP surface of a running crawl:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/crawl/status for a snapshot of the current crawl.
package api
