// Command linkcrawler crawls outward from the configured seed URLs, printing
// every visited URL once the frontier is exhausted. While the crawl runs it
// serves health, metrics, and crawl status over HTTP.
//
// Usage:
//
//	linkcrawler -config config.yaml
//
// Every setting may also come from CRAWLER_* environment variables, e.g.
// CRAWLER_CRAWLER_SEEDS or CRAWLER_VISITED_BACKEND.
package main
