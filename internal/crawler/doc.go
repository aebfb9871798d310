// Package crawler defines the contracts shared by the crawl engine: the
// frontier and visited-set resources, the fetch/extract/resolve
// collaborators, and the per-URL error taxonomy.
package crawler
