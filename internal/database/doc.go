// Package database stores crawled resources in SQLite.
//
// Resources are keyed by (resource_id, context_id). A record without a
// context is stored with context_id '' so the pair is a real uniqueness
// key and re-crawling an entry updates its row instead of adding one.
//
// The database also keeps crawl bookkeeping: one crawl_runs row per run
// and one crawl_pages row per fetched index page.
package database
