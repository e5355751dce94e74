// Package main provides the entry point for the oercrawl CLI.
//
// oercrawl crawls the OER Commons catalog facet by facet, extracts one
// record per listed resource, cleans and scores it, and writes the accepted
// records to a JSON feed and a local SQLite database.
//
// Usage:
//
//	oercrawl crawl
//	oercrawl crawl --facet mathematics --facet law --max-pages 3
//	oercrawl list --category science
//
// See --help for all available options.
package main

func main() {
	Execute()
}
