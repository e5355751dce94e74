// Package crawler fetches catalog index pages, parses them into raw
// records and follows each facet's pagination until it ends.
//
// # Components
//
//   - Scheduler: Issues one seed request per facet and walks each facet's
//     "next" links sequentially, with facets running in parallel
//   - Parser: Extracts every entry on a fetched page and finds the next-page link
//   - HTTPFetcher: Performs GET requests with the default header set, optional
//     User-Agent rotation, a body size cap and charset decoding
//   - Politeness: The per-host budget (concurrent requests and minimum delay)
//     plus the global in-flight cap
//   - RobotsChecker: Optional robots.txt admission gate with a per-host cache
//   - RetryPolicy: Pluggable retry around a single fetch
//
// # Failure handling
//
// A failed fetch or an unparseable page is logged and ends that facet's
// walk. Sibling facets and in-flight requests are never affected.
//
// # Usage
//
//	fetcher := crawler.NewHTTPFetcher(http.DefaultClient)
//	parser := crawler.NewParser(extract.New())
//	s := crawler.NewScheduler(fetcher, parser, crawler.WithHostDelay(time.Second))
//	for rec := range s.Run(ctx, model.SubjectAreas()) {
//		...
//	}
package crawler
