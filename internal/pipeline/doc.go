// Package pipeline turns raw catalog entries into normalized records.
//
// Every RawRecord passes through the same ordered stages: validate, clean,
// enrich, categorize and score. A stage either mutates the in-flight Item
// or rejects it with a reason; a rejected item never reaches a sink.
//
// The Runner drains the crawler's record stream with a bounded number of
// workers and hands accepted records to one or more sinks.
package pipeline
