// Package model defines the data structures shared by the oercrawl packages.
//
// This package contains the following main types:
//   - Facet: One subject or keyword partition of the catalog, crawled independently
//   - RawRecord: The un-normalized output of the field extractor for one catalog entry
//   - Record: The normalized and enriched record handed to storage
//   - Difficulty: The derived difficulty tier of a record
//
// The models are serializable to JSON for the output feed and are mapped to
// columns by the database package.
package model
