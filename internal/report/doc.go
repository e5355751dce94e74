// Package report writes crawl output: the streaming JSON feed of accepted
// records, the Markdown run summary and the resource table printed by the
// list command.
package report
