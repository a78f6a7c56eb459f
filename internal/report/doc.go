// Package report renders capture summaries.
//
// SimpleWriter prints a human-readable summary for the terminal,
// JSONWriter emits the capture model for tooling and MarkdownWriter
// produces a GitHub-flavored document with a resource breakdown chart.
// All implement Writer, so they can be combined with MultiWriter.
package report
