// Package archive turns one URL into one self-contained document.
//
// An Archiver wires the resource graph to a fetcher, a resolution policy and
// optionally a live browser page, serializes the root and fills the capture
// summary: resource counts per type, failures, size and digest.
package archive
