// Package metrics collects fetch and capture statistics with Prometheus.
//
// The archiver is a batch tool, not a server, so nothing is scraped. The
// registry is written once at the end of a run in the text exposition
// format, ready for the node_exporter textfile collector.
package metrics
