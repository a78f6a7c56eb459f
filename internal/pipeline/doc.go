// Package pipeline runs the steps of a capture in sequence and captures
// several URLs concurrently.
//
// A capture goes through CaptureStep (build the archived document),
// WriteStep (put it on disk or stdout), HistoryStep (record it in the
// archive database) and MetricsStep (update prometheus collectors). Each
// step receives the Job and may modify it. The batch processor gives every
// URL a fresh pipeline and bounds concurrency with errgroup.
package pipeline
