// Package fetch downloads the resources of a capture.
//
// A Fetcher issues GET requests with per-site headers, bounds concurrent
// requests with a weighted semaphore, collapses identical in-flight
// requests and consults an optional response cache before going to the
// network. data: URLs are decoded locally, so archived documents can be
// archived again.
//
// Onion services are only fetched when the Fetcher routes through a proxy.
package fetch
