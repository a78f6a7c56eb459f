// Package cache provides a Redis-backed response cache.
//
// It lets several freezedry processes, for example a batch split across
// machines, share fetched subresources. Responses are stored as one hash per
// request URL with a TTL.
package cache
