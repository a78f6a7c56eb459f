// Package resource implements the freeze-dry resource graph.
//
// A Resource is one fetchable node of the graph. It is one of three kinds:
// a generic resource (image, audio, video, font) whose content is used as
// is, a stylesheet whose url() and @import references are rewritten, or a
// document whose subresources are rewritten before the markup is made
// static and serialized.
//
// # Evaluation
//
// Every derived value of a resource (response, decoded text, links, child
// resources, captured document, serialization) is computed at most once and
// stored in a memo.Arena shared by the whole capture. Concurrent callers of
// the same value wait for the first caller's outcome, failures included.
//
// # Rewriting
//
// Before a document or stylesheet serializes itself it resolves every child
// concurrently through the Resolver, then commits all new targets in one
// step. A child that fails to resolve keeps its absolute URL; only
// cancellation and an unsupported link type abort the capture.
//
// # Identity
//
// One Resource is created per (parent, link) edge. The same URL reached
// through two links is fetched twice unless a Shared download layer is
// configured in IO.
package resource
