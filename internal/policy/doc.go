// Package policy decides how a captured subresource is referenced from the
// resource that links it.
//
// Three modes are supported:
//   - inline: the subresource becomes a data URL, recursively, so the root
//     document is a single self-contained file.
//   - directory: the subresource is written to a content-addressed file next
//     to the root document and referenced by a relative path.
//   - absolute: the subresource is not captured and keeps its absolute URL.
//
// Per-host rules can override the mode and list URL patterns that are always
// left absolute.
package policy
