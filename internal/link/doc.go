// Package link models references between archived resources.
//
// A Link is read from a site (an HTML attribute, one candidate of a srcset,
// or a url() token of a stylesheet) and written back to the same site when
// its target changes. Writes never happen implicitly: callers collect the
// new targets in a Rewrites value and apply them in one explicit step.
//
// # Canonical targets
//
// Resolve decides the canonical form of a link target relative to the
// resource that contains it:
//
//   - a fragment pointing into the containing resource becomes "#fragment"
//   - everything else becomes the absolute URL
//
// Applying the canonical targets before relocating a resource keeps
// same-page anchors working and makes every other reference unambiguous.
package link
