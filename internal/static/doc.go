// Package static turns a captured document into a static snapshot.
//
// MakeStatic removes everything that could execute or fetch on its own.
// SetMementoTags and SetContentSecurityPolicy add the provenance markers
// and the content policy to the head of the archived root document.
package static
