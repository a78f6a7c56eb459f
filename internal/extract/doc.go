// Package extract finds the links of a parsed HTML document or stylesheet.
//
// Every link carries the site it was read from, so rewriting a link target
// later updates the exact attribute, srcset candidate or CSS token that held
// it. Relative references are resolved against the document base URI, which
// honours <base href>.
//
// Subresources are the references a browser would load to render the page:
// images, media, fonts, stylesheets and frames. Everything else (anchors,
// form actions, scripts, plugin content) is returned as a navigational link
// of type none so its target can still be made absolute.
package extract
