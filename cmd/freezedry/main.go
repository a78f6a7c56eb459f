// Package main provides the entry point for the freezedry CLI.
//
// freezedry saves web pages as self-contained, static HTML documents. Every
// subresource (stylesheets, images, fonts, frames) is downloaded and
// embedded, and scripts are removed, so the archive renders offline.
//
// Usage:
//
//	freezedry archive https://example.com/ -o example.html
//	freezedry history https://example.com/
//
// See --help for all available options.
package main

func main() {
	Execute()
}
