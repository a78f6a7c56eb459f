// Package browser captures documents from a headless Chrome through
// chromedp.
//
// A page loaded in the browser has run its scripts, so its DOM can differ
// from the downloaded markup. Page snapshots that DOM as the live source of
// a capture and serves the documents of same-origin frames on request.
package browser
