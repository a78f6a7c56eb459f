package resource

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/net/html"

	"github.com/nao1215/freezedry/internal/extract"
	"github.com/nao1215/freezedry/internal/memo"
	"github.com/nao1215/freezedry/internal/model"
)

// Fetcher downloads a URL. Implementations follow redirects and prefer
// cached responses. A response with an error status may be returned as is;
// the resource turns it into a FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*model.Response, error)
}

// Resolver decides the URL a child resource is referenced by from its
// parent: a data URL, a path to a sibling file, or the absolute URL.
type Resolver interface {
	ResolveURL(ctx context.Context, r *Resource) (string, error)
}

// Frame identifies a frame of the live document a capture started from.
// Path holds, from the outermost frame inward, the dompath of each frame
// element within its own document.
type Frame struct {
	URL  string
	Path [][]int
}

// FrameSource gives access to the live documents of embedded frames.
// FrameDocument returns nil and no error when the frame is not reachable,
// for example because it is cross-origin.
type FrameSource interface {
	FrameDocument(ctx context.Context, frame Frame) (*html.Node, error)
}

// Observer is told how every child resource was resolved.
type Observer interface {
	Resolved(r *Resource, target string)
	Failed(r *Resource, err error)
}

// IO bundles the capabilities a capture needs. Fetcher and Resolver are
// required; the rest is optional.
type IO struct {
	Fetcher  Fetcher
	Resolver Resolver

	// Frames is consulted for frame documents when the capture started
	// from a live document. Without it frames are always downloaded.
	Frames FrameSource

	// Extractor finds document links. Defaults to extract.DOM.
	Extractor extract.Extractor

	// Shared, when set, deduplicates downloads by URL across resources.
	Shared *Shared

	// Observer, when set, receives per-child outcomes.
	Observer Observer

	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// Metadata is provenance recorded in the root document.
type Metadata struct {
	Time time.Time
}

// Options configures a capture. They are read by the root document only.
type Options struct {
	// URL is the document to archive.
	URL string

	// ContentSecurityPolicy replaces the default policy when not empty.
	ContentSecurityPolicy string

	// Metadata, when set, adds memento tags to the root document.
	Metadata *Metadata

	// KeepOriginalAttributes preserves rewritten attribute values in
	// data-original-* attributes.
	KeepOriginalAttributes bool

	// MaxDepth limits how deep documents and stylesheets nest.
	// Zero means DefaultMaxDepth.
	MaxDepth int

	// Source is the live root document, if the capture starts from one.
	// It is cloned, never modified.
	Source *html.Node
}

// DefaultMaxDepth bounds frame and @import nesting.
const DefaultMaxDepth = 8

// Shared is a URL-keyed download layer shared by all resources of a
// capture. With it, a URL reached through several links is fetched once
// and every resource sees the same outcome.
type Shared struct {
	arena *memo.Arena
}

// NewShared returns an empty download layer.
func NewShared() *Shared {
	return &Shared{arena: memo.NewArena()}
}

func (s *Shared) download(ctx context.Context, url string, fn func(context.Context) (*model.Response, error)) (*model.Response, error) {
	return memo.Do(ctx, s.arena, memo.Key{Field: url}, fn)
}

// Downloads returns the number of distinct URLs requested through s.
func (s *Shared) Downloads() int {
	return s.arena.Len()
}
