package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/nao1215/freezedry/internal/extract"
	"github.com/nao1215/freezedry/internal/link"
	"github.com/nao1215/freezedry/internal/memo"
	"github.com/nao1215/freezedry/internal/model"
)

// Kind is the closed set of resource variants.
type Kind int

const (
	// Generic resources are images, audio, video and fonts.
	Generic Kind = iota
	// StyleSheet resources are CSS files.
	StyleSheet
	// Document resources are HTML documents, the root included.
	Document
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Generic:
		return "generic"
	case StyleSheet:
		return "stylesheet"
	case Document:
		return "document"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Memo field names.
const (
	fieldDownload   = "download"
	fieldText       = "text"
	fieldBlob       = "blob"
	fieldLinks      = "links"
	fieldResources  = "resources"
	fieldDocument   = "document"
	fieldStyleSheet = "stylesheet"
	fieldSerialized = "serialized"
	fieldSource     = "source"
)

// Resource is one node of the capture graph.
type Resource struct {
	id    uint64
	kind  Kind
	link  *link.Link
	depth int

	parent *Resource
	io     *IO
	opts   *Options
	arena  *memo.Arena

	// frame locates a document inside the live root document.
	frame *Frame
}

// Blob is binary content with its media type.
type Blob struct {
	Type string
	Data []byte
}

// NewRoot returns the root document resource of a capture.
func NewRoot(opts Options, io IO) (*Resource, error) {
	if io.Fetcher == nil {
		return nil, ErrMissingFetcher
	}
	if io.Resolver == nil {
		return nil, ErrMissingResolver
	}
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, &LinkResolutionError{URL: opts.URL, Err: err}
	}
	if !u.IsAbs() {
		return nil, &LinkResolutionError{URL: opts.URL, Err: fmt.Errorf("url is not absolute")}
	}
	if io.Extractor == nil {
		io.Extractor = extract.DOM{}
	}
	if io.Logger == nil {
		io.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}

	arena := memo.NewArena()
	return &Resource{
		id:    arena.NewID(),
		kind:  Document,
		link:  link.Top(opts.URL),
		io:    &io,
		opts:  &opts,
		arena: arena,
		frame: &Frame{URL: opts.URL},
	}, nil
}

// newChild wraps l as a child of r.
func (r *Resource) newChild(l *link.Link, kind Kind) *Resource {
	child := &Resource{
		id:     r.arena.NewID(),
		kind:   kind,
		link:   l,
		depth:  r.depth + 1,
		parent: r,
		io:     r.io,
		opts:   r.opts,
		arena:  r.arena,
	}
	if kind == Document {
		child.frame = r.childFrame(l)
	}
	return child
}

// ID returns the resource's identity within its capture.
func (r *Resource) ID() uint64 { return r.id }

// Kind returns the resource variant.
func (r *Resource) Kind() Kind { return r.kind }

// Link returns the link this resource is referenced by.
func (r *Resource) Link() *link.Link { return r.link }

// Parent returns the linking resource, nil for the root.
func (r *Resource) Parent() *Resource { return r.parent }

// Depth returns the distance from the root.
func (r *Resource) Depth() int { return r.depth }

// URL returns the absolute URL of the resource.
func (r *Resource) URL() string { return r.link.AbsoluteTarget() }

// IsRoot reports whether r is the document being archived.
func (r *Resource) IsRoot() bool { return r.link.Type == link.TypeTop }

// Options returns the capture options.
func (r *Resource) Options() Options { return *r.opts }

// ResourceType names the resource for messages and reports.
func (r *Resource) ResourceType() string {
	switch r.kind {
	case Document:
		return "document"
	case StyleSheet:
		return "style"
	}
	if r.link.Type == "" {
		return "unknown"
	}
	return r.link.Type.String()
}

func (r *Resource) key(field string) memo.Key {
	return memo.Key{ID: r.id, Field: field}
}

func (r *Resource) logger() *slog.Logger {
	return r.io.Logger.With(slog.String("url", r.URL()), slog.String("type", r.ResourceType()))
}

// Download fetches the resource. The fetch is issued at most once; every
// caller shares its response or its error.
func (r *Resource) Download(ctx context.Context) (*model.Response, error) {
	return memo.Do(ctx, r.arena, r.key(fieldDownload), r.fetch)
}

func (r *Resource) fetch(ctx context.Context) (*model.Response, error) {
	fetch := func(ctx context.Context) (*model.Response, error) {
		return r.fetchOnce(ctx)
	}
	if r.io.Shared != nil {
		return r.io.Shared.download(ctx, r.fetchURL(), fetch)
	}
	return fetch(ctx)
}

func (r *Resource) fetchOnce(ctx context.Context) (*model.Response, error) {
	target := r.fetchURL()
	r.logger().Debug("fetching resource")

	resp, err := r.io.Fetcher.Fetch(ctx, target)
	if err != nil {
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			return nil, err
		}
		return nil, &FetchError{URL: target, Err: err}
	}
	if resp.StatusCode >= 400 {
		return nil, &FetchError{URL: target, StatusCode: resp.StatusCode}
	}
	if resp.URL == "" {
		resp.URL = target
	}
	return resp, nil
}

// fetchURL is the URL without its fragment, which never reaches a server.
func (r *Resource) fetchURL() string {
	before, _, _ := strings.Cut(r.URL(), "#")
	return before
}

// DownloadText returns the downloaded content decoded to UTF-8.
func (r *Resource) DownloadText(ctx context.Context) (string, error) {
	return memo.Do(ctx, r.arena, r.key(fieldText), func(ctx context.Context) (string, error) {
		resp, err := r.Download(ctx)
		if err != nil {
			return "", err
		}
		return decodeText(resp, r.kind)
	})
}

// DownloadBlob returns the downloaded content as is.
func (r *Resource) DownloadBlob(ctx context.Context) (Blob, error) {
	return memo.Do(ctx, r.arena, r.key(fieldBlob), func(ctx context.Context) (Blob, error) {
		resp, err := r.Download(ctx)
		if err != nil {
			return Blob{}, err
		}
		return Blob{Type: blobType(resp), Data: resp.Body}, nil
	})
}

// Text returns the freeze-dried text of the resource. Generic resources
// return their content; documents and stylesheets rewrite their children
// first and return the rewritten serialization.
func (r *Resource) Text(ctx context.Context) (string, error) {
	switch r.kind {
	case Document:
		return r.serialize(ctx, r.serializeDocument)
	case StyleSheet:
		return r.serialize(ctx, r.serializeStyleSheet)
	default:
		return r.DownloadText(ctx)
	}
}

// Blob returns the freeze-dried content with its media type.
func (r *Resource) Blob(ctx context.Context) (Blob, error) {
	switch r.kind {
	case Document:
		text, err := r.Text(ctx)
		if err != nil {
			return Blob{}, err
		}
		return Blob{Type: "text/html", Data: []byte(text)}, nil
	case StyleSheet:
		text, err := r.Text(ctx)
		if err != nil {
			return Blob{}, err
		}
		return Blob{Type: "text/css", Data: []byte(text)}, nil
	default:
		return r.DownloadBlob(ctx)
	}
}

func (r *Resource) serialize(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	if err := r.checkNesting(); err != nil {
		return "", err
	}
	return memo.Do(ctx, r.arena, r.key(fieldSerialized), fn)
}

// checkNesting rejects documents and stylesheets that embed an ancestor or
// nest too deeply.
func (r *Resource) checkNesting() error {
	if r.depth > r.opts.MaxDepth {
		return fmt.Errorf("%s: %w", r.URL(), ErrMaxDepth)
	}
	self := r.fetchURL()
	for p := r.parent; p != nil; p = p.parent {
		if p.kind == r.kind && p.fetchURL() == self {
			return fmt.Errorf("%s: %w", r.URL(), ErrCyclicReference)
		}
	}
	return nil
}

// Links returns the links of the resource, canonicalized against its URL.
// Generic resources have none.
func (r *Resource) Links(ctx context.Context) ([]*link.Link, error) {
	switch r.kind {
	case Document:
		return memo.Do(ctx, r.arena, r.key(fieldLinks), r.documentLinks)
	case StyleSheet:
		sheet, err := r.StyleSheet(ctx)
		if err != nil {
			return nil, err
		}
		return sheet.Links, nil
	default:
		return nil, nil
	}
}

// Resources returns the immediate children of the resource in link order.
// The set is built once. A link whose type the resource cannot host fails
// with UnsupportedLinkTypeError.
func (r *Resource) Resources(ctx context.Context) ([]*Resource, error) {
	if r.kind == Generic {
		return nil, nil
	}
	return memo.Do(ctx, r.arena, r.key(fieldResources), func(ctx context.Context) ([]*Resource, error) {
		links, err := r.Links(ctx)
		if err != nil {
			return nil, err
		}
		children := make([]*Resource, 0, len(links))
		for _, l := range links {
			if r.kind == Document && !l.IsSubresource {
				continue
			}
			kind, ok := r.childKind(l.Type)
			if !ok {
				return nil, &UnsupportedLinkTypeError{ResourceType: r.ResourceType(), LinkType: l.Type}
			}
			children = append(children, r.newChild(l, kind))
		}
		return children, nil
	})
}

// childKind maps a link type to the variant that hosts it under r.
func (r *Resource) childKind(t link.SubresourceType) (Kind, bool) {
	switch t {
	case link.TypeImage, link.TypeAudio, link.TypeVideo, link.TypeFont:
		return Generic, true
	case link.TypeStyle:
		return StyleSheet, true
	case link.TypeDocument:
		return Document, r.kind == Document
	default:
		return 0, false
	}
}

// ReplaceURL points the resource's own link at target. The parent calls it
// once the resource has been resolved.
func (r *Resource) ReplaceURL(target string) {
	link.Replace(r.link, target, link.CommitOptions{KeepOriginalAttributes: r.opts.KeepOriginalAttributes})
}
