package resource

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/freezedry/internal/dompath"
	"github.com/nao1215/freezedry/internal/link"
	"github.com/nao1215/freezedry/internal/memo"
	"github.com/nao1215/freezedry/internal/static"
)

// CaptureDocument returns the document tree of a document resource.
//
// When the document is available live (the root given in Options.Source, or
// a frame reachable through IO.Frames) the live tree is cloned. Otherwise the
// downloaded markup is parsed with scripting disabled, so <noscript> content
// becomes part of the tree. The document is captured once and later
// rewrites apply to that same tree.
func (r *Resource) CaptureDocument(ctx context.Context) (*html.Node, error) {
	if r.kind != Document {
		return nil, ErrNotDocument
	}
	return memo.Do(ctx, r.arena, r.key(fieldDocument), func(ctx context.Context) (*html.Node, error) {
		source, err := r.SourceDocument(ctx)
		if err != nil {
			return nil, err
		}
		if source != nil {
			r.logger().Debug("cloning live document")
			return cloneNode(source), nil
		}

		text, err := r.DownloadText(ctx)
		if err != nil {
			return nil, err
		}
		doc, err := ParseDocument(text)
		if err != nil {
			return nil, &ParseError{URL: r.URL(), Err: err}
		}
		return doc, nil
	})
}

// ParseDocument parses markup the way archived documents are read: with
// scripting disabled, so <noscript> children are elements rather than text.
// Live sources must be parsed with it too.
func ParseDocument(markup string) (*html.Node, error) {
	return html.ParseWithOptions(strings.NewReader(markup), html.ParseOptionEnableScripting(false))
}

// SourceDocument returns the live document this resource corresponds to, or
// nil when there is none.
//
// Only the root and frames of a live root have one. A frame is looked up by
// the path of its element in the parent's captured tree, which is a clone
// of the parent's live document and therefore has the same shape.
func (r *Resource) SourceDocument(ctx context.Context) (*html.Node, error) {
	if r.kind != Document {
		return nil, ErrNotDocument
	}
	if r.parent == nil {
		return r.opts.Source, nil
	}
	if r.io.Frames == nil || r.link.From == nil || r.link.From.Element == nil {
		return nil, nil
	}
	return memo.Do(ctx, r.arena, r.key(fieldSource), func(ctx context.Context) (*html.Node, error) {
		parentSource, err := r.parent.SourceDocument(ctx)
		if err != nil || parentSource == nil {
			return nil, err
		}
		doc, err := r.io.Frames.FrameDocument(ctx, *r.frame)
		if err != nil {
			if IsFatal(ctx, err) {
				return nil, err
			}
			r.logger().Debug("live frame unavailable, downloading instead", slog.String("error", err.Error()))
			return nil, nil
		}
		return doc, nil
	})
}

// Frame returns the location of a document within the live root document.
// It is nil for resources that are not documents.
func (r *Resource) Frame() *Frame {
	return r.frame
}

// childFrame locates the document linked by l from r.
func (r *Resource) childFrame(l *link.Link) *Frame {
	var path [][]int
	if r.frame != nil {
		path = append(path, r.frame.Path...)
	}
	if l.From != nil && l.From.Element != nil {
		path = append(path, dompath.PathFor(l.From.Element))
	}
	return &Frame{URL: l.AbsoluteTarget(), Path: path}
}

// documentLinks extracts the links of the captured tree and writes their
// canonical targets back to the tree.
func (r *Resource) documentLinks(ctx context.Context) ([]*link.Link, error) {
	doc, err := r.CaptureDocument(ctx)
	if err != nil {
		return nil, err
	}
	links, err := r.io.Extractor.Extract(doc, r.URL())
	if err != nil {
		return nil, &ParseError{URL: r.URL(), Err: err}
	}
	rw, err := link.Canonicalize(links, r.URL())
	if err != nil {
		return nil, &LinkResolutionError{URL: r.URL(), Err: err}
	}
	rw.Apply()
	return links, nil
}

// serializeDocument rewrites the children, makes the tree static and, for
// the root only, records provenance and the content policy.
func (r *Resource) serializeDocument(ctx context.Context) (string, error) {
	if err := r.rewriteChildren(ctx); err != nil {
		return "", err
	}
	doc, err := r.CaptureDocument(ctx)
	if err != nil {
		return "", err
	}

	static.MakeStatic(doc)
	if r.IsRoot() {
		r.setMetadata(doc)
	}
	return static.Render(doc)
}

func (r *Resource) setMetadata(doc *html.Node) {
	if md := r.opts.Metadata; md != nil {
		static.SetMementoTags(doc, r.URL(), md.Time)
	}
	csp := r.opts.ContentSecurityPolicy
	if csp == "" {
		csp = static.DefaultContentSecurityPolicy
	}
	static.SetContentSecurityPolicy(doc, csp)
}
