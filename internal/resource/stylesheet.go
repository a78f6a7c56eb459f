package resource

import (
	"context"
	"log/slog"

	"github.com/nao1215/freezedry/internal/css"
	"github.com/nao1215/freezedry/internal/extract"
	"github.com/nao1215/freezedry/internal/link"
	"github.com/nao1215/freezedry/internal/memo"
)

// StyleSheetData is a downloaded stylesheet.
type StyleSheetData struct {
	// Sheet is nil when the source could not be parsed.
	Sheet *css.Stylesheet

	// Links are the canonicalized references of Sheet. Empty when Sheet
	// is nil.
	Links []*link.Link

	// Source is the decoded text as downloaded.
	Source string

	// URL is the URL references resolve against: the final response URL,
	// or the link target when the source could not be parsed.
	URL string
}

// StyleSheet downloads and parses a stylesheet resource. A parse failure is
// not an error: the result then carries the raw source and no links.
func (r *Resource) StyleSheet(ctx context.Context) (*StyleSheetData, error) {
	if r.kind != StyleSheet {
		return nil, ErrNotStyleSheet
	}
	return memo.Do(ctx, r.arena, r.key(fieldStyleSheet), func(ctx context.Context) (*StyleSheetData, error) {
		resp, err := r.Download(ctx)
		if err != nil {
			return nil, err
		}
		source, err := r.DownloadText(ctx)
		if err != nil {
			return nil, err
		}

		sheet, err := css.Parse(source)
		if err != nil {
			r.logger().Debug("stylesheet left unparsed", slog.String("error", err.Error()))
			return &StyleSheetData{Source: source, URL: r.URL()}, nil
		}

		base := resp.URL
		if base == "" {
			base = r.URL()
		}
		links := extract.StyleSheetLinks(sheet, base)
		rw, err := link.Canonicalize(links, r.URL())
		if err != nil {
			return nil, &LinkResolutionError{URL: r.URL(), Err: err}
		}
		rw.Apply()
		return &StyleSheetData{Sheet: sheet, Links: links, Source: source, URL: base}, nil
	})
}

// serializeStyleSheet rewrites the children and re-emits the sheet, or the
// raw source when it could not be parsed.
func (r *Resource) serializeStyleSheet(ctx context.Context) (string, error) {
	if err := r.rewriteChildren(ctx); err != nil {
		return "", err
	}
	data, err := r.StyleSheet(ctx)
	if err != nil {
		return "", err
	}
	if data.Sheet == nil {
		return data.Source, nil
	}
	return data.Sheet.String(), nil
}
