package resource

import (
	"context"
	"errors"
	"fmt"

	"github.com/nao1215/freezedry/internal/link"
)

var (
	// ErrCyclicReference is returned when a document or stylesheet would
	// embed one of its own ancestors.
	ErrCyclicReference = errors.New("cyclic reference")

	// ErrMaxDepth is returned when resources are nested deeper than allowed.
	ErrMaxDepth = errors.New("maximum nesting depth exceeded")

	// ErrNotDocument is returned by document operations on other kinds.
	ErrNotDocument = errors.New("resource is not a document")

	// ErrNotStyleSheet is returned by stylesheet operations on other kinds.
	ErrNotStyleSheet = errors.New("resource is not a stylesheet")

	// ErrMissingFetcher is returned when IO has no Fetcher.
	ErrMissingFetcher = errors.New("io: no fetcher configured")

	// ErrMissingResolver is returned when IO has no Resolver.
	ErrMissingResolver = errors.New("io: no resolver configured")
)

// FetchError reports a failed download, including cancellation.
type FetchError struct {
	URL string
	// StatusCode is set when the server answered with an error status.
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError reports content that could not be parsed.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// UnsupportedLinkTypeError reports a link whose type the linking resource
// cannot host. It is fatal for the capture.
type UnsupportedLinkTypeError struct {
	ResourceType string
	LinkType     link.SubresourceType
}

func (e *UnsupportedLinkTypeError) Error() string {
	return fmt.Sprintf("Resource %q can not link to resource of type %q", e.ResourceType, e.LinkType)
}

// LinkResolutionError reports a link that could not be resolved, either
// because its URL is malformed or because the resolution policy failed.
type LinkResolutionError struct {
	URL string
	Err error
}

func (e *LinkResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.URL, e.Err)
}

func (e *LinkResolutionError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err, returned while working under ctx, must abort
// the whole capture rather than leave a single link unresolved.
//
// Unsupported link types and cancellation are fatal, as is any error once
// ctx itself is done. A deadline that expired for one request only is not.
func IsFatal(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	var unsupported *UnsupportedLinkTypeError
	if errors.As(err, &unsupported) {
		return true
	}
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}
