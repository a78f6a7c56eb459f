package fetch

import "errors"

var (
	// ErrUnsupportedScheme is returned for URLs that are neither http(s)
	// nor data:.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")

	// ErrBodyTooLarge is returned when a response body exceeds the
	// configured limit.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrOnionWithoutProxy is returned when an onion service is requested
	// and no proxy is configured.
	ErrOnionWithoutProxy = errors.New("onion services require --tor or --proxy")

	// ErrTooManyRedirects is returned when a redirect chain is longer than
	// the fetcher follows.
	ErrTooManyRedirects = errors.New("too many redirects")
)
