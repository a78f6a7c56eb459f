package model

import (
	"encoding/hex"
	"mime"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Response is a fetched resource body together with the HTTP metadata the
// archiver needs to decode it. The body is held in memory as a whole.
type Response struct {
	// URL is the final URL after redirects.
	URL string `json:"url"`

	// StatusCode is the HTTP status code. Zero for data: URLs.
	StatusCode int `json:"status_code"`

	// Headers contains the response headers, keys canonicalized.
	Headers map[string][]string `json:"headers,omitempty"`

	// ContentType is the raw Content-Type header value.
	ContentType string `json:"content_type"`

	// Body is the response body, limited by the fetcher's body size limit.
	Body []byte `json:"-"`

	// FromCache is true when the response was served by a response cache.
	FromCache bool `json:"from_cache"`
}

// MediaType returns the lower-cased media type without parameters.
func (r *Response) MediaType() string {
	mt, _, err := mime.ParseMediaType(r.ContentType)
	if err != nil {
		mt, _, _ = strings.Cut(r.ContentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// Charset returns the charset parameter of the Content-Type, if any.
func (r *Response) Charset() string {
	_, params, err := mime.ParseMediaType(r.ContentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}

// Digest returns the hex SHA3-256 digest of the body.
func (r *Response) Digest() string {
	return Digest(r.Body)
}

// Digest returns the hex SHA3-256 digest of data.
func Digest(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
