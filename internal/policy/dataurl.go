package policy

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/url"
	"strings"
)

// defaultDataType is the media type of a data: URL that names none.
const defaultDataType = "text/plain;charset=US-ASCII"

// DataURL encodes data as a base64 data: URL.
//
// Text types without a charset parameter are labelled UTF-8, the encoding
// every serialized document and stylesheet is produced in.
func DataURL(mediaType string, data []byte) string {
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	if mt, params, err := mime.ParseMediaType(mediaType); err == nil && strings.HasPrefix(mt, "text/") {
		if _, ok := params["charset"]; !ok {
			mediaType += ";charset=utf-8"
		}
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL returns the media type and payload of a data: URL.
func DecodeDataURL(raw string) (string, []byte, error) {
	rest, ok := cutPrefixFold(raw, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing data: scheme", ErrInvalidDataURL)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing comma", ErrInvalidDataURL)
	}
	if i := strings.IndexByte(payload, '#'); i >= 0 {
		payload = payload[:i]
	}

	header = strings.TrimSpace(header)
	isBase64 := false
	if h, ok := cutSuffixFold(header, ";base64"); ok {
		header, isBase64 = strings.TrimSpace(h), true
	}
	mediaType := header
	if mediaType == "" || strings.HasPrefix(mediaType, ";") {
		mediaType = defaultDataType
	}

	if !isBase64 {
		data, err := url.PathUnescape(payload)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %w", ErrInvalidDataURL, err)
		}
		return mediaType, []byte(data), nil
	}

	unescaped, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidDataURL, err)
	}
	clean := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' {
			return -1
		}
		return r
	}, unescaped)
	data, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(clean, "="))
		if err != nil {
			return "", nil, fmt.Errorf("%w: %w", ErrInvalidDataURL, err)
		}
	}
	return mediaType, data, nil
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

func cutSuffixFold(s, suffix string) (string, bool) {
	if len(s) < len(suffix) || !strings.EqualFold(s[len(s)-len(suffix):], suffix) {
		return s, false
	}
	return s[:len(s)-len(suffix)], true
}
