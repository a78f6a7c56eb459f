package resource

import (
	"bytes"
	"net/http"
	"regexp"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"

	"github.com/nao1215/freezedry/internal/model"
)

// charsetRule matches a leading @charset rule of a stylesheet.
var charsetRule = regexp.MustCompile(`^@charset "([^"]+)";`)

// decodeText converts a response body to UTF-8.
//
// Markup is sniffed the way browsers do (BOM, Content-Type, <meta>).
// Other text uses the BOM, the Content-Type charset, then a leading
// @charset rule, and falls back to UTF-8.
func decodeText(resp *model.Response, kind Kind) (string, error) {
	body := resp.Body
	if kind == Document {
		enc, _, _ := charset.DetermineEncoding(body, resp.ContentType)
		return decodeWith(enc, body)
	}

	if enc, _ := charset.Lookup(bomLabel(body)); enc != nil {
		return decodeWith(enc, body)
	}
	label := resp.Charset()
	if label == "" {
		if m := charsetRule.FindSubmatch(body); m != nil {
			label = string(m[1])
		}
	}
	if label != "" {
		if enc, err := htmlindex.Get(label); err == nil {
			return decodeWith(enc, body)
		}
	}
	if utf8.Valid(body) {
		return string(body), nil
	}
	return decodeWith(unicode.UTF8, body)
}

func bomLabel(body []byte) string {
	switch {
	case bytes.HasPrefix(body, []byte{0xEF, 0xBB, 0xBF}):
		return "utf-8"
	case bytes.HasPrefix(body, []byte{0xFE, 0xFF}):
		return "utf-16be"
	case bytes.HasPrefix(body, []byte{0xFF, 0xFE}):
		return "utf-16le"
	default:
		return ""
	}
}

func decodeWith(enc encoding.Encoding, body []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// blobType returns the media type a binary resource is stored with.
func blobType(resp *model.Response) string {
	if resp.ContentType != "" {
		return resp.ContentType
	}
	return http.DetectContentType(resp.Body)
}
