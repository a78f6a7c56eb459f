package static

import (
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultContentSecurityPolicy blocks every network load while allowing
// inlined images, media, styles, fonts and frames.
var DefaultContentSecurityPolicy = strings.Join([]string{
	"default-src 'none'",
	"img-src data:",
	"media-src data:",
	"style-src data: 'unsafe-inline'",
	"font-src data:",
	"frame-src data:",
}, "; ")

// SetMementoTags records where and when doc was captured, as a
// <meta http-equiv="Memento-Datetime"> followed by <link rel="original">
// at the start of the head.
//
// A document that already carries a Memento-Datetime is a previous archive;
// its provenance is left as it is and false is returned.
func SetMementoTags(doc *html.Node, originalURL string, datetime time.Time) bool {
	d := goquery.NewDocumentFromNode(doc)
	if httpEquiv(d, "memento-datetime").Length() > 0 {
		return false
	}

	meta := element(atom.Meta,
		html.Attribute{Key: "http-equiv", Val: "Memento-Datetime"},
		html.Attribute{Key: "content", Val: datetime.UTC().Format(http.TimeFormat)},
	)
	original := element(atom.Link,
		html.Attribute{Key: "rel", Val: "original"},
		html.Attribute{Key: "href", Val: originalURL},
	)
	goquery.NewDocumentFromNode(Head(doc)).Selection.PrependNodes(meta, original)
	return true
}

// SetContentSecurityPolicy replaces every content policy declared in doc
// with a single <meta http-equiv="Content-Security-Policy"> holding policy.
func SetContentSecurityPolicy(doc *html.Node, policy string) {
	d := goquery.NewDocumentFromNode(doc)
	httpEquiv(d, "content-security-policy").Remove()

	meta := element(atom.Meta,
		html.Attribute{Key: "http-equiv", Val: "Content-Security-Policy"},
		html.Attribute{Key: "content", Val: policy},
	)
	goquery.NewDocumentFromNode(Head(doc)).Selection.PrependNodes(meta)
}

func httpEquiv(d *goquery.Document, name string) *goquery.Selection {
	return d.Find("meta[http-equiv]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("http-equiv")
		return strings.EqualFold(strings.TrimSpace(v), name)
	})
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     a.String(),
		DataAtom: a,
		Attr:     attrs,
	}
}
