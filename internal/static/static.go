package static

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// urlAttributes may carry javascript: URLs.
var urlAttributes = []string{"href", "src", "action", "formaction", "data", "poster", "background"}

// MakeStatic removes scripts and dynamic behaviour from doc in place.
//
//   - <script> elements and <meta http-equiv="refresh"> are removed
//   - on* event handler attributes are removed
//   - javascript: URLs are replaced by "javascript:" with no body
//   - <noscript> elements are replaced by their children
//   - the declared character set is normalized to UTF-8
//
// The <noscript> unwrapping assumes doc was parsed with scripting disabled,
// so that noscript content is element content rather than raw text.
func MakeStatic(doc *html.Node) {
	d := goquery.NewDocumentFromNode(doc)

	d.Find("script").Remove()
	d.Find("meta").FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("http-equiv")
		return strings.EqualFold(strings.TrimSpace(v), "refresh")
	}).Remove()

	d.Find("*").Each(func(_ int, s *goquery.Selection) {
		n := s.Get(0)
		kept := n.Attr[:0]
		for _, a := range n.Attr {
			if strings.HasPrefix(strings.ToLower(a.Key), "on") {
				continue
			}
			kept = append(kept, a)
		}
		n.Attr = kept

		for _, key := range urlAttributes {
			if v, ok := s.Attr(key); ok && isJavaScriptURL(v) {
				s.SetAttr(key, "javascript:")
			}
		}
	})

	d.Find("noscript").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithSelection(s.Contents())
	})

	normalizeCharset(d)
}

func isJavaScriptURL(v string) bool {
	v = strings.Map(func(r rune) rune {
		if r <= ' ' {
			return -1
		}
		return r
	}, v)
	return strings.HasPrefix(strings.ToLower(v), "javascript:")
}

// normalizeCharset rewrites the charset declarations of d to UTF-8, which is
// the encoding the snapshot is serialized in.
func normalizeCharset(d *goquery.Document) {
	d.Find("meta[charset]").SetAttr("charset", "utf-8")
	d.Find("meta").Each(func(_ int, s *goquery.Selection) {
		equiv, _ := s.Attr("http-equiv")
		if strings.EqualFold(strings.TrimSpace(equiv), "content-type") {
			s.SetAttr("content", "text/html; charset=utf-8")
		}
	})
}

// Head returns the <head> element of doc, creating it when missing.
func Head(doc *html.Node) *html.Node {
	d := goquery.NewDocumentFromNode(doc)
	if head := d.Find("head").First(); head.Length() > 0 {
		return head.Get(0)
	}
	head := &html.Node{Type: html.ElementNode, Data: "head", DataAtom: atom.Head}
	root := d.Find("html").First()
	if root.Length() == 0 {
		doc.AppendChild(head)
		return head
	}
	htmlNode := root.Get(0)
	htmlNode.InsertBefore(head, htmlNode.FirstChild)
	return head
}

// Render serializes doc, including its doctype.
func Render(doc *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}
