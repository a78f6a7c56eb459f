package extract

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/freezedry/internal/link"
)

// BaseURI returns the URL relative references of doc resolve against.
// It is the first <base href> resolved against docURL, or docURL itself.
func BaseURI(doc *html.Node, docURL string) string {
	base := findFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "base" && link.HasAttr(n, "href")
	})
	if base == nil {
		return docURL
	}
	href, _ := link.Attr(base, "href")
	resolved, err := resolve(docURL, href)
	if err != nil {
		return docURL
	}
	return resolved
}

// resolve returns ref made absolute against base.
func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

// fetchable reports whether an absolute URL can be retrieved as a
// subresource.
func fetchable(absolute string) bool {
	scheme, _, ok := strings.Cut(absolute, ":")
	if !ok {
		return false
	}
	switch strings.ToLower(scheme) {
	case "http", "https", "data":
		return true
	default:
		return false
	}
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}
