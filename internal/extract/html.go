package extract

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/freezedry/internal/css"
	"github.com/nao1215/freezedry/internal/link"
)

// Extractor returns the links of a parsed document.
type Extractor interface {
	Extract(doc *html.Node, docURL string) ([]*link.Link, error)
}

// DOM is the default Extractor for HTML documents.
type DOM struct{}

var _ Extractor = DOM{}

// attrRule describes one URL-bearing attribute.
type attrRule struct {
	attr   string
	srcset bool
	// kind decides the subresource type for a given element.
	kind func(n *html.Node) (link.SubresourceType, bool)
}

func fixed(t link.SubresourceType, subresource bool) func(*html.Node) (link.SubresourceType, bool) {
	return func(*html.Node) (link.SubresourceType, bool) { return t, subresource }
}

var (
	image      = fixed(link.TypeImage, true)
	navigation = fixed(link.TypeNone, false)
)

// rules lists the URL attributes per element name.
var rules = map[string][]attrRule{
	"a":          {{attr: "href", kind: navigation}},
	"area":       {{attr: "href", kind: navigation}},
	"audio":      {{attr: "src", kind: fixed(link.TypeAudio, true)}},
	"blockquote": {{attr: "cite", kind: navigation}},
	"body":       {{attr: "background", kind: image}},
	"button":     {{attr: "formaction", kind: navigation}},
	"del":        {{attr: "cite", kind: navigation}},
	"embed":      {{attr: "src", kind: navigation}},
	"form":       {{attr: "action", kind: navigation}},
	"frame":      {{attr: "src", kind: fixed(link.TypeDocument, true)}},
	"iframe":     {{attr: "src", kind: fixed(link.TypeDocument, true)}},
	"img": {
		{attr: "src", kind: image},
		{attr: "srcset", srcset: true, kind: image},
		{attr: "longdesc", kind: navigation},
	},
	"input":  {{attr: "src", kind: inputKind}, {attr: "formaction", kind: navigation}},
	"ins":    {{attr: "cite", kind: navigation}},
	"link":   {{attr: "href", kind: linkKind}},
	"object": {{attr: "data", kind: navigation}},
	"q":      {{attr: "cite", kind: navigation}},
	"script": {{attr: "src", kind: navigation}},
	"source": {
		{attr: "src", kind: sourceKind},
		{attr: "srcset", srcset: true, kind: image},
	},
	"table": {{attr: "background", kind: image}},
	"td":    {{attr: "background", kind: image}},
	"th":    {{attr: "background", kind: image}},
	"track": {{attr: "src", kind: navigation}},
	"video": {
		{attr: "src", kind: fixed(link.TypeVideo, true)},
		{attr: "poster", kind: image},
	},
}

func linkKind(n *html.Node) (link.SubresourceType, bool) {
	rel, _ := link.Attr(n, "rel")
	for _, r := range strings.Fields(strings.ToLower(rel)) {
		switch r {
		case "stylesheet":
			return link.TypeStyle, true
		case "icon", "apple-touch-icon", "apple-touch-icon-precomposed":
			return link.TypeImage, true
		}
	}
	return link.TypeNone, false
}

func inputKind(n *html.Node) (link.SubresourceType, bool) {
	if t, _ := link.Attr(n, "type"); strings.EqualFold(t, "image") {
		return link.TypeImage, true
	}
	return link.TypeNone, false
}

func sourceKind(n *html.Node) (link.SubresourceType, bool) {
	if p := n.Parent; p != nil && p.Type == html.ElementNode {
		switch p.Data {
		case "audio":
			return link.TypeAudio, true
		case "video":
			return link.TypeVideo, true
		}
	}
	return link.TypeImage, true
}

// Extract implements Extractor. Links are returned in document order.
func (DOM) Extract(doc *html.Node, docURL string) ([]*link.Link, error) {
	base := BaseURI(doc, docURL)
	var links []*link.Link

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			links = append(links, elementLinks(n, base)...)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return links, nil
}

func elementLinks(n *html.Node, base string) []*link.Link {
	var links []*link.Link
	for _, rule := range rules[n.Data] {
		value, ok := link.Attr(n, rule.attr)
		if !ok {
			continue
		}
		typ, sub := rule.kind(n)
		from := &link.Source{Element: n, Attribute: rule.attr}
		if rule.srcset {
			links = append(links, srcsetLinks(n, rule.attr, value, base, typ, from)...)
			continue
		}
		if l := newLink(value, base, typ, sub, from, link.AttrSite{Node: n, Key: rule.attr}); l != nil {
			links = append(links, l)
		}
	}

	if value, ok := link.Attr(n, "style"); ok {
		links = append(links, inlineStyleLinks(n, value, base)...)
	}
	if n.Data == "style" {
		links = append(links, styleElementLinks(n, base)...)
	}
	return links
}

// newLink builds a link for a raw reference, or returns nil for references
// that are empty or cannot be parsed as URLs.
func newLink(value, base string, typ link.SubresourceType, sub bool, from *link.Source, site link.Site) *link.Link {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	absolute, err := resolve(base, value)
	if err != nil {
		return nil
	}
	if sub && !fetchable(absolute) {
		sub = false
	}
	return link.New(value, absolute, typ, sub, from, site)
}

func srcsetLinks(n *html.Node, key, value, base string, typ link.SubresourceType, from *link.Source) []*link.Link {
	set := &srcset{node: n, key: key, candidates: parseSrcset(value)}
	var links []*link.Link
	for i, c := range set.candidates {
		if l := newLink(c.url, base, typ, true, from, srcsetSite{set: set, index: i}); l != nil {
			links = append(links, l)
		}
	}
	return links
}

func inlineStyleLinks(n *html.Node, value, base string) []*link.Link {
	sheet, err := css.Parse(value)
	if err != nil {
		return nil
	}
	sheet.OnChange = func(text string) { link.SetAttr(n, "style", text) }
	return styleLinks(sheet, base, &link.Source{Element: n, Attribute: "style"})
}

func styleElementLinks(n *html.Node, base string) []*link.Link {
	text := n.FirstChild
	if text == nil || text.Type != html.TextNode || text.NextSibling != nil {
		return nil
	}
	sheet, err := css.Parse(text.Data)
	if err != nil {
		return nil
	}
	sheet.OnChange = func(s string) { text.Data = s }
	return styleLinks(sheet, base, &link.Source{Element: n})
}

// StyleSheetLinks returns the links of a stylesheet resolved against base.
// @import targets are stylesheets, url() inside @font-face is a font and
// every other url() is an image.
func StyleSheetLinks(sheet *css.Stylesheet, base string) []*link.Link {
	return styleLinks(sheet, base, nil)
}

func styleLinks(sheet *css.Stylesheet, base string, from *link.Source) []*link.Link {
	var links []*link.Link
	for _, ref := range sheet.Refs() {
		typ := link.TypeImage
		switch {
		case ref.Kind == css.ImportRef:
			typ = link.TypeStyle
		case ref.InFontFace:
			typ = link.TypeFont
		}
		if l := newLink(ref.URL(), base, typ, true, from, ref); l != nil {
			links = append(links, l)
		}
	}
	return links
}
