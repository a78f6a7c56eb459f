package link

import "golang.org/x/net/html"

// SubresourceType tells what kind of resource a link points at.
//
// The type is a string so that extractors can report kinds the archiver does
// not know how to host. Those links are rejected when a resource builds its
// children instead of being dropped silently.
type SubresourceType string

// Known subresource types.
const (
	TypeImage    SubresourceType = "image"
	TypeAudio    SubresourceType = "audio"
	TypeVideo    SubresourceType = "video"
	TypeFont     SubresourceType = "font"
	TypeStyle    SubresourceType = "style"
	TypeDocument SubresourceType = "document"
	// TypeTop is the synthetic link of the document being archived.
	TypeTop SubresourceType = "top"
	// TypeNone marks navigational links such as <a href>.
	TypeNone SubresourceType = "none"
)

// String implements fmt.Stringer.
func (t SubresourceType) String() string {
	return string(t)
}

// Site is the place a link target is stored.
// Set must leave the site holding exactly the given value.
type Site interface {
	Get() string
	Set(value string)
}

// Source is the element and attribute a link was extracted from.
// Attribute is empty when the link lives in element content, e.g. a url()
// inside a <style> element.
type Source struct {
	Element   *html.Node
	Attribute string
}

// Link is a reference from one resource to another.
type Link struct {
	target         string
	absoluteTarget string

	// Type is the kind of resource the link points at.
	Type SubresourceType

	// IsSubresource reports whether the target must be embedded in the
	// archive rather than merely referenced.
	IsSubresource bool

	// From is nil for synthetic links and for links found in stylesheets.
	From *Source

	site Site
}

// New returns a link currently holding target and pointing at absolute.
// site may be nil, in which case target changes are only kept on the link.
func New(target, absolute string, typ SubresourceType, isSubresource bool, from *Source, site Site) *Link {
	return &Link{
		target:         target,
		absoluteTarget: absolute,
		Type:           typ,
		IsSubresource:  isSubresource,
		From:           from,
		site:           site,
	}
}

// Top returns the synthetic link of the document being archived.
func Top(url string) *Link {
	return New(url, url, TypeTop, true, nil, nil)
}

// Target returns the value currently written at the link site.
func (l *Link) Target() string {
	return l.target
}

// AbsoluteTarget returns the resolved URL computed at extraction time.
func (l *Link) AbsoluteTarget() string {
	return l.absoluteTarget
}

func (l *Link) setTarget(value string) {
	l.target = value
	if l.site != nil {
		l.site.Set(value)
	}
}
