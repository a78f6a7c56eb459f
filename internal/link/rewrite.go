package link

import "golang.org/x/net/html"

// originalPrefix prefixes the attribute that keeps a pre-archive value.
const originalPrefix = "data-original-"

// Rewrites is a pending mapping from links to new targets.
// Links are applied in the order they were first added.
type Rewrites struct {
	order   []*Link
	targets map[*Link]string
}

// NewRewrites returns an empty mapping.
func NewRewrites() *Rewrites {
	return &Rewrites{targets: make(map[*Link]string)}
}

// Set records target for l, replacing any earlier value.
func (r *Rewrites) Set(l *Link, target string) {
	if _, ok := r.targets[l]; !ok {
		r.order = append(r.order, l)
	}
	r.targets[l] = target
}

// Target returns the pending target of l.
func (r *Rewrites) Target(l *Link) (string, bool) {
	target, ok := r.targets[l]
	return target, ok
}

// Len returns the number of pending rewrites.
func (r *Rewrites) Len() int {
	return len(r.order)
}

// Apply writes every pending target to its link site.
func (r *Rewrites) Apply() {
	for _, l := range r.order {
		l.setTarget(r.targets[l])
	}
}

// CommitOptions controls how replacement targets are committed.
type CommitOptions struct {
	// KeepOriginalAttributes copies the value of a rewritten attribute into
	// data-original-<attribute> the first time that attribute is touched.
	KeepOriginalAttributes bool
}

// Commit writes every pending target as a replacement URL.
//
// Unlike Apply, Commit treats the new targets as relocated content: any
// integrity attribute on the source element is removed and, if requested,
// the original attribute value is preserved. An existing data-original-*
// attribute is never overwritten, so several links sharing one attribute
// (a srcset) and repeated archiving of the same markup keep the first value.
func (r *Rewrites) Commit(opts CommitOptions) {
	for _, l := range r.order {
		Replace(l, r.targets[l], opts)
	}
}

// Replace commits a single replacement target for l.
func Replace(l *Link, target string, opts CommitOptions) {
	from := l.From
	if opts.KeepOriginalAttributes && from != nil && from.Element != nil && from.Attribute != "" {
		note := originalPrefix + from.Attribute
		if !HasAttr(from.Element, note) {
			original, _ := Attr(from.Element, from.Attribute)
			SetAttr(from.Element, note, original)
		}
	}

	l.setTarget(target)

	if from != nil && from.Element != nil {
		RemoveAttr(from.Element, "integrity")
	}
}

// Attr returns the value of the attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttr reports whether n carries the attribute key.
func HasAttr(n *html.Node, key string) bool {
	_, ok := Attr(n, key)
	return ok
}

// SetAttr sets the attribute key on n, appending it when missing.
func SetAttr(n *html.Node, key, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: value})
}

// RemoveAttr deletes every attribute key from n.
func RemoveAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		kept = append(kept, a)
	}
	n.Attr = kept
}

// AttrSite stores a link target in a whole attribute value.
type AttrSite struct {
	Node *html.Node
	Key  string
}

// Get implements Site.
func (s AttrSite) Get() string {
	v, _ := Attr(s.Node, s.Key)
	return v
}

// Set implements Site.
func (s AttrSite) Set(value string) {
	SetAttr(s.Node, s.Key, value)
}
