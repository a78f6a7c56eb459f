package link

import (
	"fmt"
	"net/url"
	"strings"
)

// Resolve returns the canonical target of l inside the resource at base.
//
// When the absolute target carries a fragment and, with fragments removed,
// equals base, the link points into its own resource and the result is the
// bare fragment. Otherwise the result is the absolute target.
func Resolve(l *Link, base string) (string, error) {
	u, err := url.Parse(l.absoluteTarget)
	if err != nil {
		return "", fmt.Errorf("failed to parse link target %q: %w", l.absoluteTarget, err)
	}
	if u.Fragment != "" && withoutFragment(l.absoluteTarget) == withoutFragment(base) {
		return "#" + u.EscapedFragment(), nil
	}
	return l.absoluteTarget, nil
}

// Canonicalize resolves every link against base and returns the targets as
// pending rewrites. Nothing is written until the rewrites are applied.
func Canonicalize(links []*Link, base string) (*Rewrites, error) {
	rw := NewRewrites()
	for _, l := range links {
		target, err := Resolve(l, base)
		if err != nil {
			return nil, err
		}
		rw.Set(l, target)
	}
	return rw, nil
}

func withoutFragment(raw string) string {
	before, _, _ := strings.Cut(raw, "#")
	return before
}
