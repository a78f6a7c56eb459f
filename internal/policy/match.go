package policy

import (
	"path"
	"strings"
)

// MatchPattern reports whether a URL path matches an ignore pattern.
//
// "/dir/*" matches everything below /dir, "*.ext" matches by extension and
// anything else is a path.Match glob. A pattern without a slash is also
// tried against the last path segment.
func MatchPattern(pattern, urlPath string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/") {
			return true
		}
	}
	if ext, ok := strings.CutPrefix(pattern, "*."); ok && !strings.ContainsAny(ext, "*?[/") {
		if strings.HasSuffix(urlPath, "."+ext) {
			return true
		}
	}

	if matched, err := path.Match(pattern, urlPath); err == nil && matched {
		return true
	}
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := path.Match(pattern, path.Base(urlPath))
		return err == nil && matched
	}
	return false
}
