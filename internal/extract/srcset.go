package extract

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/freezedry/internal/link"
)

// candidate is one image candidate of a srcset attribute.
type candidate struct {
	url        string
	descriptor string
}

// srcset is a parsed srcset attribute shared by the links of its candidates.
type srcset struct {
	node       *html.Node
	key        string
	candidates []candidate
}

// parseSrcset splits a srcset value into candidates. A URL runs up to the
// next whitespace, so commas inside it (as in data URLs) are kept; trailing
// commas end the candidate.
func parseSrcset(value string) []candidate {
	var out []candidate
	s := value
	for {
		s = strings.TrimLeft(s, " \t\n\r\f,")
		if s == "" {
			return out
		}
		end := strings.IndexAny(s, " \t\n\r\f")
		if end < 0 {
			end = len(s)
		}
		rawURL := s[:end]
		s = s[end:]

		if trimmed := strings.TrimRight(rawURL, ","); trimmed != rawURL {
			out = append(out, candidate{url: trimmed})
			continue
		}

		// Descriptors run to the next comma outside parentheses.
		depth := 0
		stop := len(s)
		for i := 0; i < len(s); i++ {
			switch s[i] {
			case '(':
				depth++
			case ')':
				if depth > 0 {
					depth--
				}
			case ',':
				if depth == 0 {
					stop = i
				}
			}
			if stop != len(s) {
				break
			}
		}
		out = append(out, candidate{url: rawURL, descriptor: strings.TrimSpace(s[:stop])})
		s = s[stop:]
	}
}

func (s *srcset) String() string {
	parts := make([]string, len(s.candidates))
	for i, c := range s.candidates {
		if c.descriptor == "" {
			parts[i] = c.url
		} else {
			parts[i] = c.url + " " + c.descriptor
		}
	}
	return strings.Join(parts, ", ")
}

// srcsetSite stores a link target in one candidate of a srcset.
type srcsetSite struct {
	set   *srcset
	index int
}

var _ link.Site = srcsetSite{}

func (s srcsetSite) Get() string {
	return s.set.candidates[s.index].url
}

func (s srcsetSite) Set(value string) {
	s.set.candidates[s.index].url = value
	link.SetAttr(s.set.node, s.set.key, s.set.String())
}
