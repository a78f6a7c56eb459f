package css

import "strings"

const whitespace = " \t\n\r\f"

// uriValue extracts the target of a url(...) token.
func uriValue(raw string) string {
	open := strings.IndexByte(raw, '(')
	if open < 0 || !strings.HasSuffix(raw, ")") {
		return raw
	}
	inner := strings.Trim(raw[open+1:len(raw)-1], whitespace)
	if len(inner) >= 2 && (inner[0] == '"' || inner[0] == '\'') {
		return unquote(inner)
	}
	return unescape(inner)
}

// uriEnd returns the length of the url(...) token at the start of raw.
// The tokenizer may hand over a token reaching past the first closing
// parenthesis of an unquoted url(), as in minified "url(a)}b{c:url(d)".
func uriEnd(raw string) int {
	open := strings.IndexByte(raw, '(')
	if open < 0 {
		return len(raw)
	}
	i := open + 1
	for i < len(raw) && strings.IndexByte(whitespace, raw[i]) >= 0 {
		i++
	}
	if i < len(raw) && (raw[i] == '"' || raw[i] == '\'') {
		q := raw[i]
		for i++; i < len(raw); i++ {
			if raw[i] == '\\' {
				i++
				continue
			}
			if raw[i] == q {
				break
			}
		}
	}
	for ; i < len(raw); i++ {
		if raw[i] == '\\' {
			i++
			continue
		}
		if raw[i] == ')' {
			return i + 1
		}
	}
	return len(raw)
}

// unquote strips the quotes of a string token and resolves escapes.
func unquote(raw string) string {
	if len(raw) >= 2 && (raw[0] == '"' || raw[0] == '\'') && raw[len(raw)-1] == raw[0] {
		raw = raw[1 : len(raw)-1]
	}
	return unescape(raw)
}

// unescape resolves backslash escapes. Hex escapes are decoded, an escaped
// newline is dropped and any other escaped character stands for itself.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		if s[i] == '\n' {
			continue
		}
		j := i
		var r rune
		for j < len(s) && j-i < 6 && isHex(s[j]) {
			r = r*16 + hexValue(s[j])
			j++
		}
		if j == i {
			b.WriteByte(s[i])
			continue
		}
		b.WriteRune(r)
		if j < len(s) && strings.IndexByte(whitespace, s[j]) >= 0 {
			j++
		}
		i = j - 1
	}
	return b.String()
}

// quote returns value as a double quoted CSS string.
func quote(value string) string {
	var b strings.Builder
	b.Grow(len(value) + 2)
	b.WriteByte('"')
	for _, r := range value {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\a `)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func hexValue(c byte) rune {
	switch {
	case '0' <= c && c <= '9':
		return rune(c - '0')
	case 'a' <= c && c <= 'f':
		return rune(c-'a') + 10
	default:
		return rune(c-'A') + 10
	}
}
