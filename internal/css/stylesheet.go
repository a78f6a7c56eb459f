// Package css holds a lossless, token-level model of a stylesheet.
//
// The model only understands what the archiver needs: url() references,
// @import targets and whether a reference sits inside an @font-face block.
// Every other token is carried through untouched, so String returns the
// exact source until a reference is rewritten.
package css

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gorilla/css/scanner"
)

// ErrUnbalancedBlock is returned for a stylesheet whose braces do not match.
var ErrUnbalancedBlock = errors.New("unbalanced block")

// RefKind is the syntactic form of a reference.
type RefKind int

const (
	// URLRef is a url(...) token.
	URLRef RefKind = iota
	// ImportRef is the string or url() target of an @import rule.
	ImportRef
)

// Stylesheet is a tokenized stylesheet.
type Stylesheet struct {
	tokens []*scanner.Token
	refs   []*Ref

	// OnChange, when set, receives the serialized sheet after every rewrite.
	OnChange func(text string)
}

// Ref is one reference found in a stylesheet. It implements link.Site.
type Ref struct {
	sheet *Stylesheet
	tok   *scanner.Token

	// Kind is the syntactic form of the reference.
	Kind RefKind

	// InFontFace reports whether the reference is inside an @font-face block.
	InFontFace bool
}

// ParseError describes a stylesheet that could not be tokenized.
type ParseError struct {
	Line   int
	Column int
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("css: %d:%d: %v", e.Line, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse tokenizes src.
// It fails on tokenizer errors such as an unclosed comment and on
// unbalanced curly braces.
func Parse(src string) (*Stylesheet, error) {
	sheet := &Stylesheet{}
	s := scanner.New(src)

	// pending holds tokens re-scanned from the tail of an over-long url().
	var pending []*scanner.Token
	next := func() *scanner.Token {
		if len(pending) > 0 {
			tok := pending[0]
			pending = pending[1:]
			return tok
		}
		return s.Next()
	}

	var (
		blocks      []bool // font-face state per open block
		pendingFont bool
		atImport    bool
		lastTok     *scanner.Token
	)
	for {
		tok := next()
		if tok.Type == scanner.TokenURI {
			if end := uriEnd(tok.Value); end < len(tok.Value) {
				pending = append(rescan(tok.Value[end:], tok), pending...)
				tok.Value = tok.Value[:end]
			}
		}
		switch tok.Type {
		case scanner.TokenEOF:
			if len(blocks) != 0 {
				line, col := position(lastTok)
				return nil, &ParseError{Line: line, Column: col, Err: ErrUnbalancedBlock}
			}
			return sheet, nil
		case scanner.TokenError:
			return nil, &ParseError{Line: tok.Line, Column: tok.Column, Err: errors.New(tok.Value)}
		}
		sheet.tokens = append(sheet.tokens, tok)
		lastTok = tok

		inFont := len(blocks) > 0 && blocks[len(blocks)-1]

		switch tok.Type {
		case scanner.TokenS, scanner.TokenComment:
			continue
		case scanner.TokenAtKeyword:
			switch strings.ToLower(tok.Value) {
			case "@font-face":
				pendingFont = true
			case "@import":
				atImport = true
				continue
			}
		case scanner.TokenURI:
			kind := URLRef
			if atImport {
				kind = ImportRef
			}
			sheet.refs = append(sheet.refs, &Ref{sheet: sheet, tok: tok, Kind: kind, InFontFace: inFont})
		case scanner.TokenString:
			if atImport {
				sheet.refs = append(sheet.refs, &Ref{sheet: sheet, tok: tok, Kind: ImportRef})
			}
		case scanner.TokenChar:
			switch tok.Value {
			case "{":
				blocks = append(blocks, pendingFont || inFont)
				pendingFont = false
			case "}":
				if len(blocks) == 0 {
					return nil, &ParseError{Line: tok.Line, Column: tok.Column, Err: ErrUnbalancedBlock}
				}
				blocks = blocks[:len(blocks)-1]
			case ";":
				pendingFont = false
			}
		}
		atImport = false
	}
}

// rescan tokenizes the tail cut from a url() token.
func rescan(rest string, at *scanner.Token) []*scanner.Token {
	var toks []*scanner.Token
	s := scanner.New(rest)
	for {
		tok := s.Next()
		if tok.Type == scanner.TokenEOF {
			return toks
		}
		tok.Line += at.Line - 1
		toks = append(toks, tok)
		if tok.Type == scanner.TokenError {
			return toks
		}
	}
}

func position(tok *scanner.Token) (int, int) {
	if tok == nil {
		return 1, 1
	}
	return tok.Line, tok.Column
}

// Refs returns the references in source order.
func (s *Stylesheet) Refs() []*Ref {
	return s.refs
}

// String serializes the stylesheet.
func (s *Stylesheet) String() string {
	var b strings.Builder
	for _, tok := range s.tokens {
		b.WriteString(tok.Value)
	}
	return b.String()
}

// URL returns the unquoted reference target.
func (r *Ref) URL() string {
	if r.tok.Type == scanner.TokenString {
		return unquote(r.tok.Value)
	}
	return uriValue(r.tok.Value)
}

// Get implements link.Site.
func (r *Ref) Get() string {
	return r.URL()
}

// Set implements link.Site.
// The token keeps its syntactic form: a string stays a string and a url()
// stays a url().
func (r *Ref) Set(value string) {
	if r.tok.Type == scanner.TokenString {
		r.tok.Value = quote(value)
	} else {
		r.tok.Value = "url(" + quote(value) + ")"
	}
	if r.sheet.OnChange != nil {
		r.sheet.OnChange(r.sheet.String())
	}
}
