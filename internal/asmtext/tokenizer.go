package asmtext

import (
	"strings"
	"unicode"
)

// Known token types.
const (
	tokEOL = iota
	tokIdent
	tokNumber
	tokPunct
)

type token struct {
	typ   int
	pos   Position
	value string
}

// tokenizer splits one line of source into tokens.
type tokenizer struct {
	line []rune
	pos  Position
	i    int
}

func newTokenizer(line string, pos Position) *tokenizer {
	return &tokenizer{line: []rune(line), pos: pos}
}

func (t *tokenizer) position() Position {
	p := t.pos
	p.Col += t.i
	return p
}

// next returns the next token, or tokEOL at the end of the line or at the beginning of a comment.
func (t *tokenizer) next() (token, error) {
	for t.i < len(t.line) && unicode.IsSpace(t.line[t.i]) {
		t.i++
	}
	pos := t.position()
	if t.i >= len(t.line) || t.line[t.i] == ';' || t.line[t.i] == '#' {
		t.i = len(t.line)
		return token{typ: tokEOL, pos: pos}, nil
	}

	start := t.i
	r := t.line[t.i]
	switch {
	case isIdentRune(r) && !unicode.IsDigit(r):
		for t.i < len(t.line) && isIdentRune(t.line[t.i]) {
			t.i++
		}
		return token{typ: tokIdent, pos: pos, value: string(t.line[start:t.i])}, nil
	case unicode.IsDigit(r):
		for t.i < len(t.line) && isIdentRune(t.line[t.i]) {
			t.i++
		}
		return token{typ: tokNumber, pos: pos, value: string(t.line[start:t.i])}, nil
	case strings.ContainsRune("[]+-*,()", r):
		t.i++
		return token{typ: tokPunct, pos: pos, value: string(r)}, nil
	}
	return token{}, newError(pos, "unexpected character %q", r)
}

// tokens returns all the tokens of the line, the last one being tokEOL.
func (t *tokenizer) tokens() ([]token, error) {
	var ret []token
	for {
		tok, err := t.next()
		if err != nil {
			return nil, err
		}
		ret = append(ret, tok)
		if tok.typ == tokEOL {
			return ret, nil
		}
	}
}

func isIdentRune(r rune) bool {
	return r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
