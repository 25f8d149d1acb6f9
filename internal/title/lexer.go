package title

import (
	"errors"
	"fmt"
	"io"
	"strconv"
)

type tokenKind int

const (
	tokOperator tokenKind = iota
	tokNumber
	tokString
	tokName
	tokArrayStart
	tokArrayEnd
	tokDictStart
	tokDictEnd
)

type token struct {
	kind tokenKind
	text string
	str  []byte
	num  float64
}

var errUnterminated = errors.New("unterminated token")

// lexer splits a decoded content stream into PDF tokens.
type lexer struct {
	data []byte
	pos  int
}

func isWhite(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case isWhite(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpaceAndComments()
	if l.pos >= len(l.data) {
		return token{}, io.EOF
	}
	c := l.data[l.pos]
	switch {
	case c == '(':
		l.pos++
		s, err := l.literalString()
		return token{kind: tokString, str: s}, err
	case c == '<' && l.peek(1) == '<':
		l.pos += 2
		return token{kind: tokDictStart}, nil
	case c == '>' && l.peek(1) == '>':
		l.pos += 2
		return token{kind: tokDictEnd}, nil
	case c == '<':
		l.pos++
		s, err := l.hexString()
		return token{kind: tokString, str: s}, err
	case c == '[':
		l.pos++
		return token{kind: tokArrayStart}, nil
	case c == ']':
		l.pos++
		return token{kind: tokArrayEnd}, nil
	case c == '/':
		l.pos++
		return token{kind: tokName, text: l.regular()}, nil
	case c == ')' || c == '>' || c == '{' || c == '}':
		return token{}, fmt.Errorf("unexpected %q at offset %d", c, l.pos)
	}
	word := l.regular()
	if num, err := strconv.ParseFloat(word, 64); err == nil {
		return token{kind: tokNumber, num: num, text: word}, nil
	}
	return token{kind: tokOperator, text: word}, nil
}

func (l *lexer) peek(offset int) byte {
	if l.pos+offset < len(l.data) {
		return l.data[l.pos+offset]
	}
	return 0
}

func (l *lexer) regular() string {
	start := l.pos
	for l.pos < len(l.data) && !isWhite(l.data[l.pos]) && !isDelim(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

// literalString reads a (...) string body with the opening paren consumed.
func (l *lexer) literalString() ([]byte, error) {
	var out []byte
	depth := 1
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return out, nil
			}
			out = append(out, c)
		case '\\':
			out = l.escape(out)
		default:
			out = append(out, c)
		}
	}
	return nil, errUnterminated
}

func (l *lexer) escape(out []byte) []byte {
	if l.pos >= len(l.data) {
		return out
	}
	c := l.data[l.pos]
	l.pos++
	switch c {
	case 'n':
		return append(out, '\n')
	case 'r':
		return append(out, '\r')
	case 't':
		return append(out, '\t')
	case 'b':
		return append(out, '\b')
	case 'f':
		return append(out, '\f')
	case '\r':
		if l.pos < len(l.data) && l.data[l.pos] == '\n' {
			l.pos++
		}
		return out
	case '\n':
		return out
	}
	if c >= '0' && c <= '7' {
		v := int(c - '0')
		for i := 0; i < 2 && l.pos < len(l.data); i++ {
			d := l.data[l.pos]
			if d < '0' || d > '7' {
				break
			}
			v = v*8 + int(d-'0')
			l.pos++
		}
		return append(out, byte(v))
	}
	return append(out, c)
}

// hexString reads a <...> string body with the opening bracket consumed.
func (l *lexer) hexString() ([]byte, error) {
	var out []byte
	var hi byte
	half := false
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		if c == '>' {
			if half {
				out = append(out, hi<<4)
			}
			return out, nil
		}
		if isWhite(c) {
			continue
		}
		v, ok := hexValue(c)
		if !ok {
			return nil, fmt.Errorf("invalid hex digit %q", c)
		}
		if half {
			out = append(out, hi<<4|v)
			half = false
		} else {
			hi = v
			half = true
		}
	}
	return nil, errUnterminated
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// skipInlineImage advances past binary image data following an ID operator.
func (l *lexer) skipInlineImage() error {
	if l.pos < len(l.data) && isWhite(l.data[l.pos]) {
		l.pos++
	}
	for i := l.pos; i+1 < len(l.data); i++ {
		if l.data[i] != 'E' || l.data[i+1] != 'I' {
			continue
		}
		before := i == 0 || isWhite(l.data[i-1])
		after := i+2 >= len(l.data) || isWhite(l.data[i+2])
		if before && after {
			l.pos = i + 2
			return nil
		}
	}
	return errors.New("inline image without EI")
}
