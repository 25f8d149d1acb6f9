package title

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"
	textunicode "golang.org/x/text/encoding/unicode"
)

// wordGap is the TJ adjustment (thousandths of an em) treated as a space.
const wordGap = -200

// page holds the text recovered from one content stream.
type page struct {
	blocks []string
	lines  []string
}

type operand struct {
	tok   token
	array []token
}

// textState accumulates shown text for the current BT/ET object.
type textState struct {
	page    page
	inText  bool
	current strings.Builder
	block   []string
	fonts   fontSet
	font    *fontDecoder
}

func (s *textState) show(b []byte) {
	s.current.WriteString(s.font.decode(b))
}

func (s *textState) newline() {
	line := s.current.String()
	s.current.Reset()
	if strings.TrimSpace(line) == "" {
		return
	}
	s.block = append(s.block, line)
	s.page.lines = append(s.page.lines, line)
}

func (s *textState) space() {
	if s.current.Len() > 0 {
		s.current.WriteByte(' ')
	}
}

func (s *textState) beginText() {
	if s.inText {
		s.endText()
	}
	s.inText = true
}

func (s *textState) endText() {
	s.newline()
	if len(s.block) > 0 {
		s.page.blocks = append(s.page.blocks, strings.Join(s.block, "\n"))
	}
	s.block = nil
	s.inText = false
}

// parseContent scans a decoded content stream and returns its text. Strings
// are decoded with the font selected by the last Tf; names missing from fonts
// use the default decoding.
func parseContent(data []byte, fonts fontSet) (page, error) {
	lx := &lexer{data: data}
	st := textState{fonts: fonts}
	var stack []operand
	for {
		tok, err := lx.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return page{}, err
		}
		switch tok.kind {
		case tokArrayStart:
			arr, err := readArray(lx)
			if err != nil {
				return page{}, err
			}
			stack = append(stack, operand{array: arr})
		case tokArrayEnd:
			return page{}, fmt.Errorf("unbalanced ] at offset %d", lx.pos)
		case tokOperator:
			if err := apply(&st, lx, tok.text, stack); err != nil {
				return page{}, err
			}
			stack = stack[:0]
		default:
			stack = append(stack, operand{tok: tok})
		}
	}
	if st.inText {
		st.endText()
	}
	return st.page, nil
}

func readArray(lx *lexer) ([]token, error) {
	var out []token
	for {
		tok, err := lx.next()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("unterminated array")
		}
		if err != nil {
			return nil, err
		}
		switch tok.kind {
		case tokArrayEnd:
			return out, nil
		case tokArrayStart:
			nested, err := readArray(lx)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		default:
			out = append(out, tok)
		}
	}
}

func lastString(stack []operand) ([]byte, bool) {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].array == nil && stack[i].tok.kind == tokString {
			return stack[i].tok.str, true
		}
	}
	return nil, false
}

func apply(st *textState, lx *lexer, op string, stack []operand) error {
	switch op {
	case "BT":
		st.beginText()
	case "ET":
		st.endText()
	case "ID":
		return lx.skipInlineImage()
	case "Tf":
		if len(stack) >= 2 && stack[len(stack)-2].tok.kind == tokName {
			st.font = st.fonts[stack[len(stack)-2].tok.text]
		}
		return nil
	}
	if !st.inText {
		return nil
	}
	switch op {
	case "Tj":
		if s, ok := lastString(stack); ok {
			st.show(s)
		}
	case "'", "\"":
		st.newline()
		if s, ok := lastString(stack); ok {
			st.show(s)
		}
	case "TJ":
		if len(stack) == 0 {
			return nil
		}
		for _, el := range stack[len(stack)-1].array {
			switch el.kind {
			case tokString:
				st.show(el.str)
			case tokNumber:
				if el.num < wordGap {
					st.space()
				}
			}
		}
	case "T*":
		st.newline()
	case "Td", "TD":
		if len(stack) >= 2 && stack[len(stack)-1].tok.num != 0 {
			st.newline()
		} else {
			st.space()
		}
	case "Tm":
		st.newline()
	}
	return nil
}

// decodeString converts PDF string bytes to text: UTF-16BE when prefixed
// with a byte order mark, Windows-1252 otherwise. Control characters become
// spaces.
func decodeString(b []byte) string {
	return decodeBytes(b, charmap.Windows1252)
}

func decodeBytes(b []byte, cm *charmap.Charmap) string {
	var (
		out []byte
		err error
	)
	if bytes.HasPrefix(b, []byte{0xFE, 0xFF}) {
		dec := textunicode.UTF16(textunicode.BigEndian, textunicode.ExpectBOM).NewDecoder()
		out, err = dec.Bytes(b)
	} else {
		out, err = cm.NewDecoder().Bytes(b)
	}
	if err != nil {
		return ""
	}
	return printable(string(out))
}

func printable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
}

// collapse trims s and folds runs of whitespace into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
