package title

import (
	"errors"
	"io"
	"unicode/utf16"
)

// cmap is the subset of a ToUnicode CMap needed to map character codes to
// text: bfchar entries and bfrange entries in both the offset and array form.
type cmap struct {
	// width is the code length in bytes taken from the first codespace
	// range, or zero when the CMap declares none.
	width  int
	chars  map[uint32]string
	ranges []cmapRange
}

type cmapRange struct {
	lo, hi uint32
	// base is the text for lo; later codes increment its last rune.
	base []rune
	// each holds one destination per code when the range uses array form.
	each []string
}

const (
	sectionCodespace = "begincodespacerange"
	sectionChar      = "beginbfchar"
	sectionRange     = "beginbfrange"
)

// parseCMap reads a decoded ToUnicode stream. Unknown operators and
// malformed tokens are skipped; whatever mappings were read are kept.
func parseCMap(data []byte) *cmap {
	m := &cmap{chars: make(map[uint32]string)}
	lx := &lexer{data: data}
	var (
		section string
		pending [][]byte
	)
	for {
		tok, err := lx.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			lx.pos++
			pending = pending[:0]
			continue
		}
		switch tok.kind {
		case tokOperator:
			switch tok.text {
			case sectionCodespace, sectionChar, sectionRange:
				section = tok.text
			default:
				section = ""
			}
			pending = pending[:0]
		case tokString:
			if section == "" {
				continue
			}
			pending = append(pending, tok.str)
			if m.add(section, pending) {
				pending = pending[:0]
			}
		case tokArrayStart:
			arr, err := readArray(lx)
			if err != nil || section != sectionRange || len(pending) != 2 {
				pending = pending[:0]
				continue
			}
			each := make([]string, 0, len(arr))
			for _, el := range arr {
				if el.kind == tokString {
					each = append(each, utf16Text(el.str))
				}
			}
			lo, hi := codeValue(pending[0]), codeValue(pending[1])
			if lo <= hi {
				m.ranges = append(m.ranges, cmapRange{lo: lo, hi: hi, each: each})
			}
			pending = pending[:0]
		}
	}
	return m
}

// add consumes a complete entry for section and reports whether it did.
func (m *cmap) add(section string, operands [][]byte) bool {
	switch section {
	case sectionCodespace:
		if len(operands) < 2 {
			return false
		}
		if m.width == 0 && len(operands[0]) > 0 {
			m.width = len(operands[0])
		}
	case sectionChar:
		if len(operands) < 2 {
			return false
		}
		m.chars[codeValue(operands[0])] = utf16Text(operands[1])
	case sectionRange:
		if len(operands) < 3 {
			return false
		}
		lo, hi := codeValue(operands[0]), codeValue(operands[1])
		if lo <= hi {
			m.ranges = append(m.ranges, cmapRange{lo: lo, hi: hi, base: []rune(utf16Text(operands[2]))})
		}
	}
	return true
}

func (m *cmap) lookup(code uint32) (string, bool) {
	if s, ok := m.chars[code]; ok {
		return s, true
	}
	for _, r := range m.ranges {
		if code < r.lo || code > r.hi {
			continue
		}
		off := code - r.lo
		if r.each != nil {
			if int(off) < len(r.each) {
				return r.each[off], true
			}
			return "", false
		}
		if len(r.base) == 0 {
			return "", false
		}
		out := append([]rune(nil), r.base...)
		out[len(out)-1] += rune(off)
		return string(out), true
	}
	return "", false
}

func codeValue(b []byte) uint32 {
	var v uint32
	for _, c := range b {
		v = v<<8 | uint32(c)
	}
	return v
}

// utf16Text decodes a CMap destination string. Odd-length values are taken
// as single bytes.
func utf16Text(b []byte) string {
	if len(b)%2 != 0 {
		return string(latin1(b))
	}
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
	}
	return string(utf16.Decode(units))
}

func latin1(b []byte) []rune {
	out := make([]rune, len(b))
	for i, c := range b {
		out[i] = rune(c)
	}
	return out
}
