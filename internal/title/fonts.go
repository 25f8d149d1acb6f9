package title

import (
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding/charmap"
)

// fontSet maps page font resource names (without the slash) to decoders.
type fontSet map[string]*fontDecoder

// fontDecoder turns the string operands shown with one font into text.
// A nil decoder uses the default single-byte decoding.
type fontDecoder struct {
	// composite fonts (Type0) use multi-byte codes that only a ToUnicode
	// CMap can map to text.
	composite bool
	toUnicode *cmap
	// fallback decodes codes of simple fonts the CMap does not cover.
	fallback *charmap.Charmap
}

func (f *fontDecoder) decode(b []byte) string {
	if f == nil {
		return decodeString(b)
	}
	if f.toUnicode == nil {
		if f.composite {
			return ""
		}
		return decodeBytes(b, f.fallback)
	}
	width := f.toUnicode.width
	if width <= 0 {
		width = 1
		if f.composite {
			width = 2
		}
	}
	var sb strings.Builder
	for i := 0; i < len(b); i += width {
		chunk := b[i:min(i+width, len(b))]
		if s, ok := f.toUnicode.lookup(codeValue(chunk)); ok {
			sb.WriteString(s)
			continue
		}
		if f.fallback != nil {
			sb.WriteString(decodeBytes(chunk, f.fallback))
		}
	}
	return printable(sb.String())
}

// loadFonts builds decoders for the fonts named in a page resource dict.
// Fonts that cannot be resolved are left out and decode with the default.
func loadFonts(ctx *model.Context, resources types.Dict) fontSet {
	fonts := make(fontSet)
	if resources == nil {
		return fonts
	}
	obj, found := resources.Find("Font")
	if !found || obj == nil {
		return fonts
	}
	dict, err := ctx.DereferenceDict(obj)
	if err != nil || dict == nil {
		return fonts
	}
	for name, ref := range dict {
		fd, err := ctx.DereferenceDict(ref)
		if err != nil || fd == nil {
			continue
		}
		fonts[name] = newFontDecoder(ctx, fd)
	}
	return fonts
}

func newFontDecoder(ctx *model.Context, fd types.Dict) *fontDecoder {
	dec := &fontDecoder{fallback: charmap.Windows1252}
	if enc := fd.NameEntry("Encoding"); enc != nil && *enc == "MacRomanEncoding" {
		dec.fallback = charmap.Macintosh
	}
	if sub := fd.NameEntry("Subtype"); sub != nil && *sub == "Type0" {
		dec.composite = true
		dec.fallback = nil
	}
	obj, found := fd.Find("ToUnicode")
	if !found || obj == nil {
		return dec
	}
	sd, _, err := ctx.DereferenceStreamDict(obj)
	if err != nil || sd == nil {
		return dec
	}
	if err := sd.Decode(); err != nil {
		return dec
	}
	dec.toUnicode = parseCMap(sd.Content)
	return dec
}
