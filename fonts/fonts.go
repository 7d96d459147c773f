// Package fonts provides metrics and WinAnsi encoding for the standard 14
// fonts used by form field appearances.
package fonts

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/wudi/boletopdf/ir/raw"
)

// Font is a standard Type 1 font addressed through WinAnsiEncoding.
type Font struct {
	BaseFont string
	// Ascent and Descent are in thousandths of an em.
	Ascent  float64
	Descent float64
	width   func(code byte) float64
}

var (
	Helvetica = &Font{BaseFont: "Helvetica", Ascent: 718, Descent: -207, width: helveticaWidth}
	Courier   = &Font{BaseFont: "Courier", Ascent: 629, Descent: -157, width: func(byte) float64 { return 600 }}
)

func helveticaWidth(code byte) float64 {
	if code < 32 {
		return 0
	}
	return float64(helveticaWidths[code-32])
}

// Standard returns the metrics for a base font name. Bold and oblique
// variants share the regular metrics.
func Standard(baseFont string) (*Font, bool) {
	switch {
	case strings.HasPrefix(baseFont, "Helvetica"), strings.HasPrefix(baseFont, "Arial"):
		return Helvetica, true
	case strings.HasPrefix(baseFont, "Courier"):
		return Courier, true
	}
	return nil, false
}

// FromDict picks the metrics for a font resource dictionary, falling back
// to Helvetica when the base font is not a standard one.
func FromDict(doc *raw.Document, dict *raw.DictObj) *Font {
	if dict != nil {
		if base, ok := doc.GetName(dict.KV["BaseFont"]); ok {
			if f, ok := Standard(base); ok {
				return f
			}
		}
	}
	return Helvetica
}

// Dict builds a resource dictionary referencing f with WinAnsiEncoding.
func (f *Font) Dict() *raw.DictObj {
	d := raw.Dict()
	d.Set("Type", raw.NameLiteral("Font"))
	d.Set("Subtype", raw.NameLiteral("Type1"))
	d.Set("BaseFont", raw.NameLiteral(f.BaseFont))
	d.Set("Encoding", raw.NameLiteral("WinAnsiEncoding"))
	return d
}

// Encode converts s to WinAnsi bytes. Runes outside the code page become
// '?'.
func Encode(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r == utf8.RuneError {
			out = append(out, '?')
			continue
		}
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return out
}

// Width returns the advance of encoded text at the given size in points.
func (f *Font) Width(encoded []byte, size float64) float64 {
	total := 0.0
	for _, c := range encoded {
		total += f.width(c)
	}
	return total * size / 1000
}

// TextWidth encodes s and measures it.
func (f *Font) TextWidth(s string, size float64) float64 {
	return f.Width(Encode(s), size)
}

// Height is the distance from descender to ascender at size.
func (f *Font) Height(size float64) float64 {
	return (f.Ascent - f.Descent) * size / 1000
}
