package acroform

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/wudi/boletopdf/contentstream"
	"github.com/wudi/boletopdf/fonts"
	"github.com/wudi/boletopdf/ir/raw"
)

// ErrNotText is returned when SetText targets a button or signature field.
var ErrNotText = errors.New("field does not hold text")

const (
	defaultFontResource = "Helv"
	padding             = 2.0
	maxAutoSize         = 12.0
	minAutoSize         = 4.0
	leadingFactor       = 1.15
)

// SetText stores value in the named field and regenerates the normal
// appearance of every widget. It reports false, without error, when the
// field does not exist.
func (f *Form) SetText(name, value string) (bool, error) {
	fd, ok := f.fields[name]
	if !ok {
		return false, nil
	}
	switch fd.Type {
	case "Btn", "Sig":
		return true, fmt.Errorf("%s: %w (type %s)", name, ErrNotText, fd.Type)
	}
	fd.Dict.Set("V", encodeTextString(value))
	for _, w := range fd.Widgets {
		if err := f.generateTextAppearance(fd, w, value); err != nil {
			return true, fmt.Errorf("appearance for %s: %w", name, err)
		}
	}
	if f.dict != nil {
		f.dict.Delete("NeedAppearances")
	}
	return true, nil
}

func (f *Form) generateTextAppearance(fd *Field, w Widget, value string) error {
	da := fd.DA
	if wda, ok := f.doc.GetString(w.Dict.KV["DA"]); ok {
		da = wda
	}
	appearance, err := contentstream.ParseDA(da)
	if err != nil {
		return err
	}
	if appearance.Font == "" {
		appearance.Font = defaultFontResource
	}
	fontRef, font := f.fontResource(appearance.Font)

	q := fd.Q
	if wq, ok := f.doc.GetNumber(w.Dict.KV["Q"]); ok {
		q = int(wq)
	}
	width, height := w.Rect.Width(), w.Rect.Height()

	var lines []string
	if fd.Flags&FlagMultiline != 0 {
		lines = strings.Split(strings.ReplaceAll(value, "\r\n", "\n"), "\n")
	} else {
		lines = []string{strings.NewReplacer("\r", " ", "\n", " ").Replace(value)}
	}
	if fd.Flags&FlagPassword != 0 {
		for i, l := range lines {
			lines[i] = strings.Repeat("*", len([]rune(l)))
		}
	}
	encoded := make([][]byte, len(lines))
	for i, l := range lines {
		encoded[i] = fonts.Encode(l)
	}

	size := appearance.Size
	if size <= 0 {
		size = autoSize(font, encoded, width, height)
	}

	var b contentstream.Builder
	b.BeginMarked("Tx").Save().
		Rect(1, 1, math.Max(width-2, 0), math.Max(height-2, 0)).Clip().
		BeginText().Font(appearance.Font, size)
	appearance.WriteColor(&b)

	ascent := font.Ascent * size / 1000
	descent := font.Descent * size / 1000
	var y float64
	if len(lines) == 1 {
		y = (height-(ascent-descent))/2 - descent
	} else {
		y = height - padding - ascent
	}
	prevX, prevY := 0.0, 0.0
	for i, line := range encoded {
		tw := font.Width(line, size)
		x := padding
		switch q {
		case 1:
			x = (width - tw) / 2
		case 2:
			x = width - padding - tw
		}
		ly := y - float64(i)*size*leadingFactor
		b.MoveText(x-prevX, ly-prevY).ShowText(line)
		prevX, prevY = x, ly
	}
	b.EndText().Restore().EndMarked()

	fontDict := raw.Dict()
	fontDict.Set(appearance.Font, fontRef)
	res := raw.Dict()
	res.Set("Font", fontDict)

	sd := raw.Dict()
	sd.Set("Type", raw.NameLiteral("XObject"))
	sd.Set("Subtype", raw.NameLiteral("Form"))
	sd.Set("BBox", raw.Rect(0, 0, width, height))
	sd.Set("Resources", res)
	data := append([]byte(nil), b.Bytes()...)
	stream := f.doc.Add(raw.NewStream(sd, data))

	ap := raw.Dict()
	ap.Set("N", stream)
	w.Dict.Set("AP", ap)
	w.Dict.Delete("AS")
	return nil
}

// autoSize picks the largest size, capped at 12pt, at which every line
// fits the widget.
func autoSize(font *fonts.Font, lines [][]byte, width, height float64) float64 {
	n := float64(len(lines))
	lineHeight := font.Height(1)
	if n > 1 {
		lineHeight *= leadingFactor
	}
	size := (height - 2*padding) / (n * lineHeight)
	size = math.Min(size, maxAutoSize)
	for _, l := range lines {
		tw := font.Width(l, size)
		if avail := width - 2*padding; tw > avail && tw > 0 {
			size = size * avail / tw
		}
	}
	return math.Max(size, minAutoSize)
}

// fontResource finds the /DR font for name, adding a Helvetica entry
// when the form has none.
func (f *Form) fontResource(name string) (raw.Object, *fonts.Font) {
	dr := f.defaultResources()
	fontsDict, ok := f.doc.GetDict(dr.KV["Font"])
	if !ok {
		fontsDict = raw.Dict()
		dr.Set("Font", fontsDict)
	}
	if ref, ok := fontsDict.Get(name); ok {
		fd, _ := f.doc.GetDict(ref)
		return ref, fonts.FromDict(f.doc, fd)
	}
	std := fonts.Helvetica
	if name == "Cour" {
		std = fonts.Courier
	}
	ref := f.doc.Add(std.Dict())
	fontsDict.Set(name, ref)
	return ref, std
}

func (f *Form) defaultResources() *raw.DictObj {
	if f.dict == nil {
		return raw.Dict()
	}
	if dr, ok := f.doc.GetDict(f.dict.KV["DR"]); ok {
		return dr
	}
	dr := raw.Dict()
	f.dict.Set("DR", dr)
	return dr
}
