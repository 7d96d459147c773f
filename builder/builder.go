// Package builder lays out new PDF documents: static text and rules on
// pages, text form fields and named destinations.
package builder

import (
	"fmt"
	"sort"

	"github.com/wudi/boletopdf/acroform"
	"github.com/wudi/boletopdf/contentstream"
	"github.com/wudi/boletopdf/coords"
	"github.com/wudi/boletopdf/fonts"
	"github.com/wudi/boletopdf/ir/raw"
)

// PDFBuilder provides a fluent API for PDF construction.
type PDFBuilder interface {
	NewPage(width, height float64) PageBuilder
	SetInfo(info Info) PDFBuilder
	// AddNamedDestination registers name in the catalog name tree, or in
	// the legacy /Dests dictionary when legacy is true.
	AddNamedDestination(name string, pageIndex int, top float64, legacy bool) PDFBuilder
	Build() (*raw.Document, error)
}

// PageBuilder provides a fluent API for page construction.
type PageBuilder interface {
	DrawText(text string, x, y float64, opts TextOptions) PageBuilder
	DrawRectangle(x, y, width, height float64, opts RectOptions) PageBuilder
	DrawLine(x1, y1, x2, y2 float64, opts LineOptions) PageBuilder
	AddTextField(field TextField) PageBuilder
	// AddLink adds a link annotation jumping to a named destination. With
	// action set, the name goes through a GoTo action instead of /Dest.
	AddLink(rect coords.Rect, dest string, action bool) PageBuilder
	SetRotation(degrees int) PageBuilder
	Finish() PDFBuilder
}

// Info fills the document information dictionary.
type Info struct {
	Title    string
	Author   string
	Subject  string
	Producer string
}

// TextOptions configures text drawing.
type TextOptions struct {
	Font     string // standard base font, Helvetica when empty
	FontSize float64
	Color    Color
	Align    Align
}

// Align anchors DrawText at the left, center or right of x.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// RectOptions configures rectangle drawing. Stroke is the default when
// neither is set.
type RectOptions struct {
	StrokeColor Color
	FillColor   Color
	LineWidth   float64
	Fill        bool
	Stroke      bool
}

// LineOptions configures line drawing.
type LineOptions struct {
	StrokeColor Color
	LineWidth   float64
}

// Color represents an RGB color.
type Color struct {
	R, G, B float64
}

// TextField describes a variable text field with a single widget.
type TextField struct {
	Name      string
	Rect      coords.Rect
	FontSize  float64 // zero means auto-size
	Font      string  // Helvetica or Courier
	Align     Align
	Multiline bool
	Hidden    bool
	Value     string
}

type fieldSpec struct {
	TextField
	page int
}

type linkSpec struct {
	rect   coords.Rect
	dest   string
	action bool
}

type destSpec struct {
	page   int
	top    float64
	legacy bool
}

type pageSpec struct {
	width, height float64
	rotate        int
	content       contentstream.Builder
	fonts         map[string]*fonts.Font
	links         []linkSpec
}

type builderImpl struct {
	pages  []*pageSpec
	fields []fieldSpec
	dests  map[string]destSpec
	info   *Info
	err    error
}

type pageBuilderImpl struct {
	parent *builderImpl
	index  int
	page   *pageSpec
}

// NewBuilder constructs a PDFBuilder.
func NewBuilder() PDFBuilder { return &builderImpl{dests: make(map[string]destSpec)} }

func (b *builderImpl) NewPage(w, h float64) PageBuilder {
	p := &pageSpec{width: w, height: h, fonts: make(map[string]*fonts.Font)}
	b.pages = append(b.pages, p)
	return &pageBuilderImpl{parent: b, index: len(b.pages) - 1, page: p}
}

func (b *builderImpl) SetInfo(info Info) PDFBuilder {
	b.info = &info
	return b
}

func (b *builderImpl) AddNamedDestination(name string, pageIndex int, top float64, legacy bool) PDFBuilder {
	b.dests[name] = destSpec{page: pageIndex, top: top, legacy: legacy}
	return b
}

func (p *pageBuilderImpl) DrawText(text string, x, y float64, opts TextOptions) PageBuilder {
	base := opts.Font
	if base == "" {
		base = "Helvetica"
	}
	font, ok := fonts.Standard(base)
	if !ok {
		p.parent.fail(fmt.Errorf("font %q is not a standard font", base))
		return p
	}
	resource := "F" + font.BaseFont[:1]
	p.page.fonts[resource] = font
	size := opts.FontSize
	if size <= 0 {
		size = 12
	}
	encoded := fonts.Encode(text)
	switch opts.Align {
	case AlignCenter:
		x -= font.Width(encoded, size) / 2
	case AlignRight:
		x -= font.Width(encoded, size)
	}
	c := &p.page.content
	c.BeginText().Font(resource, size)
	c.RGB(opts.Color.R, opts.Color.G, opts.Color.B)
	c.MoveText(x, y).ShowText(encoded).EndText()
	return p
}

func (p *pageBuilderImpl) DrawRectangle(x, y, width, height float64, opts RectOptions) PageBuilder {
	if !opts.Stroke && !opts.Fill {
		opts.Stroke = true
	}
	c := &p.page.content
	c.Save()
	if opts.LineWidth > 0 {
		c.LineWidth(opts.LineWidth)
	}
	c.StrokeRGB(opts.StrokeColor.R, opts.StrokeColor.G, opts.StrokeColor.B)
	c.RGB(opts.FillColor.R, opts.FillColor.G, opts.FillColor.B)
	c.Rect(x, y, width, height)
	switch {
	case opts.Fill && opts.Stroke:
		c.FillStroke()
	case opts.Fill:
		c.Fill()
	default:
		c.Stroke()
	}
	c.Restore()
	return p
}

func (p *pageBuilderImpl) DrawLine(x1, y1, x2, y2 float64, opts LineOptions) PageBuilder {
	c := &p.page.content
	c.Save()
	if opts.LineWidth > 0 {
		c.LineWidth(opts.LineWidth)
	}
	c.StrokeRGB(opts.StrokeColor.R, opts.StrokeColor.G, opts.StrokeColor.B)
	c.MoveTo(x1, y1).LineTo(x2, y2).Stroke().Restore()
	return p
}

func (p *pageBuilderImpl) AddTextField(field TextField) PageBuilder {
	if field.Name == "" {
		p.parent.fail(fmt.Errorf("text field on page %d has no name", p.index))
		return p
	}
	p.parent.fields = append(p.parent.fields, fieldSpec{TextField: field, page: p.index})
	return p
}

func (p *pageBuilderImpl) AddLink(rect coords.Rect, dest string, action bool) PageBuilder {
	p.page.links = append(p.page.links, linkSpec{rect: rect, dest: dest, action: action})
	return p
}

func (p *pageBuilderImpl) SetRotation(degrees int) PageBuilder {
	p.page.rotate = coords.NormalizeRotation(degrees)
	return p
}

func (p *pageBuilderImpl) Finish() PDFBuilder { return p.parent }

func (b *builderImpl) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build assembles the document. Field values, when given, are filled with
// generated appearances.
func (b *builderImpl) Build() (*raw.Document, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.pages) == 0 {
		return nil, fmt.Errorf("document has no pages")
	}
	doc := raw.NewDocument("1.7")
	catalog := raw.Dict()
	catalog.Set("Type", raw.NameLiteral("Catalog"))
	catRef := doc.Add(catalog)
	doc.Trailer.Set("Root", catRef)
	pagesDict := raw.Dict()
	pagesDict.Set("Type", raw.NameLiteral("Pages"))
	pagesRef := doc.Add(pagesDict)
	catalog.Set("Pages", pagesRef)

	pageRefs := make([]raw.RefObj, len(b.pages))
	kids := raw.NewArray()
	for i, spec := range b.pages {
		page := raw.Dict()
		page.Set("Type", raw.NameLiteral("Page"))
		page.Set("Parent", pagesRef)
		page.Set("MediaBox", raw.Rect(0, 0, spec.width, spec.height))
		if spec.rotate != 0 {
			page.Set("Rotate", raw.NumberInt(int64(spec.rotate)))
		}
		res := raw.Dict()
		if len(spec.fonts) > 0 {
			fd := raw.Dict()
			names := make([]string, 0, len(spec.fonts))
			for name := range spec.fonts {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fd.Set(name, doc.Add(spec.fonts[name].Dict()))
			}
			res.Set("Font", fd)
		}
		page.Set("Resources", res)
		content := append([]byte(nil), spec.content.Bytes()...)
		page.Set("Contents", doc.Add(raw.NewStream(raw.Dict(), content)))
		pageRefs[i] = doc.Add(page)
		kids.Append(pageRefs[i])
	}
	pagesDict.Set("Kids", kids)
	pagesDict.Set("Count", raw.NumberInt(int64(len(b.pages))))

	for i, spec := range b.pages {
		for _, l := range spec.links {
			b.addLink(doc, pageRefs[i], l)
		}
	}
	if err := b.addDestinations(doc, catalog, pageRefs); err != nil {
		return nil, err
	}
	if len(b.fields) > 0 {
		if err := b.addForm(doc, catalog, pageRefs); err != nil {
			return nil, err
		}
	}
	if b.info != nil {
		doc.Trailer.Set("Info", doc.Add(b.infoDict()))
	}
	return doc, nil
}

func (b *builderImpl) infoDict() *raw.DictObj {
	d := raw.Dict()
	for key, v := range map[string]string{
		"Title": b.info.Title, "Author": b.info.Author,
		"Subject": b.info.Subject, "Producer": b.info.Producer,
	} {
		if v != "" {
			d.Set(key, raw.Str(fonts.Encode(v)))
		}
	}
	return d
}

func appendAnnot(doc *raw.Document, pageRef raw.RefObj, annot raw.RefObj) {
	page, _ := doc.GetDict(pageRef)
	annots, ok := page.KV["Annots"].(*raw.ArrayObj)
	if !ok {
		annots = raw.NewArray()
		page.Set("Annots", annots)
	}
	annots.Append(annot)
}

func (b *builderImpl) addLink(doc *raw.Document, pageRef raw.RefObj, l linkSpec) {
	link := raw.Dict()
	link.Set("Type", raw.NameLiteral("Annot"))
	link.Set("Subtype", raw.NameLiteral("Link"))
	link.Set("Rect", raw.Rect(l.rect.LLX, l.rect.LLY, l.rect.URX, l.rect.URY))
	link.Set("Border", raw.NewArray(raw.NumberInt(0), raw.NumberInt(0), raw.NumberInt(0)))
	if l.action {
		act := raw.Dict()
		act.Set("S", raw.NameLiteral("GoTo"))
		act.Set("D", raw.Str([]byte(l.dest)))
		link.Set("A", act)
	} else {
		link.Set("Dest", raw.Str([]byte(l.dest)))
	}
	appendAnnot(doc, pageRef, doc.Add(link))
}

func (b *builderImpl) addDestinations(doc *raw.Document, catalog *raw.DictObj, pageRefs []raw.RefObj) error {
	if len(b.dests) == 0 {
		return nil
	}
	names := make([]string, 0, len(b.dests))
	for n := range b.dests {
		names = append(names, n)
	}
	sort.Strings(names)
	legacy := raw.Dict()
	tree := raw.NewArray()
	for _, n := range names {
		d := b.dests[n]
		if d.page < 0 || d.page >= len(pageRefs) {
			return fmt.Errorf("destination %q points at page %d of %d", n, d.page, len(pageRefs))
		}
		arr := raw.NewArray(pageRefs[d.page], raw.NameLiteral("XYZ"), raw.NumberInt(0), raw.NumberFloat(d.top), raw.NullObj{})
		if d.legacy {
			legacy.Set(n, arr)
			continue
		}
		tree.Append(raw.Str([]byte(n)))
		tree.Append(doc.Add(arr))
	}
	if legacy.Len() > 0 {
		catalog.Set("Dests", doc.Add(legacy))
	}
	if tree.Len() > 0 {
		node := raw.Dict()
		node.Set("Names", tree)
		nameDict := raw.Dict()
		nameDict.Set("Dests", doc.Add(node))
		catalog.Set("Names", nameDict)
	}
	return nil
}

func (b *builderImpl) addForm(doc *raw.Document, catalog *raw.DictObj, pageRefs []raw.RefObj) error {
	fontsDict := raw.Dict()
	fontsDict.Set("Helv", doc.Add(fonts.Helvetica.Dict()))
	fontsDict.Set("Cour", doc.Add(fonts.Courier.Dict()))
	dr := raw.Dict()
	dr.Set("Font", fontsDict)
	form := raw.Dict()
	form.Set("DR", dr)
	form.Set("DA", raw.Str([]byte("/Helv 0 Tf 0 g")))
	fields := raw.NewArray()
	for _, spec := range b.fields {
		if spec.page < 0 || spec.page >= len(pageRefs) {
			return fmt.Errorf("field %q on missing page %d", spec.Name, spec.page)
		}
		fontRes := "Helv"
		if spec.Font == "Courier" {
			fontRes = "Cour"
		}
		w := raw.Dict()
		w.Set("Type", raw.NameLiteral("Annot"))
		w.Set("Subtype", raw.NameLiteral("Widget"))
		w.Set("FT", raw.NameLiteral("Tx"))
		w.Set("T", raw.Str([]byte(spec.Name)))
		w.Set("Rect", raw.Rect(spec.Rect.LLX, spec.Rect.LLY, spec.Rect.URX, spec.Rect.URY))
		w.Set("P", pageRefs[spec.page])
		w.Set("DA", raw.Str([]byte(fmt.Sprintf("/%s %s Tf 0 g", fontRes, formatSize(spec.FontSize)))))
		flags := int64(1 << 2) // print
		if spec.Hidden {
			flags |= 1 << 1
		}
		w.Set("F", raw.NumberInt(flags))
		if spec.Align != AlignLeft {
			w.Set("Q", raw.NumberInt(int64(spec.Align)))
		}
		if spec.Multiline {
			w.Set("Ff", raw.NumberInt(acroform.FlagMultiline))
		}
		ref := doc.Add(w)
		fields.Append(ref)
		appendAnnot(doc, pageRefs[spec.page], ref)
	}
	form.Set("Fields", fields)
	catalog.Set("AcroForm", doc.Add(form))

	idx, err := acroform.Load(doc)
	if err != nil {
		return err
	}
	for _, spec := range b.fields {
		if spec.Value == "" {
			continue
		}
		if _, err := idx.SetText(spec.Name, spec.Value); err != nil {
			return err
		}
	}
	return nil
}

func formatSize(size float64) string {
	if size <= 0 {
		return "0"
	}
	return fmt.Sprintf("%g", size)
}
