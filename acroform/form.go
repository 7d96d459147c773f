// Package acroform indexes the interactive form of a parsed document,
// fills text fields with generated appearances and flattens widgets into
// page content.
package acroform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wudi/boletopdf/coords"
	"github.com/wudi/boletopdf/ir/raw"
)

// Field flag bits (PDF 32000-1, tables 221 and 228).
const (
	FlagReadOnly  = 1 << 0
	FlagRequired  = 1 << 1
	FlagMultiline = 1 << 12
	FlagPassword  = 1 << 13
	FlagComb      = 1 << 24
)

// Annotation flag bits.
const (
	annotHidden = 1 << 1
	annotNoView = 1 << 5
)

const maxFieldDepth = 32

// Widget is one visual occurrence of a field.
type Widget struct {
	Ref  raw.ObjectRef
	Dict *raw.DictObj
	// Page is the zero-based page index, or -1 when the widget is not
	// attached to any page.
	Page int
	Rect coords.Rect
}

// Field is a terminal field with its inherited attributes resolved.
type Field struct {
	Name    string
	Ref     raw.ObjectRef
	Dict    *raw.DictObj
	Type    string
	Flags   int
	DA      []byte
	Q       int
	Widgets []Widget
}

// FieldPosition locates a widget in the rotated page space a viewer shows.
type FieldPosition struct {
	Page int
	Rect coords.Rect
}

// Form is the field index of one document.
type Form struct {
	doc    *raw.Document
	dict   *raw.DictObj
	pages  []raw.Page
	fields map[string]*Field
	order  []string
}

// inherited carries the attributes a child field takes from its parents.
type inherited struct {
	ft string
	ff int
	da []byte
	q  int
}

// Load builds the field index. A document without /AcroForm yields an
// empty form.
func Load(doc *raw.Document) (*Form, error) {
	cat, err := doc.Catalog()
	if err != nil {
		return nil, err
	}
	pages, err := doc.Pages()
	if err != nil {
		return nil, fmt.Errorf("read page tree: %w", err)
	}
	f := &Form{doc: doc, pages: pages, fields: make(map[string]*Field)}
	dict, ok := doc.GetDict(cat.KV["AcroForm"])
	if !ok {
		return f, nil
	}
	f.dict = dict

	base := inherited{}
	if da, ok := doc.GetString(dict.KV["DA"]); ok {
		base.da = da
	}
	if q, ok := doc.GetNumber(dict.KV["Q"]); ok {
		base.q = int(q)
	}

	annotPage := f.annotationPages()
	fieldsArr, _ := doc.GetArray(dict.KV["Fields"])
	if fieldsArr == nil {
		return f, nil
	}
	seen := make(map[raw.ObjectRef]bool)
	for _, kid := range fieldsArr.Items {
		if err := f.walk(kid, "", base, annotPage, seen, 0); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *Form) walk(o raw.Object, parent string, inh inherited, annotPage map[raw.ObjectRef]int, seen map[raw.ObjectRef]bool, depth int) error {
	if depth > maxFieldDepth {
		return fmt.Errorf("field tree deeper than %d", maxFieldDepth)
	}
	ref, isRef := o.(raw.RefObj)
	if !isRef {
		return nil
	}
	if seen[ref.R] {
		return nil
	}
	seen[ref.R] = true
	node, ok := f.doc.GetDict(ref)
	if !ok {
		return nil
	}

	name := parent
	if t, ok := f.doc.GetString(node.KV["T"]); ok {
		partial := decodeTextString(t)
		if name != "" {
			name += "."
		}
		name += partial
	}
	if ft, ok := f.doc.GetName(node.KV["FT"]); ok {
		inh.ft = ft
	}
	if ff, ok := f.doc.GetNumber(node.KV["Ff"]); ok {
		inh.ff = int(ff)
	}
	if da, ok := f.doc.GetString(node.KV["DA"]); ok {
		inh.da = da
	}
	if q, ok := f.doc.GetNumber(node.KV["Q"]); ok {
		inh.q = int(q)
	}

	kids, _ := f.doc.GetArray(node.KV["Kids"])
	var childFields, widgets []raw.RefObj
	if kids != nil {
		for _, k := range kids.Items {
			kr, ok := k.(raw.RefObj)
			if !ok {
				continue
			}
			kd, ok := f.doc.GetDict(kr)
			if !ok {
				continue
			}
			if _, hasT := kd.Get("T"); hasT {
				childFields = append(childFields, kr)
			} else {
				widgets = append(widgets, kr)
			}
		}
	}
	for _, c := range childFields {
		if err := f.walk(c, name, inh, annotPage, seen, depth+1); err != nil {
			return err
		}
	}
	if len(childFields) > 0 && len(widgets) == 0 {
		return nil
	}
	if name == "" {
		return nil
	}

	field, exists := f.fields[name]
	if !exists {
		field = &Field{Name: name, Ref: ref.R, Dict: node, Type: inh.ft, Flags: inh.ff, DA: inh.da, Q: inh.q}
		f.fields[name] = field
		f.order = append(f.order, name)
	}
	if kids == nil || len(widgets) == 0 {
		// Merged field and widget dictionary.
		if sub, _ := node.Name("Subtype"); sub == "Widget" || hasRect(node) {
			widgets = []raw.RefObj{ref}
		}
	}
	for _, w := range widgets {
		wd, _ := f.doc.GetDict(w)
		field.Widgets = append(field.Widgets, f.widget(w.R, wd, annotPage))
	}
	return nil
}

func hasRect(d *raw.DictObj) bool {
	_, ok := d.Get("Rect")
	return ok
}

func (f *Form) widget(ref raw.ObjectRef, dict *raw.DictObj, annotPage map[raw.ObjectRef]int) Widget {
	w := Widget{Ref: ref, Dict: dict, Page: -1}
	if box, ok := f.doc.Box(dict.KV["Rect"]); ok {
		w.Rect = coords.NewRect(box[0], box[1], box[2], box[3])
	}
	if idx, ok := annotPage[ref]; ok {
		w.Page = idx
		return w
	}
	if p, ok := dict.KV["P"].(raw.RefObj); ok {
		for i, page := range f.pages {
			if page.Ref == p.R {
				w.Page = i
				break
			}
		}
	}
	return w
}

// annotationPages maps each annotation reference to its page index.
func (f *Form) annotationPages() map[raw.ObjectRef]int {
	out := make(map[raw.ObjectRef]int)
	for i, page := range f.pages {
		annots, ok := f.doc.GetArray(page.Dict.KV["Annots"])
		if !ok {
			continue
		}
		for _, a := range annots.Items {
			if r, ok := a.(raw.RefObj); ok {
				if _, dup := out[r.R]; !dup {
					out[r.R] = i
				}
			}
		}
	}
	return out
}

// Names lists the fully qualified field names in form order.
func (f *Form) Names() []string {
	return append([]string(nil), f.order...)
}

// SortedNames lists the field names alphabetically.
func (f *Form) SortedNames() []string {
	names := f.Names()
	sort.Strings(names)
	return names
}

func (f *Form) Field(name string) (*Field, bool) {
	fd, ok := f.fields[name]
	return fd, ok
}

// Has reports whether name is a field of this form.
func (f *Form) Has(name string) bool {
	_, ok := f.fields[name]
	return ok
}

// Value returns the decoded /V of a text field.
func (f *Form) Value(name string) (string, bool) {
	fd, ok := f.fields[name]
	if !ok {
		return "", false
	}
	v, ok := f.doc.GetString(fd.Dict.KV["V"])
	if !ok {
		return "", false
	}
	return decodeTextString(v), true
}

// FieldPositions returns one position per page-attached widget, in the
// rotated space of its page. A missing field yields nil.
func (f *Form) FieldPositions(name string) []FieldPosition {
	fd, ok := f.fields[strings.TrimSpace(name)]
	if !ok {
		return nil
	}
	var out []FieldPosition
	for _, w := range fd.Widgets {
		if w.Page < 0 {
			continue
		}
		rotate, width, height := f.PageGeometry(w.Page)
		out = append(out, FieldPosition{Page: w.Page, Rect: coords.ToVisual(w.Rect, rotate, width, height)})
	}
	return out
}

// PageGeometry returns /Rotate and the upper-right corner of the media box
// of page i.
func (f *Form) PageGeometry(i int) (rotate int, width, height float64) {
	if i < 0 || i >= len(f.pages) {
		return 0, 0, 0
	}
	page := f.pages[i].Dict
	if r, ok := raw.NumberValue(f.doc.Inherited(page, "Rotate")); ok {
		rotate = coords.NormalizeRotation(int(r))
	}
	box, ok := f.doc.Box(f.doc.Inherited(page, "MediaBox"))
	if !ok {
		box = [4]float64{0, 0, 612, 792}
	}
	return rotate, box[2], box[3]
}

// Pages exposes the page list the index was built from.
func (f *Form) Pages() []raw.Page { return f.pages }

// Document returns the document the form belongs to.
func (f *Form) Document() *raw.Document { return f.doc }
