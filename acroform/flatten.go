package acroform

import (
	"fmt"

	"github.com/wudi/boletopdf/contentstream"
	"github.com/wudi/boletopdf/coords"
	"github.com/wudi/boletopdf/ir/raw"
)

// Flatten draws the normal appearance of every visible widget into its
// page content, in default user space. Widgets stay in place until
// Remove is called.
func (f *Form) Flatten() (int, error) {
	drawn := 0
	for i, page := range f.pages {
		annots, ok := f.doc.GetArray(page.Dict.KV["Annots"])
		if !ok {
			continue
		}
		var ops contentstream.Builder
		xobjects := make(map[string]raw.Object)
		for _, a := range annots.Items {
			wd, ok := f.doc.GetDict(a)
			if !ok {
				continue
			}
			if sub, _ := wd.Name("Subtype"); sub != "Widget" {
				continue
			}
			if flags, ok := f.doc.GetNumber(wd.KV["F"]); ok && int(flags)&(annotHidden|annotNoView) != 0 {
				continue
			}
			apRef, ok := f.normalAppearance(wd)
			if !ok {
				continue
			}
			stream, ok := f.doc.GetStream(apRef)
			if !ok {
				continue
			}
			box, ok := f.doc.Box(wd.KV["Rect"])
			if !ok {
				continue
			}
			m, ok := f.placement(stream.Dict, coords.NewRect(box[0], box[1], box[2], box[3]))
			if !ok {
				continue
			}
			stream.Dict.Set("Type", raw.NameLiteral("XObject"))
			stream.Dict.Set("Subtype", raw.NameLiteral("Form"))
			name := fmt.Sprintf("Flat%d", drawn)
			drawn++
			xobjects[name] = apRef
			ops.Save().Concat(m).DrawXObject(name).Restore()
		}
		if ops.Len() == 0 {
			continue
		}
		if err := f.appendContent(i, ops.Bytes(), xobjects); err != nil {
			return drawn, err
		}
	}
	return drawn, nil
}

// normalAppearance returns the /AP /N stream reference, choosing the /AS
// state when /N is a state dictionary.
func (f *Form) normalAppearance(wd *raw.DictObj) (raw.Object, bool) {
	ap, ok := f.doc.GetDict(wd.KV["AP"])
	if !ok {
		return nil, false
	}
	n, ok := ap.Get("N")
	if !ok {
		return nil, false
	}
	if _, isStream := f.doc.GetStream(n); isStream {
		return n, true
	}
	states, ok := f.doc.GetDict(n)
	if !ok {
		return nil, false
	}
	as, ok := f.doc.GetName(wd.KV["AS"])
	if !ok {
		return nil, false
	}
	s, ok := states.Get(as)
	if !ok {
		return nil, false
	}
	if _, isStream := f.doc.GetStream(s); !isStream {
		return nil, false
	}
	return s, true
}

// placement computes the matrix mapping the appearance bounding box,
// after its own /Matrix, onto the annotation rectangle.
func (f *Form) placement(dict *raw.DictObj, rect coords.Rect) (coords.Matrix, bool) {
	bb, ok := f.doc.Box(dict.KV["BBox"])
	if !ok {
		return coords.Matrix{}, false
	}
	form := coords.Identity()
	if arr, ok := f.doc.GetArray(dict.KV["Matrix"]); ok && arr.Len() == 6 {
		for i, it := range arr.Items {
			v, _ := f.doc.GetNumber(it)
			form[i] = v
		}
	}
	box := coords.NewRect(bb[0], bb[1], bb[2], bb[3]).Transform(form)
	if box.Width() == 0 || box.Height() == 0 {
		return coords.Matrix{}, false
	}
	sx := rect.Width() / box.Width()
	sy := rect.Height() / box.Height()
	return coords.Matrix{sx, 0, 0, sy, rect.LLX - box.LLX*sx, rect.LLY - box.LLY*sy}, true
}

// appendContent wraps the existing page content in q/Q and appends ops,
// registering the named XObjects in the page's own resources.
func (f *Form) appendContent(pageIdx int, ops []byte, xobjects map[string]raw.Object) error {
	page := f.pages[pageIdx].Dict
	res := f.PageResources(pageIdx)
	xdict, ok := f.doc.GetDict(res.KV["XObject"])
	if ok {
		xdict = raw.Clone(xdict).(*raw.DictObj)
	} else {
		xdict = raw.Dict()
	}
	for name, ref := range xobjects {
		xdict.Set(name, ref)
	}
	res.Set("XObject", xdict)
	return f.AppendPageContent(page, []byte("q\n"), append([]byte("Q\n"), ops...))
}

// PageResources returns a resources dictionary owned by page i, copying
// inherited or shared resources so edits stay local to the page.
func (f *Form) PageResources(i int) *raw.DictObj {
	page := f.pages[i].Dict
	if res, ok := page.KV["Resources"].(*raw.DictObj); ok {
		return res
	}
	var res *raw.DictObj
	if inh, ok := f.doc.Inherited(page, "Resources").(*raw.DictObj); ok {
		res = raw.Clone(inh).(*raw.DictObj)
	} else {
		res = raw.Dict()
	}
	page.Set("Resources", res)
	return res
}

// AppendPageContent surrounds the page's content streams with before and
// after.
func (f *Form) AppendPageContent(page *raw.DictObj, before, after []byte) error {
	var parts []raw.Object
	switch c := page.KV["Contents"].(type) {
	case nil:
	case raw.RefObj:
		if arr, ok := f.doc.GetArray(c); ok {
			parts = append(parts, arr.Items...)
		} else {
			parts = append(parts, c)
		}
	case *raw.ArrayObj:
		parts = append(parts, c.Items...)
	default:
		return fmt.Errorf("unexpected /Contents %s", c.Type())
	}
	items := make([]raw.Object, 0, len(parts)+2)
	if len(before) > 0 {
		items = append(items, f.doc.Add(raw.NewStream(raw.Dict(), before)))
	}
	items = append(items, parts...)
	if len(after) > 0 {
		items = append(items, f.doc.Add(raw.NewStream(raw.Dict(), after)))
	}
	page.Set("Contents", raw.NewArray(items...))
	return nil
}

// Remove detaches every widget annotation from the pages and drops the
// interactive form from the catalog. Detached objects become unreachable.
func (f *Form) Remove() error {
	for _, page := range f.pages {
		annots, ok := f.doc.GetArray(page.Dict.KV["Annots"])
		if !ok {
			continue
		}
		kept := make([]raw.Object, 0, len(annots.Items))
		for _, a := range annots.Items {
			if d, ok := f.doc.GetDict(a); ok {
				if sub, _ := d.Name("Subtype"); sub == "Widget" {
					continue
				}
			}
			kept = append(kept, a)
		}
		if len(kept) == 0 {
			page.Dict.Delete("Annots")
		} else {
			page.Dict.Set("Annots", raw.NewArray(kept...))
		}
	}
	cat, err := f.doc.Catalog()
	if err != nil {
		return err
	}
	cat.Delete("AcroForm")
	f.dict = nil
	f.fields = make(map[string]*Field)
	f.order = nil
	return nil
}
