package stamper

import (
	"github.com/wudi/boletopdf/ir/raw"
)

const maxNameTreeDepth = 32

// consolidateDestinations rewrites named destinations used by links,
// GoTo actions and outline items into explicit destination arrays, then
// drops the /Dests dictionary and the /Names /Dests tree. It returns the
// number of references rewritten.
func consolidateDestinations(doc *raw.Document) (int, error) {
	cat, err := doc.Catalog()
	if err != nil {
		return 0, err
	}
	named := make(map[string]*raw.ArrayObj)
	if legacy, ok := doc.GetDict(cat.KV["Dests"]); ok {
		for _, k := range legacy.Keys() {
			if dest := explicitDest(doc, legacy.KV[k]); dest != nil {
				named[k] = dest
			}
		}
	}
	names, hasNames := doc.GetDict(cat.KV["Names"])
	if hasNames {
		if tree, ok := names.Get("Dests"); ok {
			walkNameTree(doc, tree, named, make(map[raw.ObjectRef]bool), 0)
		}
	}
	if len(named) == 0 && !hasNames {
		cat.Delete("Dests")
		return 0, nil
	}

	rewritten := 0
	resolve := func(d *raw.DictObj, key string) {
		v, ok := d.Get(key)
		if !ok {
			return
		}
		var name string
		switch o := doc.Resolve(v).(type) {
		case raw.StringObj:
			name = string(o.Bytes)
		case raw.NameObj:
			name = o.Val
		default:
			return
		}
		if dest, ok := named[name]; ok {
			d.Set(key, raw.Clone(dest))
			rewritten++
		}
	}

	pages, err := doc.Pages()
	if err != nil {
		return 0, err
	}
	for _, page := range pages {
		annots, ok := doc.GetArray(page.Dict.KV["Annots"])
		if !ok {
			continue
		}
		for _, a := range annots.Items {
			ad, ok := doc.GetDict(a)
			if !ok {
				continue
			}
			if sub, _ := ad.Name("Subtype"); sub != "Link" {
				continue
			}
			resolve(ad, "Dest")
			if act, ok := doc.GetDict(ad.KV["A"]); ok {
				if s, _ := act.Name("S"); s == "GoTo" {
					resolve(act, "D")
				}
			}
		}
	}
	if outlines, ok := doc.GetDict(cat.KV["Outlines"]); ok {
		seen := make(map[raw.ObjectRef]bool)
		var walk func(o raw.Object)
		walk = func(o raw.Object) {
			for o != nil {
				ref, ok := o.(raw.RefObj)
				if !ok || seen[ref.R] {
					return
				}
				seen[ref.R] = true
				item, ok := doc.GetDict(ref)
				if !ok {
					return
				}
				resolve(item, "Dest")
				if act, ok := doc.GetDict(item.KV["A"]); ok {
					resolve(act, "D")
				}
				walk(item.KV["First"])
				o = item.KV["Next"]
			}
		}
		walk(outlines.KV["First"])
	}

	cat.Delete("Dests")
	if hasNames {
		names.Delete("Dests")
		if names.Len() == 0 {
			cat.Delete("Names")
		}
	}
	return rewritten, nil
}

// explicitDest unwraps a destination value: an array, or a dictionary
// holding it under /D.
func explicitDest(doc *raw.Document, v raw.Object) *raw.ArrayObj {
	switch o := doc.Resolve(v).(type) {
	case *raw.ArrayObj:
		return o
	case *raw.DictObj:
		if arr, ok := doc.GetArray(o.KV["D"]); ok {
			return arr
		}
	}
	return nil
}

func walkNameTree(doc *raw.Document, node raw.Object, out map[string]*raw.ArrayObj, seen map[raw.ObjectRef]bool, depth int) {
	if depth > maxNameTreeDepth {
		return
	}
	if ref, ok := node.(raw.RefObj); ok {
		if seen[ref.R] {
			return
		}
		seen[ref.R] = true
	}
	d, ok := doc.GetDict(node)
	if !ok {
		return
	}
	if pairs, ok := doc.GetArray(d.KV["Names"]); ok {
		for i := 0; i+1 < len(pairs.Items); i += 2 {
			key, ok := doc.GetString(pairs.Items[i])
			if !ok {
				continue
			}
			if dest := explicitDest(doc, pairs.Items[i+1]); dest != nil {
				out[string(key)] = dest
			}
		}
	}
	if kids, ok := doc.GetArray(d.KV["Kids"]); ok {
		for _, k := range kids.Items {
			walkNameTree(doc, k, out, seen, depth+1)
		}
	}
}
