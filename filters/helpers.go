package filters

import "github.com/wudi/boletopdf/ir/raw"

// ExtractFilters reads Filter and DecodeParms entries from a stream
// dictionary. The params slice is aligned with the names; entries without
// parameters are nil.
func ExtractFilters(dict *raw.DictObj) ([]string, []*raw.DictObj) {
	var names []string
	filterObj, ok := dict.Get("Filter")
	if !ok {
		return nil, nil
	}
	switch f := filterObj.(type) {
	case raw.NameObj:
		names = append(names, f.Val)
	case *raw.ArrayObj:
		for _, item := range f.Items {
			if n, ok := item.(raw.NameObj); ok {
				names = append(names, n.Val)
			}
		}
	}

	params := make([]*raw.DictObj, len(names))
	if pObj, ok := dict.Get("DecodeParms"); ok && len(names) > 0 {
		switch p := pObj.(type) {
		case *raw.DictObj:
			params[0] = p
		case *raw.ArrayObj:
			for i, item := range p.Items {
				if d, ok := item.(*raw.DictObj); ok && i < len(params) {
					params[i] = d
				}
			}
		}
	}
	return names, params
}

func intParam(params *raw.DictObj, key string, def int) int {
	if params == nil {
		return def
	}
	o, ok := params.Get(key)
	if !ok {
		return def
	}
	v, ok := raw.NumberValue(o)
	if !ok {
		return def
	}
	return int(v)
}
