package raw

import (
	"fmt"
	"sort"
)

// Concrete implementations for raw objects.

// Name object
type NameObj struct{ Val string }

func (n NameObj) Type() string  { return "name" }
func (n NameObj) Value() string { return n.Val }

// Number object
type NumberObj struct {
	I     int64
	F     float64
	IsInt bool
}

func (n NumberObj) Type() string { return "number" }
func (n NumberObj) Int() int64 {
	if n.IsInt {
		return n.I
	}
	return int64(n.F)
}
func (n NumberObj) Float() float64 {
	if n.IsInt {
		return float64(n.I)
	}
	return n.F
}

// Boolean object
type BoolObj struct{ V bool }

func (b BoolObj) Type() string { return "boolean" }

// Null object
type NullObj struct{}

func (n NullObj) Type() string { return "null" }

// String object. Hex records the source syntax so rewrites keep it.
type StringObj struct {
	Bytes []byte
	Hex   bool
}

func (s StringObj) Type() string  { return "string" }
func (s StringObj) Value() []byte { return s.Bytes }

// Array object
type ArrayObj struct{ Items []Object }

func (a *ArrayObj) Type() string { return "array" }
func (a *ArrayObj) Get(i int) (Object, bool) {
	if i < 0 || i >= len(a.Items) {
		return nil, false
	}
	return a.Items[i], true
}
func (a *ArrayObj) Len() int        { return len(a.Items) }
func (a *ArrayObj) Append(o Object) { a.Items = append(a.Items, o) }

// Dictionary object
type DictObj struct{ KV map[string]Object }

func (d *DictObj) Type() string { return "dict" }
func (d *DictObj) Get(key string) (Object, bool) {
	if d == nil {
		return nil, false
	}
	o, ok := d.KV[key]
	return o, ok
}
func (d *DictObj) Set(key string, value Object) {
	if d.KV == nil {
		d.KV = make(map[string]Object)
	}
	d.KV[key] = value
}
func (d *DictObj) Delete(key string) { delete(d.KV, key) }
func (d *DictObj) Len() int          { return len(d.KV) }

// Keys returns the dictionary keys in sorted order.
func (d *DictObj) Keys() []string {
	keys := make([]string, 0, len(d.KV))
	for k := range d.KV {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Name returns the value of key when it is a direct name object.
func (d *DictObj) Name(key string) (string, bool) {
	o, ok := d.Get(key)
	if !ok {
		return "", false
	}
	n, ok := o.(NameObj)
	return n.Val, ok
}

// Stream object
type StreamObj struct {
	Dict *DictObj
	Data []byte
}

func (s *StreamObj) Type() string { return "stream" }
func (s *StreamObj) Length() int64 {
	return int64(len(s.Data))
}

// Reference object
type RefObj struct{ R ObjectRef }

func (r RefObj) Type() string   { return "ref" }
func (r RefObj) Ref() ObjectRef { return r.R }

// Helpers
func NameLiteral(v string) NameObj                    { return NameObj{Val: v} }
func NumberInt(i int64) NumberObj                     { return NumberObj{I: i, IsInt: true} }
func NumberFloat(f float64) NumberObj                 { return NumberObj{F: f, IsInt: false} }
func Bool(v bool) BoolObj                             { return BoolObj{V: v} }
func Str(bytes []byte) StringObj                      { return StringObj{Bytes: bytes} }
func HexStr(bytes []byte) StringObj                   { return StringObj{Bytes: bytes, Hex: true} }
func NewArray(items ...Object) *ArrayObj              { return &ArrayObj{Items: items} }
func Dict() *DictObj                                  { return &DictObj{KV: make(map[string]Object)} }
func NewStream(dict *DictObj, data []byte) *StreamObj { return &StreamObj{Dict: dict, Data: data} }
func Ref(num, gen int) RefObj                         { return RefObj{R: ObjectRef{Num: num, Gen: gen}} }

// Rect builds a four-number array.
func Rect(llx, lly, urx, ury float64) *ArrayObj {
	return NewArray(NumberFloat(llx), NumberFloat(lly), NumberFloat(urx), NumberFloat(ury))
}

// Clone deep-copies containers. References are copied as references.
func Clone(o Object) Object {
	switch v := o.(type) {
	case *ArrayObj:
		out := &ArrayObj{Items: make([]Object, len(v.Items))}
		for i, it := range v.Items {
			out.Items[i] = Clone(it)
		}
		return out
	case *DictObj:
		out := &DictObj{KV: make(map[string]Object, len(v.KV))}
		for k, it := range v.KV {
			out.KV[k] = Clone(it)
		}
		return out
	case *StreamObj:
		data := make([]byte, len(v.Data))
		copy(data, v.Data)
		return &StreamObj{Dict: Clone(v.Dict).(*DictObj), Data: data}
	case StringObj:
		b := make([]byte, len(v.Bytes))
		copy(b, v.Bytes)
		return StringObj{Bytes: b, Hex: v.Hex}
	default:
		return o
	}
}

// RewriteRefs replaces every reference reachable inside o (without
// following references) using fn. Containers are modified in place and the
// possibly replaced object is returned.
func RewriteRefs(o Object, fn func(ObjectRef) ObjectRef) Object {
	switch v := o.(type) {
	case RefObj:
		return RefObj{R: fn(v.R)}
	case *ArrayObj:
		for i, it := range v.Items {
			v.Items[i] = RewriteRefs(it, fn)
		}
	case *DictObj:
		for k, it := range v.KV {
			v.KV[k] = RewriteRefs(it, fn)
		}
	case *StreamObj:
		RewriteRefs(v.Dict, fn)
	}
	return o
}

// CollectRefs calls fn for each reference directly held by o.
func CollectRefs(o Object, fn func(ObjectRef)) {
	switch v := o.(type) {
	case RefObj:
		fn(v.R)
	case *ArrayObj:
		for _, it := range v.Items {
			CollectRefs(it, fn)
		}
	case *DictObj:
		for _, k := range v.Keys() {
			CollectRefs(v.KV[k], fn)
		}
	case *StreamObj:
		CollectRefs(v.Dict, fn)
	}
}

// NumberValue extracts a float from a direct number object.
func NumberValue(o Object) (float64, bool) {
	n, ok := o.(NumberObj)
	if !ok {
		return 0, false
	}
	return n.Float(), true
}

func describe(o Object) string {
	if o == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s", o.Type())
}
