package raw

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
}

// ErrNoCatalog is returned when the trailer has no usable /Root.
var ErrNoCatalog = errors.New("document has no catalog")

// maxResolveDepth bounds reference chains (a ref pointing to a ref...).
const maxResolveDepth = 32

// Document is the root container for raw PDF objects.
type Document struct {
	Objects map[ObjectRef]Object
	Trailer *DictObj
	Version string // e.g., "1.7"
}

// NewDocument returns an empty document with an initialized object table.
func NewDocument(version string) *Document {
	return &Document{Objects: make(map[ObjectRef]Object), Trailer: Dict(), Version: version}
}

// Parser converts bytes into a raw.Document.
type Parser interface {
	Parse(ctx context.Context, r io.ReaderAt) (*Document, error)
}

// Resolve follows indirect references until a direct object is reached.
// Dangling references resolve to nil.
func (d *Document) Resolve(o Object) Object {
	for i := 0; i < maxResolveDepth; i++ {
		ref, ok := o.(RefObj)
		if !ok {
			return o
		}
		o = d.Objects[ref.R]
	}
	return nil
}

// GetDict resolves o and returns it as a dictionary. Stream dictionaries are
// returned for streams.
func (d *Document) GetDict(o Object) (*DictObj, bool) {
	switch v := d.Resolve(o).(type) {
	case *DictObj:
		return v, true
	case *StreamObj:
		return v.Dict, true
	}
	return nil, false
}

func (d *Document) GetArray(o Object) (*ArrayObj, bool) {
	a, ok := d.Resolve(o).(*ArrayObj)
	return a, ok
}

func (d *Document) GetStream(o Object) (*StreamObj, bool) {
	s, ok := d.Resolve(o).(*StreamObj)
	return s, ok
}

func (d *Document) GetNumber(o Object) (float64, bool) {
	return NumberValue(d.Resolve(o))
}

func (d *Document) GetName(o Object) (string, bool) {
	n, ok := d.Resolve(o).(NameObj)
	return n.Val, ok
}

func (d *Document) GetString(o Object) ([]byte, bool) {
	s, ok := d.Resolve(o).(StringObj)
	return s.Bytes, ok
}

// DictEntry is shorthand for resolving dict[key].
func (d *Document) DictEntry(dict *DictObj, key string) Object {
	o, ok := dict.Get(key)
	if !ok {
		return nil
	}
	return d.Resolve(o)
}

// MaxObjectNumber returns the highest object number in use.
func (d *Document) MaxObjectNumber() int {
	max := 0
	for ref := range d.Objects {
		if ref.Num > max {
			max = ref.Num
		}
	}
	return max
}

// Add stores o under the next free object number.
func (d *Document) Add(o Object) RefObj {
	ref := ObjectRef{Num: d.MaxObjectNumber() + 1}
	d.Objects[ref] = o
	return RefObj{R: ref}
}

// Catalog returns the document catalog dictionary.
func (d *Document) Catalog() (*DictObj, error) {
	if d.Trailer == nil {
		return nil, ErrNoCatalog
	}
	root, ok := d.Trailer.Get("Root")
	if !ok {
		return nil, ErrNoCatalog
	}
	cat, ok := d.GetDict(root)
	if !ok {
		return nil, fmt.Errorf("%w: /Root is %s", ErrNoCatalog, describe(d.Resolve(root)))
	}
	return cat, nil
}

// Page is a leaf of the page tree.
type Page struct {
	Ref  ObjectRef
	Dict *DictObj
}

// Pages walks the page tree in document order.
func (d *Document) Pages() ([]Page, error) {
	cat, err := d.Catalog()
	if err != nil {
		return nil, err
	}
	rootRef, ok := cat.Get("Pages")
	if !ok {
		return nil, fmt.Errorf("catalog has no /Pages")
	}
	var pages []Page
	seen := make(map[ObjectRef]bool)
	var walk func(o Object) error
	walk = func(o Object) error {
		ref, isRef := o.(RefObj)
		if isRef {
			if seen[ref.R] {
				return fmt.Errorf("page tree cycle at %s", ref.R)
			}
			seen[ref.R] = true
		}
		node, ok := d.GetDict(o)
		if !ok {
			return fmt.Errorf("page tree node is %s", describe(d.Resolve(o)))
		}
		typ, _ := node.Name("Type")
		kids, hasKids := d.GetArray(node.KV["Kids"])
		if typ == "Pages" || (typ == "" && hasKids) {
			if !hasKids {
				return nil
			}
			for _, kid := range kids.Items {
				if err := walk(kid); err != nil {
					return err
				}
			}
			return nil
		}
		if !isRef {
			return fmt.Errorf("page object is not indirect")
		}
		pages = append(pages, Page{Ref: ref.R, Dict: node})
		return nil
	}
	if err := walk(rootRef); err != nil {
		return nil, err
	}
	return pages, nil
}

// Inherited looks up an inheritable page attribute (Resources, MediaBox,
// CropBox, Rotate) walking /Parent links.
func (d *Document) Inherited(page *DictObj, key string) Object {
	node := page
	for i := 0; node != nil && i < maxResolveDepth; i++ {
		if v, ok := node.Get(key); ok {
			return d.Resolve(v)
		}
		parent, ok := node.Get("Parent")
		if !ok {
			return nil
		}
		node, _ = d.GetDict(parent)
	}
	return nil
}

// Box resolves a rectangle array into llx, lly, urx, ury.
func (d *Document) Box(o Object) ([4]float64, bool) {
	var box [4]float64
	arr, ok := d.GetArray(o)
	if !ok || arr.Len() != 4 {
		return box, false
	}
	for i, it := range arr.Items {
		v, ok := d.GetNumber(it)
		if !ok {
			return box, false
		}
		box[i] = v
	}
	if box[0] > box[2] {
		box[0], box[2] = box[2], box[0]
	}
	if box[1] > box[3] {
		box[1], box[3] = box[3], box[1]
	}
	return box, true
}
