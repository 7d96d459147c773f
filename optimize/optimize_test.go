package optimize

import (
	"context"
	"testing"

	"github.com/wudi/boletopdf/ir/raw"
)

func streamDoc() *raw.Document {
	doc := raw.NewDocument("1.7")
	logo := func() *raw.StreamObj {
		d := raw.Dict()
		d.Set("Type", raw.NameLiteral("XObject"))
		d.Set("Subtype", raw.NameLiteral("Image"))
		d.Set("Length", raw.NumberInt(4))
		return raw.NewStream(d, []byte{1, 2, 3, 4})
	}
	doc.Objects[raw.ObjectRef{Num: 1}] = &raw.DictObj{KV: map[string]raw.Object{"Type": raw.NameLiteral("Catalog"), "Pages": raw.Ref(2, 0)}}
	doc.Objects[raw.ObjectRef{Num: 2}] = &raw.DictObj{KV: map[string]raw.Object{
		"Type": raw.NameLiteral("Pages"), "Kids": raw.NewArray(raw.Ref(3, 0), raw.Ref(4, 0)), "Count": raw.NumberInt(2),
	}}
	for _, n := range []int{3, 4} {
		xobj := raw.Dict()
		xobj.Set("Im0", raw.Ref(n+2, 0))
		res := raw.Dict()
		res.Set("XObject", xobj)
		doc.Objects[raw.ObjectRef{Num: n}] = &raw.DictObj{KV: map[string]raw.Object{
			"Type": raw.NameLiteral("Page"), "Parent": raw.Ref(2, 0), "Resources": res,
		}}
	}
	doc.Objects[raw.ObjectRef{Num: 5}] = logo()
	doc.Objects[raw.ObjectRef{Num: 6}] = logo()
	doc.Trailer.Set("Root", raw.Ref(1, 0))
	return doc
}

func imageRef(t *testing.T, doc *raw.Document, page int) raw.ObjectRef {
	t.Helper()
	p := doc.Objects[raw.ObjectRef{Num: page}].(*raw.DictObj)
	res := p.KV["Resources"].(*raw.DictObj)
	return res.KV["XObject"].(*raw.DictObj).KV["Im0"].(raw.RefObj).R
}

func TestCombineDuplicateStreams(t *testing.T) {
	doc := streamDoc()
	stats, err := New(Config{CombineDuplicateStreams: true}).Optimize(context.Background(), doc)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if stats.Combined != 1 {
		t.Fatalf("expected one stream combined, got %d", stats.Combined)
	}
	if _, ok := doc.Objects[raw.ObjectRef{Num: 6}]; ok {
		t.Fatalf("duplicate stream still present")
	}
	if a, b := imageRef(t, doc, 3), imageRef(t, doc, 4); a != b || a.Num != 5 {
		t.Fatalf("pages should share object 5, got %v and %v", a, b)
	}
}

func TestCombineIgnoresDifferentData(t *testing.T) {
	doc := streamDoc()
	doc.Objects[raw.ObjectRef{Num: 6}].(*raw.StreamObj).Data = []byte{9, 9, 9, 9}
	stats, err := New(Config{CombineDuplicateStreams: true}).Optimize(context.Background(), doc)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if stats.Combined != 0 || len(doc.Objects) != 6 {
		t.Fatalf("nothing should change: %+v, %d objects", stats, len(doc.Objects))
	}
}

func TestCombineIdenticalIndirectObjectsSkipsPages(t *testing.T) {
	doc := streamDoc()
	p4 := doc.Objects[raw.ObjectRef{Num: 4}].(*raw.DictObj)
	p4.KV["Resources"].(*raw.DictObj).KV["XObject"].(*raw.DictObj).Set("Im0", raw.Ref(5, 0))
	doc.Objects[raw.ObjectRef{Num: 7}] = raw.NewArray(raw.NumberInt(1))
	doc.Objects[raw.ObjectRef{Num: 8}] = raw.NewArray(raw.NumberInt(1))
	stats, err := New(Config{CombineIdenticalIndirectObjects: true}).Optimize(context.Background(), doc)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if stats.Combined != 1 {
		t.Fatalf("expected the duplicate array combined, got %d", stats.Combined)
	}
	if _, ok := doc.Objects[raw.ObjectRef{Num: 4}]; !ok {
		t.Fatalf("page objects must never be merged")
	}
}

func TestRemoveUnreferenced(t *testing.T) {
	doc := streamDoc()
	doc.Objects[raw.ObjectRef{Num: 9}] = raw.NewArray(raw.Ref(10, 0))
	doc.Objects[raw.ObjectRef{Num: 10}] = raw.NumberInt(1)
	stats, err := New(Config{RemoveUnreferenced: true}).Optimize(context.Background(), doc)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if stats.Removed != 2 {
		t.Fatalf("expected 2 removed, got %d", stats.Removed)
	}
}
