package xref_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/wudi/boletopdf/ir/raw"
	"github.com/wudi/boletopdf/xref"
)

// stubReader hands back prepared objects instead of parsing them.
type stubReader struct {
	trailers map[int64]*raw.DictObj
	streams  map[int64]*raw.StreamObj
}

func (s *stubReader) ReadDirectAt(offset int64) (raw.Object, error) {
	for at, d := range s.trailers {
		if offset >= at && offset < at+16 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no trailer near %d", offset)
}

func (s *stubReader) ReadIndirectAt(offset int64) (raw.ObjectRef, raw.Object, error) {
	if st, ok := s.streams[offset]; ok {
		return raw.ObjectRef{Num: 9}, st, nil
	}
	return raw.ObjectRef{}, nil, fmt.Errorf("nothing at %d", offset)
}

func (s *stubReader) DecodeStream(st *raw.StreamObj) ([]byte, error) { return st.Data, nil }

func trailer(kv map[string]raw.Object) *raw.DictObj {
	d := raw.Dict()
	for k, v := range kv {
		d.Set(k, v)
	}
	return d
}

func TestResolverParsesClassicTableWithPrev(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	first := buf.Len()
	buf.WriteString("xref\n0 3\n0000000000 65535 f \n0000000015 00000 n \n0000000060 00000 n \ntrailer\n")
	firstTrailer := buf.Len() - len("trailer\n") + len("trailer")
	second := buf.Len()
	buf.WriteString("xref\n2 1\n0000000200 00001 n \ntrailer\n")
	secondTrailer := buf.Len() - len("trailer\n") + len("trailer")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", second)

	objects := &stubReader{trailers: map[int64]*raw.DictObj{
		int64(firstTrailer):  trailer(map[string]raw.Object{"Size": raw.NumberInt(3), "Root": raw.Ref(1, 0)}),
		int64(secondTrailer): trailer(map[string]raw.Object{"Size": raw.NumberInt(3), "Root": raw.Ref(1, 0), "Prev": raw.NumberInt(int64(first))}),
	}}
	table, err := xref.NewResolver(xref.ResolverConfig{DisableRepair: true}).Resolve(context.Background(), buf.Bytes(), objects)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	e, ok := table.Lookup(2)
	if !ok || e.Offset != 200 || e.Gen != 1 {
		t.Fatalf("newest entry should win, got %+v", e)
	}
	e, ok = table.Lookup(1)
	if !ok || e.Kind != xref.EntryInUse || e.Offset != 15 {
		t.Fatalf("entry from previous section missing, got %+v", e)
	}
	if got := table.Objects(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("unexpected objects %v", got)
	}
	if _, ok := table.Trailer.Get("Prev"); !ok {
		t.Fatalf("expected newest trailer to be kept")
	}
}

func TestResolverParsesXRefStream(t *testing.T) {
	data := []byte("%PDF-1.5\n" + string(make([]byte, 40)) + "startxref\n20\n%%EOF\n")
	dict := trailer(map[string]raw.Object{
		"Type":  raw.NameLiteral("XRef"),
		"Size":  raw.NumberInt(4),
		"Root":  raw.Ref(1, 0),
		"W":     raw.NewArray(raw.NumberInt(1), raw.NumberInt(2), raw.NumberInt(1)),
		"Index": raw.NewArray(raw.NumberInt(1), raw.NumberInt(3)),
	})
	rows := []byte{
		1, 0, 10, 0,
		2, 0, 3, 5,
		0, 0, 0, 1,
	}
	objects := &stubReader{streams: map[int64]*raw.StreamObj{20: raw.NewStream(dict, rows)}}
	table, err := xref.NewResolver(xref.ResolverConfig{DisableRepair: true}).Resolve(context.Background(), data, objects)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if e, _ := table.Lookup(1); e.Kind != xref.EntryInUse || e.Offset != 10 {
		t.Fatalf("unexpected entry 1: %+v", e)
	}
	if e, _ := table.Lookup(2); e.Kind != xref.EntryCompressed || e.Stream != 3 || e.Index != 5 {
		t.Fatalf("unexpected entry 2: %+v", e)
	}
	if e, _ := table.Lookup(3); e.Kind != xref.EntryFree {
		t.Fatalf("unexpected entry 3: %+v", e)
	}
}

func TestResolverErrorsWithoutStartXRef(t *testing.T) {
	_, err := xref.NewResolver(xref.ResolverConfig{DisableRepair: true}).Resolve(context.Background(), []byte("%PDF-1.4\n"), &stubReader{})
	if err == nil {
		t.Fatalf("expected error")
	}
}
