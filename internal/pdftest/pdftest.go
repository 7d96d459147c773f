// Package pdftest builds fixture PDFs and inspects rendered output in
// tests.
package pdftest

import (
	"bytes"
	"context"
	"testing"

	"github.com/wudi/boletopdf/builder"
	"github.com/wudi/boletopdf/contentstream"
	"github.com/wudi/boletopdf/filters"
	"github.com/wudi/boletopdf/ir/raw"
	"github.com/wudi/boletopdf/parser"
	"github.com/wudi/boletopdf/writer"
)

// A4 page size in points.
const (
	A4Width  = 595.28
	A4Height = 841.89
)

// Serialize writes doc without compression so tests can grep the bytes.
func Serialize(t testing.TB, doc *raw.Document) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := writer.New(writer.Config{Deterministic: true}).Write(context.Background(), doc, &buf); err != nil {
		t.Fatalf("serialize fixture: %v", err)
	}
	return buf.Bytes()
}

// FormTemplate builds a single A4 page carrying the given text fields.
func FormTemplate(t testing.TB, rotate int, fields ...builder.TextField) []byte {
	t.Helper()
	page := builder.NewBuilder().NewPage(A4Width, A4Height).SetRotation(rotate)
	for _, f := range fields {
		page.AddTextField(f)
	}
	doc, err := page.Finish().Build()
	if err != nil {
		t.Fatalf("build fixture: %v", err)
	}
	return Serialize(t, doc)
}

func Parse(t testing.TB, data []byte) *raw.Document {
	t.Helper()
	doc, err := parser.NewDocumentParser(parser.Config{}).Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	return doc
}

// StreamData returns the decoded payload of a stream object.
func StreamData(t testing.TB, doc *raw.Document, o raw.Object) []byte {
	t.Helper()
	s, ok := doc.GetStream(o)
	if !ok {
		t.Fatalf("object %v is not a stream", o)
	}
	names, params := filters.ExtractFilters(s.Dict)
	if len(names) == 0 {
		return s.Data
	}
	out, err := filters.NewDefaultPipeline(filters.Limits{}).Decode(context.Background(), s.Data, names, params)
	if err != nil {
		t.Fatalf("decode stream: %v", err)
	}
	return out
}

// PageContent concatenates the decoded content streams of page i.
func PageContent(t testing.TB, doc *raw.Document, i int) string {
	t.Helper()
	pages, err := doc.Pages()
	if err != nil {
		t.Fatalf("pages: %v", err)
	}
	if i >= len(pages) {
		t.Fatalf("page %d of %d", i, len(pages))
	}
	var parts []raw.Object
	switch c := doc.Resolve(pages[i].Dict.KV["Contents"]).(type) {
	case *raw.ArrayObj:
		parts = c.Items
	case nil:
	default:
		parts = []raw.Object{pages[i].Dict.KV["Contents"]}
	}
	var buf bytes.Buffer
	for _, p := range parts {
		buf.Write(StreamData(t, doc, p))
		buf.WriteByte('\n')
	}
	return buf.String()
}

// PageTexts collects the strings shown by Tj in page i and in the form
// XObjects it draws, in drawing order.
func PageTexts(t testing.TB, doc *raw.Document, i int) []string {
	t.Helper()
	pages, _ := doc.Pages()
	var texts []string
	var visit func(content []byte, res *raw.DictObj, depth int)
	visit = func(content []byte, res *raw.DictObj, depth int) {
		ops, err := contentstream.Parse(content)
		if err != nil {
			t.Fatalf("parse content: %v", err)
		}
		for _, op := range ops {
			switch op.Operator {
			case "Tj":
				if s, ok := op.Operands[0].(raw.StringObj); ok {
					texts = append(texts, string(s.Bytes))
				}
			case "Do":
				if depth > 8 {
					continue
				}
				name, _ := op.Operands[0].(raw.NameObj)
				xo, _ := res.Get("XObject")
				xobjs, _ := doc.GetDict(xo)
				ref, ok := xobjs.Get(name.Val)
				if !ok {
					continue
				}
				s, ok := doc.GetStream(ref)
				if !ok {
					continue
				}
				if sub, _ := s.Dict.Name("Subtype"); sub != "Form" {
					continue
				}
				inner, _ := doc.GetDict(s.Dict.KV["Resources"])
				if inner == nil {
					inner = res
				}
				visit(StreamData(t, doc, ref), inner, depth+1)
			}
		}
	}
	res, _ := doc.GetDict(doc.Inherited(pages[i].Dict, "Resources"))
	visit([]byte(PageContent(t, doc, i)), res, 0)
	return texts
}

// Images lists the image XObjects registered on page i.
func Images(t testing.TB, doc *raw.Document, i int) []*raw.StreamObj {
	t.Helper()
	pages, _ := doc.Pages()
	res, _ := doc.GetDict(doc.Inherited(pages[i].Dict, "Resources"))
	xo, _ := res.Get("XObject")
	xobjs, ok := doc.GetDict(xo)
	if !ok {
		return nil
	}
	var out []*raw.StreamObj
	for _, k := range xobjs.Keys() {
		if s, ok := doc.GetStream(xobjs.KV[k]); ok {
			if sub, _ := s.Dict.Name("Subtype"); sub == "Image" {
				out = append(out, s)
			}
		}
	}
	return out
}
