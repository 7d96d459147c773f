package merge_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/wudi/boletopdf/builder"
	"github.com/wudi/boletopdf/internal/pdftest"
	"github.com/wudi/boletopdf/ir/raw"
	"github.com/wudi/boletopdf/merge"
)

func page(t *testing.T, label string, rotate int) []byte {
	t.Helper()
	doc, err := builder.NewBuilder().
		NewPage(pdftest.A4Width, pdftest.A4Height).
		SetRotation(rotate).
		DrawText(label, 40, 800, builder.TextOptions{FontSize: 10}).
		Finish().
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return pdftest.Serialize(t, doc)
}

func TestDocumentsKeepsOrder(t *testing.T) {
	inputs := [][]byte{page(t, "first", 0), page(t, "second", 90), page(t, "third", 0)}
	out, err := merge.Documents(context.Background(), inputs)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	doc := pdftest.Parse(t, out)
	pages, err := doc.Pages()
	if err != nil {
		t.Fatalf("pages: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("got %d pages", len(pages))
	}
	for i, want := range []string{"first", "second", "third"} {
		texts := pdftest.PageTexts(t, doc, i)
		if len(texts) != 1 || texts[0] != want {
			t.Fatalf("page %d texts = %q, want %q", i, texts, want)
		}
	}
	if rot, _ := doc.GetNumber(doc.Inherited(pages[1].Dict, "Rotate")); rot != 90 {
		t.Fatalf("rotation lost: %v", rot)
	}
	cat, _ := doc.Catalog()
	root, _ := doc.GetDict(cat.KV["Pages"])
	if n, _ := doc.GetNumber(root.KV["Count"]); n != 3 {
		t.Fatalf("Count = %v", n)
	}
	for _, p := range pages {
		if p.Dict.KV["Parent"].(raw.RefObj) != cat.KV["Pages"].(raw.RefObj) {
			t.Fatalf("page %s not reparented", p.Ref)
		}
	}
}

func TestMergeSharesIdenticalStreams(t *testing.T) {
	one := page(t, "same", 0)
	out, err := merge.Documents(context.Background(), [][]byte{one, one})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	doc := pdftest.Parse(t, out)
	pages, _ := doc.Pages()
	a := pages[0].Dict.KV["Contents"]
	b := pages[1].Dict.KV["Contents"]
	if a != b {
		t.Fatalf("identical content streams should be shared: %v vs %v", a, b)
	}
}

func TestMergeErrors(t *testing.T) {
	if _, err := merge.Documents(context.Background(), nil); !errors.Is(err, merge.ErrNoInput) {
		t.Fatalf("expected ErrNoInput, got %v", err)
	}
	_, err := merge.Documents(context.Background(), [][]byte{page(t, "ok", 0), []byte("garbage")})
	if err == nil || !strings.Contains(err.Error(), "input 1") {
		t.Fatalf("expected failing input to be named, got %v", err)
	}
}

func TestMergeInheritsResources(t *testing.T) {
	// Resources and MediaBox live on the tree root rather than the page.
	doc := raw.NewDocument("1.4")
	content := doc.Add(raw.NewStream(raw.Dict(), []byte("BT /F1 9 Tf (inherited) Tj ET")))
	font := raw.Dict()
	font.Set("Type", raw.NameLiteral("Font"))
	font.Set("Subtype", raw.NameLiteral("Type1"))
	font.Set("BaseFont", raw.NameLiteral("Helvetica"))
	fonts := raw.Dict()
	fonts.Set("F1", doc.Add(font))
	res := raw.Dict()
	res.Set("Font", fonts)
	pg := raw.Dict()
	pg.Set("Type", raw.NameLiteral("Page"))
	pg.Set("Contents", content)
	pageRef := doc.Add(pg)
	root := raw.Dict()
	root.Set("Type", raw.NameLiteral("Pages"))
	root.Set("Kids", raw.NewArray(pageRef))
	root.Set("Count", raw.NumberInt(1))
	root.Set("Resources", res)
	root.Set("MediaBox", raw.Rect(0, 0, 200, 100))
	rootRef := doc.Add(root)
	pg.Set("Parent", rootRef)
	cat := raw.Dict()
	cat.Set("Type", raw.NameLiteral("Catalog"))
	cat.Set("Pages", rootRef)
	doc.Trailer.Set("Root", doc.Add(cat))

	var buf bytes.Buffer
	if err := merge.New(merge.Config{}).Merge(context.Background(), [][]byte{pdftest.Serialize(t, doc)}, &buf); err != nil {
		t.Fatalf("merge: %v", err)
	}
	out := pdftest.Parse(t, buf.Bytes())
	pages, _ := out.Pages()
	box, ok := out.Box(pages[0].Dict.KV["MediaBox"])
	if !ok || box[2] != 200 || box[3] != 100 {
		t.Fatalf("MediaBox not pinned on page: %v", box)
	}
	if texts := pdftest.PageTexts(t, out, 0); len(texts) != 1 || texts[0] != "inherited" {
		t.Fatalf("texts = %q", texts)
	}
}
