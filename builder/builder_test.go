package builder

import (
	"testing"

	"github.com/wudi/boletopdf/acroform"
	"github.com/wudi/boletopdf/coords"
	"github.com/wudi/boletopdf/ir/raw"
)

func TestBuildPagesAndFields(t *testing.T) {
	doc, err := NewBuilder().
		NewPage(595, 842).
		DrawText("Vencimento", 10, 800, TextOptions{FontSize: 6}).
		DrawLine(0, 790, 595, 790, LineOptions{LineWidth: 0.5}).
		AddTextField(TextField{Name: "txtFcDataVencimento", Rect: coords.NewRect(10, 770, 120, 788), FontSize: 8}).
		Finish().
		NewPage(595, 842).
		SetRotation(-90).
		AddTextField(TextField{Name: "txtFcCedente", Rect: coords.NewRect(10, 10, 200, 30), Value: "ACME"}).
		Finish().
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	pages, err := doc.Pages()
	if err != nil || len(pages) != 2 {
		t.Fatalf("pages: %v %v", pages, err)
	}
	if r, _ := raw.NumberValue(pages[1].Dict.KV["Rotate"]); r != 270 {
		t.Fatalf("rotation not normalized: %v", r)
	}
	form, err := acroform.Load(doc)
	if err != nil {
		t.Fatalf("load form: %v", err)
	}
	if got := form.Names(); len(got) != 2 || got[0] != "txtFcDataVencimento" {
		t.Fatalf("field names: %v", got)
	}
	fd, _ := form.Field("txtFcCedente")
	if fd.Widgets[0].Page != 1 {
		t.Fatalf("widget page = %d", fd.Widgets[0].Page)
	}
	if _, ok := fd.Widgets[0].Dict.Get("AP"); !ok {
		t.Fatalf("prefilled field should carry an appearance")
	}
	if v, ok := form.Value("txtFcCedente"); !ok || v != "ACME" {
		t.Fatalf("prefilled value = %q, %v", v, ok)
	}
	if _, err := doc.Catalog(); err != nil {
		t.Fatalf("catalog: %v", err)
	}
}

func TestBuildDestinationsAndLinks(t *testing.T) {
	doc, err := NewBuilder().
		NewPage(200, 200).
		AddLink(coords.NewRect(0, 0, 10, 10), "intro", false).
		AddLink(coords.NewRect(0, 20, 10, 30), "old", true).
		Finish().
		AddNamedDestination("intro", 0, 150, false).
		AddNamedDestination("old", 0, 100, true).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	cat, _ := doc.Catalog()
	if _, ok := cat.Get("Dests"); !ok {
		t.Fatalf("legacy /Dests missing")
	}
	names, ok := doc.GetDict(cat.KV["Names"])
	if !ok {
		t.Fatalf("/Names missing")
	}
	if _, ok := names.Get("Dests"); !ok {
		t.Fatalf("/Names /Dests missing")
	}
}

func TestBuildErrors(t *testing.T) {
	if _, err := NewBuilder().Build(); err == nil {
		t.Fatalf("expected error for empty document")
	}
	_, err := NewBuilder().NewPage(10, 10).DrawText("x", 0, 0, TextOptions{Font: "Comic Sans"}).Finish().Build()
	if err == nil {
		t.Fatalf("expected error for non-standard font")
	}
	_, err = NewBuilder().NewPage(10, 10).Finish().AddNamedDestination("x", 3, 0, false).Build()
	if err == nil {
		t.Fatalf("expected error for destination on missing page")
	}
}
