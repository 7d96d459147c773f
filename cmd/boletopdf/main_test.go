package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/wudi/boletopdf/boleto"
	"github.com/wudi/boletopdf/parser"
)

const slipYAML = `
slips:
  - bank:
      code: "237"
      digit: "2"
      name: Banco Bradesco S.A.
      logo: logo.png
    account:
      branch: "1234"
      branch_digit: "5"
      number: "678"
      number_digit: "9"
      wallet: "09"
      collection_type: cr
    payment_location: Pagável em qualquer banco até o vencimento
    processing_date: "11/01/2024"
    barcode: "23791234500000100001234090000000012300067890"
    typeable_line: "23791.23405 90000.000015 23000.678906 1 12345000110000"
    instructions:
      - Não receber após o vencimento
      - ""
      - Multa de 2%
    extra_texts:
      - field: txtFcCustomNote
        text: Segunda via
    title:
      document_number: "12345"
      our_number: "00000000123"
      our_number_digit: "4"
      currency: real
      document_type: DM
      acceptance: "n"
      document_date: "2024-01-10"
      due_date: 10/02/2024
      value: "1.100,00"
      discount: 10
      deduction: "5"
      interest: 2.5
      extra: "1"
      payee:
        name: Empresa Exemplo LTDA
        tax_id: 11.222.333/0001-81
      payer:
        name: Fulano de Tal
        tax_id: 529.982.247-25
        addresses:
          - street: Rua A
            number: "10"
            district: Centro
            city: Recife
            state: PE
            zip: 12345-678
  - bank:
      code: "341"
    barcode: "34191234500000100001234090000000012300067890"
    title:
      value: 50
      payee:
        name: Outra Empresa
      payer:
        name: Beltrano
      guarantor:
        name: Avalista SA
        tax_id: "11222333000181"
`

func writeSlips(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 12, 4))
	for x := 0; x < 12; x++ {
		img.Set(x, 1, color.RGBA{R: 200, A: 255})
	}
	f, err := os.Create(filepath.Join(dir, "logo.png"))
	if err != nil {
		t.Fatalf("create logo: %v", err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode logo: %v", err)
	}
	f.Close()
	path := filepath.Join(dir, "slips.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write slips: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoadSlips(t *testing.T) {
	slips, err := loadSlips(writeSlips(t, slipYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(slips) != 2 {
		t.Fatalf("got %d slips", len(slips))
	}
	b := slips[0]
	if b.Bank.Logo == nil || b.Bank.Logo.Bounds().Dx() != 12 {
		t.Fatalf("logo not loaded: %v", b.Bank.Logo)
	}
	if b.Account.Wallet == nil || b.Account.Wallet.CollectionType != boleto.Registered {
		t.Fatalf("wallet = %+v", b.Account.Wallet)
	}
	if b.Title.Currency != boleto.Real || b.Title.Acceptance != boleto.NotAccepted {
		t.Fatalf("currency/acceptance = %q/%q", b.Title.Currency, b.Title.Acceptance)
	}
	if got := boleto.FormatDate(b.Title.DocumentDate); got != "10/01/2024" {
		t.Fatalf("ISO document date = %q", got)
	}
	if got := boleto.FormatDate(b.Title.DueDate); got != "10/02/2024" {
		t.Fatalf("due date = %q", got)
	}
	if got := boleto.FormatMoney(b.Title.ChargedValue().Decimal); got != "1.088,50" {
		t.Fatalf("charged = %q", got)
	}
	if b.Title.Charged.Valid {
		t.Fatalf("charged must stay absent when not given")
	}
	if b.Instructions[0] != "Não receber após o vencimento" || b.Instructions[1] != "" || b.Instructions[2] != "Multa de 2%" {
		t.Fatalf("instructions = %q", b.Instructions)
	}
	if b.ExtraTexts["txtFcCustomNote"] != "Segunda via" {
		t.Fatalf("extra texts must keep field case: %v", b.ExtraTexts)
	}
	if p := b.Title.Payer; p == nil || p.TaxID.Label() != "CPF" || len(p.Addresses) != 1 || p.Addresses[0].ZIP != "12345-678" {
		t.Fatalf("payer = %+v", p)
	}

	g := slips[1]
	if !g.Title.HasGuarantor() || g.Title.Guarantor.TaxID.Label() != "CNPJ" {
		t.Fatalf("guarantor = %+v", g.Title.Guarantor)
	}
	if !g.ProcessingDate.IsZero() || g.Title.Discount.Valid {
		t.Fatalf("missing values must stay absent")
	}
}

func TestLoadSlipsErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"empty", "slips: []\n", "no slips"},
		{"tax id", "slips:\n  - title:\n      payee:\n        tax_id: 12ab\n", "payee"},
		{"date", "slips:\n  - title:\n      due_date: 31/31/2024\n", "due_date"},
		{"money", "slips:\n  - title:\n      value: abc\n", "value"},
		{"instructions", "slips:\n  - instructions: [a, b, c, d, e, f, g, h, i]\n", "at most 8"},
		{"image", "slips:\n  - extra_images:\n      - field: img\n        path: missing.png\n", "extra image img"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadSlips(writeSlips(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in    string
		want  string
		valid bool
	}{
		{"", "", false},
		{"1100", "1.100,00", true},
		{"1100.5", "1.100,50", true},
		{"1.234.567,89", "1.234.567,89", true},
		{"0,1", "0,10", true},
	}
	for _, tc := range cases {
		got, err := parseMoney(tc.in)
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if got.Valid != tc.valid {
			t.Fatalf("%q: valid = %v", tc.in, got.Valid)
		}
		if tc.valid && boleto.FormatMoney(got.Decimal) != tc.want {
			t.Fatalf("%q = %s", tc.in, boleto.FormatMoney(got.Decimal))
		}
	}
}

func TestBatchOnePerFileWithReport(t *testing.T) {
	slips := writeSlips(t, slipYAML)
	dir := t.TempDir()
	report := filepath.Join(dir, "report.xlsx")
	if _, err := run(t, "batch", slips, "-q", "--dir", dir, "--prefix", "b-", "--suffix", "-x", "--report", report); err != nil {
		t.Fatalf("batch: %v", err)
	}
	for _, name := range []string{"b-1-x.pdf", "b-2-x.pdf"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !bytes.HasPrefix(data, []byte("%PDF-")) {
			t.Fatalf("%s is not a PDF", name)
		}
	}

	f, err := excelize.OpenFile(report)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer f.Close()
	checks := map[string]string{
		"A1": "#",
		"B2": "237",
		"C2": "Fulano de Tal",
		"D2": "529.982.247-25",
		"G2": "10/02/2024",
		"C3": "Beltrano",
		"J3": filepath.Join(dir, "b-2-x.pdf"),
	}
	for cell, want := range checks {
		got, err := f.GetCellValue(reportSheet, cell)
		if err != nil || got != want {
			t.Fatalf("%s = %q (%v), want %q", cell, got, err, want)
		}
	}
}

func TestBatchMerge(t *testing.T) {
	slips := writeSlips(t, slipYAML)
	dest := filepath.Join(t.TempDir(), "all.pdf")
	if _, err := run(t, "batch", slips, "-q", "--merge", dest); err != nil {
		t.Fatalf("batch: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read merged: %v", err)
	}
	doc, err := parser.NewDocumentParser(parser.Config{}).Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse merged: %v", err)
	}
	pages, err := doc.Pages()
	if err != nil || len(pages) != 2 {
		t.Fatalf("pages = %d (%v)", len(pages), err)
	}
}

func TestRenderCommand(t *testing.T) {
	slips := writeSlips(t, slipYAML)
	out, err := run(t, "render", slips, "--index", "2", "-o", "-")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasPrefix(out, "%PDF-") {
		t.Fatalf("stdout is not a PDF")
	}
	if _, err := run(t, "render", slips, "--index", "3"); err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("index error = %v", err)
	}
}

func TestFieldsCommand(t *testing.T) {
	out, err := run(t, "fields", "--with-guarantor", "--json")
	if err != nil {
		t.Fatalf("fields: %v", err)
	}
	var fields []fieldInfo
	if err := json.Unmarshal([]byte(out), &fields); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	seen := map[string]fieldInfo{}
	for _, f := range fields {
		seen[f.Name] = f
	}
	for _, name := range []string{"txtFcCodigoBarra", "txtRsCedente", "txtFcSacadorAvalistaL1"} {
		f, ok := seen[name]
		if !ok || f.Page != 1 || f.Rect[2] <= f.Rect[0] {
			t.Fatalf("%s = %+v (present %v)", name, f, ok)
		}
	}

	table, err := run(t, "fields")
	if err != nil {
		t.Fatalf("fields table: %v", err)
	}
	if !strings.HasPrefix(table, "FIELD") || strings.Contains(table, "txtFcSacadorAvalistaL1") {
		t.Fatalf("unexpected table:\n%s", table)
	}
}
