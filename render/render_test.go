package render

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wudi/boletopdf/boleto"
	"github.com/wudi/boletopdf/builder"
	"github.com/wudi/boletopdf/coords"
	"github.com/wudi/boletopdf/fonts"
	"github.com/wudi/boletopdf/internal/pdftest"
	"github.com/wudi/boletopdf/observability"
	"github.com/wudi/boletopdf/stamper"
	"github.com/wudi/boletopdf/templates"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func amount(s string) decimal.NullDecimal { return boleto.Money(decimal.RequireFromString(s)) }

func sampleSlip() *boleto.Boleto {
	return &boleto.Boleto{
		Title: boleto.Title{
			Payee: boleto.Party{Name: "Empresa Exemplo LTDA", TaxID: boleto.MustParseCPRF("11.222.333/0001-81")},
			Payer: &boleto.Party{
				Name:  "Fulano de Tal",
				TaxID: boleto.MustParseCPRF("529.982.247-25"),
				Addresses: []boleto.Address{
					{Street: "Rua A", Number: "10", ZIP: "12345-678", District: "Centro", City: "Recife", State: "PE"},
					{Street: "ignored"},
				},
			},
			DocumentNumber: "12345",
			OurNumber:      "00000000123",
			OurNumberDigit: "4",
			Currency:       boleto.Real,
			DocumentType:   "DM",
			Acceptance:     boleto.NotAccepted,
			DocumentDate:   day(2024, time.January, 10),
			DueDate:        day(2024, time.February, 10),
			Value:          amount("1100.00"),
			Discount:       amount("10"),
			Deduction:      amount("5"),
			Interest:       amount("2.50"),
			Extra:          amount("1"),
		},
		Bank:            boleto.Bank{Code: "237", Digit: "2", Name: "Banco Bradesco S.A."},
		Account:         boleto.Account{Branch: "1234", BranchDigit: "5", Number: "678", NumberDigit: "9", Wallet: &boleto.Wallet{Code: "09", CollectionType: boleto.Registered}},
		PaymentLocation: "Pagável em qualquer banco até o vencimento",
		ProcessingDate:  day(2024, time.January, 11),
		Barcode:         "23791234500000100001234090000000012300067890",
		TypeableLine:    "23791.23405 90000.000015 23000.678906 1 12345000110000",
		Instructions:    [boleto.InstructionSlots]string{"Não receber após o vencimento", "", "Multa de 2%"},
	}
}

func newEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return e
}

// bound opens the built-in layout for slip and runs the binder without
// finalizing, so field values can be inspected.
func bound(t *testing.T, slip *boleto.Boleto, logos LogoCache) *stamper.Stamper {
	t.Helper()
	v := templates.WithoutGuarantorVariant
	if slip.Title.HasGuarantor() {
		v = templates.WithGuarantorVariant
	}
	data, err := templates.Bytes(v)
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	s, err := stamper.OpenBytes(context.Background(), data, stamper.Config{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	b := &binder{s: s, slip: slip, logos: logos, log: observability.NopLogger{}}
	if err := b.bind(context.Background()); err != nil {
		t.Fatalf("bind: %v", err)
	}
	return s
}

func valueOf(t *testing.T, s *stamper.Stamper, name string) string {
	t.Helper()
	v, ok := s.Form().Value(name)
	if !ok {
		t.Fatalf("field %s has no value", name)
	}
	return v
}

func observed() (observability.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return observability.NewZapLogger(zap.New(core)), logs
}

func contains(texts []string, want string) bool {
	enc := string(fonts.Encode(want))
	for _, s := range texts {
		if s == enc {
			return true
		}
	}
	return false
}

func TestTemplateSelection(t *testing.T) {
	log, logs := observed()
	e := newEngine(t, Config{Logger: log})
	ctx := context.Background()

	slip := sampleSlip()
	if _, err := e.Render(ctx, slip); err != nil {
		t.Fatalf("render: %v", err)
	}
	slip.Title.Guarantor = &boleto.Party{Name: "Avalista SA"}
	if _, err := e.Render(ctx, slip); err != nil {
		t.Fatalf("render: %v", err)
	}
	picked := logs.FilterMessage("template selected").AllUntimed()
	if len(picked) != 2 {
		t.Fatalf("got %d selections", len(picked))
	}
	want := []string{templates.WithoutGuarantorVariant.String(), templates.WithGuarantorVariant.String()}
	for i, entry := range picked {
		if got := entry.ContextMap()[observability.KeyTemplate]; got != want[i] {
			t.Fatalf("render %d used %v, want %s", i, got, want[i])
		}
	}

	s := bound(t, slip, NewMemoryLogoCache(nil))
	if got := valueOf(t, s, "txtFcSacadorAvalistaL1"); got != "Avalista SA" {
		t.Fatalf("guarantor line = %q", got)
	}
}

func TestTemplatePathOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.pdf")
	tpl := pdftest.FormTemplate(t, 0, builder.TextField{Name: "txtFcCedente", Rect: coords.NewRect(20, 700, 300, 720), FontSize: 9})
	if err := os.WriteFile(path, tpl, 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	e := newEngine(t, Config{})
	slip := sampleSlip()
	slip.Title.Guarantor = &boleto.Party{Name: "ignored"}
	out, err := e.Render(context.Background(), slip, WithTemplatePath(path))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	texts := pdftest.PageTexts(t, pdftest.Parse(t, out), 0)
	if len(texts) != 1 || !contains(texts, "Empresa Exemplo LTDA") {
		t.Fatalf("custom template not used: %q", texts)
	}
}

func TestChargedValue(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*boleto.Title)
		want   string
	}{
		{"derived", func(*boleto.Title) {}, "1.088,50"},
		{"explicit", func(tt *boleto.Title) { tt.Charged = amount("999.99") }, "999,99"},
		{"missing amounts", func(tt *boleto.Title) {
			tt.Discount, tt.Deduction, tt.Interest, tt.Extra = decimal.NullDecimal{}, decimal.NullDecimal{}, decimal.NullDecimal{}, decimal.NullDecimal{}
		}, "1.100,00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slip := sampleSlip()
			tt.modify(&slip.Title)
			s := bound(t, slip, NewMemoryLogoCache(nil))
			for _, name := range fieldCharged.names() {
				if got := valueOf(t, s, name); got != tt.want {
					t.Fatalf("%s = %q, want %q", name, got, tt.want)
				}
			}
		})
	}
}

func TestDualFieldsMatch(t *testing.T) {
	slip := sampleSlip()
	s := bound(t, slip, NewMemoryLogoCache(nil))
	duals := []dual{
		fieldBankCode, fieldTypeableLine, fieldPayee, fieldBranchAccount, fieldSpecies,
		fieldQuantity, fieldOurNumber, fieldDocumentNumber, fieldDueDate, fieldValue,
		fieldDiscount, fieldDeduction, fieldInterest, fieldExtra, fieldCharged, fieldPayerLine1,
	}
	for _, d := range duals {
		rs, fc := valueOf(t, s, d.receipt), valueOf(t, s, d.collection)
		if rs != fc {
			t.Fatalf("%s = %q but %s = %q", d.receipt, rs, d.collection, fc)
		}
	}

	want := map[string]string{
		"txtFcCodBanco":             "237-2",
		"txtFcAgenciaCodigoCedente": "1234-5 / 000678-9",
		"txtFcNossoNumero":          "00000000123-4",
		"txtFcDataVencimento":       "10/02/2024",
		"txtFcValorDocumento":       "1.100,00",
		"txtFcQuantidade":           "",
		"txtFcEspecie":              "REAL",
		"txtRsCpfCnpj":              "11.222.333/0001-81",
		"txtFcSacadoL1":             "Fulano de Tal, CPF: 529.982.247-25",
		"txtFcSacadoL2":             "Rua A, n°: 10 - CEP: 12345-678",
		"txtFcSacadoL3":             "Centro - Recife / PE",
		"txtFcCarteira":             "CR",
		"txtFcAceite":               "N",
		"txtFcEspecieDocumento":     "DM",
		"txtFcDataDocumento":        "10/01/2024",
		"txtFcDataProcessamento":    "11/01/2024",
		"txtFcInstrucaoAoCaixa1":    "Não receber após o vencimento",
		"txtFcInstrucaoAoCaixa3":    "Multa de 2%",
	}
	for name, v := range want {
		if got := valueOf(t, s, name); got != v {
			t.Fatalf("%s = %q, want %q", name, got, v)
		}
	}
	for _, name := range []string{"txtFcInstrucaoAoCaixa2", "txtRsInstrucaoAoSacado"} {
		if _, ok := s.Form().Value(name); ok {
			t.Fatalf("absent value was written to %s", name)
		}
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	e := newEngine(t, Config{})
	v := e.Viewer(sampleSlip())
	a, err := v.Bytes(context.Background())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	b, err := v.Bytes(context.Background())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("renders differ")
	}
	doc := pdftest.Parse(t, a)
	cat, _ := doc.Catalog()
	if _, ok := cat.Get("AcroForm"); ok {
		t.Fatalf("output keeps its form")
	}
	if _, ok := cat.Get("Names"); ok {
		t.Fatalf("named destinations were not consolidated")
	}
}

func TestBatchOrder(t *testing.T) {
	var slips []*boleto.Boleto
	for _, name := range []string{"Primeiro", "Segundo", "Terceiro"} {
		s := sampleSlip()
		s.Title.Payee.Name = name
		slips = append(slips, s)
	}
	e := newEngine(t, Config{Parallelism: 3})
	ctx := context.Background()
	dir := t.TempDir()

	paths, err := e.OnePerPDF(ctx, slips, dir, "boleto-", "-2024")
	if err != nil {
		t.Fatalf("one per pdf: %v", err)
	}
	for i, p := range paths {
		want := filepath.Join(dir, "boleto-"+string(rune('1'+i))+"-2024.pdf")
		if p != want {
			t.Fatalf("path %d = %s, want %s", i, p, want)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !contains(pdftest.PageTexts(t, pdftest.Parse(t, data), 0), slips[i].Title.Payee.Name) {
			t.Fatalf("file %s does not hold slip %d", p, i+1)
		}
	}

	dest := filepath.Join(dir, "nested", "all.pdf")
	if err := e.GroupInOnePDF(ctx, slips, dest); err != nil {
		t.Fatalf("group: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	doc := pdftest.Parse(t, data)
	pages, _ := doc.Pages()
	if len(pages) != len(slips) {
		t.Fatalf("merged %d pages", len(pages))
	}
	for i, slip := range slips {
		if !contains(pdftest.PageTexts(t, doc, i), slip.Title.Payee.Name) {
			t.Fatalf("page %d does not hold slip %d", i, i+1)
		}
	}
}

func TestBatchFailureWritesNothing(t *testing.T) {
	bad := sampleSlip()
	bad.Barcode = "12AB"
	e := newEngine(t, Config{})
	dir := t.TempDir()
	_, err := e.OnePerPDF(context.Background(), []*boleto.Boleto{sampleSlip(), bad}, dir, "b", "")
	var re *RenderError
	if !errors.As(err, &re) || re.Op != "bind barcode" {
		t.Fatalf("expected barcode RenderError, got %v", err)
	}
	if !strings.Contains(err.Error(), "slip 2") {
		t.Fatalf("failing slip not named: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("batch left %d files behind", len(entries))
	}
}

func TestLogoFallback(t *testing.T) {
	log, logs := observed()
	e := newEngine(t, Config{Logger: log})
	slip := sampleSlip()
	slip.Bank = boleto.Bank{Code: "999", Digit: "1", Name: "Banco Desconhecido"}
	out, err := e.Render(context.Background(), slip)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if n := logs.FilterMessage("no logo for bank, printing its name").FilterLevelExact(zapcore.WarnLevel).Len(); n != 1 {
		t.Fatalf("expected one fallback warning, got %d", n)
	}
	doc := pdftest.Parse(t, out)
	if imgs := pdftest.Images(t, doc, 0); len(imgs) != 1 {
		t.Fatalf("only the barcode should be an image, got %d", len(imgs))
	}
	texts := pdftest.PageTexts(t, doc, 0)
	n := 0
	for _, s := range texts {
		if s == "Banco Desconhecido" {
			n++
		}
	}
	if n != 2 {
		t.Fatalf("bank name printed %d times", n)
	}

	s := bound(t, slip, NewMemoryLogoCache(nil))
	for _, name := range fieldLogo.names() {
		if got := valueOf(t, s, name); got != "Banco Desconhecido" {
			t.Fatalf("%s = %q", name, got)
		}
	}
}

func TestBuiltinAndCallerLogos(t *testing.T) {
	e := newEngine(t, Config{})
	out, err := e.Render(context.Background(), sampleSlip())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if imgs := pdftest.Images(t, pdftest.Parse(t, out), 0); len(imgs) != 3 {
		t.Fatalf("expected two logos and a barcode, got %d images", len(imgs))
	}

	calls := 0
	cache := NewMemoryLogoCache(func(code string) ([]byte, bool) {
		calls++
		return BuiltinLogos("237")
	})
	for i := 0; i < 3; i++ {
		if _, err := cache.GetOrResolve("001"); err != nil {
			t.Fatalf("resolve: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("source consulted %d times", calls)
	}
	if _, err := NewMemoryLogoCache(nil).GetOrResolve("999"); !errors.Is(err, ErrNoLogo) {
		t.Fatalf("expected ErrNoLogo, got %v", err)
	}
}

func TestMissingBarcodeField(t *testing.T) {
	tpl := pdftest.FormTemplate(t, 0,
		builder.TextField{Name: "txtFcCedente", Rect: coords.NewRect(20, 700, 300, 720), FontSize: 9},
		builder.TextField{Name: "txtFcValorCobrado", Rect: coords.NewRect(400, 700, 560, 720), FontSize: 9, Align: builder.AlignRight},
	)
	e := newEngine(t, Config{})
	out, err := e.Render(context.Background(), sampleSlip(), WithTemplate(TemplateBytes("no-barcode", tpl)))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	doc := pdftest.Parse(t, out)
	if imgs := pdftest.Images(t, doc, 0); len(imgs) != 0 {
		t.Fatalf("nothing should be drawn without a barcode field, got %d images", len(imgs))
	}
	if !contains(pdftest.PageTexts(t, doc, 0), "1.088,50") {
		t.Fatalf("charged value missing")
	}
}

func TestAddressFormatting(t *testing.T) {
	tests := []struct {
		addr   boleto.Address
		street string
		city   string
	}{
		{boleto.Address{Street: "Rua A", Number: "10", ZIP: "12345-678"}, "Rua A, n°: 10 - CEP: 12345-678", ""},
		{boleto.Address{Number: "10", ZIP: "12345-678", City: "Recife", State: "PE"}, "10 - CEP: 12345-678", "Recife / PE"},
		{boleto.Address{Street: "Av. B", District: "Boa Vista", State: "PE"}, "Av. B", "Boa Vista / PE"},
		{boleto.Address{}, "", ""},
	}
	for _, tt := range tests {
		block := partyBlock(&boleto.Party{Addresses: []boleto.Address{tt.addr}})
		if !block[1].present || block[1].text != tt.street {
			t.Fatalf("street line = %+v, want %q", block[1], tt.street)
		}
		if !block[2].present || block[2].text != tt.city {
			t.Fatalf("locality line = %+v, want %q", block[2], tt.city)
		}
	}

	noAddr := partyBlock(&boleto.Party{Name: "X"})
	if noAddr[1].present || noAddr[2].present {
		t.Fatalf("address lines must stay untouched without an address")
	}
	if nilBlock := partyBlock(nil); nilBlock[0].present {
		t.Fatalf("absent party wrote a line")
	}
}

func TestIdentityLine(t *testing.T) {
	cpf := boleto.MustParseCPRF("52998224725")
	cnpj := boleto.MustParseCPRF("11222333000181")
	tests := []struct {
		party boleto.Party
		want  string
	}{
		{boleto.Party{Name: "Ana", TaxID: cpf}, "Ana, CPF: 529.982.247-25"},
		{boleto.Party{Name: "ACME", TaxID: cnpj}, "ACME, CNPJ: 11.222.333/0001-81"},
		{boleto.Party{Name: "Ana"}, "Ana"},
		{boleto.Party{TaxID: cpf}, "CPF: 529.982.247-25"},
		{boleto.Party{}, ""},
	}
	for _, tt := range tests {
		if got := identityLine(&tt.party); got != tt.want {
			t.Fatalf("identityLine = %q, want %q", got, tt.want)
		}
	}
}

func TestRenderErrors(t *testing.T) {
	e := newEngine(t, Config{})
	ctx := context.Background()

	_, err := e.Render(ctx, sampleSlip(), WithTemplate(TemplateBytes("broken", []byte("%PDF-1.4 nothing here"))))
	var re *RenderError
	if !errors.As(err, &re) || re.Op != "open template" {
		t.Fatalf("expected open template error, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "render failed: open template: ") {
		t.Fatalf("message = %q", err.Error())
	}

	_, err = e.Render(ctx, sampleSlip(), WithTemplatePath(filepath.Join(t.TempDir(), "missing.pdf")))
	if !errors.As(err, &re) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing template should wrap ErrNotExist, got %v", err)
	}

	if _, err := e.Render(ctx, nil); !errors.As(err, &re) {
		t.Fatalf("nil slip: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := e.Render(cancelled, sampleSlip()); !errors.As(err, &re) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected wrapped cancellation, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "out.pdf")
	bad := sampleSlip()
	bad.Barcode = "1"
	if err := e.Viewer(bad).WriteFile(ctx, path); err == nil {
		t.Fatalf("odd-length barcode should fail")
	}
	if _, statErr := os.Stat(path); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("failed render left a file behind")
	}
}

func TestViewerReader(t *testing.T) {
	e := newEngine(t, Config{})
	r, err := e.Viewer(sampleSlip()).Reader(context.Background())
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-1.")) {
		t.Fatalf("not a PDF")
	}
}

func TestDefaultEngineRenders(t *testing.T) {
	e, err := New(Config{})
	if err != nil {
		t.Fatalf("New(Config{}) = %v", err)
	}
	for _, slip := range []*boleto.Boleto{sampleSlip(), guaranteed(sampleSlip())} {
		out, err := e.Render(context.Background(), slip)
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if !contains(pdftest.PageTexts(t, pdftest.Parse(t, out), 0), "1.088,50") {
			t.Fatalf("charged value missing from rendered slip")
		}
	}
}

func guaranteed(b *boleto.Boleto) *boleto.Boleto {
	b.Title.Guarantor = &boleto.Party{Name: "Avalista SA"}
	return b
}

func openVariant(t *testing.T, v templates.Variant) *stamper.Stamper {
	t.Helper()
	data, err := templates.Bytes(v)
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	s, err := stamper.OpenBytes(context.Background(), data, stamper.Config{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBindStopsOnCancelledContext(t *testing.T) {
	s := openVariant(t, templates.WithoutGuarantorVariant)
	b := &binder{s: s, slip: sampleSlip(), logos: NewMemoryLogoCache(nil), log: observability.NopLogger{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.bind(ctx)
	var re *RenderError
	if !errors.As(err, &re) || re.Op != "bind" || !errors.Is(err, context.Canceled) {
		t.Fatalf("bind on cancelled context = %v", err)
	}
	if _, ok := s.Form().Value("txtFcCedente"); ok {
		t.Fatalf("no field should be written after cancellation")
	}
}

func TestGuarantorFieldsUntouchedWithoutGuarantor(t *testing.T) {
	s := openVariant(t, templates.WithGuarantorVariant)
	b := &binder{s: s, slip: sampleSlip(), logos: NewMemoryLogoCache(nil), log: observability.NopLogger{}}
	if err := b.bind(context.Background()); err != nil {
		t.Fatalf("bind: %v", err)
	}
	for _, name := range []string{"txtFcSacadorAvalistaL1", "txtFcSacadorAvalistaL2", "txtFcSacadorAvalistaL3"} {
		if !s.Form().Has(name) {
			t.Fatalf("template lacks %s", name)
		}
		if v, ok := s.Form().Value(name); ok {
			t.Fatalf("%s = %q, want untouched", name, v)
		}
	}
	if got := valueOf(t, s, "txtFcSacadoL1"); !strings.HasPrefix(got, "Fulano de Tal") {
		t.Fatalf("payer line = %q", got)
	}
}

func TestMemoryLogoCacheConcurrent(t *testing.T) {
	var mu sync.Mutex
	calls := map[string]int{}
	cache := NewMemoryLogoCache(func(code string) ([]byte, bool) {
		mu.Lock()
		calls[code]++
		mu.Unlock()
		return BuiltinLogos(code)
	})
	codes := []string{"001", "237", "341", "999"}
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			img, err := cache.GetOrResolve(code)
			if code == "999" {
				if !errors.Is(err, ErrNoLogo) {
					t.Errorf("%s: expected ErrNoLogo, got %v", code, err)
				}
				return
			}
			if err != nil || img == nil {
				t.Errorf("%s: %v", code, err)
			}
		}(codes[i%len(codes)])
	}
	wg.Wait()
	for _, code := range codes[:3] {
		if calls[code] != 1 {
			t.Fatalf("source consulted %d times for %s", calls[code], code)
		}
	}

	e := newEngine(t, Config{Logos: cache, Parallelism: 8})
	var slips []*boleto.Boleto
	for i := 0; i < 16; i++ {
		s := sampleSlip()
		s.Bank.Code = codes[i%3]
		slips = append(slips, s)
	}
	if _, err := e.Merge(context.Background(), slips); err != nil {
		t.Fatalf("merge: %v", err)
	}
}
