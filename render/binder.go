package render

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/wudi/boletopdf/boleto"
	"github.com/wudi/boletopdf/observability"
	"github.com/wudi/boletopdf/stamper"
)

// binder writes one slip into an open template.
type binder struct {
	s     *stamper.Stamper
	slip  *boleto.Boleto
	logos LogoCache
	log   observability.Logger
}

type step struct {
	name string
	run  func() error
}

// steps lists the writes in print order. Images share the page overlay,
// so logo, barcode and extra images keep their relative order.
func (b *binder) steps() []step {
	slip := b.slip
	t := &slip.Title
	payer := partyBlock(t.Payer)
	guarantor := partyBlock(t.Guarantor)
	var payeeTaxID value
	if t.Payee.TaxID != nil {
		payeeTaxID = some(t.Payee.TaxID.Formatted())
	}
	return []step{
		{"logo", b.logo},
		{"bank code", b.text(fieldBankCode, bankCode(slip.Bank))},
		{"typeable line", b.text(fieldTypeableLine, str(slip.TypeableLine))},
		{"payee", b.text(fieldPayee, str(t.Payee.Name))},
		{"branch and account", b.text(fieldBranchAccount, branchAccount(slip.Account))},
		{"species", b.text(fieldSpecies, str(string(t.Currency)))},
		{"quantity", b.text(fieldQuantity, some(""))},
		{"our number", b.text(fieldOurNumber, ourNumber(t))},
		{"document number", b.text(fieldDocumentNumber, str(t.DocumentNumber))},
		{"payee tax id", b.text(fieldPayeeTaxID, payeeTaxID)},
		{"due date", b.text(fieldDueDate, date(t.DueDate))},
		{"value", b.text(fieldValue, money(t.Value))},
		{"discount", b.text(fieldDiscount, money(t.Discount))},
		{"deduction", b.text(fieldDeduction, money(t.Deduction))},
		{"interest", b.text(fieldInterest, money(t.Interest))},
		{"extra charge", b.text(fieldExtra, money(t.Extra))},
		{"charged value", b.text(fieldCharged, money(t.ChargedValue()))},
		{"instructions", b.instructions},
		{"payer", b.lines(payer, fieldPayerLine1, fieldPayerLine2, fieldPayerLine3)},
		{"payment location", b.text(fieldPaymentLocation, str(slip.PaymentLocation))},
		{"document date", b.text(fieldDocumentDate, date(t.DocumentDate))},
		{"document type", b.text(fieldDocumentType, str(t.DocumentType))},
		{"acceptance", b.text(fieldAcceptance, str(string(t.Acceptance)))},
		{"processing date", b.text(fieldProcessingDate, date(slip.ProcessingDate))},
		{"guarantor", b.lines(guarantor, fieldGuarantorLine1, fieldGuarantorLine2, fieldGuarantorLine3)},
		{"barcode", b.barcode},
		{"payment method", b.text(fieldWallet, wallet(slip.Account))},
		{"extra texts", b.extraTexts},
		{"extra images", b.extraImages},
	}
}

func (b *binder) bind(ctx context.Context) error {
	for _, st := range b.steps() {
		if err := ctx.Err(); err != nil {
			return fail("bind", err)
		}
		if err := st.run(); err != nil {
			return fail("bind "+st.name, err)
		}
	}
	return nil
}

func (b *binder) text(f dual, v value) func() error {
	return func() error { return b.writeDual(f, v) }
}

func (b *binder) lines(vs [3]value, fields ...dual) func() error {
	return func() error {
		for i, f := range fields {
			if err := b.writeDual(f, vs[i]); err != nil {
				return err
			}
		}
		return nil
	}
}

// writeDual writes v to every name of f. Absent values leave the template
// untouched.
func (b *binder) writeDual(f dual, v value) error {
	if !v.present {
		return nil
	}
	for _, name := range f.names() {
		if err := b.write(name, v.text); err != nil {
			return err
		}
	}
	return nil
}

func (b *binder) write(name, text string) error {
	ok, err := b.s.SetField(name, text)
	if err != nil {
		return fmt.Errorf("field %s: %w", name, err)
	}
	if !ok {
		b.log.Debug("field not in template", observability.String(observability.KeyField, name))
	}
	return nil
}

func (b *binder) instructions() error {
	if err := b.writeDual(fieldPayerInstruction, str(b.slip.PayerInstruction)); err != nil {
		return err
	}
	for i, s := range b.slip.Instructions {
		if err := b.writeDual(fieldInstruction(i), str(s)); err != nil {
			return err
		}
	}
	return nil
}

// logo places the bank logo in both sections. Without an image the bank
// name is printed instead.
func (b *binder) logo() error {
	bank := b.slip.Bank
	img := bank.Logo
	if img == nil && b.logos != nil && bank.Code != "" {
		found, err := b.logos.GetOrResolve(bank.Code)
		switch {
		case err == nil:
			img = found
			b.log.Debug("using built-in logo", observability.String(observability.KeyBank, bank.Code))
		case !errors.Is(err, ErrNoLogo):
			b.log.Warn("bank logo unreadable", observability.String(observability.KeyBank, bank.Code), observability.Error("error", err))
		}
	}
	if img == nil {
		b.log.Warn("no logo for bank, printing its name",
			observability.String(observability.KeyBank, bank.Code),
			observability.String("name", bank.Name))
		return b.writeDual(fieldLogo, str(bank.Name))
	}
	for _, name := range fieldLogo.names() {
		if _, err := b.placeImage(name, img, stamper.ImageOptions{Interpolate: true}); err != nil {
			return err
		}
	}
	return nil
}

// barcode draws the symbol over the barcode field. Templates without the
// field skip it.
func (b *binder) barcode() error {
	if b.slip.Barcode == "" {
		return nil
	}
	name := fieldBarcode.collection
	if len(b.s.FieldPositions(name)) == 0 {
		b.log.Debug("template has no barcode field", observability.String(observability.KeyField, name))
		return nil
	}
	img, err := barcodeImage(b.slip.Barcode)
	if err != nil {
		return err
	}
	_, err = b.placeImage(name, img, stamper.ImageOptions{Exact: true})
	return err
}

func (b *binder) extraTexts() error {
	for _, name := range sortedKeys(b.slip.ExtraTexts) {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if err := b.write(name, b.slip.ExtraTexts[name]); err != nil {
			return err
		}
	}
	return nil
}

func (b *binder) extraImages() error {
	names := make([]string, 0, len(b.slip.ExtraImages))
	for name := range b.slip.ExtraImages {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := b.placeImage(name, b.slip.ExtraImages[name], stamper.ImageOptions{Interpolate: true}); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
