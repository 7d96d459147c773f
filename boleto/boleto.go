// Package boleto holds the payment slip model consumed by the renderer.
// Every optional value has an explicit absent state: "" for text, the
// zero time for dates, an invalid decimal.NullDecimal for money and nil
// for parties and tax ids.
package boleto

import (
	"image"
	"time"

	"github.com/shopspring/decimal"
)

// InstructionSlots is the number of cashier instruction lines a slip
// carries.
const InstructionSlots = 8

// Boleto is one payment slip.
type Boleto struct {
	Title   Title
	Bank    Bank
	Account Account

	PaymentLocation string
	ProcessingDate  time.Time

	// Barcode is the 44 digit payload; TypeableLine its printable form.
	Barcode      string
	TypeableLine string

	// PayerInstruction goes to the receipt section, Instructions to the
	// cashier slots of the collection section.
	PayerInstruction string
	Instructions     [InstructionSlots]string

	// ExtraTexts and ExtraImages are written last, keyed by field name.
	ExtraTexts  map[string]string
	ExtraImages map[string]image.Image
}

// Title is the receivable the slip collects.
type Title struct {
	Payee     Party
	Payer     *Party
	Guarantor *Party

	DocumentNumber string
	OurNumber      string
	OurNumberDigit string
	Currency       Currency
	DocumentType   string // abbreviation, e.g. "DM"
	Acceptance     Acceptance

	DocumentDate time.Time
	DueDate      time.Time

	Value     decimal.NullDecimal
	Discount  decimal.NullDecimal
	Deduction decimal.NullDecimal
	Interest  decimal.NullDecimal
	Extra     decimal.NullDecimal
	Charged   decimal.NullDecimal
}

// HasGuarantor reports whether a guarantor block is printed.
func (t *Title) HasGuarantor() bool { return t.Guarantor != nil }

// ChargedValue returns the explicit charged value, or derives it as
// value - discount - deduction + interest + extra. Absent amounts count as
// zero. The result is absent only when neither the charged value nor the
// face value is present.
func (t *Title) ChargedValue() decimal.NullDecimal {
	if t.Charged.Valid {
		return t.Charged
	}
	if !t.Value.Valid {
		return decimal.NullDecimal{}
	}
	v := t.Value.Decimal.
		Sub(orZero(t.Discount)).
		Sub(orZero(t.Deduction)).
		Add(orZero(t.Interest)).
		Add(orZero(t.Extra))
	return decimal.NullDecimal{Decimal: v, Valid: true}
}

func orZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

// Money wraps a value as present.
func Money(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// Currency is the species printed on the slip.
type Currency string

const (
	Real   Currency = "REAL"
	Dollar Currency = "DOLAR"
)

// Acceptance is the acceptance flag of the title.
type Acceptance string

const (
	Accepted    Acceptance = "A"
	NotAccepted Acceptance = "N"
)

// Party is a payee, payer or guarantor.
type Party struct {
	Name      string
	TaxID     *CPRF
	Addresses []Address
}

// Address is a postal address. Empty fields are absent.
type Address struct {
	Street   string
	Number   string
	District string
	City     string
	State    string // two letter UF
	ZIP      string
}

// Bank identifies the issuing institution.
type Bank struct {
	Code  string // 3 digit compensation code
	Digit string
	Name  string
	// Logo overrides the built-in logo lookup when set.
	Logo image.Image
}

// Account is the payee's bank account.
type Account struct {
	Branch      string
	BranchDigit string
	Number      string
	NumberDigit string
	Wallet      *Wallet
}

// Wallet is the collection portfolio of an account.
type Wallet struct {
	Code           string
	CollectionType CollectionType
}

// CollectionType says whether titles are registered with the bank.
type CollectionType string

const (
	Registered   CollectionType = "CR"
	Unregistered CollectionType = "SR"
)
