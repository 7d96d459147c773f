package render

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wudi/boletopdf/boleto"
)

// dual names a value printed in both the receipt (txtRs) and the
// collection (txtFc) sections. Either name may be empty when the layout
// has a single occurrence.
type dual struct {
	receipt    string
	collection string
}

var (
	fieldLogo             = dual{"txtRsLogoBanco", "txtFcLogoBanco"}
	fieldBankCode         = dual{"txtRsCodBanco", "txtFcCodBanco"}
	fieldTypeableLine     = dual{"txtRsLinhaDigitavel", "txtFcLinhaDigitavel"}
	fieldPayee            = dual{"txtRsCedente", "txtFcCedente"}
	fieldBranchAccount    = dual{"txtRsAgenciaCodigoCedente", "txtFcAgenciaCodigoCedente"}
	fieldSpecies          = dual{"txtRsEspecie", "txtFcEspecie"}
	fieldQuantity         = dual{"txtRsQuantidade", "txtFcQuantidade"}
	fieldOurNumber        = dual{"txtRsNossoNumero", "txtFcNossoNumero"}
	fieldDocumentNumber   = dual{"txtRsNumeroDocumento", "txtFcNumeroDocumento"}
	fieldPayeeTaxID       = dual{"txtRsCpfCnpj", ""}
	fieldDueDate          = dual{"txtRsDataVencimento", "txtFcDataVencimento"}
	fieldValue            = dual{"txtRsValorDocumento", "txtFcValorDocumento"}
	fieldDiscount         = dual{"txtRsDescontoAbatimento", "txtFcDescontoAbatimento"}
	fieldDeduction        = dual{"txtRsOutraDeducao", "txtFcOutraDeducao"}
	fieldInterest         = dual{"txtRsMoraMulta", "txtFcMoraMulta"}
	fieldExtra            = dual{"txtRsOutroAcrescimo", "txtFcOutroAcrescimo"}
	fieldCharged          = dual{"txtRsValorCobrado", "txtFcValorCobrado"}
	fieldPayerInstruction = dual{"txtRsInstrucaoAoSacado", ""}
	fieldPayerLine1       = dual{"txtRsSacado", "txtFcSacadoL1"}
	fieldPayerLine2       = dual{"", "txtFcSacadoL2"}
	fieldPayerLine3       = dual{"", "txtFcSacadoL3"}
	fieldPaymentLocation  = dual{"", "txtFcLocalPagamento"}
	fieldDocumentDate     = dual{"", "txtFcDataDocumento"}
	fieldDocumentType     = dual{"", "txtFcEspecieDocumento"}
	fieldAcceptance       = dual{"", "txtFcAceite"}
	fieldProcessingDate   = dual{"", "txtFcDataProcessamento"}
	fieldGuarantorLine1   = dual{"", "txtFcSacadorAvalistaL1"}
	fieldGuarantorLine2   = dual{"", "txtFcSacadorAvalistaL2"}
	fieldGuarantorLine3   = dual{"", "txtFcSacadorAvalistaL3"}
	fieldBarcode          = dual{"", "txtFcCodigoBarra"}
	fieldWallet           = dual{"", "txtFcCarteira"}
)

// fieldInstruction is the collection slot for cashier instruction i
// (zero-based).
func fieldInstruction(i int) dual {
	return dual{"", "txtFcInstrucaoAoCaixa" + strconv.Itoa(i+1)}
}

func (d dual) names() []string {
	out := make([]string, 0, 2)
	for _, n := range []string{d.receipt, d.collection} {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// value is a formatted field value that may be absent. Absent values are
// never written; a present empty string clears the field.
type value struct {
	text    string
	present bool
}

var absent = value{}

func some(s string) value { return value{text: s, present: true} }

// str treats the empty string as absent.
func str(s string) value {
	if s == "" {
		return absent
	}
	return some(s)
}

func money(d decimal.NullDecimal) value {
	if !d.Valid {
		return absent
	}
	return some(boleto.FormatMoney(d.Decimal))
}

func date(t time.Time) value {
	if t.IsZero() {
		return absent
	}
	return some(boleto.FormatDate(t))
}

// bankCode renders <code>-<digit>.
func bankCode(b boleto.Bank) value {
	if b.Code == "" {
		return absent
	}
	if b.Digit == "" {
		return some(b.Code)
	}
	return some(b.Code + "-" + b.Digit)
}

// branchAccount renders <branch>[-<digit>] / <account padded to 6>[-<digit>].
func branchAccount(a boleto.Account) value {
	if a.Branch == "" && a.Number == "" {
		return absent
	}
	s := withDigit(a.Branch, a.BranchDigit)
	if a.Number != "" {
		s += " / " + withDigit(zeroPad(a.Number, 6), a.NumberDigit)
	}
	return some(s)
}

func ourNumber(t *boleto.Title) value {
	if t.OurNumber == "" && t.OurNumberDigit == "" {
		return absent
	}
	return some(withDigit(t.OurNumber, t.OurNumberDigit))
}

func withDigit(s, digit string) string {
	if digit == "" {
		return s
	}
	return s + "-" + digit
}

func zeroPad(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}

func wallet(a boleto.Account) value {
	if a.Wallet == nil {
		return absent
	}
	return str(string(a.Wallet.CollectionType))
}
