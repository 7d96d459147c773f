package boleto

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const dateLayout = "02/01/2006"

var ptBR = message.NewPrinter(language.BrazilianPortuguese)

// FormatMoney renders d in the pt-BR #,##0.00 pattern, e.g. 1.234,56.
// Half-even rounding to cents.
func FormatMoney(d decimal.Decimal) string {
	r := d.RoundBank(2)
	_, frac, _ := strings.Cut(r.Abs().StringFixed(2), ".")
	grouped := ptBR.Sprint(number.Decimal(r.Abs().IntPart()))
	if r.IsNegative() {
		grouped = "-" + grouped
	}
	return grouped + "," + frac
}

// FormatDate renders dd/MM/yyyy; the zero time renders as "".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// ParseDate reads a dd/MM/yyyy date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}
