package writer

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wudi/boletopdf/ir/raw"
)

// SerializeObject renders one object in PDF syntax.
func SerializeObject(o raw.Object) []byte { return serializePrimitive(o) }

func serializePrimitive(o raw.Object) []byte {
	var b bytes.Buffer
	writePrimitive(&b, o)
	return b.Bytes()
}

func writePrimitive(b *bytes.Buffer, o raw.Object) {
	switch v := o.(type) {
	case raw.NameObj:
		b.WriteString("/" + pdfNameLiteral(v.Val))
	case raw.NumberObj:
		if v.IsInt {
			b.WriteString(strconv.FormatInt(v.I, 10))
		} else {
			b.WriteString(FormatNumber(v.F))
		}
	case raw.BoolObj:
		b.WriteString(strconv.FormatBool(v.V))
	case raw.NullObj:
		b.WriteString("null")
	case raw.StringObj:
		if v.Hex {
			b.WriteByte('<')
			b.WriteString(strings.ToUpper(hex.EncodeToString(v.Bytes)))
			b.WriteByte('>')
			return
		}
		b.Write(escapeLiteralString(v.Bytes))
	case *raw.ArrayObj:
		b.WriteByte('[')
		for i, it := range v.Items {
			if i > 0 {
				b.WriteByte(' ')
			}
			writePrimitive(b, it)
		}
		b.WriteByte(']')
	case *raw.DictObj:
		b.WriteString("<<")
		for _, k := range v.Keys() {
			b.WriteString("/" + pdfNameLiteral(k) + " ")
			writePrimitive(b, v.KV[k])
		}
		b.WriteString(">>")
	case *raw.StreamObj:
		writePrimitive(b, v.Dict)
		b.WriteString("\nstream\n")
		b.Write(v.Data)
		b.WriteString("\nendstream")
	case raw.RefObj:
		fmt.Fprintf(b, "%d %d R", v.R.Num, v.R.Gen)
	default:
		b.WriteString("null")
	}
}

// FormatNumber prints a real without exponent and with at most five
// decimals, trimming trailing zeros.
func FormatNumber(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "0"
	}
	s := strconv.FormatFloat(f, 'f', 5, 64)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}

func escapeLiteralString(rawBytes []byte) []byte {
	var b bytes.Buffer
	b.WriteByte('(')
	for _, ch := range rawBytes {
		switch ch {
		case '\\', '(', ')':
			b.WriteByte('\\')
			b.WriteByte(ch)
		case '\n':
			b.WriteString("\\n")
		case '\r':
			b.WriteString("\\r")
		case '\t':
			b.WriteString("\\t")
		case '\b':
			b.WriteString("\\b")
		case '\f':
			b.WriteString("\\f")
		default:
			if ch < 0x20 || ch >= 0x7f {
				fmt.Fprintf(&b, "\\%03o", ch)
			} else {
				b.WriteByte(ch)
			}
		}
	}
	b.WriteByte(')')
	return b.Bytes()
}

func pdfNameLiteral(value string) string {
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if ch > 0x20 && ch < 0x7f && !strings.ContainsRune("()<>[]{}/%#", rune(ch)) {
			b.WriteByte(ch)
			continue
		}
		fmt.Fprintf(&b, "#%02X", ch)
	}
	return b.String()
}
