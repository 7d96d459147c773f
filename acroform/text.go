package acroform

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/wudi/boletopdf/ir/raw"
)

var utf16BOM = []byte{0xfe, 0xff}

// decodeTextString converts a PDF text string to UTF-8. Strings without a
// UTF-16 byte order mark are read as PDFDocEncoding, approximated by
// Windows-1252.
func decodeTextString(b []byte) string {
	if bytes.HasPrefix(b, utf16BOM) {
		out, err := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder().Bytes(b)
		if err == nil {
			return string(out)
		}
	}
	if utf8.Valid(b) && isASCII(b) {
		return string(b)
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// encodeTextString produces a text string object for s: a literal when s
// is ASCII, UTF-16BE with a byte order mark otherwise.
func encodeTextString(s string) raw.StringObj {
	if isASCII([]byte(s)) {
		return raw.Str([]byte(s))
	}
	out, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		return raw.Str([]byte(s))
	}
	return raw.HexStr(out)
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
