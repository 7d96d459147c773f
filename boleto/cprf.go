package boleto

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCPRF is returned for tax ids of the wrong length.
var ErrInvalidCPRF = errors.New("tax id must have 11 (CPF) or 14 (CNPJ) digits")

// PersonType distinguishes individuals (CPF) from companies (CNPJ).
type PersonType int

const (
	Individual PersonType = iota
	Company
)

// CPRF is a Brazilian tax id: a CPF for individuals or a CNPJ for
// companies.
type CPRF struct {
	digits string
	kind   PersonType
}

// ParseCPRF accepts a formatted or bare tax id. Punctuation is ignored.
func ParseCPRF(s string) (*CPRF, error) {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '/' || r == ' ':
		default:
			return nil, fmt.Errorf("parse tax id %q: unexpected %q", s, r)
		}
	}
	digits := b.String()
	switch len(digits) {
	case 11:
		return &CPRF{digits: digits, kind: Individual}, nil
	case 14:
		return &CPRF{digits: digits, kind: Company}, nil
	}
	return nil, fmt.Errorf("parse tax id %q: %w", s, ErrInvalidCPRF)
}

// MustParseCPRF is ParseCPRF for literals known to be well formed.
func MustParseCPRF(s string) *CPRF {
	c, err := ParseCPRF(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *CPRF) Type() PersonType { return c.kind }
func (c *CPRF) Digits() string   { return c.digits }

// Label is "CPF" or "CNPJ".
func (c *CPRF) Label() string {
	if c.kind == Company {
		return "CNPJ"
	}
	return "CPF"
}

// Formatted renders 000.000.000-00 or 00.000.000/0000-00.
func (c *CPRF) Formatted() string {
	d := c.digits
	if c.kind == Company {
		return d[0:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:14]
	}
	return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11]
}

func (c *CPRF) String() string { return c.Formatted() }

// Valid checks the two mod-11 verification digits. The renderer prints
// tax ids as given and never calls it.
func (c *CPRF) Valid() bool {
	d := c.digits
	if strings.Count(d, d[:1]) == len(d) {
		return false
	}
	n := len(d)
	return checkDigit(d[:n-2], c.kind) == d[n-2] && checkDigit(d[:n-1], c.kind) == d[n-1]
}

func checkDigit(prefix string, kind PersonType) byte {
	sum := 0
	for i := range prefix {
		weight := len(prefix) + 1 - i
		if kind == Company {
			// CNPJ weights cycle 2..9 from the right.
			weight = (len(prefix)-1-i)%8 + 2
		}
		sum += int(prefix[i]-'0') * weight
	}
	r := sum % 11
	if r < 2 {
		return '0'
	}
	return byte('0' + 11 - r)
}
