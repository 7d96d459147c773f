package render

import (
	"strings"

	"github.com/wudi/boletopdf/boleto"
)

// identityLine renders "<name>, CPF: <tax id>" (or CNPJ). Each part is
// dropped when absent.
func identityLine(p *boleto.Party) string {
	var sb strings.Builder
	sb.WriteString(p.Name)
	if p.TaxID != nil {
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.TaxID.Label())
		sb.WriteString(": ")
		sb.WriteString(p.TaxID.Formatted())
	}
	return sb.String()
}

// segmenter joins address parts, emitting a separator only after
// something has been written.
type segmenter struct{ sb strings.Builder }

func (s *segmenter) add(sep, part string) {
	if part == "" {
		return
	}
	if s.sb.Len() > 0 {
		s.sb.WriteString(sep)
	}
	s.sb.WriteString(part)
}

// streetLine renders "<street>, n°: <number> - CEP: <zip>".
func streetLine(a boleto.Address) string {
	var s segmenter
	s.add("", a.Street)
	s.add(", n°: ", a.Number)
	s.add(" - CEP: ", a.ZIP)
	return s.sb.String()
}

// localityLine renders "<district> - <city> / <UF>".
func localityLine(a boleto.Address) string {
	var s segmenter
	s.add("", a.District)
	s.add(" - ", a.City)
	s.add(" / ", a.State)
	return s.sb.String()
}

// partyBlock is the three lines printed for a payer or guarantor. Lines 2
// and 3 are absent when the party has no address; only the first address
// is printed.
func partyBlock(p *boleto.Party) [3]value {
	if p == nil {
		return [3]value{}
	}
	block := [3]value{some(identityLine(p))}
	if len(p.Addresses) > 0 {
		block[1] = some(streetLine(p.Addresses[0]))
		block[2] = some(localityLine(p.Addresses[0]))
	}
	return block
}
