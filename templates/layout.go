package templates

import (
	"strconv"

	"github.com/wudi/boletopdf/builder"
	"github.com/wudi/boletopdf/coords"
)

// A4 in points.
const (
	pageWidth  = 595.28
	pageHeight = 841.89

	left  = 20.0
	right = 575.0
	// split is where the right-hand value column of the collection
	// section starts.
	split = 430.0

	labelSize = 5.5
	valueSize = 8.0
)

// cell is a ruled box with a caption and, optionally, the field filling it.
type cell struct {
	label string
	field string
	llx   float64
	lly   float64
	urx   float64
	ury   float64
	size  float64
	align builder.Align
	font  string
}

func (c cell) fieldRect() coords.Rect {
	top := c.ury
	if c.label != "" {
		top -= 7
	}
	return coords.NewRect(c.llx+2, c.lly+1, c.urx-2, top)
}

// row splits [llx, urx] at the given x positions into cells sharing a
// vertical band.
func row(lly, ury float64, xs []float64, specs ...cell) []cell {
	out := make([]cell, len(specs))
	for i, c := range specs {
		c.llx, c.urx = xs[i], xs[i+1]
		c.lly, c.ury = lly, ury
		out[i] = c
	}
	return out
}

func figure(label, field string) cell {
	return cell{label: label, field: field, align: builder.AlignRight}
}

func text(label, field string) cell { return cell{label: label, field: field} }

// header draws the bank strip shared by both sections: logo, bank code
// and typeable line.
func header(p builder.PageBuilder, prefix string, lly float64) []cell {
	ury := lly + 24
	p.DrawLine(left, lly, right, lly, builder.LineOptions{LineWidth: 1.5})
	p.DrawLine(142, lly, 142, ury, builder.LineOptions{LineWidth: 1.5})
	p.DrawLine(200, lly, 200, ury, builder.LineOptions{LineWidth: 1.5})
	return []cell{
		{field: prefix + "LogoBanco", llx: left, lly: lly + 1, urx: 140, ury: ury, size: 10},
		{field: prefix + "CodBanco", llx: 142, lly: lly, urx: 200, ury: ury, size: 13, align: builder.AlignCenter},
		{field: prefix + "LinhaDigitavel", llx: 200, lly: lly, urx: right, ury: ury, size: 10, align: builder.AlignRight, font: "Courier"},
	}
}

func receipt(p builder.PageBuilder) []cell {
	cells := header(p, "txtRs", 790)
	cells = append(cells, row(762, 788, []float64{left, 250, 370, 420, 470, right},
		text("Cedente", "txtRsCedente"),
		text("Agência / Código do Cedente", "txtRsAgenciaCodigoCedente"),
		text("Espécie", "txtRsEspecie"),
		text("Quantidade", "txtRsQuantidade"),
		figure("Nosso Número", "txtRsNossoNumero"),
	)...)
	cells = append(cells, row(736, 762, []float64{left, 150, 300, 420, right},
		text("Número do Documento", "txtRsNumeroDocumento"),
		text("CPF/CNPJ", "txtRsCpfCnpj"),
		text("Vencimento", "txtRsDataVencimento"),
		figure("Valor do Documento", "txtRsValorDocumento"),
	)...)
	cells = append(cells, row(710, 736, []float64{left, 131, 242, 353, 464, right},
		figure("(-) Desconto / Abatimento", "txtRsDescontoAbatimento"),
		figure("(-) Outras Deduções", "txtRsOutraDeducao"),
		figure("(+) Mora / Multa", "txtRsMoraMulta"),
		figure("(+) Outros Acréscimos", "txtRsOutroAcrescimo"),
		figure("(=) Valor Cobrado", "txtRsValorCobrado"),
	)...)
	cells = append(cells, row(684, 710, []float64{left, right},
		text("Sacado", "txtRsSacado"),
	)...)
	cells = append(cells, row(628, 684, []float64{left, right},
		text("Instruções ao Sacado", "txtRsInstrucaoAoSacado"),
	)...)
	return cells
}

func collection(p builder.PageBuilder, guarantor bool) []cell {
	cells := header(p, "txtFc", 556)
	cells = append(cells, row(528, 554, []float64{left, split, right},
		text("Local de Pagamento", "txtFcLocalPagamento"),
		figure("Vencimento", "txtFcDataVencimento"),
	)...)
	cells = append(cells, row(502, 528, []float64{left, split, right},
		text("Cedente", "txtFcCedente"),
		figure("Agência / Código do Cedente", "txtFcAgenciaCodigoCedente"),
	)...)
	cells = append(cells, row(476, 502, []float64{left, 110, 230, 290, 330, split, right},
		text("Data do Documento", "txtFcDataDocumento"),
		text("Nº do Documento", "txtFcNumeroDocumento"),
		text("Espécie Doc.", "txtFcEspecieDocumento"),
		text("Aceite", "txtFcAceite"),
		text("Data Processamento", "txtFcDataProcessamento"),
		figure("Nosso Número", "txtFcNossoNumero"),
	)...)
	cells = append(cells, row(450, 476, []float64{left, 110, 170, 230, 330, split, right},
		text("Uso do Banco", ""),
		text("Carteira", "txtFcCarteira"),
		text("Espécie", "txtFcEspecie"),
		text("Quantidade", "txtFcQuantidade"),
		text("Valor", ""),
		figure("(=) Valor do Documento", "txtFcValorDocumento"),
	)...)

	// Cashier instructions share one box on the left; the money column
	// runs beside it.
	cells = append(cells, cell{label: "Instruções (Texto de responsabilidade do cedente)", llx: left, lly: 320, urx: split, ury: 450})
	for i := 0; i < 8; i++ {
		top := 442 - float64(i)*15.25
		cells = append(cells, cell{
			field: "txtFcInstrucaoAoCaixa" + strconv.Itoa(i+1),
			llx:   left, lly: top - 15, urx: split, ury: top, size: 7,
		})
	}
	for i, c := range []cell{
		figure("(-) Desconto / Abatimento", "txtFcDescontoAbatimento"),
		figure("(-) Outras Deduções", "txtFcOutraDeducao"),
		figure("(+) Mora / Multa", "txtFcMoraMulta"),
		figure("(+) Outros Acréscimos", "txtFcOutroAcrescimo"),
		figure("(=) Valor Cobrado", "txtFcValorCobrado"),
	} {
		c.llx, c.urx = split, right
		c.ury = 450 - float64(i)*26
		c.lly = c.ury - 26
		cells = append(cells, c)
	}

	cells = append(cells, cell{label: "Sacado", llx: left, lly: 270, urx: right, ury: 320})
	for i, name := range []string{"txtFcSacadoL1", "txtFcSacadoL2", "txtFcSacadoL3"} {
		top := 312 - float64(i)*13
		cells = append(cells, cell{field: name, llx: left + 30, lly: top - 13, urx: right, ury: top})
	}
	if guarantor {
		cells = append(cells, cell{label: "Sacador / Avalista", llx: left, lly: 226, urx: right, ury: 270})
		for i, name := range []string{"txtFcSacadorAvalistaL1", "txtFcSacadorAvalistaL2", "txtFcSacadorAvalistaL3"} {
			top := 262 - float64(i)*12
			cells = append(cells, cell{field: name, llx: left + 60, lly: top - 12, urx: right, ury: top})
		}
	} else {
		cells = append(cells, cell{label: "Sacador / Avalista", llx: left, lly: 250, urx: right, ury: 270})
	}

	bottom := 250.0
	if guarantor {
		bottom = 226
	}
	cells = append(cells, cell{field: "txtFcCodigoBarra", llx: left, lly: bottom - 64, urx: 430, ury: bottom - 14})
	p.DrawText("Autenticação Mecânica - Ficha de Compensação", right, bottom-8,
		builder.TextOptions{FontSize: labelSize, Align: builder.AlignRight})
	return cells
}

// draw rules every captioned cell and registers its field.
func draw(p builder.PageBuilder, cells []cell) {
	for _, c := range cells {
		if c.label != "" {
			p.DrawRectangle(c.llx, c.lly, c.urx-c.llx, c.ury-c.lly, builder.RectOptions{LineWidth: 0.5})
			p.DrawText(c.label, c.llx+2, c.ury-6, builder.TextOptions{FontSize: labelSize})
		}
		if c.field == "" {
			continue
		}
		size := c.size
		if size == 0 {
			size = valueSize
		}
		font := c.font
		if font == "" {
			font = "Helvetica"
		}
		p.AddTextField(builder.TextField{
			Name:      c.field,
			Rect:      c.fieldRect(),
			FontSize:  size,
			Font:      font,
			Align:     c.align,
			Multiline: c.field == "txtRsInstrucaoAoSacado",
		})
	}
}
