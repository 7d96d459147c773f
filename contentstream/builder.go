package contentstream

import (
	"bytes"

	"github.com/wudi/boletopdf/coords"
	"github.com/wudi/boletopdf/ir/raw"
	"github.com/wudi/boletopdf/writer"
)

// Builder accumulates content stream operators.
type Builder struct {
	buf bytes.Buffer
}

func (b *Builder) op(name string, nums ...float64) *Builder {
	for _, n := range nums {
		b.buf.WriteString(writer.FormatNumber(n))
		b.buf.WriteByte(' ')
	}
	b.buf.WriteString(name)
	b.buf.WriteByte('\n')
	return b
}

func (b *Builder) Save() *Builder    { return b.op("q") }
func (b *Builder) Restore() *Builder { return b.op("Q") }

func (b *Builder) Concat(m coords.Matrix) *Builder {
	return b.op("cm", m[0], m[1], m[2], m[3], m[4], m[5])
}

func (b *Builder) Rect(x, y, w, h float64) *Builder { return b.op("re", x, y, w, h) }
func (b *Builder) MoveTo(x, y float64) *Builder     { return b.op("m", x, y) }
func (b *Builder) LineTo(x, y float64) *Builder     { return b.op("l", x, y) }
func (b *Builder) Fill() *Builder                   { return b.op("f") }
func (b *Builder) Stroke() *Builder                 { return b.op("S") }
func (b *Builder) FillStroke() *Builder             { return b.op("B") }
func (b *Builder) LineWidth(w float64) *Builder     { return b.op("w", w) }

// Clip intersects the clip path with the current path and ends it.
func (b *Builder) Clip() *Builder {
	b.buf.WriteString("W n\n")
	return b
}

func (b *Builder) Gray(g float64) *Builder             { return b.op("g", g) }
func (b *Builder) RGB(r, g, bl float64) *Builder       { return b.op("rg", r, g, bl) }
func (b *Builder) StrokeGray(g float64) *Builder       { return b.op("G", g) }
func (b *Builder) StrokeRGB(r, g, bl float64) *Builder { return b.op("RG", r, g, bl) }
func (b *Builder) BeginText() *Builder                 { return b.op("BT") }
func (b *Builder) EndText() *Builder                   { return b.op("ET") }
func (b *Builder) MoveText(x, y float64) *Builder      { return b.op("Td", x, y) }

func (b *Builder) Font(resource string, size float64) *Builder {
	b.name(resource)
	return b.op("Tf", size)
}

// ShowText writes an already encoded string.
func (b *Builder) ShowText(encoded []byte) *Builder {
	b.buf.Write(writer.SerializeObject(raw.Str(encoded)))
	b.buf.WriteString(" Tj\n")
	return b
}

func (b *Builder) DrawXObject(resource string) *Builder {
	b.name(resource)
	return b.op("Do")
}

func (b *Builder) BeginMarked(tag string) *Builder {
	b.name(tag)
	return b.op("BMC")
}

func (b *Builder) EndMarked() *Builder { return b.op("EMC") }

// Raw appends pre-built operators, adding a line break when missing.
func (b *Builder) Raw(ops []byte) *Builder {
	b.buf.Write(ops)
	if len(ops) > 0 && ops[len(ops)-1] != '\n' {
		b.buf.WriteByte('\n')
	}
	return b
}

func (b *Builder) name(n string) {
	b.buf.Write(writer.SerializeObject(raw.NameLiteral(n)))
	b.buf.WriteByte(' ')
}

func (b *Builder) Len() int      { return b.buf.Len() }
func (b *Builder) Bytes() []byte { return b.buf.Bytes() }

// Operation renders a parsed operation back to text.
func (op Operation) String() string {
	var buf bytes.Buffer
	for _, o := range op.Operands {
		buf.Write(writer.SerializeObject(o))
		buf.WriteByte(' ')
	}
	buf.WriteString(op.Operator)
	return buf.String()
}
