package contentstream

import (
	"fmt"

	"github.com/wudi/boletopdf/ir/raw"
)

// DefaultAppearance is the parsed /DA string of a variable text field.
type DefaultAppearance struct {
	Font  string
	Size  float64 // zero means auto-size
	Color []float64
}

// ParseDA reads the font and fill color operators of a /DA string. Other
// operators are ignored.
func ParseDA(da []byte) (DefaultAppearance, error) {
	var out DefaultAppearance
	ops, err := Parse(da)
	if err != nil {
		return out, fmt.Errorf("parse /DA: %w", err)
	}
	for _, op := range ops {
		switch op.Operator {
		case "Tf":
			if len(op.Operands) != 2 {
				return out, fmt.Errorf("/DA: Tf takes 2 operands, got %d", len(op.Operands))
			}
			name, ok := op.Operands[0].(raw.NameObj)
			if !ok {
				return out, fmt.Errorf("/DA: Tf font is not a name")
			}
			size, _ := raw.NumberValue(op.Operands[1])
			out.Font, out.Size = name.Val, size
		case "g", "rg", "k":
			out.Color = out.Color[:0]
			for _, o := range op.Operands {
				v, _ := raw.NumberValue(o)
				out.Color = append(out.Color, v)
			}
		}
	}
	return out, nil
}

// WriteColor emits the fill color operator matching the component count.
func (da DefaultAppearance) WriteColor(b *Builder) {
	switch len(da.Color) {
	case 1:
		b.op("g", da.Color...)
	case 3:
		b.op("rg", da.Color...)
	case 4:
		b.op("k", da.Color...)
	default:
		b.op("g", 0)
	}
}
