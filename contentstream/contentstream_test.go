package contentstream

import (
	"testing"

	"github.com/wudi/boletopdf/coords"
	"github.com/wudi/boletopdf/ir/raw"
)

func TestParseOperations(t *testing.T) {
	ops, err := Parse([]byte("q 1 0 0 1 10.5 20 cm /F1 12 Tf [(A) -120 (B)] TJ <</MCID 0>> BDC EMC Q"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []string{"q", "cm", "Tf", "TJ", "BDC", "EMC", "Q"}
	if len(ops) != len(want) {
		t.Fatalf("got %d ops: %v", len(ops), ops)
	}
	for i, op := range ops {
		if op.Operator != want[i] {
			t.Fatalf("op %d = %s, want %s", i, op.Operator, want[i])
		}
	}
	if got := ops[1].String(); got != "1 0 0 1 10.5 20 cm" {
		t.Fatalf("cm round trip: %q", got)
	}
	arr := ops[3].Operands[0].(*raw.ArrayObj)
	if arr.Len() != 3 {
		t.Fatalf("TJ array: %v", arr.Items)
	}
}

func TestParseDanglingOperands(t *testing.T) {
	if _, err := Parse([]byte("1 2 re 5")); err == nil {
		t.Fatalf("expected dangling operand error")
	}
}

func TestProcessorDispatchesOperators(t *testing.T) {
	p := NewProcessor()
	var shown []string
	p.RegisterHandler("Tj", func(op Operation) error {
		s := op.Operands[0].(raw.StringObj)
		shown = append(shown, string(s.Bytes))
		return nil
	})
	if err := p.Process([]byte("BT (Hello) Tj 0 -10 Td (World) Tj ET")); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(shown) != 2 || shown[0] != "Hello" || shown[1] != "World" {
		t.Fatalf("unexpected text: %v", shown)
	}
}

func TestBuilder(t *testing.T) {
	var b Builder
	b.Save().Concat(coords.Matrix{0, 1, -1, 0, 595.28, 0}).
		BeginText().Font("Helv", 8).MoveText(2, 3.25).ShowText([]byte("a(b)")).EndText().
		Restore()
	want := "q\n0 1 -1 0 595.28 0 cm\nBT\n/Helv 8 Tf\n2 3.25 Td\n(a\\(b\\)) Tj\nET\nQ\n"
	if got := string(b.Bytes()); got != want {
		t.Fatalf("got\n%s\nwant\n%s", got, want)
	}
}

func TestParseDA(t *testing.T) {
	cases := []struct {
		in    string
		font  string
		size  float64
		color int
	}{
		{"/Helv 8 Tf 0 g", "Helv", 8, 1},
		{"0 0 1 rg /Cour 0 Tf", "Cour", 0, 3},
		{"/F1 10.5 Tf", "F1", 10.5, 0},
	}
	for _, tc := range cases {
		da, err := ParseDA([]byte(tc.in))
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if da.Font != tc.font || da.Size != tc.size || len(da.Color) != tc.color {
			t.Fatalf("%q: got %+v", tc.in, da)
		}
	}
	if _, err := ParseDA([]byte("(x) 8 Tf")); err == nil {
		t.Fatalf("expected error for non-name font")
	}
}

func TestWriteColor(t *testing.T) {
	var b Builder
	DefaultAppearance{Color: []float64{1, 0, 0}}.WriteColor(&b)
	DefaultAppearance{}.WriteColor(&b)
	if got := string(b.Bytes()); got != "1 0 0 rg\n0 g\n" {
		t.Fatalf("got %q", got)
	}
}
