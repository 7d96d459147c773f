package writer

import (
	"bytes"
	"fmt"

	"github.com/wudi/boletopdf/ir/raw"
)

// xrefEntry mirrors the three-field rows of a cross-reference stream:
// kind 0 free, 1 offset/gen, 2 object stream number/index.
type xrefEntry struct {
	kind   int
	field2 int64
	field3 int
}

func writeXRefTable(buf *bytes.Buffer, entries map[int]xrefEntry, size int) {
	fmt.Fprintf(buf, "xref\n0 %d\n", size)
	for num := 0; num < size; num++ {
		e, ok := entries[num]
		if !ok || e.kind != 1 {
			gen := 0
			if num == 0 {
				gen = 65535
			}
			fmt.Fprintf(buf, "%010d %05d f \n", 0, gen)
			continue
		}
		fmt.Fprintf(buf, "%010d %05d n \n", e.field2, e.field3)
	}
}

func (w *Writer) xrefStream(entries map[int]xrefEntry, size int, trailer *raw.DictObj) (raw.Object, error) {
	var maxField2 int64
	maxField3 := 0
	for _, e := range entries {
		maxField2 = max(maxField2, e.field2)
		maxField3 = max(maxField3, e.field3)
	}
	w2 := bytesNeeded(maxField2)
	w3 := max(bytesNeeded(int64(max(maxField3, 65535))), 1)

	var rows []byte
	for num := 0; num < size; num++ {
		e, ok := entries[num]
		if !ok {
			gen := 0
			if num == 0 {
				gen = 65535
			}
			e = xrefEntry{kind: 0, field3: gen}
		}
		rows = append(rows, byte(e.kind))
		rows = appendBigEndian(rows, e.field2, w2)
		rows = appendBigEndian(rows, int64(e.field3), w3)
	}

	dict := raw.Dict()
	for k, v := range trailer.KV {
		dict.Set(k, v)
	}
	dict.Set("Type", raw.NameLiteral("XRef"))
	dict.Set("Size", raw.NumberInt(int64(size)))
	dict.Set("W", raw.NewArray(raw.NumberInt(1), raw.NumberInt(int64(w2)), raw.NumberInt(int64(w3))))
	return w.prepare(raw.NewStream(dict, rows))
}

func bytesNeeded(v int64) int {
	n := 1
	for v > 0xff {
		v >>= 8
		n++
	}
	return n
}

func appendBigEndian(buf []byte, v int64, width int) []byte {
	for i := width - 1; i >= 0; i-- {
		buf = append(buf, byte(v>>(8*uint(i))))
	}
	return buf
}

func buildTrailer(src *raw.DictObj, ids [2][]byte) *raw.DictObj {
	trailer := raw.Dict()
	for _, k := range []string{"Root", "Info"} {
		if v, ok := src.Get(k); ok {
			trailer.Set(k, v)
		}
	}
	trailer.Set("ID", raw.NewArray(raw.HexStr(ids[0]), raw.HexStr(ids[1])))
	return trailer
}
