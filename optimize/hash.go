package optimize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/wudi/boletopdf/ir/raw"
)

func hashObject(obj raw.Object) string {
	h := sha256.New()
	writeHash(h, obj)
	return hex.EncodeToString(h.Sum(nil))
}

func writeHash(h hash.Hash, obj raw.Object) {
	if obj == nil {
		fmt.Fprint(h, "nil")
		return
	}
	fmt.Fprint(h, obj.Type(), ":")
	switch t := obj.(type) {
	case raw.NameObj:
		fmt.Fprint(h, t.Val)
	case raw.NumberObj:
		if t.IsInt {
			fmt.Fprint(h, t.I)
		} else {
			fmt.Fprint(h, t.F)
		}
	case raw.BoolObj:
		fmt.Fprint(h, t.V)
	case raw.StringObj:
		fmt.Fprintf(h, "%d:", len(t.Bytes))
		h.Write(t.Bytes)
	case raw.RefObj:
		fmt.Fprintf(h, "%d %d R", t.R.Num, t.R.Gen)
	case *raw.ArrayObj:
		fmt.Fprint(h, "[")
		for _, v := range t.Items {
			writeHash(h, v)
			fmt.Fprint(h, ",")
		}
		fmt.Fprint(h, "]")
	case *raw.DictObj:
		fmt.Fprint(h, "<<")
		for _, k := range t.Keys() {
			fmt.Fprint(h, "/", k, " ")
			writeHash(h, t.KV[k])
		}
		fmt.Fprint(h, ">>")
	case *raw.StreamObj:
		// Length follows the data and is rewritten on output.
		dict := *t.Dict
		dict.KV = make(map[string]raw.Object, len(t.Dict.KV))
		for k, v := range t.Dict.KV {
			if k != "Length" {
				dict.KV[k] = v
			}
		}
		writeHash(h, &dict)
		fmt.Fprintf(h, "%d:", len(t.Data))
		h.Write(t.Data)
	case raw.NullObj:
		fmt.Fprint(h, "null")
	}
}
