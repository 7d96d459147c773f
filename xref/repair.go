package xref

import (
	"context"
	"errors"
	"regexp"
	"strconv"

	"github.com/wudi/boletopdf/ir/raw"
)

var objHeader = regexp.MustCompile(`(?m)(?:^|[\r\n\s])(\d+)\s+(\d+)\s+obj\b`)

// repair scans the entire file for "<num> <gen> obj" headers. Later
// definitions of the same number win, matching incremental updates. The
// last parseable trailer dictionary is kept when present.
func repair(ctx context.Context, data []byte, objects ObjectReader) (*Table, error) {
	table := &Table{entries: make(map[int]Entry), Repaired: true}
	for _, m := range objHeader.FindAllSubmatchIndex(data, -1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		num, err1 := strconv.Atoi(string(data[m[2]:m[3]]))
		gen, err2 := strconv.Atoi(string(data[m[4]:m[5]]))
		if err1 != nil || err2 != nil {
			continue
		}
		table.entries[num] = Entry{Kind: EntryInUse, Offset: int64(m[2]), Gen: gen}
	}
	if len(table.entries) == 0 {
		return nil, errors.New("repair failed: no objects found")
	}

	for _, loc := range regexp.MustCompile(`trailer`).FindAllIndex(data, -1) {
		obj, err := objects.ReadDirectAt(int64(loc[1]))
		if err != nil {
			continue
		}
		if dict, ok := obj.(*raw.DictObj); ok {
			table.Trailer = dict
		}
	}
	if table.Trailer == nil {
		// Xref-stream files carry the trailer keys in the stream dictionary.
		for _, num := range table.Objects() {
			_, obj, err := objects.ReadIndirectAt(table.entries[num].Offset)
			if err != nil {
				continue
			}
			if s, ok := obj.(*raw.StreamObj); ok {
				if typ, _ := s.Dict.Name("Type"); typ == "XRef" {
					table.Trailer = s.Dict
				}
			}
		}
	}
	if table.Trailer == nil {
		table.Trailer = raw.Dict()
		table.Trailer.Set("Size", raw.NumberInt(int64(len(table.entries))))
	}
	return table, nil
}
