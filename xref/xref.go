package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/wudi/boletopdf/ir/raw"
)

// EntryKind distinguishes the three xref entry types.
type EntryKind int

const (
	EntryFree EntryKind = iota
	EntryInUse
	EntryCompressed // stored inside an object stream
)

// Entry locates one object. Offset/Gen apply to in-use entries, Stream/Index
// to compressed ones.
type Entry struct {
	Kind   EntryKind
	Offset int64
	Gen    int
	Stream int
	Index  int
}

// Table is the merged view of every xref section reachable from startxref.
type Table struct {
	entries map[int]Entry
	Trailer *raw.DictObj
	// Repaired reports that offsets were rebuilt by scanning the file.
	Repaired bool
}

func (t *Table) Lookup(objNum int) (Entry, bool) {
	e, ok := t.entries[objNum]
	return e, ok
}

// Objects returns the in-use and compressed object numbers in order.
func (t *Table) Objects() []int {
	nums := make([]int, 0, len(t.entries))
	for n, e := range t.entries {
		if e.Kind != EntryFree {
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)
	return nums
}

// ObjectReader is implemented by the document parser. It lets the resolver
// read trailer dictionaries and xref streams without owning the object
// grammar.
type ObjectReader interface {
	// ReadDirectAt parses one direct object starting at offset.
	ReadDirectAt(offset int64) (raw.Object, error)
	// ReadIndirectAt parses "num gen obj ... endobj" at offset.
	ReadIndirectAt(offset int64) (raw.ObjectRef, raw.Object, error)
	// DecodeStream returns the filtered payload of a stream.
	DecodeStream(s *raw.StreamObj) ([]byte, error)
}

type ResolverConfig struct {
	// MaxXRefDepth bounds /Prev chains.
	MaxXRefDepth int
	// DisableRepair turns off the full-file scan fallback.
	DisableRepair bool
}

// Resolver locates and merges xref sections.
type Resolver struct {
	cfg ResolverConfig
}

func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.MaxXRefDepth <= 0 {
		cfg.MaxXRefDepth = 64
	}
	return &Resolver{cfg: cfg}
}

// Resolve reads startxref and follows /Prev and /XRefStm links. The newest
// section wins for any object number. When the chain is unusable the file
// is scanned for object headers instead.
func (r *Resolver) Resolve(ctx context.Context, data []byte, objects ObjectReader) (*Table, error) {
	table, err := r.resolveChain(ctx, data, objects)
	if err == nil {
		return table, nil
	}
	if r.cfg.DisableRepair || ctx.Err() != nil {
		return nil, err
	}
	repaired, rerr := repair(ctx, data, objects)
	if rerr != nil {
		return nil, fmt.Errorf("%w (repair: %v)", err, rerr)
	}
	return repaired, nil
}

func (r *Resolver) resolveChain(ctx context.Context, data []byte, objects ObjectReader) (*Table, error) {
	offset, err := findStartXRef(data)
	if err != nil {
		return nil, err
	}
	table := &Table{entries: make(map[int]Entry)}
	visited := make(map[int64]bool)
	for depth := 0; offset >= 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if depth >= r.cfg.MaxXRefDepth {
			return nil, errors.New("xref /Prev chain too deep")
		}
		if visited[offset] {
			return nil, fmt.Errorf("xref /Prev loop at offset %d", offset)
		}
		visited[offset] = true
		if offset >= int64(len(data)) {
			return nil, fmt.Errorf("xref offset out of range: %d", offset)
		}

		var trailer *raw.DictObj
		if bytes.HasPrefix(bytes.TrimLeft(data[offset:], " \t\r\n"), []byte("xref")) {
			trailer, err = readClassicSection(data, offset, table, objects)
			if err != nil {
				return nil, err
			}
			// Hybrid files: the xref stream refines the classic table.
			if stm, ok := intEntry(trailer, "XRefStm"); ok {
				if _, err := readStreamSection(stm, table, objects); err != nil {
					return nil, fmt.Errorf("hybrid xref stream: %w", err)
				}
			}
		} else {
			trailer, err = readStreamSection(offset, table, objects)
			if err != nil {
				return nil, err
			}
		}
		if table.Trailer == nil {
			table.Trailer = trailer
		}
		prev, ok := intEntry(trailer, "Prev")
		if !ok {
			break
		}
		offset = prev
	}
	if table.Trailer == nil {
		return nil, errors.New("no trailer found")
	}
	if _, ok := table.Trailer.Get("Root"); !ok {
		return nil, errors.New("trailer has no /Root")
	}
	return table, nil
}

func findStartXRef(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, errors.New("startxref not found")
	}
	fields := bytes.Fields(data[idx+len("startxref"):])
	if len(fields) == 0 {
		return 0, errors.New("startxref has no offset")
	}
	off, err := strconv.ParseInt(string(fields[0]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse startxref: %w", err)
	}
	if off <= 0 || off >= int64(len(data)) {
		return 0, fmt.Errorf("xref offset out of range: %d", off)
	}
	return off, nil
}

// set stores e unless a newer section already defined objNum.
func (t *Table) set(objNum int, e Entry) {
	if _, ok := t.entries[objNum]; ok {
		return
	}
	t.entries[objNum] = e
}

func readClassicSection(data []byte, offset int64, table *Table, objects ObjectReader) (*raw.DictObj, error) {
	pos := int(offset)
	line, pos := nextLine(data, pos)
	if string(bytes.TrimSpace(line)) != "xref" {
		return nil, fmt.Errorf("xref keyword not found at offset %d", offset)
	}
	for {
		lineStart := pos
		line, pos = nextLine(data, pos)
		if line == nil {
			return nil, errors.New("unexpected end of xref section")
		}
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			continue
		}
		if bytes.HasPrefix(trimmed, []byte("trailer")) {
			at := lineStart + bytes.Index(line, []byte("trailer")) + len("trailer")
			obj, err := objects.ReadDirectAt(int64(at))
			if err != nil {
				return nil, fmt.Errorf("parse trailer: %w", err)
			}
			dict, ok := obj.(*raw.DictObj)
			if !ok {
				return nil, fmt.Errorf("trailer is %s, not a dictionary", obj.Type())
			}
			return dict, nil
		}
		parts := bytes.Fields(trimmed)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid xref subsection header: %q", trimmed)
		}
		start, err1 := strconv.Atoi(string(parts[0]))
		count, err2 := strconv.Atoi(string(parts[1]))
		if err1 != nil || err2 != nil || start < 0 || count < 0 {
			return nil, fmt.Errorf("invalid xref subsection header: %q", trimmed)
		}
		for i := 0; i < count; i++ {
			line, pos = nextLine(data, pos)
			fields := bytes.Fields(line)
			if len(fields) < 3 {
				return nil, fmt.Errorf("invalid xref entry: %q", line)
			}
			off, err := strconv.ParseInt(string(fields[0]), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parse xref offset: %w", err)
			}
			gen, err := strconv.Atoi(string(fields[1]))
			if err != nil {
				return nil, fmt.Errorf("parse xref gen: %w", err)
			}
			if fields[2][0] == 'n' {
				table.set(start+i, Entry{Kind: EntryInUse, Offset: off, Gen: gen})
			} else {
				table.set(start+i, Entry{Kind: EntryFree, Gen: gen})
			}
		}
	}
}

// nextLine returns the bytes up to the next EOL and the position after it.
func nextLine(data []byte, pos int) ([]byte, int) {
	if pos >= len(data) {
		return nil, pos
	}
	end := pos
	for end < len(data) && data[end] != '\n' && data[end] != '\r' {
		end++
	}
	next := end
	if next < len(data) && data[next] == '\r' {
		next++
	}
	if next < len(data) && data[next] == '\n' {
		next++
	}
	return data[pos:end], next
}

func readStreamSection(offset int64, table *Table, objects ObjectReader) (*raw.DictObj, error) {
	_, obj, err := objects.ReadIndirectAt(offset)
	if err != nil {
		return nil, fmt.Errorf("read xref stream: %w", err)
	}
	stream, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, fmt.Errorf("object at %d is not an xref stream", offset)
	}
	if typ, _ := stream.Dict.Name("Type"); typ != "XRef" {
		return nil, fmt.Errorf("stream at %d has /Type %q, want XRef", offset, typ)
	}
	widths, err := intArray(stream.Dict, "W")
	if err != nil || len(widths) != 3 {
		return nil, fmt.Errorf("xref stream /W invalid")
	}
	size, ok := intEntry(stream.Dict, "Size")
	if !ok {
		return nil, errors.New("xref stream missing /Size")
	}
	index := []int64{0, size}
	if idx, err := intArray(stream.Dict, "Index"); err == nil && len(idx)%2 == 0 {
		index = idx
	}
	data, err := objects.DecodeStream(stream)
	if err != nil {
		return nil, fmt.Errorf("decode xref stream: %w", err)
	}
	rowLen := int(widths[0] + widths[1] + widths[2])
	if rowLen == 0 {
		return nil, errors.New("xref stream row width is zero")
	}
	row := 0
	for i := 0; i+1 < len(index); i += 2 {
		start, count := int(index[i]), int(index[i+1])
		for j := 0; j < count; j++ {
			at := row * rowLen
			if at+rowLen > len(data) {
				return nil, errors.New("xref stream data truncated")
			}
			f := data[at : at+rowLen]
			typ := int64(1)
			if widths[0] > 0 {
				typ = readField(f[:widths[0]])
			}
			f2 := readField(f[widths[0] : widths[0]+widths[1]])
			f3 := readField(f[widths[0]+widths[1]:])
			switch typ {
			case 0:
				table.set(start+j, Entry{Kind: EntryFree, Gen: int(f3)})
			case 1:
				table.set(start+j, Entry{Kind: EntryInUse, Offset: f2, Gen: int(f3)})
			case 2:
				table.set(start+j, Entry{Kind: EntryCompressed, Stream: int(f2), Index: int(f3)})
			}
			row++
		}
	}
	return stream.Dict, nil
}

func readField(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

func intEntry(d *raw.DictObj, key string) (int64, bool) {
	o, ok := d.Get(key)
	if !ok {
		return 0, false
	}
	v, ok := raw.NumberValue(o)
	return int64(v), ok
}

func intArray(d *raw.DictObj, key string) ([]int64, error) {
	o, ok := d.Get(key)
	if !ok {
		return nil, fmt.Errorf("missing /%s", key)
	}
	arr, ok := o.(*raw.ArrayObj)
	if !ok {
		return nil, fmt.Errorf("/%s is not an array", key)
	}
	out := make([]int64, 0, arr.Len())
	for _, it := range arr.Items {
		v, ok := raw.NumberValue(it)
		if !ok {
			return nil, fmt.Errorf("/%s has a non-number entry", key)
		}
		out = append(out, int64(v))
	}
	return out, nil
}
