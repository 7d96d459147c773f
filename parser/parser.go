package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"

	"github.com/wudi/boletopdf/filters"
	"github.com/wudi/boletopdf/ir/raw"
	"github.com/wudi/boletopdf/scanner"
	"github.com/wudi/boletopdf/xref"
)

// ErrEncrypted is returned for documents carrying an /Encrypt dictionary.
// Templates are expected to be unprotected.
var ErrEncrypted = errors.New("encrypted documents are not supported")

// Config controls high-level PDF parsing (xref resolution + object loading).
type Config struct {
	XRef        xref.ResolverConfig
	MaxIndirect int
	Limits      filters.Limits
	Scanner     scanner.Config
}

// DocumentParser builds a raw.Document using xref tables/streams and the object loader.
type DocumentParser struct {
	cfg Config
}

func NewDocumentParser(cfg Config) *DocumentParser {
	if cfg.MaxIndirect == 0 {
		cfg.MaxIndirect = 32
	}
	if cfg.Limits.MaxDecompressedSize == 0 {
		cfg.Limits.MaxDecompressedSize = 256 << 20
	}
	return &DocumentParser{cfg: cfg}
}

// Parse loads every object reachable from the xref into memory. Object
// streams and xref streams are unpacked and dropped from the result, so the
// document can be rewritten with a fresh layout.
func (p *DocumentParser) Parse(ctx context.Context, r io.ReaderAt) (*raw.Document, error) {
	data, err := io.ReadAll(io.NewSectionReader(r, 0, math.MaxInt64))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if !bytes.Contains(data[:min(len(data), 1024)], []byte("%PDF-")) {
		return nil, errors.New("missing %PDF- header")
	}

	ld := newLoader(data, p.cfg)
	table, err := xref.NewResolver(p.cfg.XRef).Resolve(ctx, data, ld)
	if err != nil {
		return nil, fmt.Errorf("resolve xref: %w", err)
	}
	if _, ok := table.Trailer.Get("Encrypt"); ok {
		return nil, ErrEncrypted
	}
	ld.table = table

	doc := raw.NewDocument(detectHeaderVersion(data))
	structural := make(map[int]bool)
	for _, num := range table.Objects() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ref, obj, err := ld.load(num)
		if err != nil {
			if table.Repaired {
				continue
			}
			return nil, fmt.Errorf("load object %d: %w", num, err)
		}
		if s, ok := obj.(*raw.StreamObj); ok {
			if typ, _ := s.Dict.Name("Type"); typ == "XRef" || typ == "ObjStm" {
				structural[num] = true
				continue
			}
		}
		doc.Objects[ref] = obj
	}

	doc.Trailer = cleanTrailer(table.Trailer)
	if _, ok := doc.Trailer.Get("Root"); !ok {
		root, ok := findCatalog(doc)
		if !ok {
			return nil, raw.ErrNoCatalog
		}
		doc.Trailer.Set("Root", raw.RefObj{R: root})
	}
	if cat, err := doc.Catalog(); err == nil {
		// The catalog may override the header version.
		if name, ok := cat.Name("Version"); ok && name > doc.Version {
			doc.Version = name
		}
	}
	return doc, nil
}

// cleanTrailer keeps only the keys meaningful once the file is rewritten.
func cleanTrailer(t *raw.DictObj) *raw.DictObj {
	out := raw.Dict()
	for _, k := range []string{"Root", "Info", "ID"} {
		if v, ok := t.Get(k); ok {
			out.Set(k, raw.Clone(v))
		}
	}
	return out
}

func findCatalog(doc *raw.Document) (raw.ObjectRef, bool) {
	var found raw.ObjectRef
	ok := false
	for ref, obj := range doc.Objects {
		d, isDict := obj.(*raw.DictObj)
		if !isDict {
			continue
		}
		if typ, _ := d.Name("Type"); typ == "Catalog" && (!ok || ref.Num > found.Num) {
			found, ok = ref, true
		}
	}
	return found, ok
}

var headerVersion = regexp.MustCompile(`%PDF-(\d\.\d)`)

func detectHeaderVersion(data []byte) string {
	m := headerVersion.FindSubmatch(data[:min(len(data), 1024)])
	if m == nil {
		return "1.4"
	}
	return string(m[1])
}
