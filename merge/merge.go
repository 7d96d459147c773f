// Package merge concatenates finished PDFs into a single document.
package merge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/wudi/boletopdf/ir/raw"
	"github.com/wudi/boletopdf/observability"
	"github.com/wudi/boletopdf/optimize"
	"github.com/wudi/boletopdf/parser"
	"github.com/wudi/boletopdf/writer"
)

// ErrNoInput is returned when there is nothing to merge.
var ErrNoInput = errors.New("merge: no input documents")

// inheritable page attributes that must be pinned on each page once it
// leaves its original tree.
var inheritable = []string{"Resources", "MediaBox", "CropBox", "Rotate"}

type Config struct {
	Parser parser.Config
	// Writer defaults to writer.FullCompression.
	Writer *writer.Config
	Logger observability.Logger
}

// Merger appends the pages of each input, in order, to a fresh page tree.
type Merger struct {
	cfg Config
	log observability.Logger
}

func New(cfg Config) *Merger {
	return &Merger{cfg: cfg, log: observability.OrNop(cfg.Logger)}
}

// Documents merges inputs with the default configuration.
func Documents(ctx context.Context, inputs [][]byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := New(Config{}).Merge(ctx, inputs, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Merge writes a document whose pages are the pages of inputs in list
// order. Object numbers are reassigned per input. Document-level
// structures other than pages (outlines, name trees, forms) are not
// carried over.
func (m *Merger) Merge(ctx context.Context, inputs [][]byte, w io.Writer) error {
	if len(inputs) == 0 {
		return ErrNoInput
	}
	out := raw.NewDocument(string(writer.PDF15))
	pagesRef := out.Add(raw.Dict())
	kids := raw.NewArray()

	p := parser.NewDocumentParser(m.cfg.Parser)
	for i, data := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, err := p.Parse(ctx, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("merge: input %d: %w", i, err)
		}
		pages, err := appendDocument(out, doc, pagesRef)
		if err != nil {
			return fmt.Errorf("merge: input %d: %w", i, err)
		}
		for _, ref := range pages {
			kids.Append(ref)
		}
		if doc.Version > out.Version {
			out.Version = doc.Version
		}
	}

	pages := raw.Dict()
	pages.Set("Type", raw.NameLiteral("Pages"))
	pages.Set("Kids", kids)
	pages.Set("Count", raw.NumberInt(int64(kids.Len())))
	out.Objects[pagesRef.R] = pages

	catalog := raw.Dict()
	catalog.Set("Type", raw.NameLiteral("Catalog"))
	catalog.Set("Pages", pagesRef)
	out.Trailer.Set("Root", out.Add(catalog))

	stats, err := optimize.New(optimize.Config{CombineDuplicateStreams: true, RemoveUnreferenced: true}).Optimize(ctx, out)
	if err != nil {
		return fmt.Errorf("merge: %w", err)
	}
	wcfg := writer.FullCompression()
	if m.cfg.Writer != nil {
		wcfg = *m.cfg.Writer
	}
	if err := writer.New(wcfg).Write(ctx, out, w); err != nil {
		return fmt.Errorf("merge: write: %w", err)
	}
	m.log.Debug("documents merged",
		observability.Int("inputs", len(inputs)),
		observability.Int(observability.KeyPages, kids.Len()),
		observability.Int("combined", stats.Combined),
	)
	return nil
}

// dangling stands in for references to objects the input never defined;
// object 0 is never allocated, so it resolves to null.
var dangling = raw.ObjectRef{Num: 0, Gen: 65535}

// appendDocument copies every object of src into dst under fresh numbers
// and returns the new references of src's pages, reparented to parent.
func appendDocument(dst, src *raw.Document, parent raw.RefObj) ([]raw.RefObj, error) {
	srcPages, err := src.Pages()
	if err != nil {
		return nil, err
	}

	refs := make([]raw.ObjectRef, 0, len(src.Objects))
	for ref := range src.Objects {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Num != refs[j].Num {
			return refs[i].Num < refs[j].Num
		}
		return refs[i].Gen < refs[j].Gen
	})
	base := dst.MaxObjectNumber()
	mapping := make(map[raw.ObjectRef]raw.ObjectRef, len(refs))
	for i, ref := range refs {
		mapping[ref] = raw.ObjectRef{Num: base + i + 1}
	}
	renumber := func(r raw.ObjectRef) raw.ObjectRef {
		if n, ok := mapping[r]; ok {
			return n
		}
		return dangling
	}

	for _, ref := range refs {
		obj := raw.RewriteRefs(raw.Clone(src.Objects[ref]), renumber)
		dst.Objects[mapping[ref]] = obj
	}

	out := make([]raw.RefObj, 0, len(srcPages))
	for _, page := range srcPages {
		newRef := mapping[page.Ref]
		dict, ok := dst.Objects[newRef].(*raw.DictObj)
		if !ok {
			return nil, fmt.Errorf("page %s is not a dictionary", page.Ref)
		}
		for _, key := range inheritable {
			if _, own := page.Dict.Get(key); own {
				continue
			}
			if v := src.Inherited(page.Dict, key); v != nil {
				dict.Set(key, raw.RewriteRefs(raw.Clone(v), renumber))
			}
		}
		dict.Set("Parent", parent)
		out = append(out, raw.RefObj{R: newRef})
	}
	return out, nil
}
