package writer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/wudi/boletopdf/filters"
	"github.com/wudi/boletopdf/ir/raw"
)

type PDFVersion string

const (
	PDF14 PDFVersion = "1.4"
	PDF15 PDFVersion = "1.5"
	PDF17 PDFVersion = "1.7"
)

type Config struct {
	// Version is the minimum header version; the document's own version
	// wins when higher.
	Version PDFVersion
	// Compression is the Flate level applied to unfiltered streams. Zero
	// leaves streams as they are.
	Compression int
	// XRefStreams writes a cross-reference stream instead of a table.
	XRefStreams bool
	// ObjectStreams packs non-stream objects into object streams. It
	// implies XRefStreams.
	ObjectStreams bool
	// Deterministic derives the file identifier from the content so equal
	// documents produce equal bytes.
	Deterministic bool
	// ObjectsPerStream caps each object stream. Defaults to 100.
	ObjectsPerStream int
}

// FullCompression is the configuration used for finished documents.
func FullCompression() Config {
	return Config{
		Version:       PDF15,
		Compression:   9,
		XRefStreams:   true,
		ObjectStreams: true,
		Deterministic: true,
	}
}

// Writer serializes a raw document.
type Writer struct {
	cfg Config
}

func New(cfg Config) *Writer {
	if cfg.ObjectStreams {
		cfg.XRefStreams = true
		if cfg.Version < PDF15 {
			cfg.Version = PDF15
		}
	}
	if cfg.XRefStreams && cfg.Version < PDF15 {
		cfg.Version = PDF15
	}
	if cfg.ObjectsPerStream <= 0 {
		cfg.ObjectsPerStream = 100
	}
	return &Writer{cfg: cfg}
}

// Write serializes doc to out. The document is not modified.
func (w *Writer) Write(ctx context.Context, doc *raw.Document, out io.Writer) error {
	if _, err := doc.Catalog(); err != nil {
		return err
	}
	version := string(w.cfg.Version)
	if version == "" {
		version = string(PDF17)
	}
	if doc.Version > version {
		version = doc.Version
	}

	refs := make([]raw.ObjectRef, 0, len(doc.Objects))
	for ref := range doc.Objects {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Num < refs[j].Num })

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xe2\xe3\xcf\xd3\n", version)

	entries := make(map[int]xrefEntry, len(refs)+2)
	var packed []raw.ObjectRef
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		obj := doc.Objects[ref]
		if w.cfg.ObjectStreams && ref.Gen == 0 && packable(obj) {
			packed = append(packed, ref)
			continue
		}
		prepared, err := w.prepare(obj)
		if err != nil {
			return fmt.Errorf("object %s: %w", ref, err)
		}
		entries[ref.Num] = xrefEntry{kind: 1, field2: int64(buf.Len()), field3: ref.Gen}
		writeIndirect(&buf, ref, prepared)
	}

	next := 1
	if len(refs) > 0 {
		next = refs[len(refs)-1].Num + 1
	}
	for start := 0; start < len(packed); start += w.cfg.ObjectsPerStream {
		end := min(start+w.cfg.ObjectsPerStream, len(packed))
		stmRef := raw.ObjectRef{Num: next}
		next++
		stream, err := w.objectStream(doc, packed[start:end])
		if err != nil {
			return err
		}
		for i, ref := range packed[start:end] {
			entries[ref.Num] = xrefEntry{kind: 2, field2: int64(stmRef.Num), field3: i}
		}
		entries[stmRef.Num] = xrefEntry{kind: 1, field2: int64(buf.Len())}
		writeIndirect(&buf, stmRef, stream)
	}

	ids := fileID(doc, buf.Bytes(), w.cfg.Deterministic)
	trailer := buildTrailer(doc.Trailer, ids)

	if w.cfg.XRefStreams {
		xrefRef := raw.ObjectRef{Num: next}
		offset := int64(buf.Len())
		entries[xrefRef.Num] = xrefEntry{kind: 1, field2: offset}
		stream, err := w.xrefStream(entries, xrefRef.Num+1, trailer)
		if err != nil {
			return err
		}
		writeIndirect(&buf, xrefRef, stream)
		fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", offset)
	} else {
		offset := int64(buf.Len())
		size := next
		writeXRefTable(&buf, entries, size)
		trailer.Set("Size", raw.NumberInt(int64(size)))
		buf.WriteString("trailer\n")
		buf.Write(serializePrimitive(trailer))
		fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", offset)
	}

	_, err := out.Write(buf.Bytes())
	return err
}

// packable reports whether obj may live in an object stream.
func packable(obj raw.Object) bool {
	_, isStream := obj.(*raw.StreamObj)
	return !isStream
}

// prepare compresses unfiltered streams and fixes /Length. Streams are
// copied so the caller's document keeps its original data.
func (w *Writer) prepare(obj raw.Object) (raw.Object, error) {
	s, ok := obj.(*raw.StreamObj)
	if !ok {
		return obj, nil
	}
	dict := &raw.DictObj{KV: make(map[string]raw.Object, len(s.Dict.KV)+2)}
	for k, v := range s.Dict.KV {
		dict.KV[k] = v
	}
	data := s.Data
	if _, filtered := dict.Get("Filter"); !filtered && w.cfg.Compression > 0 && len(data) > 0 {
		enc, err := filters.FlateEncode(data, w.cfg.Compression)
		if err != nil {
			return nil, err
		}
		if len(enc) < len(data) {
			data = enc
			dict.Set("Filter", raw.NameLiteral("FlateDecode"))
			dict.Delete("DecodeParms")
		}
	}
	dict.Set("Length", raw.NumberInt(int64(len(data))))
	return raw.NewStream(dict, data), nil
}

func (w *Writer) objectStream(doc *raw.Document, refs []raw.ObjectRef) (raw.Object, error) {
	var header, body bytes.Buffer
	for i, ref := range refs {
		if i > 0 {
			header.WriteByte(' ')
			body.WriteByte('\n')
		}
		fmt.Fprintf(&header, "%d %d", ref.Num, body.Len())
		body.Write(serializePrimitive(doc.Objects[ref]))
	}
	header.WriteByte('\n')
	dict := raw.Dict()
	dict.Set("Type", raw.NameLiteral("ObjStm"))
	dict.Set("N", raw.NumberInt(int64(len(refs))))
	dict.Set("First", raw.NumberInt(int64(header.Len())))
	data := append(header.Bytes(), body.Bytes()...)
	return w.prepare(raw.NewStream(dict, data))
}

func writeIndirect(buf *bytes.Buffer, ref raw.ObjectRef, obj raw.Object) {
	fmt.Fprintf(buf, "%d %d obj\n", ref.Num, ref.Gen)
	buf.Write(serializePrimitive(obj))
	buf.WriteString("\nendobj\n")
}
