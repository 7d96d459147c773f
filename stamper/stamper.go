// Package stamper edits an existing PDF form and finalizes it into a
// flattened, fully compressed document.
package stamper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"sort"
	"time"

	"go.uber.org/multierr"

	"github.com/wudi/boletopdf/acroform"
	"github.com/wudi/boletopdf/contentstream"
	"github.com/wudi/boletopdf/coords"
	"github.com/wudi/boletopdf/ir/raw"
	"github.com/wudi/boletopdf/observability"
	"github.com/wudi/boletopdf/optimize"
	"github.com/wudi/boletopdf/parser"
	"github.com/wudi/boletopdf/writer"
)

var (
	// ErrSealed is returned for edits after Bind.
	ErrSealed = errors.New("stamper: document is bound, no further edits")
	// ErrFinalized is returned when Finalize runs more than once.
	ErrFinalized = errors.New("stamper: document already finalized")
)

type Config struct {
	Parser parser.Config
	// Writer defaults to writer.FullCompression.
	Writer *writer.Config
	// MaxImagePixels bounds embedded rasters; larger ones are downsampled.
	// Defaults to 4 megapixels.
	MaxImagePixels int
	Logger         observability.Logger
}

const defaultMaxImagePixels = 4 << 20

// Stamper is an open, editable document.
type Stamper struct {
	cfg      Config
	log      observability.Logger
	doc      *raw.Document
	form     *acroform.Form
	source   io.Closer
	overlays map[int]*overlay
	images   int
	sealed   bool
	closed   bool
}

type overlay struct {
	ops      contentstream.Builder
	xobjects map[string]raw.Object
}

// Open parses the document read from r. The optional source is closed by
// Finalize or Close, whichever comes first.
func Open(ctx context.Context, r io.ReaderAt, source io.Closer, cfg Config) (*Stamper, error) {
	if cfg.MaxImagePixels == 0 {
		cfg.MaxImagePixels = defaultMaxImagePixels
	}
	doc, err := parser.NewDocumentParser(cfg.Parser).Parse(ctx, r)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("parse template: %w", err), closeSource(source))
	}
	form, err := acroform.Load(doc)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("read form: %w", err), closeSource(source))
	}
	return &Stamper{
		cfg:      cfg,
		log:      observability.OrNop(cfg.Logger),
		doc:      doc,
		form:     form,
		source:   source,
		overlays: make(map[int]*overlay),
	}, nil
}

// OpenFile opens the PDF at path.
func OpenFile(ctx context.Context, path string, cfg Config) (*Stamper, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return Open(ctx, f, f, cfg)
}

// OpenBytes opens an in-memory PDF.
func OpenBytes(ctx context.Context, data []byte, cfg Config) (*Stamper, error) {
	return Open(ctx, bytes.NewReader(data), nil, cfg)
}

func closeSource(c io.Closer) error {
	if c == nil {
		return nil
	}
	return c.Close()
}

func (s *Stamper) Form() *acroform.Form { return s.form }

// Document exposes the parsed document for inspection.
func (s *Stamper) Document() *raw.Document { return s.doc }

// SetField writes a text value. It reports false when the field does not
// exist.
func (s *Stamper) SetField(name, value string) (bool, error) {
	if s.sealed {
		return false, ErrSealed
	}
	return s.form.SetText(name, value)
}

// FieldPositions returns the visual positions of a field's widgets.
func (s *Stamper) FieldPositions(name string) []acroform.FieldPosition {
	return s.form.FieldPositions(name)
}

// AddImage draws img over rect, given in the rotated space of the page.
func (s *Stamper) AddImage(page int, rect coords.Rect, img image.Image, opts ImageOptions) error {
	if s.sealed {
		return ErrSealed
	}
	if page < 0 || page >= len(s.form.Pages()) {
		return fmt.Errorf("add image: page %d out of range", page)
	}
	if img == nil || img.Bounds().Empty() {
		return fmt.Errorf("add image: empty image")
	}
	ov, ok := s.overlays[page]
	if !ok {
		ov = &overlay{xobjects: make(map[string]raw.Object)}
		s.overlays[page] = ov
	}
	ref := imageXObject(s.doc, img, s.cfg.MaxImagePixels, opts)
	name := fmt.Sprintf("StampImg%d", s.images)
	s.images++
	ov.xobjects[name] = ref
	ov.ops.Save().
		Concat(coords.Matrix{rect.Width(), 0, 0, rect.Height(), rect.LLX, rect.LLY}).
		DrawXObject(name).
		Restore()
	return nil
}

// Bind seals the document for finalization. Edits after Bind fail with
// ErrSealed.
func (s *Stamper) Bind() *Bound {
	s.sealed = true
	return &Bound{s: s}
}

// Close releases the source without producing output. It is safe to call
// after Finalize.
func (s *Stamper) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.sealed = true
	return closeSource(s.source)
}

// Bound is a sealed document awaiting Finalize.
type Bound struct {
	s         *Stamper
	finalized bool
}

// Finalize runs the fixed sequence: consolidate named destinations,
// draw overlays and flatten fields, remove the form, combine duplicate
// streams, then write with full compression. The output is flushed to w
// before the source is closed; errors from every close step are joined.
func (b *Bound) Finalize(ctx context.Context, w io.Writer) (err error) {
	if b.finalized {
		return ErrFinalized
	}
	b.finalized = true
	s := b.s
	if s.closed {
		return fmt.Errorf("finalize: %w", os.ErrClosed)
	}
	start := time.Now()

	var buf bytes.Buffer
	sourceClosed := false
	defer func() {
		if !sourceClosed {
			err = multierr.Append(err, s.Close())
		}
	}()

	if _, err := consolidateDestinations(s.doc); err != nil {
		return fmt.Errorf("consolidate destinations: %w", err)
	}
	if err := s.applyOverlays(); err != nil {
		return fmt.Errorf("draw overlays: %w", err)
	}
	flattened, err := s.form.Flatten()
	if err != nil {
		return fmt.Errorf("flatten fields: %w", err)
	}
	if err := s.form.Remove(); err != nil {
		return fmt.Errorf("remove form: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	wcfg := writer.FullCompression()
	if s.cfg.Writer != nil {
		wcfg = *s.cfg.Writer
	}
	stats, err := optimize.New(optimize.Config{CombineDuplicateStreams: true, RemoveUnreferenced: true}).Optimize(ctx, s.doc)
	if err != nil {
		return err
	}
	if err := writer.New(wcfg).Write(ctx, s.doc, &buf); err != nil {
		return fmt.Errorf("write document: %w", err)
	}

	if _, werr := buf.WriteTo(w); werr != nil {
		err = multierr.Append(err, fmt.Errorf("flush output: %w", werr))
	}
	sourceClosed = true
	if cerr := s.Close(); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("close source: %w", cerr))
	}
	if f, ok := w.(interface{ Flush() error }); ok {
		if ferr := f.Flush(); ferr != nil {
			err = multierr.Append(err, fmt.Errorf("flush writer: %w", ferr))
		}
	}
	s.log.Debug("document finalized",
		observability.Int("flattened", flattened),
		observability.Int("combined", stats.Combined),
		observability.Int(observability.KeyObjects, len(s.doc.Objects)),
		observability.Duration(observability.KeyElapsed, time.Since(start)),
	)
	return err
}

func (s *Stamper) applyOverlays() error {
	pages := make([]int, 0, len(s.overlays))
	for p := range s.overlays {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	for _, p := range pages {
		ov := s.overlays[p]
		rotate, w, h := s.form.PageGeometry(p)
		var after contentstream.Builder
		after.Raw([]byte("Q")).Save()
		if m := coords.PageRotation(rotate, w, h); !m.IsIdentity() {
			after.Concat(m)
		}
		after.Raw(ov.ops.Bytes()).Restore()

		res := s.form.PageResources(p)
		xdict, ok := s.doc.GetDict(res.KV["XObject"])
		if ok {
			xdict = raw.Clone(xdict).(*raw.DictObj)
		} else {
			xdict = raw.Dict()
		}
		for name, ref := range ov.xobjects {
			xdict.Set(name, ref)
		}
		res.Set("XObject", xdict)
		if err := s.form.AppendPageContent(s.form.Pages()[p].Dict, []byte("q\n"), after.Bytes()); err != nil {
			return err
		}
	}
	return nil
}
