// Package render fills the boleto form templates and produces finished,
// flattened PDF documents.
package render

import (
	"bytes"
	"context"
	"errors"
	"io"
	"runtime"
	"time"

	"github.com/wudi/boletopdf/boleto"
	"github.com/wudi/boletopdf/observability"
	"github.com/wudi/boletopdf/stamper"
	"github.com/wudi/boletopdf/writer"
)

// Config configures an Engine. The zero value renders on the built-in
// layouts with the built-in logos.
type Config struct {
	// Templates defaults to the built-in layouts.
	Templates *TemplateSet
	// Logos defaults to a MemoryLogoCache over the built-in logos.
	Logos  LogoCache
	Logger observability.Logger
	// Parallelism bounds concurrent renders in batch helpers. Defaults to
	// GOMAXPROCS.
	Parallelism int
	// Writer overrides the full-compression output settings.
	Writer *writer.Config
	// MaxImagePixels bounds embedded logos and extra images.
	MaxImagePixels int
	// OnSlipDone is called after each slip of a batch renders
	// successfully. It may be called from several goroutines.
	OnSlipDone func(index int)
}

// Engine renders slips. It is safe for concurrent use.
type Engine struct {
	cfg Config
	log observability.Logger
}

// New builds an Engine, filling unset Config fields with defaults.
func New(cfg Config) (*Engine, error) {
	if cfg.Templates == nil {
		set, err := DefaultTemplates()
		if err != nil {
			return nil, fail("load templates", err)
		}
		cfg.Templates = set
	}
	if cfg.Logos == nil {
		cfg.Logos = NewMemoryLogoCache(nil)
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = runtime.GOMAXPROCS(0)
	}
	return &Engine{cfg: cfg, log: observability.OrNop(cfg.Logger)}, nil
}

type options struct {
	template *Template
}

// Option adjusts a single render.
type Option func(*options)

// WithTemplate renders on t instead of the variant chosen by the
// guarantor rule.
func WithTemplate(t Template) Option {
	return func(o *options) { o.template = &t }
}

// WithTemplatePath renders on the PDF at path.
func WithTemplatePath(path string) Option { return WithTemplate(TemplateFile(path)) }

// Render runs the whole pipeline for one slip and returns the finished
// document. No bytes are returned on error.
func (e *Engine) Render(ctx context.Context, slip *boleto.Boleto, opts ...Option) ([]byte, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	start := time.Now()
	var buf bytes.Buffer
	if err := e.render(ctx, slip, &buf, o); err != nil {
		e.log.Error("render failed", observability.Error("error", err))
		return nil, err
	}
	e.log.Debug("slip rendered",
		observability.Int(observability.KeyBytes, buf.Len()),
		observability.Duration(observability.KeyElapsed, time.Since(start)),
	)
	return buf.Bytes(), nil
}

func (e *Engine) render(ctx context.Context, slip *boleto.Boleto, w io.Writer, o options) error {
	if slip == nil {
		return fail("validate input", errors.New("nil slip"))
	}
	tpl := e.cfg.Templates.Select(slip.Title.HasGuarantor())
	if o.template != nil {
		tpl = *o.template
	}
	e.log.Debug("template selected", observability.String(observability.KeyTemplate, tpl.Name()))

	s, err := tpl.open(ctx, stamper.Config{
		Writer:         e.cfg.Writer,
		MaxImagePixels: e.cfg.MaxImagePixels,
		Logger:         e.log,
	})
	if err != nil {
		return fail("open template", err)
	}
	defer s.Close()

	b := &binder{s: s, slip: slip, logos: e.cfg.Logos, log: e.log}
	if err := b.bind(ctx); err != nil {
		return err
	}
	return fail("finalize", finalize(ctx, s, w))
}
