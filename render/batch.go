package render

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/wudi/boletopdf/boleto"
	"github.com/wudi/boletopdf/merge"
	"github.com/wudi/boletopdf/observability"
)

// RenderAll renders slips concurrently and returns the documents in input
// order. The first failure cancels the remaining renders.
func (e *Engine) RenderAll(ctx context.Context, slips []*boleto.Boleto, opts ...Option) ([][]byte, error) {
	out := make([][]byte, len(slips))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Parallelism)
	for i, slip := range slips {
		i, slip := i, slip
		g.Go(func() error {
			data, err := e.Render(gctx, slip, opts...)
			if err != nil {
				return fmt.Errorf("slip %d: %w", i+1, err)
			}
			out[i] = data
			if e.cfg.OnSlipDone != nil {
				e.cfg.OnSlipDone(i)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Merge renders slips and joins them, in order, into one document.
func (e *Engine) Merge(ctx context.Context, slips []*boleto.Boleto, opts ...Option) ([]byte, error) {
	docs, err := e.RenderAll(ctx, slips, opts...)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	m := merge.New(merge.Config{Writer: e.cfg.Writer, Logger: e.log})
	if err := m.Merge(ctx, docs, &buf); err != nil {
		return nil, fail("merge", err)
	}
	return buf.Bytes(), nil
}

// GroupInOnePDF writes all slips to dest as a single document.
func (e *Engine) GroupInOnePDF(ctx context.Context, slips []*boleto.Boleto, dest string, opts ...Option) error {
	data, err := e.Merge(ctx, slips, opts...)
	if err != nil {
		return err
	}
	if err := writeFile(dest, data); err != nil {
		return fail("write file", err)
	}
	e.log.Info("batch merged",
		observability.Int("slips", len(slips)),
		observability.String("path", dest))
	return nil
}

// OnePerPDF writes slip i (1-based) to dir/<prefix><i><suffix>.pdf and
// returns the paths in input order. Files are written only after every
// slip rendered.
func (e *Engine) OnePerPDF(ctx context.Context, slips []*boleto.Boleto, dir, prefix, suffix string, opts ...Option) ([]string, error) {
	docs, err := e.RenderAll(ctx, slips, opts...)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(docs))
	for i, data := range docs {
		paths[i] = filepath.Join(dir, prefix+strconv.Itoa(i+1)+suffix+".pdf")
		if err := writeFile(paths[i], data); err != nil {
			return paths[:i], fail("write file", err)
		}
	}
	e.log.Info("batch written",
		observability.Int("slips", len(slips)),
		observability.String("dir", dir))
	return paths, nil
}
