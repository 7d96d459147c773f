package render

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/wudi/boletopdf/boleto"
)

// Viewer exposes one slip as bytes, a stream or a file. Every call
// renders again.
type Viewer struct {
	e    *Engine
	slip *boleto.Boleto
	opts []Option
}

// Viewer returns a handle on slip rendered with opts.
func (e *Engine) Viewer(slip *boleto.Boleto, opts ...Option) *Viewer {
	return &Viewer{e: e, slip: slip, opts: opts}
}

// Bytes renders the slip.
func (v *Viewer) Bytes(ctx context.Context) ([]byte, error) {
	return v.e.Render(ctx, v.slip, v.opts...)
}

// Reader renders the slip and returns a stream over the document.
func (v *Viewer) Reader(ctx context.Context) (io.Reader, error) {
	data, err := v.Bytes(ctx)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// WriteFile renders the slip and stores it at path, creating missing
// directories. Nothing is written when rendering fails.
func (v *Viewer) WriteFile(ctx context.Context, path string) error {
	data, err := v.Bytes(ctx)
	if err != nil {
		return err
	}
	return fail("write file", writeFile(path, data))
}

// writeFile replaces path atomically so readers never see a partial
// document.
func writeFile(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".boleto-*.pdf")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
