// Package templates provides the built-in boleto form layouts and bank
// logos. The layouts are built once per process and served as PDF bytes.
package templates

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/wudi/boletopdf/builder"
	"github.com/wudi/boletopdf/coords"
	"github.com/wudi/boletopdf/ir/raw"
	"github.com/wudi/boletopdf/writer"
)

// Variant selects one of the built-in layouts.
type Variant int

const (
	WithoutGuarantorVariant Variant = iota
	WithGuarantorVariant
)

func (v Variant) String() string {
	if v == WithGuarantorVariant {
		return "builtin:with-guarantor"
	}
	return "builtin:without-guarantor"
}

//go:embed logos/*.png
var logoFS embed.FS

var (
	once     sync.Once
	built    [2][]byte
	buildErr error
)

// Bytes returns the serialized template for v. The returned slice is
// shared and must not be modified.
func Bytes(v Variant) ([]byte, error) {
	once.Do(func() {
		for _, variant := range []Variant{WithoutGuarantorVariant, WithGuarantorVariant} {
			doc, err := Build(variant)
			if err != nil {
				buildErr = fmt.Errorf("build %s: %w", variant, err)
				return
			}
			var buf bytes.Buffer
			cfg := writer.Config{Compression: 9, Deterministic: true}
			if err := writer.New(cfg).Write(context.Background(), doc, &buf); err != nil {
				buildErr = fmt.Errorf("write %s: %w", variant, err)
				return
			}
			built[variant] = buf.Bytes()
		}
	})
	if buildErr != nil {
		return nil, buildErr
	}
	if v != WithGuarantorVariant && v != WithoutGuarantorVariant {
		return nil, fmt.Errorf("unknown template variant %d", int(v))
	}
	return built[v], nil
}

// WithGuarantor is the layout carrying the Sacador/Avalista block.
func WithGuarantor() ([]byte, error) { return Bytes(WithGuarantorVariant) }

func WithoutGuarantor() ([]byte, error) { return Bytes(WithoutGuarantorVariant) }

// Build lays out a fresh A4 boleto form.
func Build(v Variant) (*raw.Document, error) {
	b := builder.NewBuilder().SetInfo(builder.Info{
		Title:    "Boleto Bancário",
		Producer: "boletopdf",
	})
	p := b.NewPage(pageWidth, pageHeight)

	p.DrawText("Recibo do Sacado", left, 822, builder.TextOptions{FontSize: 9})
	p.DrawText("Ficha de Compensação", right, 822, builder.TextOptions{FontSize: 6, Align: builder.AlignRight})
	p.AddLink(coords.NewRect(500, 818, right, 830), destCollection, false)
	draw(p, receipt(p))
	p.DrawText("Autenticação Mecânica", right, 620, builder.TextOptions{FontSize: labelSize, Align: builder.AlignRight})

	p.DrawLine(left, 600, right, 600, builder.LineOptions{LineWidth: 0.3})
	p.DrawText("Corte na linha pontilhada", right, 603, builder.TextOptions{FontSize: labelSize, Align: builder.AlignRight})
	draw(p, collection(p, v == WithGuarantorVariant))

	b = p.Finish().
		AddNamedDestination(destReceipt, 0, 835, false).
		AddNamedDestination(destCollection, 0, 585, false)
	return b.Build()
}

const (
	destReceipt    = "recibo"
	destCollection = "ficha"
)

// Logo returns the embedded PNG logo for a bank compensation code.
func Logo(code string) ([]byte, bool) {
	data, err := logoFS.ReadFile(path.Join("logos", code+".png"))
	if err != nil {
		return nil, false
	}
	return data, true
}

// LogoCodes lists the bank codes with an embedded logo.
func LogoCodes() []string {
	entries, err := fs.ReadDir(logoFS, "logos")
	if err != nil {
		return nil
	}
	codes := make([]string, 0, len(entries))
	for _, e := range entries {
		codes = append(codes, strings.TrimSuffix(e.Name(), ".png"))
	}
	sort.Strings(codes)
	return codes
}
