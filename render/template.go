package render

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/wudi/boletopdf/stamper"
	"github.com/wudi/boletopdf/templates"
)

// Template is a form layout, read either from a file or from memory.
type Template struct {
	name string
	path string
	data []byte
}

// TemplateFile refers to a PDF on disk. Relative paths are made absolute
// when the template is opened.
func TemplateFile(path string) Template { return Template{name: path, path: path} }

// TemplateBytes wraps an in-memory PDF. data must not change afterwards.
func TemplateBytes(name string, data []byte) Template { return Template{name: name, data: data} }

func (t Template) Name() string { return t.name }

func (t Template) open(ctx context.Context, cfg stamper.Config) (*stamper.Stamper, error) {
	if t.path == "" && t.data == nil {
		return nil, fmt.Errorf("template %q has no content", t.name)
	}
	if t.path != "" {
		abs, err := filepath.Abs(t.path)
		if err != nil {
			return nil, err
		}
		return stamper.OpenFile(ctx, abs, cfg)
	}
	return stamper.OpenBytes(ctx, t.data, cfg)
}

// TemplateSet holds the two layouts a slip can be rendered on. It is
// immutable once built.
type TemplateSet struct {
	withGuarantor    Template
	withoutGuarantor Template
}

func NewTemplateSet(withGuarantor, withoutGuarantor Template) *TemplateSet {
	return &TemplateSet{withGuarantor: withGuarantor, withoutGuarantor: withoutGuarantor}
}

// DefaultTemplates returns the built-in layouts.
func DefaultTemplates() (*TemplateSet, error) {
	with, err := templates.WithGuarantor()
	if err != nil {
		return nil, err
	}
	without, err := templates.WithoutGuarantor()
	if err != nil {
		return nil, err
	}
	return NewTemplateSet(
		TemplateBytes(templates.WithGuarantorVariant.String(), with),
		TemplateBytes(templates.WithoutGuarantorVariant.String(), without),
	), nil
}

// Select picks the layout for a slip with or without a guarantor.
func (s *TemplateSet) Select(guarantor bool) Template {
	if guarantor {
		return s.withGuarantor
	}
	return s.withoutGuarantor
}
