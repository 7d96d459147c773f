package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"sync"

	"github.com/wudi/boletopdf/boleto"
	"github.com/wudi/boletopdf/templates"
)

// ErrNoLogo is returned by a LogoCache that has no image for a bank.
var ErrNoLogo = errors.New("no logo for bank")

// LogoCache resolves bank logos by compensation code. Implementations must
// be safe for concurrent use.
type LogoCache interface {
	GetOrResolve(code string) (image.Image, error)
}

// LogoSource returns encoded image bytes for a bank code.
type LogoSource func(code string) ([]byte, bool)

// BuiltinLogos serves the embedded logos of the supported banks.
func BuiltinLogos(code string) ([]byte, bool) {
	if !boleto.IsSupported(code) {
		return nil, false
	}
	return templates.Logo(code)
}

// MemoryLogoCache decodes logos on first use and keeps them for the life
// of the cache.
type MemoryLogoCache struct {
	mu     sync.Mutex
	source LogoSource
	logos  map[string]image.Image
}

// NewMemoryLogoCache builds a cache over source, or over BuiltinLogos when
// source is nil.
func NewMemoryLogoCache(source LogoSource) *MemoryLogoCache {
	if source == nil {
		source = BuiltinLogos
	}
	return &MemoryLogoCache{source: source, logos: make(map[string]image.Image)}
}

func (c *MemoryLogoCache) GetOrResolve(code string) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if img, ok := c.logos[code]; ok {
		return img, nil
	}
	data, ok := c.source(code)
	if !ok {
		return nil, fmt.Errorf("bank %q: %w", code, ErrNoLogo)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode logo for bank %q: %w", code, err)
	}
	c.logos[code] = img
	return img, nil
}
