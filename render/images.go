package render

import (
	"fmt"
	"image"
	"strings"

	"github.com/wudi/boletopdf/observability"
	"github.com/wudi/boletopdf/stamper"
)

// placeImage covers the first widget of field name with img. A blank name
// or a field missing from the template is a no-op reported as false.
func (b *binder) placeImage(name string, img image.Image, opts stamper.ImageOptions) (bool, error) {
	if strings.TrimSpace(name) == "" || img == nil {
		return false, nil
	}
	pos := b.s.FieldPositions(name)
	if len(pos) == 0 {
		b.log.Debug("image field not in template", observability.String(observability.KeyField, name))
		return false, nil
	}
	if err := b.s.AddImage(pos[0].Page, pos[0].Rect, img, opts); err != nil {
		return false, fmt.Errorf("image field %s: %w", name, err)
	}
	return true, nil
}
