package render

import (
	"fmt"
	"image"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/twooffive"
)

// barHeight is the symbol height in pixels before it is stretched over
// the barcode field.
const barHeight = 40

// barcodeImage renders payload as an Interleaved 2 of 5 symbol, one pixel
// per module and without a caption.
func barcodeImage(payload string) (image.Image, error) {
	bc, err := twooffive.Encode(payload, true)
	if err != nil {
		return nil, fmt.Errorf("encode barcode: %w", err)
	}
	scaled, err := barcode.Scale(bc, bc.Bounds().Dx(), barHeight)
	if err != nil {
		return nil, fmt.Errorf("scale barcode: %w", err)
	}
	return scaled, nil
}
